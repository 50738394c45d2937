// Package mel computes log-compressed mel spectrograms of unit-range
// waveforms: a centred, reflect-padded STFT with a periodic Hann window,
// magnitudes projected onto a Slaney-normalised mel filterbank, then
// log(max(x, 1e-5)).
package mel

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/satindergrewal/mel2samp/internal/config"
)

// ClipValue is the floor applied before the log.
const ClipValue = 1e-5

// ErrEmptySignal is returned when asked to transform zero samples.
var ErrEmptySignal = errors.New("mel: empty signal")

// Extractor turns a normalized waveform into a time-frequency
// representation with one row per mel channel and one column per frame.
type Extractor interface {
	Extract(audio []float64) (*mat.Dense, error)
}

// Params configures a Spectrogram.
type Params struct {
	FilterLength int // FFT size
	HopLength    int
	WinLength    int
	SamplingRate int
	NMelChannels int
	Fmin         float64
	Fmax         float64
}

// ParamsFromConfig picks the spectrogram fields out of a data configuration.
func ParamsFromConfig(d *config.Data) Params {
	return Params{
		FilterLength: d.FilterLength,
		HopLength:    d.HopLength,
		WinLength:    d.WinLength,
		SamplingRate: d.SamplingRate,
		NMelChannels: d.NMelChannels,
		Fmin:         d.MelFmin,
		Fmax:         d.FmaxOrNyquist(),
	}
}

// Spectrogram is the mel Extractor. It is safe for concurrent use.
type Spectrogram struct {
	p      Params
	window []float64 // FilterLength long, Hann of WinLength centred
	basis  *mat.Dense
	ffts   sync.Pool
}

// New builds the window and filterbank for p.
func New(p Params) (*Spectrogram, error) {
	switch {
	case p.FilterLength <= 0 || p.HopLength <= 0 || p.SamplingRate <= 0 || p.NMelChannels <= 0:
		return nil, fmt.Errorf("mel: invalid params %+v", p)
	case p.WinLength <= 0 || p.WinLength > p.FilterLength:
		return nil, fmt.Errorf("mel: win length %d outside (0, %d]", p.WinLength, p.FilterLength)
	case p.Fmin < 0 || p.Fmax <= p.Fmin:
		return nil, fmt.Errorf("mel: invalid band [%v, %v]", p.Fmin, p.Fmax)
	}

	s := &Spectrogram{
		p:      p,
		window: centredWindow(p.WinLength, p.FilterLength),
		basis:  Filterbank(p.SamplingRate, p.FilterLength, p.NMelChannels, p.Fmin, p.Fmax),
	}
	n := p.FilterLength
	s.ffts.New = func() any { return fourier.NewFFT(n) }
	return s, nil
}

// Frames returns the number of STFT frames for n samples.
func (s *Spectrogram) Frames(n int) int {
	return n/s.p.HopLength + 1
}

// Extract implements Extractor.
func (s *Spectrogram) Extract(audio []float64) (*mat.Dense, error) {
	if len(audio) == 0 {
		return nil, ErrEmptySignal
	}
	mag := s.magnitudes(audio)

	var out mat.Dense
	out.Mul(s.basis, mag)
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Log(math.Max(v, ClipValue))
	}, &out)
	return &out, nil
}

// magnitudes returns |STFT| with FilterLength/2+1 rows.
func (s *Spectrogram) magnitudes(x []float64) *mat.Dense {
	n := s.p.FilterLength
	pad := n / 2
	bins := n/2 + 1
	frames := (len(x)+2*pad-n)/s.p.HopLength + 1

	fft := s.ffts.Get().(*fourier.FFT)
	defer s.ffts.Put(fft)

	mag := mat.NewDense(bins, frames, nil)
	buf := make([]float64, n)
	var coeffs []complex128
	for t := 0; t < frames; t++ {
		start := t*s.p.HopLength - pad
		for k := 0; k < n; k++ {
			buf[k] = x[reflect(start+k, len(x))] * s.window[k]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k := 0; k < bins; k++ {
			mag.Set(k, t, cmplx.Abs(coeffs[k]))
		}
	}
	return mag
}

// reflect maps i into [0, n) by mirroring around the edges without repeating
// the edge sample.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// centredWindow returns a periodic Hann window of length win, zero-padded on
// both sides to n.
func centredWindow(win, n int) []float64 {
	hann := window.Hann(win + 1)[:win]
	out := make([]float64, n)
	copy(out[(n-win)/2:], hann)
	return out
}
