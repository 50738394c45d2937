package mel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1kHz, logarithmic above.
const (
	fSp       = 200.0 / 3
	minLogHz  = 1000.0
	minLogMel = minLogHz / fSp
)

var logStep = math.Log(6.4) / 27

// HzToMel converts a frequency to the Slaney mel scale.
func HzToMel(f float64) float64 {
	if f >= minLogHz {
		return minLogMel + math.Log(f/minLogHz)/logStep
	}
	return f / fSp
}

// MelToHz is the inverse of HzToMel.
func MelToHz(m float64) float64 {
	if m >= minLogMel {
		return minLogHz * math.Exp(logStep*(m-minLogMel))
	}
	return fSp * m
}

// Filterbank returns an nMels x (nFFT/2+1) matrix of triangular filters
// spaced evenly on the mel scale between fmin and fmax, each scaled to
// constant energy per band.
func Filterbank(sampleRate, nFFT, nMels int, fmin, fmax float64) *mat.Dense {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	lo, hi := HzToMel(fmin), HzToMel(fmax)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = MelToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	basis := mat.NewDense(nMels, bins, nil)
	for i := 0; i < nMels; i++ {
		lower, centre, upper := melF[i], melF[i+1], melF[i+2]
		enorm := 2 / (upper - lower)
		for k, f := range fftFreqs {
			up := (f - lower) / (centre - lower)
			down := (upper - f) / (upper - centre)
			w := math.Max(0, math.Min(up, down))
			basis.Set(i, k, w*enorm)
		}
	}
	return basis
}
