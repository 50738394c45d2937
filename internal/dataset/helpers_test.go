package dataset

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/config"
)

// memLoader serves recordings from memory and counts loads.
type memLoader struct {
	mu    sync.RWMutex
	recs  map[string]*audio.Recording
	loads atomic.Int64
}

func newMemLoader() *memLoader {
	return &memLoader{recs: make(map[string]*audio.Recording)}
}

// add registers a recording of n non-zero samples, distinct per path.
func (l *memLoader) add(path string, n, rate int) []float64 {
	base := float64(100 * (len(l.recs) + 1))
	samples := make([]float64, n)
	for k := range samples {
		samples[k] = base + float64(k%50)
	}
	l.set(path, &audio.Recording{Path: path, SampleRate: rate, Samples: samples})
	return samples
}

func (l *memLoader) set(path string, rec *audio.Recording) {
	l.mu.Lock()
	l.recs[path] = rec
	l.mu.Unlock()
}

func (l *memLoader) Load(path string) (*audio.Recording, error) {
	l.loads.Add(1)
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.recs[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, errors.New("no such recording"))
	}
	cp := *rec
	cp.Samples = slices.Clone(rec.Samples)
	return &cp, nil
}

// identity returns the waveform as a one-row matrix so tests can see exactly
// what was handed to the extractor.
type identity struct{}

func (identity) Extract(x []float64) (*mat.Dense, error) {
	return mat.NewDense(1, len(x), slices.Clone(x)), nil
}

func testConfig(segment, rate int) *config.Data {
	return &config.Data{
		SegmentLength: segment,
		FilterLength:  64,
		HopLength:     16,
		WinLength:     64,
		SamplingRate:  rate,
		MelFmax:       float64(rate) / 2,
		NMelChannels:  8,
		Seed:          config.DefaultSeed,
		Quantum:       config.DefaultQuantum,
		Packer:        config.DefaultPacker,
		CapacityScan:  config.Scan{Min: config.DefaultScanMin, Max: config.DefaultScanMax, Step: config.DefaultScanStep},
	}
}

func testOptions(cfg *config.Data, l *memLoader) Options {
	return Options{Config: cfg, Loader: l, Extractor: identity{}}
}

// raw undoes normalization. Division by a power of two is exact, so this
// recovers the integer samples bit for bit.
func raw(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * audio.MaxWavValue
	}
	return out
}

func zeros(n int) []float64 {
	return make([]float64, n)
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
