package dataset

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/config"
)

func binCorpus(t *testing.T, lengths ...int) (*memLoader, []string, map[string][]float64) {
	t.Helper()
	l := newMemLoader()
	var files []string
	samples := map[string][]float64{}
	for i, n := range lengths {
		p := fmt.Sprintf("rec%02d.wav", i)
		samples[p] = l.add(p, n, 16000)
		files = append(files, p)
	}
	return l, files, samples
}

func TestBinPackerEveryRecordingOnce(t *testing.T) {
	l, files, _ := binCorpus(t, 300, 500, 200, 700, 100, 900, 450, 50)
	d, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)

	assert.ElementsMatch(t, files, d.Files())
	seen := map[int]int{}
	for _, b := range d.Table().Bins {
		assert.LessOrEqual(t, b.Volume, 1000)
		for _, id := range b.IDs {
			seen[id]++
		}
	}
	require.Len(t, seen, len(files))
	for id, n := range seen {
		assert.Equal(t, 1, n, "recording %d appears in %d bins", id, n)
	}
	assert.Equal(t, 1000, d.Capacity())
	assert.InDelta(t, Utilization(d.Table().Bins, 1000), d.Utilization(), 1e-12)
}

func TestBinPackerMaterializesExactCapacity(t *testing.T) {
	l, files, samples := binCorpus(t, 300, 500, 200, 700, 100, 900, 450, 50)
	d, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)

	order := d.Files()
	for i := 0; i < d.Len(); i++ {
		ex, err := d.Get(i)
		require.NoError(t, err)
		require.Len(t, ex.Audio, 1000, "bin %d", i)

		b := d.Table().Bins[i]
		pad := 0
		if len(b.IDs) > 1 {
			pad = (1000 - b.Volume) / (len(b.IDs) - 1)
		}
		var want []float64
		for k, id := range b.IDs {
			want = concat(want, samples[order[id]])
			if k != len(b.IDs)-1 {
				want = concat(want, zeros(pad))
			}
		}
		want = concat(want, zeros(1000-len(want)))
		assert.Equal(t, want, raw(ex.Audio), "bin %d", i)
	}
}

func TestBinPackerPaddingBetweenItems(t *testing.T) {
	l := newMemLoader()
	a := l.add("a.wav", 600, 16000)
	b := l.add("b.wav", 250, 16000)
	c := l.add("c.wav", 50, 16000)

	d, err := NewBinPacker([]string{"a.wav", "b.wav", "c.wav"}, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())

	ex, err := d.Get(0)
	require.NoError(t, err)
	// FFD order is largest first; pad = (1000-900)/2 = 50
	want := concat(a, zeros(50), b, zeros(50), c)
	assert.Equal(t, want, raw(ex.Audio))
}

func TestBinPackerSingleItemBin(t *testing.T) {
	l := newMemLoader()
	a := l.add("a.wav", 700, 16000)

	d, err := NewBinPacker([]string{"a.wav"}, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())

	ex, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, concat(a, zeros(300)), raw(ex.Audio))
}

func TestBinPackerAutoTune(t *testing.T) {
	lengths := []int{1200, 800, 650, 1900, 300, 450, 1000, 720, 1500, 90, 310, 1750}
	l, files, _ := binCorpus(t, lengths...)
	cfg := testConfig(0, 16000)
	cfg.CapacityScan = config.Scan{Min: 1000, Max: 6000, Step: 250}

	d, err := NewBinPacker(files, testOptions(cfg, l))
	require.NoError(t, err)

	best := Utilization(FirstFitDecreasing{}.Pack(items(lengths...), d.Capacity()), d.Capacity())
	for _, c := range cfg.CapacityScan.Candidates() {
		if c < 1900 {
			continue
		}
		u := Utilization(FirstFitDecreasing{}.Pack(items(lengths...), c), c)
		assert.LessOrEqual(t, u, best, "candidate %d beats chosen %d", c, d.Capacity())
	}
	assert.InDelta(t, best, d.Utilization(), 1e-12)

	ex, err := d.Get(0)
	require.NoError(t, err)
	assert.Len(t, ex.Audio, d.Capacity())
}

func TestBinPackerRecordingLongerThanCapacity(t *testing.T) {
	l, files, _ := binCorpus(t, 300, 1200)
	_, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "segment_length", cfgErr.Field)
}

func TestBinPackerSampleRateMismatch(t *testing.T) {
	l, files, _ := binCorpus(t, 300, 400)
	l.add("odd.wav", 100, 44100)

	_, err := NewBinPacker(append(files, "odd.wav"), testOptions(testConfig(1000, 16000), l))
	assert.True(t, errors.Is(err, audio.ErrSampleRateMismatch), "construction must fail: %v", err)

	d, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)
	l.set(files[0], &audio.Recording{Path: files[0], SampleRate: 8000, Samples: zeros(300)})

	var failed error
	for i := 0; i < d.Len(); i++ {
		if _, err := d.Get(i); err != nil {
			failed = err
		}
	}
	assert.True(t, errors.Is(failed, audio.ErrSampleRateMismatch), "access must fail: %v", failed)
}

func TestBinPackerRecordingChanged(t *testing.T) {
	l, files, _ := binCorpus(t, 300)
	d, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)

	l.set(files[0], &audio.Recording{Path: files[0], SampleRate: 16000, Samples: zeros(301)})
	_, err = d.Get(0)
	assert.ErrorIs(t, err, ErrRecordingChanged)
}

func TestBinPackerDeterministic(t *testing.T) {
	l, files, _ := binCorpus(t, 300, 500, 200, 700, 100, 900, 450, 50, 610, 330)

	a, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)
	b, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)

	assert.Equal(t, a.Files(), b.Files())
	assert.Equal(t, a.Table(), b.Table())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	for i := 0; i < a.Len(); i++ {
		ea, err := a.Get(i)
		require.NoError(t, err)
		eb, err := b.Get(i)
		require.NoError(t, err)
		assert.Equal(t, ea.Audio, eb.Audio)
	}

	cfg := testConfig(1000, 16000)
	cfg.Seed = 99
	c, err := NewBinPacker(files, testOptions(cfg, l))
	require.NoError(t, err)
	assert.ElementsMatch(t, a.Files(), c.Files())
}

func TestBinPackerConcurrentGet(t *testing.T) {
	l, files, _ := binCorpus(t, 300, 500, 200, 700, 100, 900, 450, 50, 610, 330)
	d, err := NewBinPacker(files, testOptions(testConfig(1000, 16000), l))
	require.NoError(t, err)

	want := make([][]float64, d.Len())
	for i := range want {
		ex, err := d.Get(i)
		require.NoError(t, err)
		want[i] = ex.Audio
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < d.Len(); i++ {
				ex, err := d.Get(i)
				if err != nil {
					t.Error(err)
					return
				}
				assert.Equal(t, want[i], ex.Audio)
			}
		}()
	}
	wg.Wait()
}

func TestBinPackerBestFit(t *testing.T) {
	l, files, _ := binCorpus(t, 300, 500, 200, 700, 100, 900)
	cfg := testConfig(1000, 16000)
	cfg.Packer = "bfd"

	d, err := NewBinPacker(files, testOptions(cfg, l))
	require.NoError(t, err)
	total := 0
	for _, b := range d.Table().Bins {
		total += b.Volume
	}
	assert.Equal(t, 2700, total)
}
