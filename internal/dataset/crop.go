package dataset

import (
	"math/rand/v2"
	"sync"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/mel"
)

// RandomCrop serves one example per recording: a uniformly random window of
// SegmentLength samples, or the whole recording zero-padded when it is
// shorter. Recordings are read at access time.
type RandomCrop struct {
	files         []string
	segmentLength int
	sampleRate    int
	loader        audio.Loader
	ext           mel.Extractor

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewRandomCrop shuffles files once and returns the sampler.
func NewRandomCrop(files []string, opts Options) (*RandomCrop, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := requireSegmentLength(opts.Config); err != nil {
		return nil, err
	}

	d := &RandomCrop{
		files:         shuffled(files, opts.Rand),
		segmentLength: opts.Config.SegmentLength,
		sampleRate:    opts.Config.SamplingRate,
		loader:        opts.Loader,
		ext:           opts.Extractor,
		rng:           opts.Rand,
	}
	opts.Logger.Infof("random crop: %d recordings, segment %d samples, order %016x",
		len(d.files), d.segmentLength, d.Fingerprint())
	return d, nil
}

// Len returns the number of recordings.
func (d *RandomCrop) Len() int {
	return len(d.files)
}

// Files returns the recording order fixed at construction.
func (d *RandomCrop) Files() []string {
	return append([]string(nil), d.files...)
}

// Get loads recording index and crops or pads it.
func (d *RandomCrop) Get(index int) (Example, error) {
	if err := checkIndex(index, len(d.files)); err != nil {
		return Example{}, err
	}
	rec, err := load(d.loader, d.files[index], d.sampleRate)
	if err != nil {
		return Example{}, err
	}
	return featurize(d.ext, d.crop(rec.Samples))
}

func (d *RandomCrop) crop(x []float64) []float64 {
	if len(x) < d.segmentLength {
		return audio.PadRight(x, d.segmentLength)
	}
	d.mu.Lock()
	start := d.rng.IntN(len(x) - d.segmentLength + 1)
	d.mu.Unlock()
	return x[start : start+d.segmentLength]
}

// Fingerprint digests the recording order.
func (d *RandomCrop) Fingerprint() uint64 {
	return fingerprintFiles(d.files)
}
