package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/config"
	"github.com/satindergrewal/mel2samp/internal/logger"
	"github.com/satindergrewal/mel2samp/internal/mel"
)

// ErrIndexOutOfRange is returned by Get for an index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("dataset: index out of range")

// Strategy names accepted by New.
const (
	StrategyRandomCrop = "crop"
	StrategyGreedy     = "greedy"
	StrategyBinPack    = "binpack"
)

// Example is one training pair. Audio has the dataset's fixed length and is
// scaled into [-1, 1]; Mel is its spectrogram.
type Example struct {
	Mel   *mat.Dense
	Audio []float64
}

// Dataset is an indexable collection of examples.
type Dataset interface {
	Len() int
	Get(index int) (Example, error)
}

// Options carries the collaborators shared by every strategy. Only Config is
// required.
type Options struct {
	Config    *config.Data
	Loader    audio.Loader  // defaults to audio.FileLoader
	Extractor mel.Extractor // defaults to a mel.Spectrogram built from Config
	Rand      *rand.Rand    // defaults to NewRand(Config.Seed)
	Logger    logger.Logger // defaults to a no-op logger
	Packer    Packer        // bin packer only; defaults to Config.Packer
}

// NewRand returns the seeded generator every strategy draws from.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (o Options) withDefaults() (Options, error) {
	if o.Config == nil {
		return o, &config.Error{Field: "data_config", Reason: "missing"}
	}
	if err := o.Config.Validate(); err != nil {
		return o, err
	}
	if o.Loader == nil {
		o.Loader = audio.FileLoader{}
	}
	if o.Extractor == nil {
		s, err := mel.New(mel.ParamsFromConfig(o.Config))
		if err != nil {
			return o, &config.Error{Field: "data_config", Reason: "spectrogram parameters", Err: err}
		}
		o.Extractor = s
	}
	if o.Rand == nil {
		o.Rand = NewRand(o.Config.Seed)
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Packer == nil {
		p, err := PackerByName(o.Config.Packer)
		if err != nil {
			return o, err
		}
		o.Packer = p
	}
	return o, nil
}

// New builds the dataset for the named strategy.
func New(strategy string, files []string, opts Options) (Dataset, error) {
	switch strategy {
	case StrategyRandomCrop:
		return NewRandomCrop(files, opts)
	case StrategyGreedy:
		return NewGreedy(files, opts)
	case StrategyBinPack:
		return NewBinPacker(files, opts)
	default:
		return nil, &config.Error{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
}

// featurize normalizes segment and pairs it with its spectrogram.
func featurize(ext mel.Extractor, segment []float64) (Example, error) {
	norm := audio.Normalize(segment)
	m, err := ext.Extract(norm)
	if err != nil {
		return Example{}, fmt.Errorf("extract mel: %w", err)
	}
	return Example{Mel: m, Audio: norm}, nil
}

// load reads path and rejects recordings at the wrong sample rate.
func load(l audio.Loader, path string, rate int) (*audio.Recording, error) {
	rec, err := l.Load(path)
	if err != nil {
		var re *audio.ReadError
		if !errors.As(err, &re) {
			err = &audio.ReadError{Path: path, Err: err}
		}
		return nil, err
	}
	if err := audio.CheckSampleRate(rec, rate); err != nil {
		return nil, err
	}
	return rec, nil
}

func shuffled(files []string, rng *rand.Rand) []string {
	out := append([]string(nil), files...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, n)
	}
	return nil
}

func requireSegmentLength(d *config.Data) error {
	if d.SegmentLength <= 0 {
		return &config.Error{Field: "segment_length", Reason: "must be > 0 for this strategy"}
	}
	return nil
}
