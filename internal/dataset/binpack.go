package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/config"
	"github.com/satindergrewal/mel2samp/internal/mel"
)

// ErrRecordingChanged is returned when a recording no longer has the length
// it had when the bins were built.
var ErrRecordingChanged = errors.New("dataset: recording length changed since construction")

// BinTable maps bin index to the recordings it holds.
type BinTable struct {
	Capacity int
	Bins     []Bin
}

// Len returns the number of bins.
func (t BinTable) Len() int {
	return len(t.Bins)
}

// Utilization returns mean(bin volume) / capacity, or 0 for no bins.
func Utilization(bins []Bin, capacity int) float64 {
	if len(bins) == 0 || capacity <= 0 {
		return 0
	}
	vols := make([]float64, len(bins))
	for i, b := range bins {
		vols[i] = float64(b.Volume)
	}
	return stat.Mean(vols, nil) / float64(capacity)
}

// AutoTune packs items at every candidate capacity of scan and returns the
// first capacity with the highest utilization. Candidates shorter than the
// longest item cannot hold it and are skipped.
func AutoTune(items []Item, scan config.Scan, p Packer) (capacity int, utilization float64, err error) {
	longest := 0
	for _, it := range items {
		longest = max(longest, it.Size)
	}

	best, score := -1, 0.0
	for _, c := range scan.Candidates() {
		if c < longest {
			continue
		}
		if u := Utilization(p.Pack(items, c), c); u > score {
			best, score = c, u
		}
	}
	if best < 0 {
		return 0, 0, &config.Error{
			Field:  "capacity_scan",
			Reason: fmt.Sprintf("no candidate in [%d, %d) step %d holds the longest recording (%d samples)", scan.Min, scan.Max, scan.Step, longest),
		}
	}
	return best, score, nil
}

// BuildBinTable packs durations (indexed by recording id) at capacity and
// shuffles the resulting bin order with rng.
func BuildBinTable(durations []int, capacity int, p Packer, rng *rand.Rand) (BinTable, error) {
	items := make([]Item, len(durations))
	for i, d := range durations {
		if d > capacity {
			return BinTable{}, &config.Error{
				Field:  "segment_length",
				Reason: fmt.Sprintf("recording %d has %d samples, more than the bin capacity %d", i, d, capacity),
			}
		}
		items[i] = Item{ID: i, Size: d}
	}

	bins := p.Pack(items, capacity)
	rng.Shuffle(len(bins), func(i, j int) {
		bins[i], bins[j] = bins[j], bins[i]
	})
	return BinTable{Capacity: capacity, Bins: bins}, nil
}

// BinPacker serves bins of whole recordings, each padded to the bin capacity.
// Padding is spread between the items of a bin. Recordings are read again at
// access time.
type BinPacker struct {
	files       []string
	durations   []int
	table       BinTable
	utilization float64
	sampleRate  int
	loader      audio.Loader
	ext         mel.Extractor
}

// NewBinPacker shuffles files, measures them and packs them into bins. A
// zero SegmentLength auto-tunes the capacity over Config.CapacityScan.
func NewBinPacker(files []string, opts Options) (*BinPacker, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	cfg := opts.Config

	files = shuffled(files, opts.Rand)
	durations := make([]int, len(files))
	for i, path := range files {
		rec, err := load(opts.Loader, path, cfg.SamplingRate)
		if err != nil {
			return nil, err
		}
		durations[i] = rec.Len()
	}

	capacity := cfg.SegmentLength
	if capacity == 0 {
		items := make([]Item, len(durations))
		for i, d := range durations {
			items[i] = Item{ID: i, Size: d}
		}
		c, u, err := AutoTune(items, cfg.CapacityScan, opts.Packer)
		if err != nil {
			return nil, err
		}
		opts.Logger.Infof("bin packer: auto-tuned capacity %d (utilization %.4f)", c, u)
		capacity = c
	}

	table, err := BuildBinTable(durations, capacity, opts.Packer, opts.Rand)
	if err != nil {
		return nil, err
	}

	d := &BinPacker{
		files:       files,
		durations:   durations,
		table:       table,
		utilization: Utilization(table.Bins, capacity),
		sampleRate:  cfg.SamplingRate,
		loader:      opts.Loader,
		ext:         opts.Extractor,
	}
	opts.Logger.Infof("bin packer: %d recordings in %d bins of %d samples (utilization %.4f), table %016x",
		len(files), table.Len(), capacity, d.utilization, table.Fingerprint())
	return d, nil
}

// Len returns the number of bins.
func (d *BinPacker) Len() int {
	return d.table.Len()
}

// Capacity returns the bin length in samples.
func (d *BinPacker) Capacity() int {
	return d.table.Capacity
}

// Utilization returns the mean fill of the final bins.
func (d *BinPacker) Utilization() float64 {
	return d.utilization
}

// Table returns the assignment table. Bin ids index Files().
func (d *BinPacker) Table() BinTable {
	return d.table
}

// Files returns the recording order fixed at construction.
func (d *BinPacker) Files() []string {
	return slices.Clone(d.files)
}

// Get materializes bin index.
func (d *BinPacker) Get(index int) (Example, error) {
	if err := checkIndex(index, d.table.Len()); err != nil {
		return Example{}, err
	}
	segment, err := d.materialize(d.table.Bins[index])
	if err != nil {
		return Example{}, err
	}
	return featurize(d.ext, segment)
}

// materialize concatenates the bin's recordings with (capacity-volume)/(n-1)
// zeros after every item but the last, then pads the tail to capacity.
func (d *BinPacker) materialize(b Bin) ([]float64, error) {
	capacity := d.table.Capacity
	pad := 0
	if n := len(b.IDs); n > 1 {
		pad = (capacity - b.Volume) / (n - 1)
	}

	out := make([]float64, 0, capacity)
	for k, id := range b.IDs {
		rec, err := load(d.loader, d.files[id], d.sampleRate)
		if err != nil {
			return nil, err
		}
		if rec.Len() != d.durations[id] {
			return nil, fmt.Errorf("%w: %s has %d samples, had %d", ErrRecordingChanged, rec.Path, rec.Len(), d.durations[id])
		}
		out = append(out, rec.Samples...)
		if k != len(b.IDs)-1 {
			out = append(out, make([]float64, pad)...)
		}
	}
	return audio.PadRight(out, capacity), nil
}
