package dataset

import (
	"fmt"

	"github.com/satindergrewal/mel2samp/internal/config"
	"github.com/satindergrewal/mel2samp/internal/mel"
)

// Quantize returns the packed length of a recording of t samples:
// t + t%quantum. This is not a round-up to a multiple of quantum. quantum
// must be > 0.
func Quantize(t, quantum int) int {
	return t + t%quantum
}

// Slice is a run of a quantized recording placed into a segment. Offset and
// Length are in quantized-recording coordinates; anything past the raw
// recording end is zero.
type Slice struct {
	Recording int
	Offset    int
	Length    int
}

// GreedyTable maps segment index to the slices that fill it, in order.
type GreedyTable struct {
	SegmentLength int
	Segments      [][]Slice
}

// Len returns the number of segments.
func (t GreedyTable) Len() int {
	return len(t.Segments)
}

// BuildGreedyTable lays the quantized recordings end to end, in list order,
// and cuts the result into segments of segmentLength. Only the last segment
// can end short; its tail is zero-filled when materialized.
func BuildGreedyTable(lengths []int, segmentLength, quantum int) (GreedyTable, error) {
	if segmentLength <= 0 {
		return GreedyTable{}, &config.Error{Field: "segment_length", Reason: "must be > 0 for this strategy"}
	}
	if quantum <= 0 {
		return GreedyTable{}, &config.Error{Field: "quantum", Reason: "must be > 0"}
	}

	total := 0
	quantized := make([]int, len(lengths))
	for i, t := range lengths {
		quantized[i] = Quantize(t, quantum)
		total += quantized[i]
	}

	n := (total + segmentLength - 1) / segmentLength
	segments := make([][]Slice, n)
	cur, offset := 0, 0
	for i, left := range quantized {
		dataOffset := 0
		for left > 0 {
			take := min(left, segmentLength-offset)
			segments[cur] = append(segments[cur], Slice{Recording: i, Offset: dataOffset, Length: take})
			left -= take
			dataOffset += take
			offset += take
			if offset == segmentLength {
				cur++
				offset = 0
			}
		}
	}
	return GreedyTable{SegmentLength: segmentLength, Segments: segments}, nil
}

// Greedy serves fixed-length segments cut from the concatenation of every
// quantized recording. The whole concatenation is decoded at construction
// and held in memory for the dataset's lifetime.
type Greedy struct {
	table GreedyTable
	buf   []float64 // Len() * SegmentLength samples
	ext   mel.Extractor
}

// NewGreedy decodes files in list order and packs them.
func NewGreedy(files []string, opts Options) (*Greedy, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	if err := requireSegmentLength(cfg); err != nil {
		return nil, err
	}
	if cfg.SamplingRate%cfg.Quantum != 0 {
		return nil, &config.Error{
			Field:  "quantum",
			Reason: fmt.Sprintf("sampling rate %d is not a multiple of %d", cfg.SamplingRate, cfg.Quantum),
		}
	}

	lengths := make([]int, len(files))
	var buf []float64
	for i, path := range files {
		rec, err := load(opts.Loader, path, cfg.SamplingRate)
		if err != nil {
			return nil, err
		}
		t := rec.Len()
		lengths[i] = t
		buf = append(buf, rec.Samples...)
		buf = append(buf, make([]float64, Quantize(t, cfg.Quantum)-t)...)
		opts.Logger.Debugf("greedy: loaded %s (%d samples)", path, t)
	}

	table, err := BuildGreedyTable(lengths, cfg.SegmentLength, cfg.Quantum)
	if err != nil {
		return nil, err
	}
	if want := table.Len() * cfg.SegmentLength; len(buf) < want {
		buf = append(buf, make([]float64, want-len(buf))...)
	}

	opts.Logger.Infof("greedy: %d recordings packed into %d segments of %d samples (%.1f MB resident), table %016x",
		len(files), table.Len(), cfg.SegmentLength, float64(len(buf)*8)/(1<<20), table.Fingerprint())
	return &Greedy{table: table, buf: buf, ext: opts.Extractor}, nil
}

// Len returns the number of segments.
func (d *Greedy) Len() int {
	return d.table.Len()
}

// Table returns the assignment table.
func (d *Greedy) Table() GreedyTable {
	return d.table
}

// Get returns segment index.
func (d *Greedy) Get(index int) (Example, error) {
	if err := checkIndex(index, d.table.Len()); err != nil {
		return Example{}, err
	}
	n := d.table.SegmentLength
	return featurize(d.ext, d.buf[index*n:(index+1)*n])
}
