package dataset

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/satindergrewal/mel2samp/internal/config"
)

// Item is a recording id and its duration in samples.
type Item struct {
	ID   int
	Size int
}

// Bin is a group of recordings sharing one example. Volume is the sum of the
// item sizes, before any padding.
type Bin struct {
	IDs    []int
	Volume int
}

// Packer groups items into bins of at most capacity. An item larger than
// capacity is given a bin of its own.
type Packer interface {
	Pack(items []Item, capacity int) []Bin
}

// PackerByName returns "ffd" (first fit decreasing) or "bfd" (best fit
// decreasing).
func PackerByName(name string) (Packer, error) {
	switch name {
	case "", "ffd":
		return FirstFitDecreasing{}, nil
	case "bfd":
		return BestFitDecreasing{}, nil
	default:
		return nil, &config.Error{Field: "packer", Reason: fmt.Sprintf("unknown packer %q", name)}
	}
}

// FirstFitDecreasing places each item, largest first, into the first open
// bin with room for it.
type FirstFitDecreasing struct{}

// Pack implements Packer.
func (FirstFitDecreasing) Pack(items []Item, capacity int) []Bin {
	var bins []Bin
	for _, it := range decreasing(items) {
		placed := false
		if it.Size <= capacity {
			for i := range bins {
				if bins[i].Volume+it.Size <= capacity {
					bins[i].IDs = append(bins[i].IDs, it.ID)
					bins[i].Volume += it.Size
					placed = true
					break
				}
			}
		}
		if !placed {
			bins = append(bins, Bin{IDs: []int{it.ID}, Volume: it.Size})
		}
	}
	return bins
}

// BestFitDecreasing places each item, largest first, into the open bin it
// leaves with the least free space.
type BestFitDecreasing struct{}

// Pack implements Packer.
func (BestFitDecreasing) Pack(items []Item, capacity int) []Bin {
	var bins []Bin
	for _, it := range decreasing(items) {
		best := -1
		if it.Size <= capacity {
			for i := range bins {
				free := capacity - bins[i].Volume - it.Size
				if free < 0 {
					continue
				}
				if best < 0 || free < capacity-bins[best].Volume-it.Size {
					best = i
				}
			}
		}
		if best < 0 {
			bins = append(bins, Bin{IDs: []int{it.ID}, Volume: it.Size})
			continue
		}
		bins[best].IDs = append(bins[best].IDs, it.ID)
		bins[best].Volume += it.Size
	}
	return bins
}

// decreasing sorts a copy of items by size, largest first, ties by id.
func decreasing(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b Item) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
