// Package dataset turns a list of recordings into fixed-length
// (mel spectrogram, waveform) training pairs.
//
// # Strategies
//
// Three strategies share the Dataset interface:
//
//   - RandomCrop: one example per recording. A random window of
//     SegmentLength samples is cut from long recordings; short ones are
//     padded with zeros. The window changes on every access.
//   - Greedy: every recording is quantized and appended to one resident
//     buffer, which is then served in consecutive SegmentLength slices.
//   - BinPacker: whole recordings are packed into bins of a fixed
//     capacity with a Packer. Each bin spreads its padding between items.
//
// # Basic Usage
//
//	cfg, err := config.LoadData("config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ds, err := dataset.New(dataset.StrategyBinPack, files, dataset.Options{Config: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < ds.Len(); i++ {
//	    ex, err := ds.Get(i)
//	    ...
//	}
//
// # Determinism
//
// All randomness comes from Options.Rand, seeded from Config.Seed by
// default. Two datasets built from the same files and seed produce the same
// tables; the Fingerprint methods summarize a table for comparison.
//
// # Auto-tuning
//
// A BinPacker with SegmentLength 0 scans Config.CapacityScan and keeps the
// first capacity with the highest mean fill.
package dataset
