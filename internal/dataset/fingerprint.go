package dataset

import (
	"encoding/binary"
	"hash"

	"github.com/OneOfOne/xxhash"
)

// Fingerprint returns an xxhash64 digest of the table. Two tables are
// identical iff their digests match, up to hash collisions.
func (t GreedyTable) Fingerprint() uint64 {
	h := xxhash.New64()
	writeInts(h, t.SegmentLength, len(t.Segments))
	for _, seg := range t.Segments {
		writeInts(h, len(seg))
		for _, s := range seg {
			writeInts(h, s.Recording, s.Offset, s.Length)
		}
	}
	return h.Sum64()
}

// Fingerprint returns an xxhash64 digest of the table.
func (t BinTable) Fingerprint() uint64 {
	h := xxhash.New64()
	writeInts(h, t.Capacity, len(t.Bins))
	for _, b := range t.Bins {
		writeInts(h, b.Volume, len(b.IDs))
		writeInts(h, b.IDs...)
	}
	return h.Sum64()
}

// Fingerprint returns the digest of the segment table. Greedy keeps the list
// order, so the table alone identifies the dataset.
func (d *Greedy) Fingerprint() uint64 {
	return d.table.Fingerprint()
}

// Fingerprint digests the recording order together with the table.
func (d *BinPacker) Fingerprint() uint64 {
	h := xxhash.New64()
	writeInts(h, int(fingerprintFiles(d.files)), int(d.table.Fingerprint()))
	return h.Sum64()
}

func fingerprintFiles(files []string) uint64 {
	h := xxhash.New64()
	for _, f := range files {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func writeInts(h hash.Hash64, vs ...int) {
	var b [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		h.Write(b[:])
	}
}
