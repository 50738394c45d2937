package convert

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// MelFile is the on-disk form of one spectrogram. Data is row-major,
// Rows mel channels by Cols frames.
type MelFile struct {
	Source     string
	SampleRate int
	Rows       int
	Cols       int
	Data       []float64
}

// FromDense copies m into a MelFile.
func FromDense(source string, sampleRate int, m *mat.Dense) *MelFile {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return &MelFile{Source: source, SampleRate: sampleRate, Rows: r, Cols: c, Data: data}
}

// Dense returns the spectrogram as a matrix sharing f.Data.
func (f *MelFile) Dense() *mat.Dense {
	return mat.NewDense(f.Rows, f.Cols, f.Data)
}

// Save gob-encodes f to path.
func (f *MelFile) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(out).Encode(f); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}

// Load reads a file written by Save.
func Load(path string) (*MelFile, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var f MelFile
	if err := gob.NewDecoder(in).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if f.Rows <= 0 || f.Cols <= 0 || f.Rows*f.Cols != len(f.Data) {
		return nil, fmt.Errorf("decode %s: %dx%d matrix with %d values", path, f.Rows, f.Cols, len(f.Data))
	}
	return &f, nil
}
