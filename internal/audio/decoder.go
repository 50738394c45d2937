package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"gopkg.in/hraban/opus.v2"
)

// OpusSampleRate is the rate libopusfile always decodes at.
const OpusSampleRate = 48000

// Loader decodes the recording stored at path.
type Loader interface {
	Load(path string) (*Recording, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (*Recording, error)

func (f LoaderFunc) Load(path string) (*Recording, error) {
	return f(path)
}

// FileLoader picks a decoder from the file extension: .opus and .ogg go to
// OpusLoader, everything else is read as WAV.
type FileLoader struct {
	WAV  WAVLoader
	Opus OpusLoader
}

// Load implements Loader.
func (l FileLoader) Load(path string) (*Recording, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus", ".ogg":
		return l.Opus.Load(path)
	default:
		return l.WAV.Load(path)
	}
}

// WAVLoader decodes mono PCM WAV files. Samples keep their raw integer
// values, so 16-bit input lands in [-32768, 32767].
type WAVLoader struct{}

// Load implements Loader.
func (WAVLoader) Load(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("not a valid wav file: %w", ErrUnsupportedFormat)}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("read PCM buffer: %w", err)}
	}
	if buf.Format == nil || buf.Format.NumChannels != 1 {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%d channels, want mono: %w", dec.NumChans, ErrUnsupportedFormat)}
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v)
	}

	return &Recording{
		Path:       path,
		SampleRate: int(dec.SampleRate),
		Samples:    samples,
	}, nil
}

// OpusLoader decodes mono Ogg Opus files through libopusfile.
type OpusLoader struct{}

// Load implements Loader.
func (OpusLoader) Load(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	channels, err := opusChannels(f)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if channels != 1 {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%d channels, want mono: %w", channels, ErrUnsupportedFormat)}
	}

	s, err := opus.NewStream(f)
	if err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("open opus stream: %w", err)}
	}
	defer s.Close()

	var samples []float64
	pcm := make([]int16, OpusSampleRate/50) // 20ms
	for {
		n, err := s.Read(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("decode opus: %w", err)}
		}
		for _, v := range pcm[:n] {
			samples = append(samples, float64(v))
		}
	}

	return &Recording{
		Path:       path,
		SampleRate: OpusSampleRate,
		Samples:    samples,
	}, nil
}

// opusChannels reads the channel count from the OpusHead packet on the first
// Ogg page and rewinds r. The binding only reports samples per channel.
func opusChannels(r io.ReadSeeker) (int, error) {
	var page [27]byte
	if _, err := io.ReadFull(r, page[:]); err != nil {
		return 0, fmt.Errorf("read ogg page header: %v: %w", err, ErrUnsupportedFormat)
	}
	if string(page[:4]) != "OggS" {
		return 0, fmt.Errorf("not an ogg stream: %w", ErrUnsupportedFormat)
	}
	// segment table
	if _, err := r.Seek(int64(page[26]), io.SeekCurrent); err != nil {
		return 0, err
	}

	var head [10]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, fmt.Errorf("read opus header: %v: %w", err, ErrUnsupportedFormat)
	}
	if string(head[:8]) != "OpusHead" {
		return 0, fmt.Errorf("first packet is not OpusHead: %w", ErrUnsupportedFormat)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return int(head[9]), nil
}
