package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Defaults for the optional data configuration fields.
const (
	DefaultMelChannels = 80
	DefaultSeed        = 1234
	DefaultQuantum     = 350
	DefaultPacker      = "ffd"

	DefaultScanMin  = 250000
	DefaultScanMax  = 1000000
	DefaultScanStep = 10000
)

// ErrInvalid matches any *Error via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Error reports a missing or invalid configuration field.
type Error struct {
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Scan is the candidate range searched when the bin capacity is auto-tuned.
// Max is exclusive.
type Scan struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

// Candidates returns Min, Min+Step, ... below Max.
func (s Scan) Candidates() []int {
	if s.Step <= 0 {
		return nil
	}
	var out []int
	for c := s.Min; c < s.Max; c += s.Step {
		out = append(out, c)
	}
	return out
}

// Data holds the dataset and spectrogram parameters.
type Data struct {
	// SegmentLength is the example length in samples. For the bin packer,
	// zero asks for the capacity to be auto-tuned.
	SegmentLength int     `json:"segment_length"`
	FilterLength  int     `json:"filter_length"`
	HopLength     int     `json:"hop_length"`
	WinLength     int     `json:"win_length"`
	SamplingRate  int     `json:"sampling_rate"`
	MelFmin       float64 `json:"mel_fmin"`
	MelFmax       float64 `json:"mel_fmax"` // <= 0 means Nyquist

	// TrainingFiles is the recording list path, when the config names one.
	TrainingFiles string `json:"training_files"`

	NMelChannels int    `json:"n_mel_channels"`
	Seed         uint64 `json:"seed"`
	Quantum      int    `json:"quantum"`
	Packer       string `json:"packer"` // ffd, bfd
	CapacityScan Scan   `json:"capacity_scan"`
}

// rawData mirrors Data with pointer fields so absent keys can be told apart
// from zero values.
type rawData struct {
	SegmentLength *int     `json:"segment_length"`
	FilterLength  *int     `json:"filter_length"`
	HopLength     *int     `json:"hop_length"`
	WinLength     *int     `json:"win_length"`
	SamplingRate  *int     `json:"sampling_rate"`
	MelFmin       *float64 `json:"mel_fmin"`
	MelFmax       *float64 `json:"mel_fmax"`

	TrainingFiles string `json:"training_files"`

	NMelChannels *int    `json:"n_mel_channels"`
	Seed         *uint64 `json:"seed"`
	Quantum      *int    `json:"quantum"`
	Packer       *string `json:"packer"`
	CapacityScan *Scan   `json:"capacity_scan"`
}

// envelope matches training configs that nest the data parameters.
type envelope struct {
	DataConfig json.RawMessage `json:"data_config"`
}

// LoadData reads and validates the data configuration at path.
func LoadData(path string) (*Data, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Field: "file", Reason: "failed to read " + path, Err: err}
	}
	return ParseData(b)
}

// ParseData decodes a JSON document holding the data configuration either at
// the root or under "data_config", applies defaults and validates it.
func ParseData(b []byte) (*Data, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &Error{Field: "document", Reason: "malformed JSON", Err: err}
	}
	body := b
	if len(env.DataConfig) > 0 && !bytes.Equal(env.DataConfig, []byte("null")) {
		body = env.DataConfig
	}

	var raw rawData
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, &Error{Field: "data_config", Reason: "malformed field", Err: err}
	}

	d := &Data{
		NMelChannels: DefaultMelChannels,
		Seed:         DefaultSeed,
		Quantum:      DefaultQuantum,
		Packer:       DefaultPacker,
		CapacityScan: Scan{Min: DefaultScanMin, Max: DefaultScanMax, Step: DefaultScanStep},
	}

	required := []struct {
		name string
		set  bool
	}{
		{"segment_length", raw.SegmentLength != nil},
		{"filter_length", raw.FilterLength != nil},
		{"hop_length", raw.HopLength != nil},
		{"win_length", raw.WinLength != nil},
		{"sampling_rate", raw.SamplingRate != nil},
		{"mel_fmin", raw.MelFmin != nil},
		{"mel_fmax", raw.MelFmax != nil},
	}
	for _, r := range required {
		if !r.set {
			return nil, &Error{Field: r.name, Reason: "missing"}
		}
	}

	d.SegmentLength = *raw.SegmentLength
	d.FilterLength = *raw.FilterLength
	d.HopLength = *raw.HopLength
	d.WinLength = *raw.WinLength
	d.SamplingRate = *raw.SamplingRate
	d.MelFmin = *raw.MelFmin
	d.MelFmax = *raw.MelFmax
	d.TrainingFiles = raw.TrainingFiles

	if raw.NMelChannels != nil {
		d.NMelChannels = *raw.NMelChannels
	}
	if raw.Seed != nil {
		d.Seed = *raw.Seed
	}
	if raw.Quantum != nil {
		d.Quantum = *raw.Quantum
	}
	if raw.Packer != nil {
		d.Packer = strings.ToLower(*raw.Packer)
	}
	if raw.CapacityScan != nil {
		d.CapacityScan = *raw.CapacityScan
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks field ranges and their relations.
func (d *Data) Validate() error {
	switch {
	case d.SegmentLength < 0:
		return &Error{Field: "segment_length", Reason: "must be >= 0"}
	case d.FilterLength <= 0:
		return &Error{Field: "filter_length", Reason: "must be > 0"}
	case d.HopLength <= 0:
		return &Error{Field: "hop_length", Reason: "must be > 0"}
	case d.WinLength <= 0 || d.WinLength > d.FilterLength:
		return &Error{Field: "win_length", Reason: "must be in (0, filter_length]"}
	case d.SamplingRate <= 0:
		return &Error{Field: "sampling_rate", Reason: "must be > 0"}
	case d.MelFmin < 0:
		return &Error{Field: "mel_fmin", Reason: "must be >= 0"}
	case d.MelFmax > float64(d.SamplingRate)/2:
		return &Error{Field: "mel_fmax", Reason: "must not exceed the Nyquist frequency"}
	case d.MelFmax > 0 && d.MelFmax <= d.MelFmin:
		return &Error{Field: "mel_fmax", Reason: "must be greater than mel_fmin"}
	case d.NMelChannels <= 0:
		return &Error{Field: "n_mel_channels", Reason: "must be > 0"}
	case d.Quantum <= 0:
		return &Error{Field: "quantum", Reason: "must be > 0"}
	case d.Packer != "" && d.Packer != "ffd" && d.Packer != "bfd":
		return &Error{Field: "packer", Reason: fmt.Sprintf("unknown packer %q", d.Packer)}
	case d.CapacityScan.Step <= 0 || d.CapacityScan.Min <= 0 || d.CapacityScan.Max <= d.CapacityScan.Min:
		return &Error{Field: "capacity_scan", Reason: "need 0 < min < max and step > 0"}
	}
	return nil
}

// FmaxOrNyquist returns MelFmax, or half the sampling rate when unset.
func (d *Data) FmaxOrNyquist() float64 {
	if d.MelFmax <= 0 {
		return float64(d.SamplingRate) / 2
	}
	return d.MelFmax
}

// Runtime holds process settings, loaded from environment variables.
type Runtime struct {
	LogLevel string
	Workers  int  // concurrent conversions
	Progress bool // draw a progress bar
}

// LoadRuntime reads runtime settings from environment variables with sane
// defaults.
func LoadRuntime() Runtime {
	return Runtime{
		LogLevel: envStr("MEL2SAMP_LOG_LEVEL", "info"),
		Workers:  envInt("MEL2SAMP_WORKERS", runtime.NumCPU()),
		Progress: envBool("MEL2SAMP_PROGRESS", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
