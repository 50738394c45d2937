package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrSampleRateMismatch matches any *SampleRateMismatchError via errors.Is.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")

	// ErrUnsupportedFormat is returned for containers or channel layouts the
	// loaders cannot turn into a mono sample sequence.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// SampleRateMismatchError reports a recording whose sample rate differs from
// the configured one.
type SampleRateMismatchError struct {
	Path string
	Got  int
	Want int
}

func (e *SampleRateMismatchError) Error() string {
	return fmt.Sprintf("%s: %d SR doesn't match target %d SR", e.Path, e.Got, e.Want)
}

func (e *SampleRateMismatchError) Is(target error) bool {
	return target == ErrSampleRateMismatch
}

// ReadError wraps a failure to open or decode a recording.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
