package audio

// MaxWavValue is the full-scale value of 16-bit PCM. Dividing raw samples by
// it maps them into [-1, 1].
const MaxWavValue = 32768.0

// Recording is a decoded mono source file. Samples hold the raw integer
// sample values as float64.
type Recording struct {
	Path       string
	SampleRate int
	Samples    []float64
}

// Len returns the sample count.
func (r *Recording) Len() int {
	return len(r.Samples)
}

// CheckSampleRate returns a *SampleRateMismatchError when the recording was
// not sampled at want.
func CheckSampleRate(r *Recording, want int) error {
	if r.SampleRate != want {
		return &SampleRateMismatchError{Path: r.Path, Got: r.SampleRate, Want: want}
	}
	return nil
}
