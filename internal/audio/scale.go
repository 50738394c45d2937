package audio

import "math"

// Normalize returns a copy of samples divided by MaxWavValue.
func Normalize(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s / MaxWavValue
	}
	return out
}

// Denormalize scales unit-range samples back to 16-bit integer values,
// rounding to the nearest integer and clipping to the int16 range.
func Denormalize(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(s * MaxWavValue)
		// Clip to int16 range
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// PadRight returns a copy of samples extended with zeros to length n.
// Samples longer than n are copied unchanged.
func PadRight(samples []float64, n int) []float64 {
	if n < len(samples) {
		n = len(samples)
	}
	out := make([]float64, n)
	copy(out, samples)
	return out
}
