package dsp

import "gonum.org/v1/gonum/dsp/window"

// Hamming returns a Hamming window of length n.
// If n is zero or negative, an empty slice is returned.
func Hamming(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{1}
	}
	win := make([]float64, n)
	for i := range win {
		win[i] = 1
	}
	return window.Hamming(win)
}

// ApplyWindow multiplies samples by window into a new slice. Mismatched
// lengths yield an empty slice.
func ApplyWindow(samples, window []float64) []float64 {
	if len(samples) != len(window) {
		return []float64{}
	}
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = v * window[i]
	}
	return out
}
