package geometry

import "fmt"

// UniformLinear returns n elements spaced `spacing` apart along x, centred on
// the origin.
func UniformLinear(n int, spacing float64) []Element {
	out := make([]Element, n)
	offset := float64(n-1) / 2
	for i := range out {
		out[i] = NewElement((float64(i)-offset)*spacing, 0, 0)
	}
	return out
}

// UniformRectangular returns a rows×cols grid in the xy-plane, centred on the
// origin. Elements are ordered row by row.
func UniformRectangular(rows, cols int, spacing float64) []Element {
	out := make([]Element, 0, rows*cols)
	ro, co := float64(rows-1)/2, float64(cols-1)/2
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, NewElement((float64(c)-co)*spacing, (float64(r)-ro)*spacing, 0))
		}
	}
	return out
}

// HalfWavelengthSpacing returns the ideal uniform element spacing in meters
// for a target frequency (Hz) and wave speed (m/s).
func HalfWavelengthSpacing(frequencyHz, speed float64) (float64, error) {
	if !(frequencyHz > 0) || !(speed > 0) {
		return 0, fmt.Errorf("%w: frequency and speed must be positive", ErrConfiguration)
	}
	return speed / frequencyHz / 2, nil
}
