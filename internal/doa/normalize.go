package doa

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Spectrum is a non-negative spatial power spectrum, one value per scan point
// in grid order, scaled so its maximum is 1.
type Spectrum []float64

// ArgMax returns the index of the largest value, the first one on ties, or
// -1 for an empty spectrum.
func (s Spectrum) ArgMax() int {
	if len(s) == 0 {
		return -1
	}
	return floats.MaxIdx(s)
}

// negativeTolerance bounds, relative to the largest magnitude, how negative a
// raw value may be and still count as rounding noise around zero.
const negativeTolerance = 1e-9

// NormalizeMax clips rounding-level negatives to zero and divides by the
// maximum. Values below -negativeTolerance·max|raw| fail with
// ErrNegativeSpectrum. The input is not modified.
func NormalizeMax(raw []float64) (Spectrum, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty spectrum", ErrAllZeroSpectrum)
	}
	var scale float64
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value %v at scan point %d", ErrNonFiniteSpectrum, v, i)
		}
		scale = max(scale, math.Abs(v))
	}
	out := make(Spectrum, len(raw))
	for i, v := range raw {
		if v < -negativeTolerance*scale {
			return nil, fmt.Errorf("%w: value %g at scan point %d", ErrNegativeSpectrum, v, i)
		}
		out[i] = max(v, 0)
	}
	peak := floats.Max(out)
	if peak == 0 {
		return nil, ErrAllZeroSpectrum
	}
	for i := range out {
		out[i] /= peak
	}
	return out, nil
}

func normalize(op string, raw []float64) (Spectrum, error) {
	s, err := NormalizeMax(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}
