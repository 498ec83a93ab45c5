package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSphericalRoundTrip(t *testing.T) {
	radii := []float64{0.1, 1, 343}
	incs := []float64{1e-3, 0.3, math.Pi / 2, 2.9, math.Pi - 1e-3}
	azs := []float64{-math.Pi + 1e-6, -2, -0.5, 0, 0.7, math.Pi / 2, 3, math.Pi}

	for _, r := range radii {
		for _, inc := range incs {
			for _, az := range azs {
				x, y, z := SphericalToCartesian(r, inc, az)
				gr, gi, ga, err := CartesianToSpherical(x, y, z)
				require.NoError(t, err)
				assert.InDelta(t, r, gr, 1e-9*r)
				assert.InDelta(t, inc, gi, 1e-9)
				assert.InDelta(t, az, ga, 1e-9, "azimuth for r=%g inc=%g", r, inc)
			}
		}
	}
}

func TestCartesianToSphericalUsesAtan2(t *testing.T) {
	// atan(y/x) would fold the second and third quadrants onto the first and fourth.
	_, _, az, err := CartesianToSpherical(-1, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3*math.Pi/4, az, 1e-12)

	_, _, az, err = CartesianToSpherical(-1, -1, 0)
	require.NoError(t, err)
	assert.InDelta(t, -3*math.Pi/4, az, 1e-12)
}

func TestCartesianToSphericalOrigin(t *testing.T) {
	_, _, _, err := CartesianToSpherical(0, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestElementSpherical(t *testing.T) {
	e := NewElement(0, 2, 0)
	r, inc, az, err := e.Spherical()
	require.NoError(t, err)
	assert.InDelta(t, 2, r, 1e-12)
	assert.InDelta(t, math.Pi/2, inc, 1e-12)
	assert.InDelta(t, math.Pi/2, az, 1e-12)
	assert.Equal(t, "(0, 2, 0)", e.String())
}
