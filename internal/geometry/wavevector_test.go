package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaveVectorRejectsZero(t *testing.T) {
	_, err := NewWaveVector([3]float64{}, 343)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewWaveVector([3]float64{1, 0, 0}, 0)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewWaveVector([3]float64{math.NaN(), 0, 0}, 343)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestWaveVectorDerived(t *testing.T) {
	const speed = 343.0
	k := 2 * math.Pi * 1000 / speed // 1 kHz in air
	w, err := FromSpherical(k, math.Pi/3, -math.Pi/4, speed)
	require.NoError(t, err)

	gotK, inc, az := w.Spherical()
	assert.InDelta(t, k, gotK, 1e-12)
	assert.InDelta(t, math.Pi/3, inc, 1e-12)
	assert.InDelta(t, -math.Pi/4, az, 1e-12)
	assert.InDelta(t, math.Pi/3, w.Inclination(), 1e-12)
	assert.InDelta(t, -math.Pi/4, w.Azimuth(), 1e-12)

	assert.InDelta(t, 1000, w.LinearFrequency(), 1e-9)
	assert.InDelta(t, 1e-3, w.LinearPeriod(), 1e-15)
	assert.InDelta(t, speed/1000, w.LinearWavelength(), 1e-12)
	assert.InDelta(t, 1000/speed, w.LinearWavenumber(), 1e-12)
	assert.InDelta(t, 1/k, w.AngularWavelength(), 1e-15)
	assert.InDelta(t, k*speed, w.AngularFrequency(), 1e-9)
	assert.InDelta(t, 1/(k*speed), w.AngularPeriod(), 1e-15)
	assert.Equal(t, speed, w.Speed())
}

func TestElementPhase(t *testing.T) {
	w, err := NewWaveVector([3]float64{2 * math.Pi, 0, 0}, 1)
	require.NoError(t, err)
	e := NewElement(0.25, 3, -1)
	assert.InDelta(t, math.Pi/2, e.Phase(w), 1e-12)

	sv := SteeringVector([]Element{e}, w)
	require.Len(t, sv, 1)
	assert.InDelta(t, 0, real(sv[0]), 1e-12)
	assert.InDelta(t, 1, imag(sv[0]), 1e-12)
}
