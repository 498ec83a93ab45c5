package geometry

import (
	"fmt"
	"math"
	"sync"
)

// WaveVector describes a plane wave by its angular wavenumber vector k
// (kx, ky, kz) and its propagation speed. Derived quantities are computed on
// first use and cached; the value itself never changes.
type WaveVector struct {
	k     [3]float64
	speed float64

	once sync.Once
	r    float64
	inc  float64
	az   float64
}

// NewWaveVector builds a wave vector. |k| must be non-zero and the speed
// positive, otherwise every derived quantity would be undefined.
func NewWaveVector(k [3]float64, speed float64) (*WaveVector, error) {
	if !finite3(k) || dot3(k, k) == 0 {
		return nil, fmt.Errorf("%w: wave vector %v has no direction", ErrConfiguration, k)
	}
	if !(speed > 0) || math.IsInf(speed, 0) {
		return nil, fmt.Errorf("%w: wave speed must be positive, got %g", ErrConfiguration, speed)
	}
	return &WaveVector{k: k, speed: speed}, nil
}

// FromSpherical builds a wave vector from (wavenumber, inclination, azimuth).
func FromSpherical(wavenumber, inclination, azimuth, speed float64) (*WaveVector, error) {
	x, y, z := SphericalToCartesian(wavenumber, inclination, azimuth)
	return NewWaveVector([3]float64{x, y, z}, speed)
}

// K returns the cartesian wavenumber vector.
func (w *WaveVector) K() [3]float64 { return w.k }

// Speed returns the propagation speed.
func (w *WaveVector) Speed() float64 { return w.speed }

func (w *WaveVector) spherical() {
	w.once.Do(func() {
		// |k| > 0 is guaranteed by the constructor.
		w.r, w.inc, w.az, _ = CartesianToSpherical(w.k[0], w.k[1], w.k[2])
	})
}

// Spherical returns (angular wavenumber, inclination, azimuth).
func (w *WaveVector) Spherical() (wavenumber, inclination, azimuth float64) {
	w.spherical()
	return w.r, w.inc, w.az
}

func (w *WaveVector) Inclination() float64 {
	w.spherical()
	return w.inc
}

func (w *WaveVector) Azimuth() float64 {
	w.spherical()
	return w.az
}

// AngularWavenumber is |k| in rad/m.
func (w *WaveVector) AngularWavenumber() float64 {
	w.spherical()
	return w.r
}

func (w *WaveVector) AngularWavelength() float64 { return 1 / w.AngularWavenumber() }
func (w *WaveVector) AngularFrequency() float64  { return w.AngularWavenumber() * w.speed }
func (w *WaveVector) AngularPeriod() float64     { return 1 / w.AngularFrequency() }

func (w *WaveVector) LinearWavenumber() float64 { return w.AngularWavenumber() / (2 * math.Pi) }
func (w *WaveVector) LinearWavelength() float64 { return w.AngularWavelength() * 2 * math.Pi }
func (w *WaveVector) LinearFrequency() float64  { return w.AngularFrequency() / (2 * math.Pi) }
func (w *WaveVector) LinearPeriod() float64     { return w.AngularPeriod() * 2 * math.Pi }
