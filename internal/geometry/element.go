package geometry

import "fmt"

// Element is a sensor at a fixed position. Coordinates are pre-scaled so that
// position·k is a phase in radians for the design wave vector (positions in
// wavelengths of the design wavenumber when k has magnitude 2π).
type Element struct {
	Position [3]float64
}

// NewElement builds an element at (x, y, z).
func NewElement(x, y, z float64) Element {
	return Element{Position: [3]float64{x, y, z}}
}

// Spherical returns (radius, inclination, azimuth) of the element position.
func (e Element) Spherical() (r, inclination, azimuth float64, err error) {
	return CartesianToSpherical(e.Position[0], e.Position[1], e.Position[2])
}

func (e Element) String() string {
	return fmt.Sprintf("(%g, %g, %g)", e.Position[0], e.Position[1], e.Position[2])
}

// Phase returns position·k for the given wave vector.
func (e Element) Phase(w *WaveVector) float64 {
	return dot3(e.Position, w.k)
}
