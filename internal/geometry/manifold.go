package geometry

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// Manifold is the steering matrix of an array over a scan grid: an N×M
// complex matrix whose column j holds exp(i·p_n·k_j) for the wave vector k_j
// of scan point j at the design wavenumber.
//
// The configuration is fixed at construction. The matrix is built on the
// first call to Matrix and shared afterwards; it must not be modified by
// callers. A different configuration needs a new Manifold.
type Manifold struct {
	elements   []Element
	grid       ScanGrid
	wavenumber float64

	once   sync.Once
	built  atomic.Bool
	matrix *mat.CDense
}

// NewManifold validates the configuration. The matrix itself is built lazily.
func NewManifold(elements []Element, grid ScanGrid, wavenumber float64) (*Manifold, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: array has no elements", ErrConfiguration)
	}
	for i, e := range elements {
		if !finite3(e.Position) {
			return nil, fmt.Errorf("%w: element %d has non-finite position %v", ErrConfiguration, i, e.Position)
		}
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if !(wavenumber > 0) || math.IsInf(wavenumber, 0) {
		return nil, fmt.Errorf("%w: design wavenumber must be positive, got %g", ErrConfiguration, wavenumber)
	}
	els := make([]Element, len(elements))
	copy(els, elements)
	return &Manifold{elements: els, grid: grid, wavenumber: wavenumber}, nil
}

// Len returns the element count N.
func (m *Manifold) Len() int { return len(m.elements) }

// Points returns the scan point count M.
func (m *Manifold) Points() int { return m.grid.Len() }

func (m *Manifold) Grid() ScanGrid { return m.grid }

func (m *Manifold) Wavenumber() float64 { return m.wavenumber }

// Elements returns a copy of the array elements.
func (m *Manifold) Elements() []Element {
	out := make([]Element, len(m.elements))
	copy(out, m.elements)
	return out
}

// Matrix returns the N×M steering matrix, building it on first use.
func (m *Manifold) Matrix() *mat.CDense {
	m.once.Do(m.build)
	return m.matrix
}

// Built reports whether the steering matrix has been computed.
func (m *Manifold) Built() bool {
	return m.built.Load()
}

// Steering returns a copy of the steering vector for scan point j.
func (m *Manifold) Steering(j int) []complex128 {
	a := m.Matrix()
	out := make([]complex128, len(m.elements))
	for n := range out {
		out[n] = a.At(n, j)
	}
	return out
}

// SteeringVector evaluates exp(i·p_n·k) for an arbitrary wave vector.
func SteeringVector(elements []Element, w *WaveVector) []complex128 {
	out := make([]complex128, len(elements))
	for n, e := range elements {
		s, c := math.Sincos(e.Phase(w))
		out[n] = complex(c, s)
	}
	return out
}

func (m *Manifold) build() {
	n, pts := len(m.elements), m.grid.Len()
	data := make([]complex128, n*pts)
	incs := m.grid.Inclinations()
	azs := m.grid.Azimuths()
	j := 0
	for _, inc := range incs {
		for _, az := range azs {
			kx, ky, kz := SphericalToCartesian(m.wavenumber, inc, az)
			k := [3]float64{kx, ky, kz}
			for r, e := range m.elements {
				s, c := math.Sincos(dot3(e.Position, k))
				data[r*pts+j] = complex(c, s)
			}
			j++
		}
	}
	m.matrix = mat.NewCDense(n, pts, data)
	m.built.Store(true)
}
