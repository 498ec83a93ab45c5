// Package linalg abstracts the dense complex linear algebra the estimators
// need behind a Backend selected at startup.
package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// DefaultConditionLimit is the largest condition number a system may have
// before Solve and Inverse reject it as singular.
const DefaultConditionLimit = 1e12

var (
	// ErrSingular is returned when a matrix is singular or too ill-conditioned
	// to solve against.
	ErrSingular = errors.New("matrix is singular or ill-conditioned")
	// ErrShape is returned for incompatible operand dimensions.
	ErrShape = errors.New("incompatible matrix dimensions")
	// ErrNotHermitian is returned by EigenHermitian for non-Hermitian input.
	ErrNotHermitian = errors.New("matrix is not Hermitian")
	// ErrNoConvergence is returned when an eigensolver fails.
	ErrNoConvergence = errors.New("eigendecomposition did not converge")
)

// Backend is a dense complex linear algebra implementation.
type Backend interface {
	Name() string
	// Mul returns a·b.
	Mul(a, b *mat.CDense) (*mat.CDense, error)
	// EigenHermitian returns the eigenvalues of a Hermitian matrix in
	// ascending order and the matching unit eigenvectors as columns.
	EigenHermitian(a *mat.CDense) ([]float64, *mat.CDense, error)
	// Solve returns x with a·x = b.
	Solve(a, b *mat.CDense) (*mat.CDense, error)
	// Inverse returns a⁻¹.
	Inverse(a *mat.CDense) (*mat.CDense, error)
}

var registry = map[string]func() Backend{
	"gonum":  func() Backend { return &Gonum{} },
	"native": func() Backend { return &Native{} },
}

// Lookup returns a fresh backend by name.
func Lookup(name string) (Backend, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown linear algebra backend %q (have %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered backends.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// backendBox gives the atomic pointer one concrete type whatever backend it
// holds.
type backendBox struct{ b Backend }

var defaultBackend atomic.Pointer[backendBox]

// Default returns the process-wide backend (gonum unless replaced).
func Default() Backend {
	if box := defaultBackend.Load(); box != nil {
		return box.b
	}
	return &Gonum{}
}

// SetDefault replaces the process-wide backend. Nil is ignored.
func SetDefault(b Backend) {
	if b != nil {
		defaultBackend.Store(&backendBox{b: b})
	}
}

// H returns the conjugate transpose of a as a new matrix.
func H(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(j, i, cmplx.Conj(a.At(i, j)))
		}
	}
	return out
}

// IsHermitian reports whether a is square and equal to its conjugate
// transpose within tol relative to its largest entry.
func IsHermitian(a *mat.CDense, tol float64) bool {
	r, c := a.Dims()
	if r != c {
		return false
	}
	scale := maxAbs(a)
	if scale == 0 {
		return true
	}
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			if cmplx.Abs(a.At(i, j)-cmplx.Conj(a.At(j, i))) > tol*scale {
				return false
			}
		}
	}
	return true
}

func maxAbs(a *mat.CDense) float64 {
	r, c := a.Dims()
	var m float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := cmplx.Abs(a.At(i, j)); v > m {
				m = v
			}
		}
	}
	return m
}

func checkMul(a, b *mat.CDense) error {
	_, ac := a.Dims()
	br, _ := b.Dims()
	if ac != br {
		return fmt.Errorf("%w: mul %d columns by %d rows", ErrShape, ac, br)
	}
	return nil
}

func checkSquare(a *mat.CDense) (int, error) {
	r, c := a.Dims()
	if r != c {
		return 0, fmt.Errorf("%w: %dx%d is not square", ErrShape, r, c)
	}
	return r, nil
}

func checkSolve(a, b *mat.CDense) (int, error) {
	n, err := checkSquare(a)
	if err != nil {
		return 0, err
	}
	if br, _ := b.Dims(); br != n {
		return 0, fmt.Errorf("%w: solve %dx%d against %d rows", ErrShape, n, n, br)
	}
	return n, nil
}

func conditionOK(cond, limit float64) bool {
	if limit <= 0 {
		limit = DefaultConditionLimit
	}
	return !math.IsNaN(cond) && !math.IsInf(cond, 0) && cond <= limit
}

const hermitianTol = 1e-9
