package doa

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// scanChunk bounds how many steering columns are pushed through the backend
// at once, keeping intermediates small for dense scan grids.
const scanChunk = 512

// DelaySum steers the raw block towards every scan point and returns the
// sample variance of the summed output, P(j) = Var_t(a_jᴴ·x(t)).
func DelaySum(la linalg.Backend, block *SignalBlock, m *geometry.Manifold) (Spectrum, error) {
	raw, err := delaySumPower(la, block, m)
	if err != nil {
		return nil, err
	}
	return normalize("delaysum", raw)
}

func delaySumPower(la linalg.Backend, block *SignalBlock, m *geometry.Manifold) ([]float64, error) {
	if block == nil {
		return nil, fmt.Errorf("delaysum: %w: nil block", ErrConfiguration)
	}
	if err := checkManifold("delaysum", m, block.Channels()); err != nil {
		return nil, err
	}
	t := block.Snapshots()
	if t < 2 {
		return nil, fmt.Errorf("delaysum: %w: %d snapshots", ErrInsufficientSamples, t)
	}
	la = backendOrDefault(la)

	a := m.Matrix()
	n, points := a.Dims()
	out := make([]float64, points)
	re := make([]float64, t)
	im := make([]float64, t)
	for start := 0; start < points; start += scanChunk {
		end := min(start+scanChunk, points)
		weights := mat.NewCDense(n, end-start, nil)
		for i := 0; i < n; i++ {
			for j := start; j < end; j++ {
				weights.Set(i, j-start, cmplx.Conj(a.At(i, j)))
			}
		}
		y, err := la.Mul(block.Data(), weights)
		if err != nil {
			return nil, translate("delaysum", err)
		}
		for j := 0; j < end-start; j++ {
			for s := 0; s < t; s++ {
				v := y.At(s, j)
				re[s], im[s] = real(v), imag(v)
			}
			out[start+j] = stat.Variance(re, nil) + stat.Variance(im, nil)
		}
	}
	return out, nil
}

// Bartlett returns the conventional beamformer power P(j) = Re(a_jᴴ·R·a_j).
func Bartlett(la linalg.Backend, cov *mat.CDense, m *geometry.Manifold) (Spectrum, error) {
	if err := checkCovariance("bartlett", cov, m); err != nil {
		return nil, err
	}
	la = backendOrDefault(la)
	raw, err := quadraticForm(m, func(a *mat.CDense) (*mat.CDense, error) {
		return la.Mul(cov, a)
	})
	if err != nil {
		return nil, translate("bartlett", err)
	}
	return normalize("bartlett", raw)
}

// MVDR returns the Capon power P(j) = 1/Re(a_jᴴ·R⁻¹·a_j). R⁻¹·A comes from a
// linear solve; an ill-conditioned covariance fails with ErrSingularMatrix.
func MVDR(la linalg.Backend, cov *mat.CDense, m *geometry.Manifold) (Spectrum, error) {
	if err := checkCovariance("mvdr", cov, m); err != nil {
		return nil, err
	}
	la = backendOrDefault(la)
	raw, err := quadraticForm(m, func(a *mat.CDense) (*mat.CDense, error) {
		return la.Solve(cov, a)
	})
	if err != nil {
		return nil, translate("mvdr", err)
	}
	for j, q := range raw {
		if !(q > 0) || math.IsInf(q, 0) {
			return nil, fmt.Errorf("mvdr: %w: covariance is not positive definite at scan point %d", ErrSingularMatrix, j)
		}
		raw[j] = 1 / q
	}
	return normalize("mvdr", raw)
}

// MSNR returns P(j) = Re(a_jᴴ·N⁻¹·a_j) for a caller supplied noise covariance.
func MSNR(la linalg.Backend, cov *mat.CDense, m *geometry.Manifold, noiseCov *mat.CDense) (Spectrum, error) {
	return inverseForm("msnr", la, cov, m, noiseCov, "noise covariance")
}

// LCMV returns P(j) = Re(a_jᴴ·C⁻¹·a_j) for a caller supplied constraint matrix.
func LCMV(la linalg.Backend, cov *mat.CDense, m *geometry.Manifold, constraints *mat.CDense) (Spectrum, error) {
	return inverseForm("lcmv", la, cov, m, constraints, "constraint matrix")
}

func inverseForm(op string, la linalg.Backend, cov *mat.CDense, m *geometry.Manifold, side *mat.CDense, name string) (Spectrum, error) {
	if err := checkCovariance(op, cov, m); err != nil {
		return nil, err
	}
	if err := checkSideInfo(op, name, side, m.Len()); err != nil {
		return nil, err
	}
	la = backendOrDefault(la)
	raw, err := quadraticForm(m, func(a *mat.CDense) (*mat.CDense, error) {
		return la.Solve(side, a)
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return normalize(op, raw)
}

// quadraticForm evaluates Re(a_jᴴ·y_j) for every steering column, where the
// columns y_j come from apply on chunks of the manifold.
func quadraticForm(m *geometry.Manifold, apply func(a *mat.CDense) (*mat.CDense, error)) ([]float64, error) {
	a := m.Matrix()
	n, points := a.Dims()
	out := make([]float64, points)
	for start := 0; start < points; start += scanChunk {
		end := min(start+scanChunk, points)
		y, err := apply(columns(a, start, end))
		if err != nil {
			return nil, err
		}
		for j := start; j < end; j++ {
			var sum complex128
			for i := 0; i < n; i++ {
				sum += cmplx.Conj(a.At(i, j)) * y.At(i, j-start)
			}
			out[j] = real(sum)
		}
	}
	return out, nil
}

func backendOrDefault(la linalg.Backend) linalg.Backend {
	if la == nil {
		return linalg.Default()
	}
	return la
}

func checkManifold(op string, m *geometry.Manifold, channels int) error {
	if m == nil {
		return fmt.Errorf("%s: %w: nil manifold", op, ErrConfiguration)
	}
	if m.Len() != channels {
		return fmt.Errorf("%s: %w: %d channels for %d elements", op, ErrDimensionMismatch, channels, m.Len())
	}
	return nil
}

func checkCovariance(op string, cov *mat.CDense, m *geometry.Manifold) error {
	if cov == nil {
		return fmt.Errorf("%s: %w: nil covariance", op, ErrConfiguration)
	}
	r, c := cov.Dims()
	if r != c {
		return fmt.Errorf("%s: %w: covariance is %dx%d", op, ErrDimensionMismatch, r, c)
	}
	return checkManifold(op, m, r)
}

func checkSideInfo(op, name string, side *mat.CDense, n int) error {
	if side == nil {
		return fmt.Errorf("%s: %w: missing %s", op, ErrConfiguration, name)
	}
	r, c := side.Dims()
	if r != n || c != n {
		return fmt.Errorf("%s: %w: %s is %dx%d, want %dx%d", op, ErrDimensionMismatch, name, r, c, n, n)
	}
	return nil
}
