package doa

import (
	"fmt"

	"github.com/rjboer/GoDOA/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Decompose splits a covariance matrix into signal and noise subspaces. The
// eigenvectors of the numSources largest eigenvalues span the signal subspace
// (returned as N×numSources) and the rest span the noise subspace
// (N×(N-numSources)). Eigenvalues with equal value keep the backend's order.
func Decompose(la linalg.Backend, cov *mat.CDense, numSources int) (signal, noise *mat.CDense, err error) {
	if cov == nil {
		return nil, nil, fmt.Errorf("decompose: %w: nil covariance", ErrConfiguration)
	}
	r, c := cov.Dims()
	if r != c {
		return nil, nil, fmt.Errorf("decompose: %w: covariance is %dx%d", ErrDimensionMismatch, r, c)
	}
	if numSources <= 0 || numSources >= r {
		return nil, nil, fmt.Errorf("decompose: %w: %d sources for %d elements", ErrInvalidSourceCount, numSources, r)
	}
	if la == nil {
		la = linalg.Default()
	}
	_, vecs, err := la.EigenHermitian(cov)
	if err != nil {
		return nil, nil, translate("decompose", err)
	}
	split := r - numSources
	noise = columns(vecs, 0, split)
	signal = columns(vecs, split, r)
	return signal, noise, nil
}

func columns(m *mat.CDense, from, to int) *mat.CDense {
	r, _ := m.Dims()
	out := mat.NewCDense(r, to-from, nil)
	for i := 0; i < r; i++ {
		for j := from; j < to; j++ {
			out.Set(i, j-from, m.At(i, j))
		}
	}
	return out
}
