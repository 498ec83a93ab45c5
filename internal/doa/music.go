package doa

import (
	"fmt"
	"math/cmplx"

	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// musicFloor keeps the pseudo-spectrum finite when a steering vector is
// exactly orthogonal to the noise subspace.
const musicFloor = 1e-300

// Music returns the MUSIC pseudo-spectrum P(j) = 1/Σ_k |a_jᴴ·u_k|² over the
// noise subspace u_1..u_{N-numSources} of the block's covariance.
func Music(la linalg.Backend, block *SignalBlock, m *geometry.Manifold, numSources int) (Spectrum, error) {
	if block == nil {
		return nil, fmt.Errorf("music: %w: nil block", ErrConfiguration)
	}
	if err := checkManifold("music", m, block.Channels()); err != nil {
		return nil, err
	}
	cov, err := Covariance(block)
	if err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}
	return musicFromCovariance(backendOrDefault(la), cov, m, numSources)
}

func musicFromCovariance(la linalg.Backend, cov *mat.CDense, m *geometry.Manifold, numSources int) (Spectrum, error) {
	_, noise, err := Decompose(la, cov, numSources)
	if err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}
	projector := linalg.H(noise)

	a := m.Matrix()
	_, points := a.Dims()
	k, _ := projector.Dims()
	raw := make([]float64, points)
	for start := 0; start < points; start += scanChunk {
		end := min(start+scanChunk, points)
		proj, err := la.Mul(projector, columns(a, start, end))
		if err != nil {
			return nil, translate("music", err)
		}
		for j := start; j < end; j++ {
			var d float64
			for i := 0; i < k; i++ {
				v := cmplx.Abs(proj.At(i, j-start))
				d += v * v
			}
			raw[j] = 1 / max(d, musicFloor)
		}
	}
	return normalize("music", raw)
}
