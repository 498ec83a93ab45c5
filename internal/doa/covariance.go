package doa

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Covariance returns the unbiased N×N spatial covariance of a block with the
// per-channel mean removed: R_ij = Σ_t (x_ti-x̄_i)·conj(x_tj-x̄_j) / (T-1).
func Covariance(block *SignalBlock) (*mat.CDense, error) {
	if block == nil {
		return nil, fmt.Errorf("covariance: %w: nil block", ErrConfiguration)
	}
	t, n := block.Snapshots(), block.Channels()
	if t < 2 {
		return nil, fmt.Errorf("covariance: %w: %d snapshots", ErrInsufficientSamples, t)
	}

	if block.IsReal() {
		var sym mat.SymDense
		stat.CovarianceMatrix(&sym, block.real(), nil)
		out := mat.NewCDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				out.Set(i, j, complex(sym.At(i, j), 0))
			}
		}
		return out, nil
	}

	x := block.Data()
	centered := make([][]complex128, n)
	for c := 0; c < n; c++ {
		col := make([]complex128, t)
		var mean complex128
		for s := 0; s < t; s++ {
			col[s] = x.At(s, c)
			mean += col[s]
		}
		mean /= complex(float64(t), 0)
		for s := range col {
			col[s] -= mean
		}
		centered[c] = col
	}

	out := mat.NewCDense(n, n, nil)
	scale := complex(1/float64(t-1), 0)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum complex128
			for s := 0; s < t; s++ {
				sum += centered[i][s] * cmplx.Conj(centered[j][s])
			}
			sum *= scale
			if i == j {
				sum = complex(real(sum), 0)
			}
			out.Set(i, j, sum)
			out.Set(j, i, cmplx.Conj(sum))
		}
	}
	return out, nil
}
