package doa

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SignalBlock holds T snapshots of N synchronized channels, one row per
// snapshot. Real input is stored with zero imaginary parts.
type SignalBlock struct {
	data   *mat.CDense
	isReal bool
}

// NewSignalBlock builds a real block from rows of channel samples.
func NewSignalBlock(rows [][]float64) (*SignalBlock, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty signal block", ErrConfiguration)
	}
	n := len(rows[0])
	data := mat.NewCDense(len(rows), n, nil)
	for t, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: snapshot %d has %d channels, want %d", ErrConfiguration, t, len(row), n)
		}
		for c, v := range row {
			data.Set(t, c, complex(v, 0))
		}
	}
	return &SignalBlock{data: data, isReal: true}, nil
}

// BlockFromDense wraps a real T×N matrix.
func BlockFromDense(m mat.Matrix) (*SignalBlock, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil signal block", ErrConfiguration)
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty signal block", ErrConfiguration)
	}
	data := mat.NewCDense(r, c, nil)
	for t := 0; t < r; t++ {
		for n := 0; n < c; n++ {
			data.Set(t, n, complex(m.At(t, n), 0))
		}
	}
	return &SignalBlock{data: data, isReal: true}, nil
}

// BlockFromCDense wraps a complex (analytic) T×N matrix without copying.
func BlockFromCDense(m *mat.CDense) (*SignalBlock, error) {
	if m == nil || m.IsEmpty() {
		return nil, fmt.Errorf("%w: empty signal block", ErrConfiguration)
	}
	return &SignalBlock{data: m}, nil
}

// Snapshots is T.
func (b *SignalBlock) Snapshots() int {
	r, _ := b.data.Dims()
	return r
}

// Channels is N.
func (b *SignalBlock) Channels() int {
	_, c := b.data.Dims()
	return c
}

// IsReal reports whether the block was built from real samples.
func (b *SignalBlock) IsReal() bool { return b.isReal }

// Data returns the underlying matrix. It must not be modified.
func (b *SignalBlock) Data() *mat.CDense { return b.data }

// real returns the real part as a Dense; only meaningful for real blocks.
func (b *SignalBlock) real() *mat.Dense {
	r, c := b.data.Dims()
	out := mat.NewDense(r, c, nil)
	for t := 0; t < r; t++ {
		for n := 0; n < c; n++ {
			out.Set(t, n, real(b.data.At(t, n)))
		}
	}
	return out
}
