package dsp

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// CachedAnalytic converts whole sample blocks to analytic form, reusing one
// FFT plan and Hilbert mask for the configured block length.
type CachedAnalytic struct {
	mu   sync.RWMutex
	size int
	fft  *fourier.CmplxFFT
	mask []float64
}

// NewCachedAnalytic prepares resources for blocks of size snapshots.
func NewCachedAnalytic(size int) *CachedAnalytic {
	c := &CachedAnalytic{}
	c.UpdateSize(size)
	return c
}

// Series converts one real series. Lengths other than Size fall back to the
// uncached path.
func (c *CachedAnalytic) Series(x []float64) []complex128 {
	// CmplxFFT keeps internal work space, so calls are serialised.
	c.mu.Lock()
	if len(x) == 0 || len(x) != c.size {
		c.mu.Unlock()
		return Analytic(x)
	}
	defer c.mu.Unlock()
	return analytic(c.fft, c.mask, x)
}

// Block converts every column (channel) of a T×N real block.
func (c *CachedAnalytic) Block(block *mat.Dense) *mat.CDense {
	r, n := block.Dims()
	out := mat.NewCDense(r, n, nil)
	col := make([]float64, r)
	for j := 0; j < n; j++ {
		mat.Col(col, j, block)
		for i, v := range c.Series(col) {
			out.Set(i, j, v)
		}
	}
	return out
}

// UpdateSize rebuilds the cached plan for a new block length.
func (c *CachedAnalytic) UpdateSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	if size <= 0 {
		c.fft, c.mask = nil, nil
		return
	}
	c.fft = fourier.NewCmplxFFT(size)
	c.mask = hilbertMask(size)
}

// Size returns the block length the cache is prepared for.
func (c *CachedAnalytic) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}
