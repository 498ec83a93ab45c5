// Package dsp holds the optional conditioning applied to sample blocks before
// direction estimation: DC removal, analytic-signal conversion and a tone
// frequency check.
package dsp

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// ErrTooShort is returned when a series is too short to analyse.
var ErrTooShort = errors.New("dsp: series too short")

// RemoveDC subtracts each column's mean in place.
func RemoveDC(block *mat.Dense) {
	r, c := block.Dims()
	if r == 0 {
		return
	}
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, block)
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(r)
		for i := range col {
			block.Set(i, j, col[i]-mean)
		}
	}
}

// Analytic returns the analytic signal x + i·H{x} of a real series, computed
// by zeroing the negative-frequency half of its spectrum.
func Analytic(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return analytic(fourier.NewCmplxFFT(len(x)), hilbertMask(len(x)), x)
}

func analytic(fft *fourier.CmplxFFT, mask []float64, x []float64) []complex128 {
	n := len(x)
	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	coeff := fft.Coefficients(nil, seq)
	for i := range coeff {
		coeff[i] *= complex(mask[i], 0)
	}
	out := fft.Sequence(nil, coeff)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// hilbertMask keeps DC (and Nyquist for even n), doubles positive frequencies
// and drops negative ones.
func hilbertMask(n int) []float64 {
	h := make([]float64, n)
	h[0] = 1
	if n%2 == 0 {
		h[n/2] = 1
		for i := 1; i < n/2; i++ {
			h[i] = 2
		}
	} else {
		for i := 1; i <= n/2; i++ {
			h[i] = 2
		}
	}
	return h
}

// DominantFrequency returns the strongest tone in a real series in Hz, using a
// Hamming window and parabolic interpolation between FFT bins. DC is ignored.
func DominantFrequency(x []float64, sampleRate float64) (float64, error) {
	if len(x) < 4 || !(sampleRate > 0) {
		return 0, ErrTooShort
	}
	win := ApplyWindow(x, Hamming(len(x)))
	coeff := fourier.NewFFT(len(x)).Coefficients(nil, win)
	mag := make([]float64, len(coeff))
	for i, c := range coeff {
		mag[i] = cmplx.Abs(c)
	}
	bin, ok := peakBin(mag, 1, len(mag))
	if !ok {
		return 0, nil
	}
	offset := 0.0
	if bin > 0 && bin < len(mag)-1 {
		a, b, c := mag[bin-1], mag[bin], mag[bin+1]
		if d := a - 2*b + c; d != 0 {
			offset = 0.5 * (a - c) / d
		}
	}
	return (float64(bin) + offset) * sampleRate / float64(len(x)), nil
}

// peakBin returns the index of the largest value in v[start:end). ok is false
// for an empty range or an all-zero band.
func peakBin(v []float64, start, end int) (bin int, ok bool) {
	start = max(start, 0)
	end = min(end, len(v))
	peak := 0.0
	for i := start; i < end; i++ {
		if v[i] > peak && !math.IsNaN(v[i]) {
			peak, bin, ok = v[i], i, true
		}
	}
	return bin, ok
}
