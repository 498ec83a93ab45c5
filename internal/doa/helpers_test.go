package doa

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const designK = 2 * math.Pi

type tone struct {
	inclination, azimuth float64
	cycles               int
	amplitude            float64
}

// planeWaves synthesizes T snapshots of tones arriving at the array. Each
// tone completes an integer number of cycles so distinct tones are
// uncorrelated over the block. Analytic blocks carry exp(i(ωt + k·p)), real
// blocks its real part.
func planeWaves(t *testing.T, elements []geometry.Element, tones []tone, snapshots int, sigma float64, seed int64, analytic bool) *SignalBlock {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := mat.NewCDense(snapshots, len(elements), nil)
	for _, tn := range tones {
		w, err := geometry.FromSpherical(designK, tn.inclination, tn.azimuth, 343)
		require.NoError(t, err)
		for n, e := range elements {
			phase := e.Phase(w)
			for s := 0; s < snapshots; s++ {
				arg := 2*math.Pi*float64(tn.cycles*s)/float64(snapshots) + phase
				v := complex(tn.amplitude, 0) * cmplx.Exp(complex(0, arg))
				if !analytic {
					v = complex(real(v), 0)
				}
				data.Set(s, n, data.At(s, n)+v)
			}
		}
	}
	if sigma > 0 {
		for s := 0; s < snapshots; s++ {
			for n := range elements {
				noise := complex(rng.NormFloat64()*sigma, 0)
				if analytic {
					noise = complex(rng.NormFloat64(), rng.NormFloat64()) * complex(sigma/math.Sqrt2, 0)
				}
				data.Set(s, n, data.At(s, n)+noise)
			}
		}
	}
	if analytic {
		b, err := BlockFromCDense(data)
		require.NoError(t, err)
		return b
	}
	rows := make([][]float64, snapshots)
	for s := range rows {
		rows[s] = make([]float64, len(elements))
		for n := range rows[s] {
			rows[s][n] = real(data.At(s, n))
		}
	}
	b, err := NewSignalBlock(rows)
	require.NoError(t, err)
	return b
}

func randomBlock(rng *rand.Rand, snapshots, channels int) *SignalBlock {
	rows := make([][]float64, snapshots)
	for s := range rows {
		rows[s] = make([]float64, channels)
		for n := range rows[s] {
			rows[s][n] = rng.NormFloat64()
		}
	}
	b, err := NewSignalBlock(rows)
	if err != nil {
		panic(err)
	}
	return b
}

// hermitianPD returns B·Bᴴ + I for a random B.
func hermitianPD(rng *rand.Rand, n int) *mat.CDense {
	out := mat.NewCDense(n, n, nil)
	b := make([][]complex128, n)
	for i := range b {
		b[i] = make([]complex128, n)
		for j := range b[i] {
			b[i][j] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var s complex128
			for k := 0; k < n; k++ {
				s += b[i][k] * cmplx.Conj(b[j][k])
			}
			if i == j {
				s += 1
			}
			out.Set(i, j, s)
		}
	}
	return out
}

func identity(n int) *mat.CDense {
	m := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func backends() []linalg.Backend {
	return []linalg.Backend{&linalg.Gonum{}, &linalg.Native{}}
}

func requireNormalized(t *testing.T, s Spectrum, points int) {
	t.Helper()
	require.Len(t, s, points)
	peak := math.Inf(-1)
	for i, v := range s {
		require.GreaterOrEqual(t, v, 0.0, "point %d", i)
		peak = math.Max(peak, v)
	}
	require.InDelta(t, 1, peak, 1e-9)
}
