package doa

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// The four-element array along x at half-wavelength spacing, scanned over
// inclination at azimuth 0. A wave at inclination π/2 sits exactly between
// grid points 249 and 250, which see identical steering vectors.
func TestBroadsideSourcePeaksAtHalfPi(t *testing.T) {
	elements := geometry.UniformLinear(4, 0.5)
	require.InDelta(t, -0.75, elements[0].Position[0], 1e-15)
	require.InDelta(t, 0.75, elements[3].Position[0], 1e-15)

	grid := geometry.LineGrid(0, math.Pi, 500, 0)
	m, err := geometry.NewManifold(elements, grid, designK)
	require.NoError(t, err)

	source := []tone{{inclination: math.Pi / 2, cycles: 10, amplitude: 1}}
	clean := planeWaves(t, elements, source, 256, 0, 1, false)
	// A noiseless single source gives a rank-one covariance, which MVDR
	// rejects. A small noise floor makes it invertible.
	noisy := planeWaves(t, elements, source, 256, 0.01, 1, false)

	for _, la := range backends() {
		cov, err := Covariance(clean)
		require.NoError(t, err)
		noisyCov, err := Covariance(noisy)
		require.NoError(t, err)

		run := map[string]func() (Spectrum, error){
			"delaysum": func() (Spectrum, error) { return DelaySum(la, clean, m) },
			"bartlett": func() (Spectrum, error) { return Bartlett(la, cov, m) },
			"mvdr":     func() (Spectrum, error) { return MVDR(la, noisyCov, m) },
			"music":    func() (Spectrum, error) { return Music(la, clean, m, 1) },
		}
		for name, fn := range run {
			t.Run(la.Name()+"/"+name, func(t *testing.T) {
				s, err := fn()
				require.NoError(t, err)
				requireNormalized(t, s, grid.Len())
				assert.Contains(t, []int{249, 250}, s.ArgMax())
			})
		}
	}
}

func TestMusicResolvesBetterThanBeamformers(t *testing.T) {
	elements := geometry.UniformLinear(8, 0.5)
	grid := geometry.LineGrid(0, math.Pi/2, 181, 0)
	m, err := geometry.NewManifold(elements, grid, designK)
	require.NoError(t, err)

	inc1, _ := grid.Point(24)
	inc2, _ := grid.Point(90)
	tones := []tone{
		{inclination: inc1, cycles: 37, amplitude: 1},
		{inclination: inc2, cycles: 91, amplitude: 1},
	}
	block := planeWaves(t, elements, tones, 512, 0.05, 3, true)
	cov, err := Covariance(block)
	require.NoError(t, err)

	const guard = 20
	psr := func(s Spectrum) float64 {
		peaks, err := Peaks(s, grid, 2)
		require.NoError(t, err)
		require.Len(t, peaks, 2)
		return PeakToSidelobe(s, grid, peaks, guard)
	}

	for _, la := range backends() {
		t.Run(la.Name(), func(t *testing.T) {
			music, err := Music(la, block, m, 2)
			require.NoError(t, err)
			bartlett, err := Bartlett(la, cov, m)
			require.NoError(t, err)
			delaySum, err := DelaySum(la, block, m)
			require.NoError(t, err)

			peaks, err := Peaks(music, grid, 2)
			require.NoError(t, err)
			require.Len(t, peaks, 2)
			got := []int{peaks[0].Index, peaks[1].Index}
			if got[0] > got[1] {
				got[0], got[1] = got[1], got[0]
			}
			assert.InDelta(t, 24, got[0], 1)
			assert.InDelta(t, 90, got[1], 1)

			pm, pb, pd := psr(music), psr(bartlett), psr(delaySum)
			t.Logf("peak to sidelobe: music=%.3g bartlett=%.3g delaysum=%.3g", pm, pb, pd)
			assert.Greater(t, pm, pb)
			assert.Greater(t, pm, pd)
		})
	}
}

func TestEveryAlgorithmNormalizes(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	elements := geometry.UniformRectangular(2, 3, 0.5)
	grid := geometry.ScanGrid{
		InclinationRange: [2]float64{0, math.Pi / 2}, InclinationResolution: 19,
		AzimuthRange: [2]float64{-math.Pi, math.Pi}, AzimuthResolution: 37,
	}
	block := randomBlock(rng, 128, len(elements))
	noise := hermitianPD(rng, len(elements))
	constraints := hermitianPD(rng, len(elements))
	m, err := geometry.NewManifold(elements, grid, designK)
	require.NoError(t, err)

	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			est, err := NewEstimatorWithManifold(Config{
				Algorithm:       alg,
				NumSources:      2,
				NoiseCovariance: noise,
				Constraints:     constraints,
			}, m, nil)
			require.NoError(t, err)
			s, err := est.Process(block)
			require.NoError(t, err)
			requireNormalized(t, s, grid.Len())
		})
	}
}

func TestDimensionMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	m, err := geometry.NewManifold(geometry.UniformLinear(4, 0.5), geometry.LineGrid(0, math.Pi, 16, 0), designK)
	require.NoError(t, err)
	block := randomBlock(rng, 32, 3)
	cov, err := Covariance(block)
	require.NoError(t, err)
	side := identity(3)

	calls := map[string]func() error{
		"delaysum": func() error { _, err := DelaySum(nil, block, m); return err },
		"bartlett": func() error { _, err := Bartlett(nil, cov, m); return err },
		"mvdr":     func() error { _, err := MVDR(nil, cov, m); return err },
		"msnr":     func() error { _, err := MSNR(nil, cov, m, side); return err },
		"lcmv":     func() error { _, err := LCMV(nil, cov, m, side); return err },
		"music":    func() error { _, err := Music(nil, block, m, 1); return err },
	}
	for name, call := range calls {
		assert.ErrorIs(t, call(), ErrDimensionMismatch, name)
	}

	for _, alg := range Algorithms() {
		est, err := NewEstimatorWithManifold(Config{
			Algorithm:       alg,
			NumSources:      1,
			NoiseCovariance: identity(4),
			Constraints:     identity(4),
		}, m, nil)
		require.NoError(t, err)
		_, err = est.Process(block)
		assert.ErrorIs(t, err, ErrDimensionMismatch, alg.String())
	}

	// Side information sized for the wrong array.
	full := randomBlock(rng, 32, 4)
	fullCov, err := Covariance(full)
	require.NoError(t, err)
	_, err = MSNR(nil, fullCov, m, side)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = LCMV(nil, fullCov, m, side)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSingularMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	m, err := geometry.NewManifold(geometry.UniformLinear(4, 0.5), geometry.LineGrid(0, math.Pi, 32, 0), designK)
	require.NoError(t, err)

	// Two snapshots of four channels: rank one after mean removal.
	short, err := Covariance(randomBlock(rng, 2, 4))
	require.NoError(t, err)
	zeroBlock, err := NewSignalBlock(make2D(16, 4))
	require.NoError(t, err)
	zeroCov, err := Covariance(zeroBlock)
	require.NoError(t, err)
	good, err := Covariance(randomBlock(rng, 64, 4))
	require.NoError(t, err)

	v := mat.NewCDense(4, 1, []complex128{1, 1i, -1, 2})
	rankOne := mat.NewCDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rankOne.Set(i, j, v.At(i, 0)*complexConj(v.At(j, 0)))
		}
	}

	for _, la := range backends() {
		t.Run(la.Name(), func(t *testing.T) {
			_, err := MVDR(la, short, m)
			assert.ErrorIs(t, err, ErrSingularMatrix)
			_, err = MVDR(la, zeroCov, m)
			assert.ErrorIs(t, err, ErrSingularMatrix)
			_, err = MSNR(la, good, m, mat.NewCDense(4, 4, nil))
			assert.ErrorIs(t, err, ErrSingularMatrix)
			_, err = MSNR(la, good, m, rankOne)
			assert.ErrorIs(t, err, ErrSingularMatrix)
			_, err = LCMV(la, good, m, rankOne)
			assert.ErrorIs(t, err, ErrSingularMatrix)
			_, err = LCMV(la, good, m, mat.NewCDense(4, 4, nil))
			assert.ErrorIs(t, err, ErrSingularMatrix)

			_, err = MVDR(la, good, m)
			assert.NoError(t, err)
		})
	}
}

func TestAllZeroSpectrum(t *testing.T) {
	m, err := geometry.NewManifold(geometry.UniformLinear(4, 0.5), geometry.LineGrid(0, math.Pi, 32, 0), designK)
	require.NoError(t, err)
	zero, err := NewSignalBlock(make2D(16, 4))
	require.NoError(t, err)

	_, err = DelaySum(nil, zero, m)
	assert.ErrorIs(t, err, ErrAllZeroSpectrum)

	cov, err := Covariance(zero)
	require.NoError(t, err)
	_, err = Bartlett(nil, cov, m)
	assert.ErrorIs(t, err, ErrAllZeroSpectrum)
}

func TestIndefiniteSideInfo(t *testing.T) {
	m, err := geometry.NewManifold(geometry.UniformLinear(2, 0.5), geometry.LineGrid(0, math.Pi, 32, 0), designK)
	require.NoError(t, err)
	cov := identity(2)
	// Inverse is diag(1, -2): aᴴN⁻¹a = -1 at every scan point.
	indefinite := mat.NewCDense(2, 2, []complex128{1, 0, 0, -0.5})

	for _, la := range backends() {
		t.Run(la.Name(), func(t *testing.T) {
			_, err := MSNR(la, cov, m, indefinite)
			assert.ErrorIs(t, err, ErrNegativeSpectrum)
			_, err = LCMV(la, cov, m, indefinite)
			assert.ErrorIs(t, err, ErrNegativeSpectrum)
		})
	}
}

func TestInsufficientSamples(t *testing.T) {
	m, err := geometry.NewManifold(geometry.UniformLinear(4, 0.5), geometry.LineGrid(0, math.Pi, 8, 0), designK)
	require.NoError(t, err)
	one, err := NewSignalBlock([][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)

	_, err = Covariance(one)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
	_, err = DelaySum(nil, one, m)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
	_, err = Music(nil, one, m, 1)
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	est, err := NewEstimatorWithManifold(Config{Algorithm: AlgorithmMVDR}, m, nil)
	require.NoError(t, err)
	_, err = est.Process(one)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestBackendsAgree(t *testing.T) {
	elements := geometry.UniformLinear(6, 0.5)
	grid := geometry.LineGrid(0, math.Pi/2, 91, 0)
	m, err := geometry.NewManifold(elements, grid, designK)
	require.NoError(t, err)
	block := planeWaves(t, elements, []tone{{inclination: 0.4, cycles: 5, amplitude: 1}, {inclination: 1.1, cycles: 9, amplitude: 0.7}}, 256, 0.1, 4, true)
	cov, err := Covariance(block)
	require.NoError(t, err)

	type result struct{ music, mvdr Spectrum }
	get := func(la linalg.Backend) result {
		music, err := Music(la, block, m, 2)
		require.NoError(t, err)
		mvdr, err := MVDR(la, cov, m)
		require.NoError(t, err)
		return result{music, mvdr}
	}
	g, n := get(&linalg.Gonum{}), get(&linalg.Native{})
	opt := cmpopts.EquateApprox(1e-6, 1e-9)
	if diff := cmp.Diff(g.music, n.music, opt); diff != "" {
		t.Errorf("music differs between backends (-gonum +native):\n%s", diff)
	}
	if diff := cmp.Diff(g.mvdr, n.mvdr, opt); diff != "" {
		t.Errorf("mvdr differs between backends (-gonum +native):\n%s", diff)
	}
}

func make2D(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

func complexConj(v complex128) complex128 { return complex(real(v), -imag(v)) }

func BenchmarkEstimators(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	elements := geometry.UniformLinear(8, 0.5)
	m, err := geometry.NewManifold(elements, geometry.LineGrid(0, math.Pi, 721, 0), designK)
	if err != nil {
		b.Fatal(err)
	}
	block := randomBlock(rng, 1024, len(elements))
	side := hermitianPD(rng, len(elements))
	for _, alg := range Algorithms() {
		est, err := NewEstimatorWithManifold(Config{Algorithm: alg, NumSources: 2, NoiseCovariance: side, Constraints: side}, m, nil)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(alg.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := est.Process(block); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
