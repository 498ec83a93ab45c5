package geometry

import (
	"fmt"
	"math"
)

// ScanGrid defines the directions a spectrum is evaluated at. Both axes are
// sampled inclusively (linspace). Points are enumerated inclination-major:
// the azimuth index varies fastest, so point j sits at
// (j / AzimuthResolution, j % AzimuthResolution). Reshape relies on this.
type ScanGrid struct {
	InclinationRange      [2]float64 `json:"inclination_range"`
	InclinationResolution int        `json:"inclination_resolution"`
	AzimuthRange          [2]float64 `json:"azimuth_range"`
	AzimuthResolution     int        `json:"azimuth_resolution"`
}

// LineGrid scans inclination over [from, to] at a fixed azimuth.
func LineGrid(from, to float64, points int, azimuth float64) ScanGrid {
	return ScanGrid{
		InclinationRange:      [2]float64{from, to},
		InclinationResolution: points,
		AzimuthRange:          [2]float64{azimuth, azimuth},
		AzimuthResolution:     1,
	}
}

// Validate checks resolutions and bounds.
func (g ScanGrid) Validate() error {
	if g.InclinationResolution < 1 || g.AzimuthResolution < 1 {
		return fmt.Errorf("%w: scan grid resolution must be >= 1 (inclination=%d azimuth=%d)",
			ErrConfiguration, g.InclinationResolution, g.AzimuthResolution)
	}
	for _, v := range []float64{g.InclinationRange[0], g.InclinationRange[1], g.AzimuthRange[0], g.AzimuthRange[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: scan grid bounds must be finite", ErrConfiguration)
		}
	}
	return nil
}

// Len returns the number of scan points.
func (g ScanGrid) Len() int {
	return g.InclinationResolution * g.AzimuthResolution
}

// Inclinations returns the inclination axis values.
func (g ScanGrid) Inclinations() []float64 {
	return linspace(g.InclinationRange[0], g.InclinationRange[1], g.InclinationResolution)
}

// Azimuths returns the azimuth axis values.
func (g ScanGrid) Azimuths() []float64 {
	return linspace(g.AzimuthRange[0], g.AzimuthRange[1], g.AzimuthResolution)
}

// Index maps axis indices to the flat scan point index.
func (g ScanGrid) Index(inclination, azimuth int) int {
	return inclination*g.AzimuthResolution + azimuth
}

// Point returns the (inclination, azimuth) pair of scan point j.
func (g ScanGrid) Point(j int) (inclination, azimuth float64) {
	i, a := j/g.AzimuthResolution, j%g.AzimuthResolution
	return linspaceAt(g.InclinationRange[0], g.InclinationRange[1], g.InclinationResolution, i),
		linspaceAt(g.AzimuthRange[0], g.AzimuthRange[1], g.AzimuthResolution, a)
}

// Reshape lays a per-point vector out as rows of inclinations and columns of
// azimuths. It panics if len(values) != g.Len().
func (g ScanGrid) Reshape(values []float64) [][]float64 {
	if len(values) != g.Len() {
		panic(fmt.Sprintf("geometry: reshape of %d values onto %d scan points", len(values), g.Len()))
	}
	out := make([][]float64, g.InclinationResolution)
	for i := range out {
		row := make([]float64, g.AzimuthResolution)
		copy(row, values[i*g.AzimuthResolution:(i+1)*g.AzimuthResolution])
		out[i] = row
	}
	return out
}

func linspace(from, to float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = linspaceAt(from, to, n, i)
	}
	return out
}

func linspaceAt(from, to float64, n, i int) float64 {
	if n == 1 {
		return from
	}
	if i == n-1 {
		return to
	}
	return from + (to-from)*float64(i)/float64(n-1)
}
