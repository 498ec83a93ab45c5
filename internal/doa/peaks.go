package doa

import (
	"fmt"
	"math"
	"sort"

	"github.com/rjboer/GoDOA/internal/geometry"
)

// Peak is a local maximum of a spectrum.
type Peak struct {
	Index       int     `json:"index"`
	Inclination float64 `json:"inclination"`
	Azimuth     float64 `json:"azimuth"`
	Value       float64 `json:"value"`
}

// Peaks returns up to limit local maxima of s over the inclination×azimuth
// neighbourhood of grid, largest first. A limit of zero or less returns all of
// them. On a plateau only the first point in grid order is reported.
func Peaks(s Spectrum, grid geometry.ScanGrid, limit int) ([]Peak, error) {
	if len(s) != grid.Len() {
		return nil, fmt.Errorf("peaks: %w: spectrum has %d points, grid %d", ErrDimensionMismatch, len(s), grid.Len())
	}
	rows, cols := grid.InclinationResolution, grid.AzimuthResolution
	var out []Peak
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			j := grid.Index(r, c)
			if s[j] > 0 && isLocalMax(s, grid, r, c) {
				inc, az := grid.Point(j)
				out = append(out, Peak{Index: j, Inclination: inc, Azimuth: az, Value: s[j]})
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func isLocalMax(s Spectrum, grid geometry.ScanGrid, r, c int) bool {
	j := grid.Index(r, c)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			nr, nc := r+dr, c+dc
			if (dr == 0 && dc == 0) || nr < 0 || nc < 0 || nr >= grid.InclinationResolution || nc >= grid.AzimuthResolution {
				continue
			}
			q := grid.Index(nr, nc)
			if q < j && s[q] >= s[j] {
				return false
			}
			if q > j && s[q] > s[j] {
				return false
			}
		}
	}
	return true
}

// PeakToSidelobe returns the weakest listed peak divided by the strongest
// value lying more than guard grid steps (in both inclination and azimuth
// index) away from every peak. It is +Inf when nothing is left outside the
// guard regions or that remainder is all zero.
func PeakToSidelobe(s Spectrum, grid geometry.ScanGrid, peaks []Peak, guard int) float64 {
	if len(peaks) == 0 || len(s) != grid.Len() {
		return 0
	}
	lowest := math.Inf(1)
	for _, p := range peaks {
		lowest = math.Min(lowest, p.Value)
	}
	cols := grid.AzimuthResolution
	var side float64
	for j, v := range s {
		r, c := j/cols, j%cols
		near := false
		for _, p := range peaks {
			pr, pc := p.Index/cols, p.Index%cols
			if abs(r-pr) <= guard && abs(c-pc) <= guard {
				near = true
				break
			}
		}
		if !near && v > side {
			side = v
		}
	}
	if side == 0 {
		return math.Inf(1)
	}
	return lowest / side
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
