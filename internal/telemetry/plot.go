package telemetry

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/geometry"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SavePlot writes a spectrum plot to path. The format follows the file
// extension (png, svg, pdf, ...).
func SavePlot(path string, s doa.Spectrum, grid geometry.ScanGrid, title string) error {
	p, err := spectrumPlot(s, grid, title)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// WritePlot renders a spectrum plot as PNG.
func WritePlot(w io.Writer, s doa.Spectrum, grid geometry.ScanGrid, title string) error {
	p, err := spectrumPlot(s, grid, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func spectrumPlot(s doa.Spectrum, grid geometry.ScanGrid, title string) (*plot.Plot, error) {
	if len(s) != grid.Len() || len(s) == 0 {
		return nil, fmt.Errorf("plot: spectrum has %d points, grid %d", len(s), grid.Len())
	}
	p := plot.New()
	p.Title.Text = title

	rows, cols := grid.InclinationResolution, grid.AzimuthResolution
	if rows == 1 || cols == 1 {
		axis := grid.Inclinations()
		p.X.Label.Text = "inclination (deg)"
		if rows == 1 {
			axis = grid.Azimuths()
			p.X.Label.Text = "azimuth (deg)"
		}
		p.Y.Label.Text = "normalized power"
		pts := make(plotter.XYs, len(s))
		for i, v := range s {
			pts[i] = plotter.XY{X: degrees(axis[i]), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line, plotter.NewGrid())
		return p, nil
	}

	p.X.Label.Text = "azimuth (deg)"
	p.Y.Label.Text = "inclination (deg)"
	hm := plotter.NewHeatMap(spectrumGrid{
		values: grid.Reshape(s),
		inc:    grid.Inclinations(),
		az:     grid.Azimuths(),
	}, palette.Heat(12, 1))
	p.Add(hm)
	return p, nil
}

// spectrumGrid adapts a reshaped spectrum to plotter.GridXYZ: columns are
// azimuths and rows inclinations, both in degrees.
type spectrumGrid struct {
	values  [][]float64
	inc, az []float64
}

func (g spectrumGrid) Dims() (c, r int)   { return len(g.az), len(g.inc) }
func (g spectrumGrid) Z(c, r int) float64 { return g.values[r][c] }
func (g spectrumGrid) X(c int) float64    { return degrees(g.az[c]) }
func (g spectrumGrid) Y(r int) float64    { return degrees(g.inc[r]) }
