package telemetry

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var heatColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleChart renders the latest spectrum as HTML: a line over the varying
// axis for one-dimensional grids, a heat map over azimuth and inclination
// otherwise.
func (h *Hub) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := h.Latest()
	if !ok {
		http.Error(w, "no spectrum yet", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := renderChart(&buf, snap); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func renderChart(buf *bytes.Buffer, snap SpectrumSnapshot) error {
	title := opts.Title{
		Title:    fmt.Sprintf("%s spectrum", snap.Algorithm),
		Subtitle: fmt.Sprintf("run=%s block=%d %s", snap.RunID, snap.Block, snap.Timestamp.Format(time.RFC3339)),
	}
	init := opts.Initialization{PageTitle: "DoA spectrum", Width: "100%", Height: "720px"}

	rows, cols := len(snap.Inclinations), len(snap.Azimuths)
	if rows == 1 || cols == 1 {
		axis, name := snap.Inclinations, "inclination (deg)"
		if rows == 1 {
			axis, name = snap.Azimuths, "azimuth (deg)"
		}
		labels := make([]string, len(axis))
		data := make([]opts.LineData, len(axis))
		for i, v := range axis {
			labels[i] = fmt.Sprintf("%.1f", degrees(v))
			if rows == 1 {
				data[i] = opts.LineData{Value: snap.Values[0][i]}
			} else {
				data[i] = opts.LineData{Value: snap.Values[i][0]}
			}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(init),
			charts.WithTitleOpts(title),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: name, NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "power", Min: 0, Max: 1}),
		)
		line.SetXAxis(labels).AddSeries("spectrum", data)
		return line.Render(buf)
	}

	azLabels := make([]string, cols)
	for i, v := range snap.Azimuths {
		azLabels[i] = fmt.Sprintf("%.1f", degrees(v))
	}
	incLabels := make([]string, rows)
	for i, v := range snap.Inclinations {
		incLabels[i] = fmt.Sprintf("%.1f", degrees(v))
	}
	data := make([]opts.HeatMapData, 0, rows*cols)
	for i, row := range snap.Values {
		for j, v := range row {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
		}
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "azimuth (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: incLabels, Name: "inclination (deg)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(azLabels).AddSeries("spectrum", data)
	return hm.Render(buf)
}
