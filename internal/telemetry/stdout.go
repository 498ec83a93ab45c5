package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/logging"
)

// Result is the outcome of estimating one block.
type Result struct {
	RunID     string            `json:"runId"`
	Block     int               `json:"block"`
	Timestamp time.Time         `json:"timestamp"`
	Algorithm string            `json:"algorithm"`
	Peaks     []doa.Peak        `json:"peaks"`
	ToneHz    float64           `json:"toneHz,omitempty"`
	Duration  time.Duration     `json:"durationNs"`
	Spectrum  doa.Spectrum      `json:"-"`
	Grid      geometry.ScanGrid `json:"-"`
}

// Reporter captures estimation results.
type Reporter interface {
	Report(Result)
}

// StdoutReporter logs one line per result.
type StdoutReporter struct {
	logger logging.Logger
}

// NewStdoutReporter builds a stdout reporter with the provided logger.
func NewStdoutReporter(logger logging.Logger) StdoutReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return StdoutReporter{logger: logger}
}

func (r StdoutReporter) Report(res Result) {
	fields := []logging.Field{
		{Key: "subsystem", Value: "telemetry"},
		{Key: "run", Value: res.RunID},
		{Key: "block", Value: res.Block},
		{Key: "algorithm", Value: res.Algorithm},
		{Key: "duration_ms", Value: res.Duration.Seconds() * 1000},
	}
	if res.ToneHz != 0 {
		fields = append(fields, logging.Field{Key: "tone_hz", Value: res.ToneHz})
	}
	for i, p := range res.Peaks {
		fields = append(fields, logging.Field{
			Key:   fmt.Sprintf("peak_%d", i),
			Value: fmt.Sprintf("inc=%.2f° az=%.2f° p=%.3f", degrees(p.Inclination), degrees(p.Azimuth), p.Value),
		})
	}
	r.logger.Info("spectrum estimate", fields...)
}

// MultiReporter fans out results to multiple destinations.
type MultiReporter []Reporter

// Report forwards the result to each configured reporter.
func (m MultiReporter) Report(res Result) {
	for _, r := range m {
		if r != nil {
			r.Report(res)
		}
	}
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
