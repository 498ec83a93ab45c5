package app

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/logging"
	"github.com/rjboer/GoDOA/internal/sim"
	"github.com/rjboer/GoDOA/internal/telemetry"
	"gonum.org/v1/gonum/mat"
)

type recordingReporter struct {
	mu      sync.Mutex
	results []telemetry.Result
}

func (r *recordingReporter) Report(res telemetry.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

type zeroSource struct{ channels int }

func (s zeroSource) Read(context.Context) (*mat.Dense, error) {
	return mat.NewDense(8, s.channels, nil), nil
}
func (s zeroSource) Channels() int { return s.channels }
func (s zeroSource) Close() error  { return nil }

var quiet = logging.New(logging.Debug, logging.Text, io.Discard)

func newEstimator(t *testing.T, elements []geometry.Element, grid geometry.ScanGrid, alg doa.Algorithm, sources int) *doa.Estimator {
	t.Helper()
	est, err := doa.NewEstimator(doa.Config{
		Elements:   elements,
		Grid:       grid,
		Wavenumber: 2 * math.Pi,
		Algorithm:  alg,
		NumSources: sources,
	}, quiet)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	return est
}

func TestRunnerLocatesSimulatedSource(t *testing.T) {
	elements := geometry.UniformLinear(4, 0.5)
	src, err := sim.NewSimulator(sim.Config{
		Elements:   elements,
		Wavenumber: 2 * math.Pi,
		SampleRate: 8000,
		BlockSize:  512,
		SNRdB:      20,
		Tones:      []sim.Tone{{Inclination: math.Pi / 3, FrequencyHz: 500, Amplitude: 1}},
		Seed:       5,
	})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	defer src.Close()

	// One degree per point; the source sits on point 60.
	grid := geometry.LineGrid(0, math.Pi/2, 91, 0)
	reporter := &recordingReporter{}
	runner := NewRunner(src, newEstimator(t, elements, grid, doa.AlgorithmMusic, 1), reporter, quiet, Config{
		RemoveDC:   true,
		Analytic:   true,
		MaxBlocks:  3,
		MaxPeaks:   1,
		SampleRate: 8000,
	})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(reporter.results) != 3 || runner.Blocks() != 3 {
		t.Fatalf("expected 3 results, got %d (blocks %d)", len(reporter.results), runner.Blocks())
	}
	if _, err := uuid.Parse(runner.RunID()); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", runner.RunID(), err)
	}
	for i, res := range reporter.results {
		if res.Block != i || res.RunID != runner.RunID() || res.Algorithm != "music" {
			t.Fatalf("unexpected result header %+v", res)
		}
		if len(res.Peaks) != 1 {
			t.Fatalf("block %d: expected one peak, got %d", i, len(res.Peaks))
		}
		if idx := res.Peaks[0].Index; idx < 59 || idx > 61 {
			t.Fatalf("block %d: peak at %d (%.1f°), want 60", i, idx, res.Peaks[0].Inclination*180/math.Pi)
		}
		if math.Abs(res.ToneHz-500) > 10 {
			t.Fatalf("block %d: tone %.1f Hz, want 500", i, res.ToneHz)
		}
		if len(res.Spectrum) != grid.Len() || res.Duration <= 0 {
			t.Fatalf("block %d: spectrum %d points, duration %v", i, len(res.Spectrum), res.Duration)
		}
	}
}

func TestRunnerStopsAtEndOfInput(t *testing.T) {
	input := "# two channels\n1,0.5\n-1,-0.5\n0.8,0.2\n-0.8,-0.2\n0.3,0.1\n"
	src, err := sim.NewCSVSource(strings.NewReader(input), 2, 2)
	if err != nil {
		t.Fatalf("csv source: %v", err)
	}
	reporter := &recordingReporter{}
	est := newEstimator(t, geometry.UniformLinear(2, 0.5), geometry.LineGrid(0, math.Pi, 31, 0), doa.AlgorithmBartlett, 0)
	runner := NewRunner(src, est, reporter, quiet, Config{})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// The trailing partial block is dropped.
	if len(reporter.results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(reporter.results))
	}
}

func TestRunnerChannelMismatch(t *testing.T) {
	est := newEstimator(t, geometry.UniformLinear(4, 0.5), geometry.LineGrid(0, math.Pi, 31, 0), doa.AlgorithmBartlett, 0)
	runner := NewRunner(zeroSource{channels: 3}, est, nil, quiet, Config{})
	if err := runner.Run(context.Background()); !errors.Is(err, doa.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestRunnerEstimationErrors(t *testing.T) {
	est := newEstimator(t, geometry.UniformLinear(2, 0.5), geometry.LineGrid(0, math.Pi, 31, 0), doa.AlgorithmBartlett, 0)

	runner := NewRunner(zeroSource{channels: 2}, est, nil, quiet, Config{MaxBlocks: 3})
	if err := runner.Run(context.Background()); !errors.Is(err, doa.ErrAllZeroSpectrum) {
		t.Fatalf("expected all-zero spectrum error, got %v", err)
	}

	reporter := &recordingReporter{}
	runner = NewRunner(zeroSource{channels: 2}, est, reporter, quiet, Config{MaxBlocks: 3, ContinueOnError: true})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("expected failures to be skipped, got %v", err)
	}
	if runner.Blocks() != 3 || len(reporter.results) != 0 {
		t.Fatalf("expected 3 blocks and no results, got %d and %d", runner.Blocks(), len(reporter.results))
	}
}

func TestRunnerCanceled(t *testing.T) {
	elements := geometry.UniformLinear(2, 0.5)
	src, err := sim.NewSimulator(sim.Config{Elements: elements, Wavenumber: 2 * math.Pi, Pace: true})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	est := newEstimator(t, elements, geometry.LineGrid(0, math.Pi, 31, 0), doa.AlgorithmDelaySum, 0)
	runner := NewRunner(src, est, nil, quiet, Config{})
	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerReportsThroughHub(t *testing.T) {
	elements := geometry.UniformRectangular(2, 2, 0.5)
	src, err := sim.NewSimulator(sim.Config{
		Elements:   elements,
		Wavenumber: 2 * math.Pi,
		BlockSize:  256,
		SNRdB:      30,
		Tones:      []sim.Tone{{Inclination: math.Pi / 4, Azimuth: math.Pi / 2, FrequencyHz: 3000, Amplitude: 1}},
		Seed:       2,
	})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	grid := geometry.ScanGrid{
		InclinationRange: [2]float64{0, math.Pi / 2}, InclinationResolution: 10,
		AzimuthRange: [2]float64{-math.Pi, math.Pi}, AzimuthResolution: 24,
	}
	hub := telemetry.NewHub(5, quiet)
	runner := NewRunner(src, newEstimator(t, elements, grid, doa.AlgorithmMVDR, 0), hub, quiet, Config{Analytic: true, MaxBlocks: 2})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	snap, ok := hub.Latest()
	if !ok {
		t.Fatal("hub has no spectrum")
	}
	if snap.Block != 1 || len(snap.Values) != 10 || len(snap.Values[0]) != 24 {
		t.Fatalf("unexpected snapshot block %d shape %dx%d", snap.Block, len(snap.Values), len(snap.Values[0]))
	}
}
