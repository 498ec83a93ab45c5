package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rjboer/GoDOA/internal/app"
	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/dsp"
	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
	"github.com/rjboer/GoDOA/internal/logging"
	"github.com/rjboer/GoDOA/internal/sim"
	"github.com/rjboer/GoDOA/internal/telemetry"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// sidelobeGuard is the half-width, in grid points, excluded around each
// peak when measuring peak-to-sidelobe ratios in compare mode.
const sidelobeGuard = 3

func main() {
	const configPath = "doa.json"

	persistentCfg, err := loadOrCreateConfig(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv, persistentCfg)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	if err := saveConfig(configPath, persistentFromCLI(cfg)); err != nil {
		log.Fatalf("save config: %v", err)
	}

	logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stderr)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("doa failed", logging.Field{Key: "error", Value: err})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliConfig, logger logging.Logger) error {
	la, err := linalg.Lookup(cfg.linalg)
	if err != nil {
		return err
	}
	linalg.SetDefault(la)

	elements, wavenumber, err := buildArray(cfg)
	if err != nil {
		return fmt.Errorf("build array: %w", err)
	}
	manifold, err := geometry.NewManifold(elements, buildGrid(cfg), wavenumber)
	if err != nil {
		return fmt.Errorf("build manifold: %w", err)
	}

	side, err := loadSideInfo(cfg.sideInfo, manifold.Len())
	if err != nil {
		return err
	}

	source, err := openSource(cfg, elements, wavenumber)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	if cfg.compare {
		return compare(ctx, cfg, source, manifold, side, la, logger)
	}

	est, err := doa.NewEstimatorWithManifold(estimatorConfig(cfg, cfg.algorithm, side, la), manifold, logger)
	if err != nil {
		return err
	}

	last := &lastResult{}
	reporters := telemetry.MultiReporter{last}
	var web *telemetry.WebServer
	if cfg.webAddr != "" {
		hub := telemetry.NewHub(cfg.historyLimit, logger)
		reporters = append(reporters, hub)
		web = telemetry.NewWebServer(cfg.webAddr, hub, logger)
	} else {
		// Fallback to stdout if no web interface
		reporters = append(reporters, telemetry.NewStdoutReporter(logger))
	}

	runner := app.NewRunner(source, est, reporters, logger, runnerConfig(cfg))

	g, gctx := errgroup.WithContext(ctx)
	if web != nil {
		g.Go(func() error { return web.Start(gctx) })
	}
	g.Go(func() error {
		if err := runner.Run(gctx); err != nil {
			return err
		}
		if err := writePlot(cfg.plotPath, last, logger); err != nil {
			return err
		}
		if web != nil {
			logger.Info("source finished, serving results until interrupted",
				logging.Field{Key: "blocks", Value: runner.Blocks()})
			<-gctx.Done()
		}
		return nil
	})
	return g.Wait()
}

func openSource(cfg cliConfig, elements []geometry.Element, wavenumber float64) (sim.Source, error) {
	if cfg.input != "" {
		return sim.OpenCSV(cfg.input, len(elements), cfg.blockSize)
	}
	tones, err := parseTones(cfg.tones)
	if err != nil {
		return nil, err
	}
	return sim.NewSimulator(sim.Config{
		Elements:   elements,
		Wavenumber: wavenumber,
		Speed:      cfg.speed,
		SampleRate: cfg.sampleRate,
		BlockSize:  cfg.blockSize,
		SNRdB:      cfg.snrDB,
		Tones:      tones,
		Normalize:  cfg.normalize,
		Seed:       cfg.seed,
		Pace:       cfg.pace,
	})
}

// estimatorConfig hands the side information to the algorithm that reads it:
// MSNR takes it as the noise covariance, LCMV as the constraint matrix.
func estimatorConfig(cfg cliConfig, alg doa.Algorithm, side *mat.CDense, la linalg.Backend) doa.Config {
	c := doa.Config{Algorithm: alg, NumSources: cfg.numSources, Backend: la}
	switch alg {
	case doa.AlgorithmMSNR:
		c.NoiseCovariance = side
	case doa.AlgorithmLCMV:
		c.Constraints = side
	}
	return c
}

func needsSideInfo(alg doa.Algorithm) bool {
	return alg == doa.AlgorithmMSNR || alg == doa.AlgorithmLCMV
}

// loadSideInfo reads the optional N×N side-information matrix.
func loadSideInfo(path string, n int) (*mat.CDense, error) {
	if path == "" {
		return nil, nil
	}
	side, err := sim.OpenMatrixCSV(path)
	if err != nil {
		return nil, fmt.Errorf("%w: side information: %v", doa.ErrConfiguration, err)
	}
	if r, _ := side.Dims(); r != n {
		return nil, fmt.Errorf("%w: side information is %dx%d, array has %d elements", doa.ErrDimensionMismatch, r, r, n)
	}
	return side, nil
}

func runnerConfig(cfg cliConfig) app.Config {
	return app.Config{
		RemoveDC:        cfg.removeDC,
		Analytic:        cfg.analytic,
		MaxBlocks:       cfg.maxBlocks,
		MaxPeaks:        cfg.maxPeaks,
		ContinueOnError: cfg.continueOnError,
		SampleRate:      cfg.sampleRate,
	}
}

// compare runs every algorithm on the same block over one shared manifold.
// MSNR and LCMV are skipped without side information.
func compare(ctx context.Context, cfg cliConfig, source sim.Source, manifold *geometry.Manifold, side *mat.CDense, la linalg.Backend, logger logging.Logger) error {
	block, err := source.Read(ctx)
	if err != nil {
		return fmt.Errorf("read block: %w", err)
	}
	rc := runnerConfig(cfg)
	if rc.RemoveDC {
		// Runners would otherwise modify the shared block concurrently.
		dsp.RemoveDC(block)
		rc.RemoveDC = false
	}

	var algs []doa.Algorithm
	for _, alg := range doa.Algorithms() {
		if needsSideInfo(alg) && side == nil {
			logger.Info("algorithm skipped, no side information", logging.Field{Key: "algorithm", Value: alg.String()})
			continue
		}
		algs = append(algs, alg)
	}
	results := make([]telemetry.Result, len(algs))
	failures := make([]error, len(algs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, alg := range algs {
		i, alg := i, alg
		g.Go(func() error {
			est, err := doa.NewEstimatorWithManifold(estimatorConfig(cfg, alg, side, la), manifold, logger)
			if err != nil {
				failures[i] = err
				return nil
			}
			res, err := app.NewRunner(source, est, nil, logger, rc).Process(block)
			failures[i] = err
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stdout := telemetry.NewStdoutReporter(logger)
	var errs []error
	for i, alg := range algs {
		if failures[i] != nil {
			logger.Warn("algorithm failed", logging.Field{Key: "algorithm", Value: alg.String()}, logging.Field{Key: "error", Value: failures[i]})
			errs = append(errs, fmt.Errorf("%s: %w", alg, failures[i]))
			continue
		}
		res := results[i]
		stdout.Report(res)
		logger.Info("peak to sidelobe",
			logging.Field{Key: "algorithm", Value: alg.String()},
			logging.Field{Key: "ratio", Value: doa.PeakToSidelobe(res.Spectrum, res.Grid, res.Peaks, sidelobeGuard)})
		if cfg.plotPath != "" {
			path := suffixPath(cfg.plotPath, alg.String())
			if err := telemetry.SavePlot(path, res.Spectrum, res.Grid, alg.String()); err != nil {
				return fmt.Errorf("save plot: %w", err)
			}
		}
	}
	if len(errs) == len(algs) {
		return errors.Join(errs...)
	}
	return nil
}

func suffixPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + suffix + ext
}

func writePlot(path string, last *lastResult, logger logging.Logger) error {
	if path == "" {
		return nil
	}
	res, ok := last.get()
	if !ok {
		logger.Warn("no spectrum to plot")
		return nil
	}
	if err := telemetry.SavePlot(path, res.Spectrum, res.Grid, fmt.Sprintf("%s, block %d", res.Algorithm, res.Block)); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	logger.Info("spectrum plot written", logging.Field{Key: "path", Value: path})
	return nil
}

// lastResult keeps the most recent result for the final plot.
type lastResult struct {
	mu  sync.Mutex
	res telemetry.Result
	ok  bool
}

func (l *lastResult) Report(res telemetry.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.res, l.ok = res, true
}

func (l *lastResult) get() (telemetry.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.res, l.ok
}
