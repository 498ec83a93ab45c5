package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/dsp"
	"github.com/rjboer/GoDOA/internal/logging"
	"github.com/rjboer/GoDOA/internal/sim"
	"github.com/rjboer/GoDOA/internal/telemetry"
	"gonum.org/v1/gonum/mat"
)

// Config captures application level configuration.
type Config struct {
	// RemoveDC subtracts each channel's mean before estimation.
	RemoveDC bool
	// Analytic converts real blocks to their analytic signal, which removes
	// the mirrored spectral component of real tones.
	Analytic bool
	// MaxBlocks stops the loop after that many blocks; 0 runs until the
	// source is exhausted or the context is canceled.
	MaxBlocks int
	// MaxPeaks limits the peaks reported per block; 0 reports all.
	MaxPeaks int
	// ContinueOnError logs estimation failures and moves on to the next
	// block instead of stopping.
	ContinueOnError bool
	// SampleRate enables dominant tone estimation on the first channel.
	SampleRate float64
}

// Runner pulls blocks from a source through an estimator into a reporter.
type Runner struct {
	source    sim.Source
	estimator *doa.Estimator
	reporter  telemetry.Reporter
	logger    logging.Logger
	cfg       Config
	runID     string
	blocks    int
	dsp       *dsp.CachedAnalytic // Cached FFT plan for the analytic conversion
}

// NewRunner wires a source, estimator and reporter together.
func NewRunner(source sim.Source, estimator *doa.Estimator, reporter telemetry.Reporter, logger logging.Logger, cfg Config) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	runID := uuid.NewString()
	return &Runner{
		source:    source,
		estimator: estimator,
		reporter:  reporter,
		logger:    logger.With(logging.Field{Key: "run", Value: runID}),
		cfg:       cfg,
		runID:     runID,
		dsp:       dsp.NewCachedAnalytic(0),
	}
}

// RunID identifies this run in reports.
func (r *Runner) RunID() string { return r.runID }

// Blocks returns the number of blocks read so far.
func (r *Runner) Blocks() int { return r.blocks }

// Run processes blocks until the source reports io.EOF, MaxBlocks is reached
// or ctx is canceled. Reaching the end of the source is not an error.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil || r.estimator == nil {
		return fmt.Errorf("%w: runner needs a source and an estimator", doa.ErrConfiguration)
	}
	if r.source.Channels() != r.estimator.Manifold().Len() {
		return fmt.Errorf("%w: source has %d channels, array has %d elements",
			doa.ErrDimensionMismatch, r.source.Channels(), r.estimator.Manifold().Len())
	}
	r.logger.Info("run started",
		logging.Field{Key: "subsystem", Value: "runner"},
		logging.Field{Key: "algorithm", Value: r.estimator.Algorithm().String()},
		logging.Field{Key: "points", Value: r.estimator.Manifold().Points()})

	for r.cfg.MaxBlocks <= 0 || r.blocks < r.cfg.MaxBlocks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		block, err := r.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			r.logger.Info("source exhausted",
				logging.Field{Key: "subsystem", Value: "runner"},
				logging.Field{Key: "blocks", Value: r.blocks})
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read block: %w", err)
		}
		index := r.blocks
		r.blocks++

		res, err := r.Process(block)
		if err != nil {
			if r.cfg.ContinueOnError {
				r.logger.Warn("estimation failed",
					logging.Field{Key: "subsystem", Value: "runner"},
					logging.Field{Key: "block", Value: index},
					logging.Field{Key: "error", Value: err})
				continue
			}
			return fmt.Errorf("block %d: %w", index, err)
		}
		res.Block = index
		if r.reporter != nil {
			r.reporter.Report(res)
		}
	}
	return nil
}

// Process estimates one raw block without reporting it. The block is
// modified in place when RemoveDC is set.
func (r *Runner) Process(block *mat.Dense) (telemetry.Result, error) {
	start := time.Now()
	if r.cfg.RemoveDC {
		dsp.RemoveDC(block)
	}

	res := telemetry.Result{
		RunID:     r.runID,
		Timestamp: start,
		Algorithm: r.estimator.Algorithm().String(),
		Grid:      r.estimator.Config().Grid,
	}
	if r.cfg.SampleRate > 0 {
		tone, err := dsp.DominantFrequency(mat.Col(nil, 0, block), r.cfg.SampleRate)
		if err != nil {
			r.logger.Debug("tone estimate skipped",
				logging.Field{Key: "subsystem", Value: "runner"},
				logging.Field{Key: "error", Value: err})
		}
		res.ToneHz = tone
	}

	var (
		sb  *doa.SignalBlock
		err error
	)
	if r.cfg.Analytic {
		if rows, _ := block.Dims(); rows != r.dsp.Size() {
			r.dsp.UpdateSize(rows)
		}
		sb, err = doa.BlockFromCDense(r.dsp.Block(block))
	} else {
		sb, err = doa.BlockFromDense(block)
	}
	if err != nil {
		return res, err
	}
	prepared := time.Now()

	spectrum, err := r.estimator.Process(sb)
	if err != nil {
		return res, err
	}
	peaks, err := doa.Peaks(spectrum, res.Grid, r.cfg.MaxPeaks)
	if err != nil {
		return res, err
	}
	res.Spectrum = spectrum
	res.Peaks = peaks
	res.Duration = time.Since(start)

	r.logger.Debug("block processed",
		logging.Field{Key: "subsystem", Value: "runner"},
		logging.Field{Key: "prepare_ms", Value: prepared.Sub(start).Seconds() * 1000},
		logging.Field{Key: "estimate_ms", Value: time.Since(prepared).Seconds() * 1000},
		logging.Field{Key: "peaks", Value: len(peaks)})
	return res, nil
}
