package doa

import (
	"fmt"
	"strings"
	"time"

	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/linalg"
	"github.com/rjboer/GoDOA/internal/logging"
	"gonum.org/v1/gonum/mat"
)

// Algorithm selects the spectrum estimator.
type Algorithm int

const (
	AlgorithmDelaySum Algorithm = iota
	AlgorithmBartlett
	AlgorithmMVDR
	AlgorithmMSNR
	AlgorithmLCMV
	AlgorithmMusic
)

var algorithmNames = [...]string{
	AlgorithmDelaySum: "delaysum",
	AlgorithmBartlett: "bartlett",
	AlgorithmMVDR:     "mvdr",
	AlgorithmMSNR:     "msnr",
	AlgorithmLCMV:     "lcmv",
	AlgorithmMusic:    "music",
}

// Algorithms lists every estimator in declaration order.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmDelaySum, AlgorithmBartlett, AlgorithmMVDR, AlgorithmMSNR, AlgorithmLCMV, AlgorithmMusic}
}

func (a Algorithm) String() string {
	if a < 0 || int(a) >= len(algorithmNames) {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return algorithmNames[a]
}

// ParseAlgorithm converts a name such as "mvdr" to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "delay-sum", "delay_sum", "das":
		name = "delaysum"
	case "capon":
		name = "mvdr"
	}
	for i, n := range algorithmNames {
		if n == name {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q", ErrConfiguration, s)
}

func (a Algorithm) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(algorithmNames) {
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrConfiguration, int(a))
	}
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Config is the construction-time configuration of an Estimator.
type Config struct {
	Elements   []geometry.Element
	Grid       geometry.ScanGrid
	Wavenumber float64
	Algorithm  Algorithm
	// NumSources is the assumed source count for MUSIC.
	NumSources int
	// NoiseCovariance is required by MSNR.
	NoiseCovariance *mat.CDense
	// Constraints is required by LCMV.
	Constraints *mat.CDense
	// Backend defaults to linalg.Default().
	Backend linalg.Backend
}

// Estimator turns signal blocks into spatial spectra with one algorithm over
// one manifold. Process may be called from several goroutines.
type Estimator struct {
	cfg      Config
	manifold *geometry.Manifold
	la       linalg.Backend
	logger   logging.Logger
}

// NewEstimator validates cfg and builds the (lazy) manifold it will use.
func NewEstimator(cfg Config, logger logging.Logger) (*Estimator, error) {
	m, err := geometry.NewManifold(cfg.Elements, cfg.Grid, cfg.Wavenumber)
	if err != nil {
		return nil, err
	}
	return NewEstimatorWithManifold(cfg, m, logger)
}

// NewEstimatorWithManifold shares an existing manifold. The geometry fields of
// cfg are ignored in favour of the manifold's.
func NewEstimatorWithManifold(cfg Config, m *geometry.Manifold, logger logging.Logger) (*Estimator, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil manifold", ErrConfiguration)
	}
	if err := validate(cfg, m.Len()); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.Elements = m.Elements()
	cfg.Grid = m.Grid()
	cfg.Wavenumber = m.Wavenumber()
	la := backendOrDefault(cfg.Backend)
	return &Estimator{
		cfg:      cfg,
		manifold: m,
		la:       la,
		logger: logger.With(
			logging.Field{Key: "algorithm", Value: cfg.Algorithm.String()},
			logging.Field{Key: "backend", Value: la.Name()},
		),
	}, nil
}

func validate(cfg Config, n int) error {
	if _, err := cfg.Algorithm.MarshalText(); err != nil {
		return err
	}
	switch cfg.Algorithm {
	case AlgorithmMusic:
		if cfg.NumSources <= 0 || cfg.NumSources >= n {
			return fmt.Errorf("%w: music needs 0 < sources < %d, got %d", ErrInvalidSourceCount, n, cfg.NumSources)
		}
	case AlgorithmMSNR:
		return checkSideInfo("msnr", "noise covariance", cfg.NoiseCovariance, n)
	case AlgorithmLCMV:
		return checkSideInfo("lcmv", "constraint matrix", cfg.Constraints, n)
	}
	return nil
}

func (e *Estimator) Manifold() *geometry.Manifold { return e.manifold }

func (e *Estimator) Algorithm() Algorithm { return e.cfg.Algorithm }

func (e *Estimator) Backend() linalg.Backend { return e.la }

// Config returns the effective configuration.
func (e *Estimator) Config() Config { return e.cfg }

// Process estimates the spectrum of one block. The block's channel order must
// match the element order.
func (e *Estimator) Process(block *SignalBlock) (Spectrum, error) {
	if block == nil {
		return nil, fmt.Errorf("%w: nil block", ErrConfiguration)
	}
	if err := checkManifold(e.cfg.Algorithm.String(), e.manifold, block.Channels()); err != nil {
		return nil, err
	}
	if !e.manifold.Built() {
		start := time.Now()
		e.manifold.Matrix()
		e.logger.Debug("array manifold ready",
			logging.Field{Key: "elements", Value: e.manifold.Len()},
			logging.Field{Key: "points", Value: e.manifold.Points()},
			logging.Field{Key: "elapsed", Value: time.Since(start)})
	}

	switch e.cfg.Algorithm {
	case AlgorithmDelaySum:
		return DelaySum(e.la, block, e.manifold)
	case AlgorithmMusic:
		return Music(e.la, block, e.manifold, e.cfg.NumSources)
	}

	cov, err := Covariance(block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.cfg.Algorithm, err)
	}
	switch e.cfg.Algorithm {
	case AlgorithmBartlett:
		return Bartlett(e.la, cov, e.manifold)
	case AlgorithmMVDR:
		return MVDR(e.la, cov, e.manifold)
	case AlgorithmMSNR:
		return MSNR(e.la, cov, e.manifold, e.cfg.NoiseCovariance)
	case AlgorithmLCMV:
		return LCMV(e.la, cov, e.manifold, e.cfg.Constraints)
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %s", ErrConfiguration, e.cfg.Algorithm)
	}
}
