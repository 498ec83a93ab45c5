package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/logging"
	"github.com/rjboer/GoDOA/internal/sim"
)

type cliConfig struct {
	array      string
	elements   int
	rows       int
	cols       int
	spacing    float64
	positions  string
	designFreq float64
	speed      float64

	incMin, incMax float64
	incPoints      int
	azMin, azMax   float64
	azPoints       int

	algorithm  doa.Algorithm
	numSources int
	sideInfo   string
	linalg     string

	input      string
	tones      string
	snrDB      float64
	sampleRate float64
	blockSize  int
	seed       int64
	pace       bool
	normalize  bool

	removeDC        bool
	analytic        bool
	maxBlocks       int
	maxPeaks        int
	continueOnError bool

	compare      bool
	plotPath     string
	webAddr      string
	historyLimit int

	logLevel  logging.Level
	logFormat logging.Format
}

type persistentConfig struct {
	Array        string         `json:"array"`
	Elements     int            `json:"elements"`
	Rows         int            `json:"rows"`
	Cols         int            `json:"cols"`
	Spacing      float64        `json:"spacing"`
	Positions    string         `json:"positions,omitempty"`
	DesignFreq   float64        `json:"design_frequency_hz"`
	Speed        float64        `json:"speed"`
	IncMin       float64        `json:"inclination_min_deg"`
	IncMax       float64        `json:"inclination_max_deg"`
	IncPoints    int            `json:"inclination_points"`
	AzMin        float64        `json:"azimuth_min_deg"`
	AzMax        float64        `json:"azimuth_max_deg"`
	AzPoints     int            `json:"azimuth_points"`
	Algorithm    doa.Algorithm  `json:"algorithm"`
	NumSources   int            `json:"num_sources"`
	SideInfo     string         `json:"side_info,omitempty"`
	Linalg       string         `json:"linalg"`
	Tones        string         `json:"tones"`
	SNRdB        string         `json:"snr_db"`
	SampleRate   float64        `json:"sample_rate"`
	BlockSize    int            `json:"block_size"`
	RemoveDC     bool           `json:"remove_dc"`
	Analytic     bool           `json:"analytic"`
	MaxPeaks     int            `json:"max_peaks"`
	HistoryLimit int            `json:"history_limit"`
	WebAddr      string         `json:"web_addr"`
	LogLevel     logging.Level  `json:"log_level"`
	LogFormat    logging.Format `json:"log_format"`
}

func parseConfig(args []string, lookup func(string) (string, bool), defaults persistentConfig) (cliConfig, error) {
	cfg := cliConfig{
		algorithm: envAlgorithm(lookup, "DOA_ALGORITHM", defaults.Algorithm),
		logLevel:  envLevel(lookup, "DOA_LOG_LEVEL", defaults.LogLevel),
		logFormat: envFormat(lookup, "DOA_LOG_FORMAT", defaults.LogFormat),
	}
	fs := flag.NewFlagSet("doa", flag.ContinueOnError)
	fs.StringVar(&cfg.array, "array", envString(lookup, "DOA_ARRAY", defaults.Array), "Array preset (ula|ura|custom)")
	fs.IntVar(&cfg.elements, "elements", envInt(lookup, "DOA_ELEMENTS", defaults.Elements), "Element count of a uniform linear array")
	fs.IntVar(&cfg.rows, "rows", envInt(lookup, "DOA_ROWS", defaults.Rows), "Rows of a uniform rectangular array")
	fs.IntVar(&cfg.cols, "cols", envInt(lookup, "DOA_COLS", defaults.Cols), "Columns of a uniform rectangular array")
	fs.Float64Var(&cfg.spacing, "spacing", envFloat(lookup, "DOA_SPACING", defaults.Spacing), "Element spacing; wavelengths without -design-freq, meters with it (0 = half wavelength)")
	fs.StringVar(&cfg.positions, "positions", envString(lookup, "DOA_POSITIONS", defaults.Positions), "Custom element positions as x,y,z;x,y,z;...")
	fs.Float64Var(&cfg.designFreq, "design-freq", envFloat(lookup, "DOA_DESIGN_FREQ", defaults.DesignFreq), "Design frequency in Hz; 0 measures positions in wavelengths")
	fs.Float64Var(&cfg.speed, "speed", envFloat(lookup, "DOA_SPEED", defaults.Speed), "Propagation speed in m/s")

	fs.Float64Var(&cfg.incMin, "inc-min", envFloat(lookup, "DOA_INC_MIN", defaults.IncMin), "Lowest scanned inclination (degrees)")
	fs.Float64Var(&cfg.incMax, "inc-max", envFloat(lookup, "DOA_INC_MAX", defaults.IncMax), "Highest scanned inclination (degrees)")
	fs.IntVar(&cfg.incPoints, "inc-points", envInt(lookup, "DOA_INC_POINTS", defaults.IncPoints), "Inclination resolution")
	fs.Float64Var(&cfg.azMin, "az-min", envFloat(lookup, "DOA_AZ_MIN", defaults.AzMin), "Lowest scanned azimuth (degrees)")
	fs.Float64Var(&cfg.azMax, "az-max", envFloat(lookup, "DOA_AZ_MAX", defaults.AzMax), "Highest scanned azimuth (degrees)")
	fs.IntVar(&cfg.azPoints, "az-points", envInt(lookup, "DOA_AZ_POINTS", defaults.AzPoints), "Azimuth resolution")

	fs.TextVar(&cfg.algorithm, "algorithm", cfg.algorithm, "Estimator (delay-sum|bartlett|mvdr|msnr|lcmv|music)")
	fs.IntVar(&cfg.numSources, "num-sources", envInt(lookup, "DOA_NUM_SOURCES", defaults.NumSources), "Assumed number of sources for MUSIC")
	fs.StringVar(&cfg.sideInfo, "side-info", envString(lookup, "DOA_SIDE_INFO", defaults.SideInfo), "CSV file with the N×N complex noise covariance (msnr) or constraint matrix (lcmv)")
	fs.StringVar(&cfg.linalg, "linalg", envString(lookup, "DOA_LINALG", defaults.Linalg), "Linear algebra backend (gonum|native)")

	fs.StringVar(&cfg.input, "input", envString(lookup, "DOA_INPUT", ""), "CSV recording to process instead of the simulator")
	fs.StringVar(&cfg.tones, "tones", envString(lookup, "DOA_TONES", defaults.Tones), "Simulated sources as inc:az:freq[:amp];... (degrees, Hz)")
	fs.Float64Var(&cfg.snrDB, "snr-db", envFloat(lookup, "DOA_SNR_DB", parseSNR(defaults.SNRdB)), "Simulated SNR in dB (inf disables noise)")
	fs.Float64Var(&cfg.sampleRate, "sample-rate", envFloat(lookup, "DOA_SAMPLE_RATE", defaults.SampleRate), "Sample rate in Hz")
	fs.IntVar(&cfg.blockSize, "block-size", envInt(lookup, "DOA_BLOCK_SIZE", defaults.BlockSize), "Snapshots per block")
	fs.Int64Var(&cfg.seed, "seed", int64(envInt(lookup, "DOA_SEED", 1)), "Simulator noise seed")
	fs.BoolVar(&cfg.pace, "pace", envBool(lookup, "DOA_PACE", false), "Emit simulated blocks in real time")
	fs.BoolVar(&cfg.normalize, "normalize", envBool(lookup, "DOA_NORMALIZE", false), "Scale simulated blocks to unit peak")

	fs.BoolVar(&cfg.removeDC, "remove-dc", envBool(lookup, "DOA_REMOVE_DC", defaults.RemoveDC), "Subtract channel means before estimation")
	fs.BoolVar(&cfg.analytic, "analytic", envBool(lookup, "DOA_ANALYTIC", defaults.Analytic), "Convert real blocks to analytic signals")
	fs.IntVar(&cfg.maxBlocks, "max-blocks", envInt(lookup, "DOA_MAX_BLOCKS", 0), "Stop after this many blocks (0 = unlimited)")
	fs.IntVar(&cfg.maxPeaks, "max-peaks", envInt(lookup, "DOA_MAX_PEAKS", defaults.MaxPeaks), "Peaks reported per block (0 = all)")
	fs.BoolVar(&cfg.continueOnError, "continue-on-error", envBool(lookup, "DOA_CONTINUE_ON_ERROR", false), "Skip blocks the estimator rejects")

	fs.BoolVar(&cfg.compare, "compare", false, "Run every algorithm on one block and exit")
	fs.StringVar(&cfg.plotPath, "plot", envString(lookup, "DOA_PLOT", ""), "Write the last spectrum as a PNG to this path")
	fs.StringVar(&cfg.webAddr, "web-addr", envString(lookup, "DOA_WEB_ADDR", defaults.WebAddr), "Optional web telemetry listen address (e.g. :8080)")
	fs.IntVar(&cfg.historyLimit, "history-limit", envInt(lookup, "DOA_HISTORY_LIMIT", defaults.HistoryLimit), "Maximum results kept in telemetry history")
	fs.TextVar(&cfg.logLevel, "log-level", cfg.logLevel, "Log level (debug|info|warn|error)")
	fs.TextVar(&cfg.logFormat, "log-format", cfg.logFormat, "Log format (text|json)")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func persistentFromCLI(cfg cliConfig) persistentConfig {
	return persistentConfig{
		Array:        cfg.array,
		Elements:     cfg.elements,
		Rows:         cfg.rows,
		Cols:         cfg.cols,
		Spacing:      cfg.spacing,
		Positions:    cfg.positions,
		DesignFreq:   cfg.designFreq,
		Speed:        cfg.speed,
		IncMin:       cfg.incMin,
		IncMax:       cfg.incMax,
		IncPoints:    cfg.incPoints,
		AzMin:        cfg.azMin,
		AzMax:        cfg.azMax,
		AzPoints:     cfg.azPoints,
		Algorithm:    cfg.algorithm,
		NumSources:   cfg.numSources,
		SideInfo:     cfg.sideInfo,
		Linalg:       cfg.linalg,
		Tones:        cfg.tones,
		SNRdB:        strconv.FormatFloat(cfg.snrDB, 'g', -1, 64),
		SampleRate:   cfg.sampleRate,
		BlockSize:    cfg.blockSize,
		RemoveDC:     cfg.removeDC,
		Analytic:     cfg.analytic,
		MaxPeaks:     cfg.maxPeaks,
		HistoryLimit: cfg.historyLimit,
		WebAddr:      cfg.webAddr,
		LogLevel:     cfg.logLevel,
		LogFormat:    cfg.logFormat,
	}
}

func loadOrCreateConfig(path string) (persistentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultPersistentConfig()
			if saveErr := saveConfig(path, cfg); saveErr != nil {
				return persistentConfig{}, saveErr
			}
			return cfg, nil
		}
		return persistentConfig{}, err
	}
	defer f.Close()

	cfg := defaultPersistentConfig()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return persistentConfig{}, err
	}
	return cfg, nil
}

func saveConfig(path string, cfg persistentConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func defaultPersistentConfig() persistentConfig {
	return persistentConfig{
		Array:        "ula",
		Elements:     8,
		Rows:         4,
		Cols:         4,
		Spacing:      0.5,
		Speed:        343,
		IncMin:       0,
		IncMax:       90,
		IncPoints:    181,
		AzMin:        0,
		AzMax:        0,
		AzPoints:     1,
		Algorithm:    doa.AlgorithmMusic,
		NumSources:   1,
		Linalg:       "gonum",
		Tones:        "30:0:1000",
		SNRdB:        "20",
		SampleRate:   48000,
		BlockSize:    1024,
		RemoveDC:     true,
		Analytic:     true,
		MaxPeaks:     4,
		HistoryLimit: 500,
		WebAddr:      "",
		LogLevel:     logging.Info,
		LogFormat:    logging.Text,
	}
}

// buildArray returns the element positions and the design wavenumber.
func buildArray(cfg cliConfig) ([]geometry.Element, float64, error) {
	wavenumber := 2 * math.Pi
	spacing := cfg.spacing
	if cfg.designFreq > 0 {
		wavenumber = 2 * math.Pi * cfg.designFreq / cfg.speed
		if spacing == 0 {
			s, err := geometry.HalfWavelengthSpacing(cfg.designFreq, cfg.speed)
			if err != nil {
				return nil, 0, err
			}
			spacing = s
		}
	} else if spacing == 0 {
		spacing = 0.5
	}
	if math.IsInf(wavenumber, 0) || math.IsNaN(wavenumber) || !(wavenumber > 0) {
		return nil, 0, fmt.Errorf("%w: invalid design frequency %g Hz at %g m/s", geometry.ErrConfiguration, cfg.designFreq, cfg.speed)
	}

	switch strings.ToLower(cfg.array) {
	case "ula":
		if cfg.elements < 1 {
			return nil, 0, fmt.Errorf("%w: ula needs at least one element", geometry.ErrConfiguration)
		}
		return geometry.UniformLinear(cfg.elements, spacing), wavenumber, nil
	case "ura":
		if cfg.rows < 1 || cfg.cols < 1 {
			return nil, 0, fmt.Errorf("%w: ura needs positive rows and cols", geometry.ErrConfiguration)
		}
		return geometry.UniformRectangular(cfg.rows, cfg.cols, spacing), wavenumber, nil
	case "custom":
		elements, err := parsePositions(cfg.positions)
		return elements, wavenumber, err
	default:
		return nil, 0, fmt.Errorf("%w: unknown array %q", geometry.ErrConfiguration, cfg.array)
	}
}

func parsePositions(s string) ([]geometry.Element, error) {
	var out []geometry.Element
	for i, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: position %d %q is not x,y,z", geometry.ErrConfiguration, i+1, item)
		}
		var xyz [3]float64
		for j, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: position %d: %v", geometry.ErrConfiguration, i+1, err)
			}
			xyz[j] = v
		}
		out = append(out, geometry.NewElement(xyz[0], xyz[1], xyz[2]))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: custom array has no positions", geometry.ErrConfiguration)
	}
	return out, nil
}

func buildGrid(cfg cliConfig) geometry.ScanGrid {
	return geometry.ScanGrid{
		InclinationRange:      [2]float64{radians(cfg.incMin), radians(cfg.incMax)},
		InclinationResolution: cfg.incPoints,
		AzimuthRange:          [2]float64{radians(cfg.azMin), radians(cfg.azMax)},
		AzimuthResolution:     cfg.azPoints,
	}
}

// parseTones reads "inc:az:freq[:amp]" entries separated by semicolons.
// Angles are in degrees; the amplitude defaults to 1.
func parseTones(s string) ([]sim.Tone, error) {
	var out []sim.Tone
	for i, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("%w: tone %d %q is not inc:az:freq[:amp]", geometry.ErrConfiguration, i+1, item)
		}
		vals := []float64{0, 0, 0, 1}
		for j, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: tone %d: %v", geometry.ErrConfiguration, i+1, err)
			}
			vals[j] = v
		}
		out = append(out, sim.Tone{
			Inclination: radians(vals[0]),
			Azimuth:     radians(vals[1]),
			FrequencyHz: vals[2],
			Amplitude:   vals[3],
		})
	}
	return out, nil
}

// parseSNR reads the persisted SNR, which is a string so that "+Inf" survives
// JSON encoding.
func parseSNR(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 20
	}
	return v
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func envFloat(lookup func(string) (string, bool), key string, def float64) float64 {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(lookup func(string) (string, bool), key string, def int) int {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(lookup func(string) (string, bool), key string, def bool) bool {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}

func envAlgorithm(lookup func(string) (string, bool), key string, def doa.Algorithm) doa.Algorithm {
	if val, ok := lookup(key); ok {
		if parsed, err := doa.ParseAlgorithm(val); err == nil {
			return parsed
		}
	}
	return def
}

func envLevel(lookup func(string) (string, bool), key string, def logging.Level) logging.Level {
	if val, ok := lookup(key); ok {
		if parsed, err := logging.ParseLevel(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFormat(lookup func(string) (string, bool), key string, def logging.Format) logging.Format {
	if val, ok := lookup(key); ok {
		if parsed, err := logging.ParseFormat(val); err == nil {
			return parsed
		}
	}
	return def
}
