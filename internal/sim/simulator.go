package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rjboer/GoDOA/internal/geometry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("sim: source closed")

// Tone is one simulated far-field source.
type Tone struct {
	Inclination float64 `json:"inclination"`
	Azimuth     float64 `json:"azimuth"`
	FrequencyHz float64 `json:"frequency_hz"`
	Amplitude   float64 `json:"amplitude"`
}

// Config describes the simulated scene.
type Config struct {
	Elements []geometry.Element
	// Wavenumber is the design wavenumber the element positions are scaled to.
	Wavenumber float64
	// Speed is the propagation speed in m/s; it only feeds the wave vectors.
	Speed      float64
	SampleRate float64
	BlockSize  int
	// SNRdB sets the noise floor relative to the mean signal power. +Inf
	// disables noise.
	SNRdB float64
	Tones []Tone
	// Normalize scales each block by its largest absolute sample.
	Normalize bool
	Seed      int64
	// Pace makes Read wait one block duration, emulating a live recorder.
	Pace bool
}

// Simulator synthesizes plane waves impinging on the array with additive
// Gaussian noise. Phase is continuous across blocks.
type Simulator struct {
	mu     sync.RWMutex
	cfg    Config
	rng    *rand.Rand
	sample int64
	last   time.Time
	closed bool
}

// NewSimulator validates cfg and fills defaults (343 m/s, 48 kHz, 1024
// snapshots).
func NewSimulator(cfg Config) (*Simulator, error) {
	if cfg.Speed == 0 {
		cfg.Speed = 343
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 1024
	}
	switch {
	case len(cfg.Elements) == 0:
		return nil, fmt.Errorf("%w: simulator needs at least one element", geometry.ErrConfiguration)
	case !(cfg.Wavenumber > 0):
		return nil, fmt.Errorf("%w: simulator wavenumber must be positive", geometry.ErrConfiguration)
	case !(cfg.SampleRate > 0) || cfg.BlockSize < 2:
		return nil, fmt.Errorf("%w: invalid sample rate %g or block size %d", geometry.ErrConfiguration, cfg.SampleRate, cfg.BlockSize)
	case math.IsNaN(cfg.SNRdB):
		return nil, fmt.Errorf("%w: SNR is NaN", geometry.ErrConfiguration)
	}
	if err := validateTones(cfg.Tones); err != nil {
		return nil, err
	}
	cfg.Elements = append([]geometry.Element(nil), cfg.Elements...)
	cfg.Tones = append([]Tone(nil), cfg.Tones...)
	return &Simulator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

func validateTones(tones []Tone) error {
	for i, t := range tones {
		if math.IsNaN(t.Inclination) || math.IsNaN(t.Azimuth) || !(t.FrequencyHz >= 0) || !(t.Amplitude >= 0) {
			return fmt.Errorf("%w: invalid tone %d: %+v", geometry.ErrConfiguration, i, t)
		}
	}
	return nil
}

// SetTones replaces the scene, e.g. to move sources while running.
func (s *Simulator) SetTones(tones []Tone) error {
	if err := validateTones(tones); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Tones = append([]Tone(nil), tones...)
	s.mu.Unlock()
	return nil
}

// Tones returns a copy of the current scene.
func (s *Simulator) Tones() []Tone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Tone(nil), s.cfg.Tones...)
}

func (s *Simulator) Channels() int { return len(s.cfg.Elements) }

// SampleRate returns the configured rate in Hz.
func (s *Simulator) SampleRate() float64 { return s.cfg.SampleRate }

func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Read returns the next T×N block.
func (s *Simulator) Read(ctx context.Context) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.cfg.Pace {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
	block, err := s.generate()
	if err != nil {
		return nil, err
	}
	s.sample += int64(s.cfg.BlockSize)
	return block, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	period := time.Duration(float64(s.cfg.BlockSize) / s.cfg.SampleRate * float64(time.Second))
	if !s.last.IsZero() {
		if d := time.Until(s.last.Add(period)); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.last = time.Now()
	return nil
}

func (s *Simulator) generate() (*mat.Dense, error) {
	cfg := s.cfg
	t, n := cfg.BlockSize, len(cfg.Elements)
	data := make([]float64, t*n)
	for _, tone := range cfg.Tones {
		w, err := geometry.FromSpherical(cfg.Wavenumber, tone.Inclination, tone.Azimuth, cfg.Speed)
		if err != nil {
			return nil, err
		}
		step := 2 * math.Pi * tone.FrequencyHz / cfg.SampleRate
		for c, e := range cfg.Elements {
			phase := e.Phase(w)
			for i := 0; i < t; i++ {
				data[i*n+c] += tone.Amplitude * math.Cos(step*float64(s.sample+int64(i))+phase)
			}
		}
	}

	if !math.IsInf(cfg.SNRdB, 1) {
		power := floats.Dot(data, data) / float64(len(data))
		if power == 0 {
			power = 1
		}
		sigma := math.Sqrt(power / math.Pow(10, cfg.SNRdB/10))
		for i := range data {
			data[i] += s.rng.NormFloat64() * sigma
		}
	}
	if cfg.Normalize {
		if peak := floats.Norm(data, math.Inf(1)); peak > 0 {
			floats.Scale(1/peak, data)
		}
	}
	return mat.NewDense(t, n, data), nil
}
