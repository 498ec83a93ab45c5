package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/rjboer/GoDOA/internal/doa"
	"github.com/rjboer/GoDOA/internal/geometry"
	"github.com/rjboer/GoDOA/internal/logging"
)

// Config represents the runtime configuration exposed by the telemetry hub.
type Config struct {
	HistoryLimit int `json:"historyLimit"`
	// StreamSpectrum adds the full spectrum to every live event.
	StreamSpectrum bool `json:"streamSpectrum"`
}

const (
	minHistoryLimit = 1
	maxHistoryLimit = 10_000
)

func defaultConfig() Config {
	return Config{HistoryLimit: 500}
}

func validateConfig(cfg Config, base Config) (Config, error) {
	if base.HistoryLimit == 0 {
		base = defaultConfig()
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = base.HistoryLimit
	}
	if cfg.HistoryLimit < minHistoryLimit || cfg.HistoryLimit > maxHistoryLimit {
		return Config{}, fmt.Errorf("history limit must be between %d and %d", minHistoryLimit, maxHistoryLimit)
	}
	return cfg, nil
}

// Event is what subscribers and the live stream receive.
type Event struct {
	Result
	Spectrum []float64 `json:"spectrum,omitempty"`
}

// SpectrumSnapshot is the latest full spectrum with its grid.
type SpectrumSnapshot struct {
	Timestamp    time.Time         `json:"timestamp"`
	RunID        string            `json:"runId"`
	Block        int               `json:"block"`
	Algorithm    string            `json:"algorithm"`
	Grid         geometry.ScanGrid `json:"grid"`
	Inclinations []float64         `json:"inclinations"`
	Azimuths     []float64         `json:"azimuths"`
	// Values has one row per inclination and one column per azimuth.
	Values [][]float64 `json:"values"`
	Peaks  []doa.Peak  `json:"peaks"`
}

// ProcessStats reports runtime figures of the serving process.
type ProcessStats struct {
	NumGoroutine   int     `json:"numGoroutine"`
	HeapAllocBytes uint64  `json:"heapAllocBytes"`
	Uptime         float64 `json:"uptimeSeconds"`
}

// Diagnostics summarises hub state.
type Diagnostics struct {
	Process   ProcessStats `json:"process"`
	Blocks    int          `json:"blocks"`
	Algorithm string       `json:"algorithm,omitempty"`
	Points    int          `json:"points"`
	LastBlock time.Time    `json:"lastBlock,omitempty"`
}

// HealthStatus is "ok" once a spectrum has arrived and "degraded" before.
type HealthStatus struct {
	Status  string       `json:"status"`
	Process ProcessStats `json:"process"`
}

// Hub collects history and fans out results to subscribers.
type Hub struct {
	mu          sync.RWMutex
	history     []Result
	latest      *SpectrumSnapshot
	blocks      int
	subscribers map[chan Event]struct{}
	config      Config
	started     time.Time
	logger      logging.Logger
}

// NewHub builds a telemetry hub with the provided history limit.
func NewHub(historyLimit int, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	cfg, err := validateConfig(Config{HistoryLimit: historyLimit}, defaultConfig())
	if err != nil {
		logger.Warn("invalid telemetry history limit, using default",
			logging.Field{Key: "subsystem", Value: "telemetry"},
			logging.Field{Key: "limit", Value: historyLimit})
		cfg = defaultConfig()
	}
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
		config:      cfg,
		started:     time.Now(),
		logger:      logger,
	}
}

// Report implements Reporter.
func (h *Hub) Report(res Result) {
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	summary := res
	summary.Spectrum = nil

	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks++
	h.history = append(h.history, summary)
	if len(h.history) > h.config.HistoryLimit {
		h.history = h.history[len(h.history)-h.config.HistoryLimit:]
	}
	if len(res.Spectrum) > 0 && len(res.Spectrum) == res.Grid.Len() {
		h.latest = &SpectrumSnapshot{
			Timestamp:    res.Timestamp,
			RunID:        res.RunID,
			Block:        res.Block,
			Algorithm:    res.Algorithm,
			Grid:         res.Grid,
			Inclinations: res.Grid.Inclinations(),
			Azimuths:     res.Grid.Azimuths(),
			Values:       res.Grid.Reshape(res.Spectrum),
			Peaks:        res.Peaks,
		}
	}

	ev := Event{Result: summary}
	if h.config.StreamSpectrum {
		ev.Spectrum = append([]float64(nil), res.Spectrum...)
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// History returns a copy of stored results, without spectra.
func (h *Hub) History() []Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Result, len(h.history))
	copy(out, h.history)
	return out
}

// Latest returns the most recent spectrum, or false if none arrived yet.
func (h *Hub) Latest() (SpectrumSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return SpectrumSnapshot{}, false
	}
	return *h.latest, true
}

// ConfigSnapshot returns the latest validated configuration.
func (h *Hub) ConfigSnapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Subscribe registers a listener for live updates.
func (h *Hub) Subscribe() (chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

func (h *Hub) applyConfig(cfg Config) {
	h.config = cfg
	if len(h.history) > cfg.HistoryLimit {
		h.history = h.history[len(h.history)-cfg.HistoryLimit:]
	}
}

func (h *Hub) processStats() ProcessStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ProcessStats{
		NumGoroutine:   runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
		Uptime:         time.Since(h.started).Seconds(),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Hub) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.History())
}

func (h *Hub) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := h.Latest()
	if !ok {
		http.Error(w, "no spectrum yet", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (h *Hub) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.ConfigSnapshot())
}

func (h *Hub) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var incoming Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	cfg, err := validateConfig(incoming, h.config)
	if err == nil {
		h.applyConfig(cfg)
	}
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Info("telemetry config updated",
		logging.Field{Key: "subsystem", Value: "telemetry"},
		logging.Field{Key: "history_limit", Value: cfg.HistoryLimit},
		logging.Field{Key: "stream_spectrum", Value: cfg.StreamSpectrum})
	writeJSON(w, cfg)
}

func (h *Hub) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d := Diagnostics{Process: h.processStats()}
	h.mu.RLock()
	d.Blocks = h.blocks
	if h.latest != nil {
		d.Algorithm = h.latest.Algorithm
		d.Points = h.latest.Grid.Len()
		d.LastBlock = h.latest.Timestamp
	}
	h.mu.RUnlock()
	writeJSON(w, d)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := HealthStatus{Status: "degraded", Process: h.processStats()}
	if _, ok := h.Latest(); ok {
		status.Status = "ok"
	}
	writeJSON(w, status)
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// send existing history for immediate display
	for _, res := range h.History() {
		writeEvent(w, Event{Result: res})
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	payload, _ := json.Marshal(ev)
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}
