// Package progress tracks per-session batch progress: completed day
// counts, moving-average latencies for cached and uncached fetches, queue
// depth, and a derived completion estimate. State is volatile and
// garbage-collected after an inactivity window.
package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "farescout_progress_sessions",
		Help: "Number of sessions currently tracked",
	})

	updatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farescout_progress_updates_total",
		Help: "Total progress updates written",
	})
)

// Config holds tracker configuration.
type Config struct {
	// Alpha is the exponential smoothing factor for latency averages.
	Alpha float64

	// SeedUncachedMs and SeedCachedMs seed the averages so estimates are
	// reasonable before any sample arrives.
	SeedUncachedMs float64
	SeedCachedMs   float64

	// InactivityWindow is how long a session survives without updates.
	InactivityWindow time.Duration

	// GCInterval is the period of the background session sweep.
	GCInterval time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:            0.2,
		SeedUncachedMs:   2000,
		SeedCachedMs:     100,
		InactivityWindow: 45 * time.Minute,
		GCInterval:       5 * time.Minute,
	}
}

// Average is an exponentially smoothed moving average. It is owned
// explicitly by whoever measures the samples; tests construct isolated
// instances.
type Average struct {
	mu    sync.Mutex
	alpha float64
	value float64
}

// NewAverage creates an average seeded with an initial value.
func NewAverage(alpha, seed float64) *Average {
	return &Average{alpha: alpha, value: seed}
}

// Observe folds a sample into the average: new = α·sample + (1−α)·old.
func (a *Average) Observe(sample float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = a.alpha*sample + (1-a.alpha)*a.value
}

// Value returns the current smoothed value.
func (a *Average) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// SessionProgress is the published state of one scan session.
type SessionProgress struct {
	SessionID                 string    `json:"session_id"`
	CompletedDays             int       `json:"completed_days"`
	TotalDays                 int       `json:"total_days"`
	IsComplete                bool      `json:"is_complete"`
	CurrentDate               string    `json:"current_date"`
	EstimatedSecondsRemaining int       `json:"estimated_seconds_remaining"`
	QueueDepth                int       `json:"queue_depth"`
	ActiveCalls               int       `json:"active_calls"`
	AvgUncachedMs             float64   `json:"avg_uncached_ms"`
	AvgCachedMs               float64   `json:"avg_cached_ms"`
	LastUpdate                time.Time `json:"last_update"`
}

// Update carries one progress write from the orchestrator.
type Update struct {
	SessionID         string
	CompletedDays     int
	TotalDays         int
	CurrentDate       string
	IsComplete        bool
	RemainingUncached int
	RemainingCached   int
	AvgUncachedMs     float64
	AvgCachedMs       float64
	QueueDepth        int
	ActiveCalls       int
}

// Tracker stores per-session progress for polling consumers.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*SessionProgress
	logger   zerolog.Logger
}

// NewTracker creates a tracker. Zero config fields fall back to
// DefaultConfig values.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.SeedUncachedMs <= 0 {
		cfg.SeedUncachedMs = def.SeedUncachedMs
	}
	if cfg.SeedCachedMs <= 0 {
		cfg.SeedCachedMs = def.SeedCachedMs
	}
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = def.InactivityWindow
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = def.GCInterval
	}

	return &Tracker{
		cfg:      cfg,
		sessions: make(map[string]*SessionProgress),
		logger:   logger,
	}
}

// NewUncachedAverage returns a latency average seeded for upstream fetches.
func (t *Tracker) NewUncachedAverage() *Average {
	return NewAverage(t.cfg.Alpha, t.cfg.SeedUncachedMs)
}

// NewCachedAverage returns a latency average seeded for cache hits.
func (t *Tracker) NewCachedAverage() *Average {
	return NewAverage(t.cfg.Alpha, t.cfg.SeedCachedMs)
}

// Update writes one progress snapshot. The session record is created on
// first write.
func (t *Tracker) Update(u Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[u.SessionID]
	if !ok {
		s = &SessionProgress{SessionID: u.SessionID}
		t.sessions[u.SessionID] = s
		activeSessions.Set(float64(len(t.sessions)))
	}

	s.CompletedDays = u.CompletedDays
	s.TotalDays = u.TotalDays
	s.CurrentDate = u.CurrentDate
	s.IsComplete = u.IsComplete
	s.QueueDepth = u.QueueDepth
	s.ActiveCalls = u.ActiveCalls
	s.AvgUncachedMs = u.AvgUncachedMs
	s.AvgCachedMs = u.AvgCachedMs
	s.EstimatedSecondsRemaining = estimateSeconds(u)
	s.LastUpdate = time.Now()

	updatesTotal.Inc()
}

// Read returns a copy of the session's progress.
func (t *Tracker) Read(sessionID string) (SessionProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return SessionProgress{}, false
	}
	return *s, true
}

// GC removes inactive sessions on a fixed interval until ctx is
// cancelled. Started explicitly by the process lifecycle.
func (t *Tracker) GC(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug().Msg("Progress GC stopped")
			return
		case <-ticker.C:
			if removed := t.removeInactive(); removed > 0 {
				t.logger.Debug().Int("removed", removed).Msg("Progress GC removed inactive sessions")
			}
		}
	}
}

func (t *Tracker) removeInactive() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.cfg.InactivityWindow)
	removed := 0
	for id, s := range t.sessions {
		if s.LastUpdate.Before(cutoff) {
			delete(t.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		activeSessions.Set(float64(len(t.sessions)))
	}
	return removed
}

// estimateSeconds computes the ETA from the remaining day counts and the
// per-class latency averages, floored at zero.
func estimateSeconds(u Update) int {
	ms := float64(u.RemainingUncached)*u.AvgUncachedMs + float64(u.RemainingCached)*u.AvgCachedMs
	if ms <= 0 {
		return 0
	}
	return int(math.Round(ms / 1000))
}
