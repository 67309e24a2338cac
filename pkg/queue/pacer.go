// Package queue implements global admission control for upstream calls:
// a single FIFO queue with one concurrency slot, adaptive inter-start
// pacing, and retry-with-requeue on rate-limit rejections. The upstream
// enforces its limit globally, so all sessions share one queue.
package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PacerConfig bounds the adaptive inter-start interval.
type PacerConfig struct {
	// InitialInterval is the starting minimum time between call starts.
	InitialInterval time.Duration

	// FloorInterval and CeilingInterval bound the adaptive interval.
	FloorInterval   time.Duration
	CeilingInterval time.Duration

	// IncreaseFactor is applied on every rate-limit rejection.
	IncreaseFactor float64

	// DecreaseFactor is applied after SuccessStreak consecutive successes.
	DecreaseFactor float64

	// SuccessStreak is the number of consecutive successes required
	// before the interval is relaxed. Any rejection resets the streak.
	SuccessStreak int
}

// DefaultPacerConfig returns a safe default pacing configuration.
func DefaultPacerConfig() PacerConfig {
	return PacerConfig{
		InitialInterval: 1500 * time.Millisecond,
		FloorInterval:   500 * time.Millisecond,
		CeilingInterval: 30 * time.Second,
		IncreaseFactor:  1.5,
		DecreaseFactor:  0.75,
		SuccessStreak:   3,
	}
}

// pacer owns the adaptive minimum inter-start interval. The limiter has
// burst 1, so Wait returns minInterval after the previous token was
// taken: the next start waits max(0, minInterval - (now - lastStart)).
type pacer struct {
	mu       sync.Mutex
	cfg      PacerConfig
	limiter  *rate.Limiter
	interval time.Duration
	streak   int
}

func newPacer(cfg PacerConfig) *pacer {
	def := DefaultPacerConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.FloorInterval <= 0 {
		cfg.FloorInterval = def.FloorInterval
	}
	if cfg.CeilingInterval <= 0 {
		cfg.CeilingInterval = def.CeilingInterval
	}
	if cfg.IncreaseFactor <= 1 {
		cfg.IncreaseFactor = def.IncreaseFactor
	}
	if cfg.DecreaseFactor <= 0 || cfg.DecreaseFactor >= 1 {
		cfg.DecreaseFactor = def.DecreaseFactor
	}
	if cfg.SuccessStreak <= 0 {
		cfg.SuccessStreak = def.SuccessStreak
	}

	return &pacer{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.InitialInterval), 1),
		interval: cfg.InitialInterval,
	}
}

// Wait blocks until the next call may start.
func (p *pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// OnRateLimited widens the interval and resets the success streak.
func (p *pacer) OnRateLimited() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.streak = 0
	p.setIntervalLocked(time.Duration(float64(p.interval) * p.cfg.IncreaseFactor))
}

// OnSuccess counts a success; after a full streak the interval relaxes
// and the streak starts over.
func (p *pacer) OnSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.streak++
	if p.streak < p.cfg.SuccessStreak {
		return
	}
	p.streak = 0
	p.setIntervalLocked(time.Duration(float64(p.interval) * p.cfg.DecreaseFactor))
}

// Interval returns the current minimum inter-start interval.
func (p *pacer) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *pacer) setIntervalLocked(next time.Duration) {
	if next > p.cfg.CeilingInterval {
		next = p.cfg.CeilingInterval
	}
	if next < p.cfg.FloorInterval {
		next = p.cfg.FloorInterval
	}
	if next == p.interval {
		return
	}
	p.interval = next
	p.limiter.SetLimit(rate.Every(next))
	pacingInterval.Set(next.Seconds())
}
