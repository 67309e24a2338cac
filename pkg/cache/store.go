package cache

import (
	"context"
	"sync"
	"time"

	"github.com/farescout/farescout/pkg/fare"
	"github.com/rs/zerolog"
)

// Config holds the store configuration.
type Config struct {
	// Capacity is the maximum number of entries; when reached, the
	// oldest-inserted entry is evicted before insertion.
	Capacity int

	// ResultTTL applies to successful results, including the zero-price
	// domain sentinels.
	ResultTTL time.Duration

	// ErrorTTL applies to error results, so transient upstream faults
	// self-heal quickly.
	ErrorTTL time.Duration

	// SweepInterval is the period of the background expiry sweep.
	SweepInterval time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		ResultTTL:     2 * time.Hour,
		ErrorTTL:      5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

type entry struct {
	result   fare.DayResult
	storedAt time.Time
	ttl      time.Duration
	seq      uint64
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// queued pairs a fingerprint with the insertion sequence it was queued
// under, so stale queue heads for replaced or expired entries can be
// skipped during eviction.
type queued struct {
	fingerprint string
	seq         uint64
}

// Store is the in-memory day-result cache. All operations are safe for
// concurrent use; each operation is atomic, no multi-step transaction
// spans two operations.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	order   []queued
	stale   int // order records whose entry was replaced or expired
	nextSeq uint64
	logger  zerolog.Logger
}

// NewStore creates a store with the given configuration. Zero config
// fields fall back to DefaultConfig values.
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = def.ResultTTL
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = def.ErrorTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	return &Store{
		cfg:     cfg,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Get returns the live result for a fingerprint. Expired entries are
// deleted on access and reported as misses.
func (s *Store) Get(fingerprint string) (fare.DayResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		CacheMisses.Inc()
		return fare.DayResult{}, false
	}

	if e.expired(time.Now()) {
		delete(s.entries, fingerprint)
		s.stale++
		s.compactOrderLocked()
		CacheEvictions.WithLabelValues("expired").Inc()
		CacheEntries.Set(float64(len(s.entries)))
		CacheMisses.Inc()
		return fare.DayResult{}, false
	}

	CacheHits.Inc()
	return e.result, true
}

// Contains reports whether a live entry exists without counting a hit or
// a miss. Used by the orchestrator's read-only pre-classification.
func (s *Store) Contains(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	return ok && !e.expired(time.Now())
}

// Put stores a result under a fingerprint. At capacity, the
// oldest-inserted live entry is evicted first. Replacing an existing
// fingerprint re-inserts it at the back of the eviction order.
func (s *Store) Put(fingerprint string, result fare.DayResult, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[fingerprint]; exists {
		// The old order record becomes dead weight once the key is
		// re-sequenced below.
		s.stale++
	} else if len(s.entries) >= s.cfg.Capacity {
		s.evictOldestLocked()
	}

	s.nextSeq++
	s.entries[fingerprint] = &entry{
		result:   result,
		storedAt: time.Now(),
		ttl:      ttl,
		seq:      s.nextSeq,
	}
	s.order = append(s.order, queued{fingerprint: fingerprint, seq: s.nextSeq})
	s.compactOrderLocked()
	CacheEntries.Set(float64(len(s.entries)))

	s.logger.Debug().
		Str("fingerprint", fingerprint).
		Dur("ttl", ttl).
		Str("kind", string(result.Kind)).
		Msg("Cached day result")
}

// TTLFor selects the TTL class for a result: the short error TTL for
// error placeholders, the standard TTL for everything else (priced
// results and domain sentinels alike).
func (s *Store) TTLFor(result fare.DayResult) time.Duration {
	if result.Kind == fare.KindError {
		return s.cfg.ErrorTTL
	}
	return s.cfg.ResultTTL
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes expired entries on a fixed interval until ctx is
// cancelled. It is started explicitly by the process lifecycle, typically
// as `go store.Sweep(ctx)`.
func (s *Store) Sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Cache sweep stopped")
			return
		case <-ticker.C:
			if removed := s.removeExpired(); removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("Cache sweep removed expired entries")
			}
		}
	}
}

func (s *Store) removeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for fp, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, fp)
			CacheEvictions.WithLabelValues("sweep").Inc()
			removed++
		}
	}
	if removed > 0 {
		s.stale += removed
		s.compactOrderLocked()
		CacheEntries.Set(float64(len(s.entries)))
	}
	return removed
}

// compactOrderLocked rebuilds the eviction-order index once stale
// records outnumber live entries, so expiry alone (without capacity
// pressure) cannot grow the index without bound.
func (s *Store) compactOrderLocked() {
	if s.stale <= len(s.entries) {
		return
	}

	live := s.order[:0]
	for _, q := range s.order {
		if e, ok := s.entries[q.fingerprint]; ok && e.seq == q.seq {
			live = append(live, q)
		}
	}
	// Release the tail so the backing array does not pin dead records.
	for i := len(live); i < len(s.order); i++ {
		s.order[i] = queued{}
	}
	s.order = live
	s.stale = 0
}

// evictOldestLocked removes the oldest-inserted live entry. Queue heads
// whose sequence no longer matches a live entry are leftovers from
// replacements or expiry and are discarded.
func (s *Store) evictOldestLocked() {
	for len(s.order) > 0 {
		head := s.order[0]
		s.order = s.order[1:]

		e, ok := s.entries[head.fingerprint]
		if !ok || e.seq != head.seq {
			if s.stale > 0 {
				s.stale--
			}
			continue
		}

		delete(s.entries, head.fingerprint)
		CacheEvictions.WithLabelValues("capacity").Inc()
		CacheEntries.Set(float64(len(s.entries)))
		return
	}
}
