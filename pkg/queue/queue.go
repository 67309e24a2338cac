package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Errors surfaced by the admission queue.
var (
	// ErrRateLimited tags an upstream rejection caused by rate limiting.
	// Invoked calls must wrap their error with this sentinel so the queue
	// can distinguish it from a generic failure.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrRetriesExhausted is returned when a rate-limited call has been
	// requeued up to the retry ceiling without success.
	ErrRetriesExhausted = errors.New("rate-limit retries exhausted")

	// ErrQueueClosed is returned for calls still pending when the queue
	// shuts down.
	ErrQueueClosed = errors.New("admission queue closed")
)

// Invoke performs one upstream call. A rate-limit rejection must be
// reported as an error matching ErrRateLimited.
type Invoke func(ctx context.Context) (any, error)

// Config holds the admission queue configuration.
type Config struct {
	Pacer PacerConfig

	// BackoffBase seeds the exponential requeue backoff: base * 2^retry.
	BackoffBase time.Duration

	// BackoffCap bounds the requeue backoff.
	BackoffCap time.Duration

	// MaxRetries is the rate-limit retry ceiling per call.
	MaxRetries int

	// Buffer is the pending queue capacity.
	Buffer int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Pacer:       DefaultPacerConfig(),
		BackoffBase: 2 * time.Second,
		BackoffCap:  60 * time.Second,
		MaxRetries:  3,
		Buffer:      1024,
	}
}

type outcome struct {
	value any
	err   error
}

// call is one queued upstream invocation. It lives only inside the queue
// and is destroyed on terminal success or exhausted retries.
type call struct {
	id         string
	invoke     Invoke
	ctx        context.Context
	createdAt  time.Time
	enqueuedAt time.Time
	retryCount int
	done       chan outcome
}

// Queue serializes and paces all outbound upstream calls system-wide.
// Admission is strictly FIFO with a single global concurrency slot;
// rate-limited calls are requeued at the tail after backoff.
type Queue struct {
	cfg     Config
	pacer   *pacer
	pending chan *call
	waiting atomic.Int64 // calls in backoff before requeue
	active  atomic.Int64
	closed  atomic.Bool
	logger  zerolog.Logger
}

// New creates an admission queue. Zero config fields fall back to
// DefaultConfig values.
func New(cfg Config, logger zerolog.Logger) *Queue {
	def := DefaultConfig()
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}

	return &Queue{
		cfg:     cfg,
		pacer:   newPacer(cfg.Pacer),
		pending: make(chan *call, cfg.Buffer),
		logger:  logger,
	}
}

// Start launches the dispatcher goroutine. It runs until ctx is
// cancelled; pending calls are then failed with ErrQueueClosed.
func (q *Queue) Start(ctx context.Context) {
	go q.dispatch(ctx)
}

// Submit enqueues an upstream call and blocks until it settles
// terminally or ctx is cancelled. A call already admitted keeps running
// after cancellation; its result is discarded.
func (q *Queue) Submit(ctx context.Context, id string, invoke Invoke) (any, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}

	c := &call{
		id:         id,
		invoke:     invoke,
		ctx:        ctx,
		createdAt:  time.Now(),
		enqueuedAt: time.Now(),
		done:       make(chan outcome, 1),
	}

	select {
	case q.pending <- c:
		queueDepth.Set(float64(len(q.pending)))
	default:
		return nil, fmt.Errorf("admission queue full (%d pending)", q.cfg.Buffer)
	}

	select {
	case out := <-c.done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth returns the number of calls waiting for admission, including
// calls sitting out a requeue backoff. Never blocks.
func (q *Queue) Depth() int {
	return len(q.pending) + int(q.waiting.Load())
}

// Active returns the number of running upstream calls (0 or 1).
func (q *Queue) Active() int {
	return int(q.active.Load())
}

// Interval exposes the current adaptive pacing interval.
func (q *Queue) Interval() time.Duration {
	return q.pacer.Interval()
}

func (q *Queue) dispatch(ctx context.Context) {
	defer q.drain()

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case c := <-q.pending:
			queueDepth.Set(float64(len(q.pending)))

			if c.ctx.Err() != nil {
				// Submitter gave up while the call was queued.
				c.done <- outcome{err: c.ctx.Err()}
				continue
			}

			if err := q.pacer.Wait(ctx); err != nil {
				c.done <- outcome{err: ErrQueueClosed}
				return
			}

			q.run(ctx, c)
		}
	}
}

// run executes one admitted call and settles or requeues it.
func (q *Queue) run(ctx context.Context, c *call) {
	queueWaitSeconds.Observe(time.Since(c.enqueuedAt).Seconds())

	q.active.Store(1)
	queueActive.Set(1)
	start := time.Now()
	value, err := c.invoke(c.ctx)
	q.active.Store(0)
	queueActive.Set(0)

	switch {
	case err == nil:
		q.pacer.OnSuccess()
		queueCallsTotal.WithLabelValues("succeeded").Inc()
		c.done <- outcome{value: value}

	case errors.Is(err, ErrRateLimited):
		q.pacer.OnRateLimited()

		if c.retryCount >= q.cfg.MaxRetries {
			queueExhaustedTotal.Inc()
			queueCallsTotal.WithLabelValues("exhausted").Inc()
			q.logger.Warn().
				Str("call_id", c.id).
				Int("retries", c.retryCount).
				Msg("Rate-limit retries exhausted")
			c.done <- outcome{err: fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.retryCount+1, err)}
			return
		}

		backoff := q.backoffFor(c.retryCount)
		c.retryCount++
		queueRequeuesTotal.Inc()
		q.logger.Debug().
			Str("call_id", c.id).
			Int("retry", c.retryCount).
			Dur("backoff", backoff).
			Dur("duration", time.Since(start)).
			Msg("Rate limited, requeueing at tail")
		q.requeueAfter(ctx, c, backoff)

	default:
		// Non-rate-limit failures surface immediately; the queue never
		// retries them.
		queueCallsTotal.WithLabelValues("failed").Inc()
		c.done <- outcome{err: err}
	}
}

func (q *Queue) backoffFor(retryCount int) time.Duration {
	backoff := q.cfg.BackoffBase << uint(retryCount)
	if backoff > q.cfg.BackoffCap {
		backoff = q.cfg.BackoffCap
	}
	return backoff
}

// requeueAfter pushes the call back to the tail of the queue once the
// backoff elapses.
func (q *Queue) requeueAfter(ctx context.Context, c *call, backoff time.Duration) {
	q.waiting.Add(1)
	go func() {
		defer q.waiting.Add(-1)

		timer := time.NewTimer(backoff)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			c.done <- outcome{err: ErrQueueClosed}
		case <-c.ctx.Done():
			c.done <- outcome{err: c.ctx.Err()}
		case <-timer.C:
			c.enqueuedAt = time.Now()
			select {
			case q.pending <- c:
				queueDepth.Set(float64(len(q.pending)))
			default:
				c.done <- outcome{err: fmt.Errorf("admission queue full (%d pending)", q.cfg.Buffer)}
			}
		}
	}()
}

// drain fails everything still pending after shutdown.
func (q *Queue) drain() {
	q.closed.Store(true)
	for {
		select {
		case c := <-q.pending:
			queueCallsTotal.WithLabelValues("closed").Inc()
			c.done <- outcome{err: ErrQueueClosed}
		default:
			queueDepth.Set(0)
			return
		}
	}
}
