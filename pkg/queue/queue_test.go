package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastConfig() Config {
	return Config{
		Pacer: PacerConfig{
			InitialInterval: time.Millisecond,
			FloorInterval:   time.Millisecond,
			CeilingInterval: 50 * time.Millisecond,
			IncreaseFactor:  1.5,
			DecreaseFactor:  0.75,
			SuccessStreak:   3,
		},
		BackoffBase: time.Millisecond,
		BackoffCap:  10 * time.Millisecond,
		MaxRetries:  3,
		Buffer:      64,
	}
}

func startQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	q := New(cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)
	return q
}

func TestQueue_SubmitSuccess(t *testing.T) {
	q := startQueue(t, fastConfig())

	value, err := q.Submit(context.Background(), "call-1", func(ctx context.Context) (any, error) {
		return "priced", nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if value != "priced" {
		t.Errorf("value = %v, want priced", value)
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := startQueue(t, fastConfig())

	var mu sync.Mutex
	var order []string

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("call-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Submit(context.Background(), id, func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return nil, nil
			})
		}()
		// Stagger submissions so enqueue order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	for i, id := range order {
		want := fmt.Sprintf("call-%d", i)
		if id != want {
			t.Fatalf("start order[%d] = %s, want %s (full order %v)", i, id, want, order)
		}
	}
}

func TestQueue_SingleFlight(t *testing.T) {
	q := startQueue(t, fastConfig())

	var inFlight, maxInFlight atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Submit(context.Background(), "call", func(ctx context.Context) (any, error) {
				cur := inFlight.Add(1)
				if cur > maxInFlight.Load() {
					maxInFlight.Store(cur)
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent upstream calls = %d, want 1", maxInFlight.Load())
	}
}

func TestQueue_RateLimitedRetriesThenSucceeds(t *testing.T) {
	q := startQueue(t, fastConfig())

	var attempts atomic.Int64
	value, err := q.Submit(context.Background(), "call", func(ctx context.Context) (any, error) {
		if attempts.Add(1) == 1 {
			return nil, fmt.Errorf("status 429: %w", ErrRateLimited)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if value != "ok" {
		t.Errorf("value = %v, want ok", value)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2 (one rejection, one retry)", attempts.Load())
	}
}

func TestQueue_RequeueMovesToTail(t *testing.T) {
	q := startQueue(t, fastConfig())

	var mu sync.Mutex
	var starts []string
	record := func(id string) {
		mu.Lock()
		starts = append(starts, id)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	var aAttempts atomic.Int64

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Submit(context.Background(), "a", func(ctx context.Context) (any, error) {
			record("a")
			if aAttempts.Add(1) == 1 {
				// Stay in flight until b is already queued, so the
				// requeue lands strictly behind b.
				time.Sleep(30 * time.Millisecond)
				return nil, ErrRateLimited
			}
			return nil, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Submit(context.Background(), "b", func(ctx context.Context) (any, error) {
			record("b")
			return nil, nil
		})
	}()
	wg.Wait()

	want := []string{"a", "b", "a"}
	if len(starts) != len(want) {
		t.Fatalf("starts = %v, want %v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("starts = %v, want %v", starts, want)
		}
	}
}

func TestQueue_NonRateLimitErrorNotRetried(t *testing.T) {
	q := startQueue(t, fastConfig())

	transportErr := errors.New("connection reset")
	var attempts atomic.Int64

	_, err := q.Submit(context.Background(), "call", func(ctx context.Context) (any, error) {
		attempts.Add(1)
		return nil, transportErr
	})
	if !errors.Is(err, transportErr) {
		t.Fatalf("err = %v, want transport error surfaced as-is", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (no queue-level retry)", attempts.Load())
	}
}

func TestQueue_RetriesExhausted(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	q := startQueue(t, cfg)

	var attempts atomic.Int64
	_, err := q.Submit(context.Background(), "call", func(ctx context.Context) (any, error) {
		attempts.Add(1)
		return nil, ErrRateLimited
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts.Load())
	}
}

func TestQueue_AdaptiveIntervalReactsToOutcomes(t *testing.T) {
	q := startQueue(t, fastConfig())
	initial := q.Interval()

	var attempts atomic.Int64
	q.Submit(context.Background(), "call", func(ctx context.Context) (any, error) {
		if attempts.Add(1) == 1 {
			return nil, ErrRateLimited
		}
		return nil, nil
	})

	// One rejection widened, one success is below the streak threshold.
	if q.Interval() <= initial {
		t.Errorf("interval = %v, want wider than initial %v after a rejection", q.Interval(), initial)
	}
}

func TestQueue_Introspection(t *testing.T) {
	q := startQueue(t, fastConfig())

	if q.Depth() != 0 {
		t.Errorf("Depth = %d, want 0 on idle queue", q.Depth())
	}
	if q.Active() != 0 {
		t.Errorf("Active = %d, want 0 on idle queue", q.Active())
	}

	release := make(chan struct{})
	go q.Submit(context.Background(), "slow", func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	time.Sleep(20 * time.Millisecond)

	if q.Active() != 1 {
		t.Errorf("Active = %d, want 1 while a call is running", q.Active())
	}
	close(release)
}

func TestQueue_SubmitterCancellation(t *testing.T) {
	q := startQueue(t, fastConfig())

	started := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := q.Submit(ctx, "call", func(ctx context.Context) (any, error) {
		close(started)
		// The admitted call completes; the result is discarded.
		time.Sleep(10 * time.Millisecond)
		close(finished)
		return "late", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("admitted call should have run to completion")
	}
}

func TestQueue_ClosedFailsPending(t *testing.T) {
	q := New(fastConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	block := make(chan struct{})
	go q.Submit(context.Background(), "running", func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	})
	time.Sleep(10 * time.Millisecond)

	errc := make(chan error, 1)
	go func() {
		_, err := q.Submit(context.Background(), "pending", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	close(block)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending call did not settle after shutdown")
	}
}
