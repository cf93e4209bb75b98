package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/doridoridoriand/holdwatch/internal/job"
)

type recordingRunner struct {
	mu    sync.Mutex
	times []time.Time
	err   error
}

func (r *recordingRunner) Run(ctx context.Context) (job.Result, error) {
	r.mu.Lock()
	r.times = append(r.times, time.Now())
	n := len(r.times)
	r.mu.Unlock()
	return job.Result{RunID: time.Now().String(), Success: n%2 == 1}, r.err
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func (r *recordingRunner) snapshot() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.times))
	copy(out, r.times)
	return out
}

func (r *recordingRunner) waitFor(t *testing.T, count int, ctx context.Context) {
	t.Helper()
	for {
		if r.count() >= count {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for %d runs, saw %d", count, r.count())
		case <-time.After(1 * time.Millisecond):
		}
	}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(time.Hour, runner, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() { _ = s.Run(ctx) }()
	runner.waitFor(t, 1, ctx)
	s.Stop()
}

func TestSchedulerRepeatsOnInterval(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(10*time.Millisecond, runner, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = s.Run(ctx) }()
	runner.waitFor(t, 3, ctx)
	s.Stop()

	times := runner.snapshot()
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 8*time.Millisecond {
			t.Fatalf("runs %d and %d too close: %v", i-1, i, gap)
		}
	}
}

func TestSchedulerRejectsSecondRun(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(time.Hour, runner, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	runner.waitFor(t, 1, ctx)

	if err := s.Run(ctx); err == nil {
		t.Fatalf("expected error for concurrent Run")
	}
	s.Stop()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSchedulerUpdateConfigShortensWait(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(time.Hour, runner, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = s.Run(ctx) }()
	runner.waitFor(t, 1, ctx)

	s.UpdateConfig(5 * time.Millisecond)
	runner.waitFor(t, 3, ctx)
	s.Stop()
}

func TestSchedulerReportsResults(t *testing.T) {
	boom := errors.New("write failed")
	runner := &recordingRunner{err: boom}
	var mu sync.Mutex
	var errs []error
	s := NewScheduler(5*time.Millisecond, runner, func(res job.Result, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = s.Run(ctx) }()
	runner.waitFor(t, 2, ctx)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) == 0 {
		t.Fatalf("expected results to be reported")
	}
	for _, err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("expected persistence error to be passed through, got %v", err)
		}
	}
}

func TestSchedulerNoRunAfterCancel(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScheduler(time.Millisecond, runner, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runner.count() != 0 {
		t.Fatalf("expected no runs on a cancelled context, got %d", runner.count())
	}
}

func TestCurrentIntervalDefault(t *testing.T) {
	s := NewScheduler(0, &recordingRunner{}, nil)
	if got := s.currentInterval(); got != time.Second {
		t.Fatalf("expected 1s fallback interval, got %v", got)
	}
}
