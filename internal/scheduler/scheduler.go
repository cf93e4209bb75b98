package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doridoridoriand/holdwatch/internal/job"
)

// Runner performs one sampling pass.
type Runner interface {
	Run(ctx context.Context) (job.Result, error)
}

// Scheduler drives periodic sampling runs.
type Scheduler interface {
	Run(ctx context.Context) error
	UpdateConfig(interval time.Duration)
	Stop()
}

// ResultFunc receives every finished run.
type ResultFunc func(res job.Result, err error)

// Impl runs the job immediately and then once per interval. Runs never
// overlap: the next wait starts after the previous run returns.
type Impl struct {
	mu       sync.RWMutex
	interval time.Duration
	runner   Runner
	onResult ResultFunc
	reset    chan struct{}
	cancel   context.CancelFunc
}

// NewScheduler constructs a scheduler instance. onResult may be nil.
func NewScheduler(interval time.Duration, runner Runner, onResult ResultFunc) *Impl {
	return &Impl{
		interval: interval,
		runner:   runner,
		onResult: onResult,
		reset:    make(chan struct{}, 1),
	}
}

// Run blocks until context cancellation or Stop.
func (s *Impl) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	s.runOnce(runCtx)
	for {
		timer := time.NewTimer(s.currentInterval())
		select {
		case <-runCtx.Done():
			timer.Stop()
			return runCtx.Err()
		case <-s.reset:
			timer.Stop()
			continue
		case <-timer.C:
		}
		s.runOnce(runCtx)
	}
}

// UpdateConfig changes the interval. A pending wait restarts with the new
// value.
func (s *Impl) UpdateConfig(interval time.Duration) {
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Stop cancels the running loop.
func (s *Impl) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Impl) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.runner.Run(ctx)
	if s.onResult != nil {
		s.onResult(res, err)
	}
}

func (s *Impl) currentInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.interval <= 0 {
		return time.Second
	}
	return s.interval
}
