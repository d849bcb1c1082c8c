package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/internal/tracker/status"
	"github.com/tair/price-tracker/pkg/logger"
)

// DefaultInterval between scheduled cycles
const DefaultInterval = 12 * time.Hour

// ErrNotRunning is returned by RunNow when the scheduler is stopped
var ErrNotRunning = errors.New("scheduler is not running")

// Runner executes one check cycle
type Runner interface {
	RunCycle(ctx context.Context) (domain.CycleSummary, error)
}

// Ticker delivers scheduled triggers
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithInterval sets the period of scheduled cycles
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicker replaces the ticker constructor
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(s *Scheduler) {
		s.newTicker = newTicker
	}
}

// WithStatusStore records every completed cycle in store
func WithStatusStore(store status.Store) Option {
	return func(s *Scheduler) {
		s.status = store
	}
}

// WithRunOnStart runs one cycle as soon as the scheduler starts
func WithRunOnStart() Option {
	return func(s *Scheduler) {
		s.runOnStart = true
	}
}

// WithClock sets the time source used for NextRun
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

type result struct {
	summary domain.CycleSummary
	err     error
}

// Scheduler serializes timer and manual triggers into a single executor.
// Manual requests that arrive while a cycle is in flight are coalesced into
// one follow-up cycle whose result every waiter receives.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	newTicker  func(time.Duration) Ticker
	status     status.Store
	runOnStart bool
	now        func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
	pending []chan result
	nextRun time.Time
}

// New creates a new scheduler around runner
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		interval:  DefaultInterval,
		newTicker: newTimeTicker,
		status:    status.NewMemoryStore(status.DefaultHistorySize),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the executor. It returns immediately; cycles run until Stop
// is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	s.nextRun = s.now().Add(s.interval)

	ticker := s.newTicker(s.interval)
	go s.loop(ctx, ticker, s.wake, s.done)

	logger.Info(ctx).
		Dur("interval", s.interval).
		Time("next_run", s.nextRun).
		Msg("Scheduler started")
	return nil
}

// Stop cancels the executor and waits for an in-flight cycle to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunNow requests a cycle and waits for its summary
func (s *Scheduler) RunNow(ctx context.Context) (domain.CycleSummary, error) {
	reply := make(chan result, 1)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return domain.CycleSummary{}, ErrNotRunning
	}
	s.pending = append(s.pending, reply)
	wake := s.wake
	s.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}

	select {
	case r := <-reply:
		return r.summary, r.err
	case <-ctx.Done():
		return domain.CycleSummary{}, ctx.Err()
	}
}

// Running reports whether the executor is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the time of the next scheduled cycle, or the zero time when stopped
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.nextRun
}

// Interval returns the period of scheduled cycles
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// LastCycle returns the most recent completed cycle, if any
func (s *Scheduler) LastCycle(ctx context.Context) (domain.CycleSummary, bool, error) {
	return s.status.Last(ctx)
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, wake <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	defer s.shutdown()

	if s.runOnStart {
		s.execute(ctx, false)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.mu.Lock()
			s.nextRun = s.now().Add(s.interval)
			s.mu.Unlock()
			s.execute(ctx, false)
		case <-wake:
			s.execute(ctx, true)
		}
	}
}

// execute runs one cycle on behalf of every request queued so far. A manual
// wake-up whose requests were already served by a scheduled cycle is a no-op.
func (s *Scheduler) execute(ctx context.Context, manual bool) {
	s.mu.Lock()
	waiters := s.pending
	s.pending = nil
	s.mu.Unlock()

	if manual && len(waiters) == 0 {
		return
	}

	if ctx.Err() != nil {
		s.reply(waiters, result{err: ErrNotRunning})
		return
	}

	summary, err := s.runner.RunCycle(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Str("cycle_id", summary.ID).Msg("Check cycle failed")
	}

	if summary.ID != "" {
		if saveErr := s.status.Save(context.WithoutCancel(ctx), summary); saveErr != nil {
			logger.Warn(ctx).Err(saveErr).Msg("Failed to save cycle status")
		}
		logger.Info(ctx).
			Time("last_checked", summary.CompletedAt).
			Time("next_check", s.NextRun()).
			Msg("Status updated")
	}

	s.reply(waiters, result{summary: summary, err: err})
}

func (s *Scheduler) reply(waiters []chan result, r result) {
	for _, w := range waiters {
		w <- r
	}
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	waiters := s.pending
	s.pending = nil
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	s.reply(waiters, result{err: ErrNotRunning})
	logger.Info(context.Background()).Msg("Scheduler stopped")
}
