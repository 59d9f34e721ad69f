package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Ning0612/dedupwatch/internal/pace"
)

// RoundScheduler runs rounds back to back with a fixed delay in between.
// The first round starts immediately. A slow round pushes the next one out
// instead of overlapping it. A scheduler runs once; after Stop or
// cancellation it cannot be started again.
type RoundScheduler struct {
	config Config
	runner RoundRunner

	mu      sync.RWMutex
	started bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	fatal   error
	status  Status
}

var _ Scheduler = (*RoundScheduler)(nil)

// NewRoundScheduler creates a new fixed-delay scheduler
func NewRoundScheduler(config Config, runner RoundRunner) (*RoundScheduler, error) {
	if config.RoundDelay <= 0 {
		return nil, fmt.Errorf("round delay must be positive, got %v", config.RoundDelay)
	}
	if runner == nil {
		return nil, errors.New("round runner cannot be nil")
	}
	return &RoundScheduler{
		config: config,
		runner: runner,
		done:   make(chan struct{}),
	}, nil
}

// Start launches the loop in the background. Cancelling ctx has the same
// effect as Stop.
func (s *RoundScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}
	if s.started {
		return errors.New("scheduler cannot be restarted after stop")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.running = true
	s.cancel = cancel
	s.status.NextRunTime = time.Now()

	go s.loop(loopCtx)
	return nil
}

func (s *RoundScheduler) loop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel()
		s.mu.Unlock()
		close(s.done)
	}()

	for {
		if err := s.executeRound(ctx); err != nil {
			s.mu.Lock()
			s.fatal = err
			s.mu.Unlock()
			return
		}
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.status.NextRunTime = time.Now().Add(s.config.RoundDelay)
		s.mu.Unlock()

		if err := pace.Wait(ctx, s.config.RoundDelay); err != nil {
			return
		}
	}
}

// executeRound runs one round and records its result. Only a recovered
// panic is returned; ordinary round errors are recorded and the loop goes on.
func (s *RoundScheduler) executeRound(ctx context.Context) (fatal error) {
	start := time.Now()
	s.mu.Lock()
	s.status.LastRunTime = start
	s.status.TotalRuns++
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			fatal = fmt.Errorf("%w: %v\n%s", ErrRoundPanic, r, debug.Stack())
			s.record(start, fatal, false)
		}
	}()

	err := s.runner.RunRound(ctx)
	interrupted := ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
	s.record(start, err, interrupted)
	return nil
}

func (s *RoundScheduler) record(start time.Time, err error, interrupted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastDuration = time.Since(start)
	switch {
	case interrupted:
		s.status.CancelledRuns++
	case err != nil:
		s.status.FailedRuns++
		s.status.LastError = err.Error()
	default:
		s.status.SuccessfulRuns++
		s.status.LastError = ""
	}
}

// Stop cancels the current round or pause and waits for the loop to exit
func (s *RoundScheduler) Stop() error {
	s.mu.RLock()
	running, cancel := s.running, s.cancel
	s.mu.RUnlock()

	if !running {
		return errors.New("scheduler is not running")
	}
	cancel()
	<-s.done
	return nil
}

// Done is closed once the loop has exited
func (s *RoundScheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal fault that ended the loop, or nil when the loop
// ended through cancellation or Stop
func (s *RoundScheduler) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fatal
}

// Status returns a snapshot of the loop's counters
func (s *RoundScheduler) Status() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	st.Running = s.running
	return &st
}
