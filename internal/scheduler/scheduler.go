package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrRoundPanic marks a fatal fault recovered from inside a round
var ErrRoundPanic = errors.New("round panicked")

// Scheduler drives scan rounds until stopped
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	Status() *Status
}

// Status is a snapshot of the loop. TotalRuns counts every started round;
// a round interrupted by shutdown is counted as cancelled, not failed.
type Status struct {
	Running        bool
	LastRunTime    time.Time
	LastDuration   time.Duration
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	CancelledRuns  int
	LastError      string
}

// Config contains scheduler configuration
type Config struct {
	// RoundDelay is the pause between the end of one round and the start of the next
	RoundDelay time.Duration
}

// RoundRunner is the interface that schedulers use to execute a scan round
type RoundRunner interface {
	// RunRound executes one full pass over the watched directory
	RunRound(ctx context.Context) error
}
