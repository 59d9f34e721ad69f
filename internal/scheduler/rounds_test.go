package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRoundRunner is a mock implementation of RoundRunner for testing
type mockRoundRunner struct {
	mu        sync.Mutex
	calls     int
	shouldErr bool
	panicOn   int
	delay     time.Duration
}

func (m *mockRoundRunner) RunRound(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.panicOn > 0 && n == m.panicOn {
		panic("boom")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.shouldErr {
		return errors.New("round failed")
	}
	return nil
}

func (m *mockRoundRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func waitDone(t *testing.T, s *RoundScheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit in time")
	}
}

func TestNewRoundScheduler(t *testing.T) {
	runner := &mockRoundRunner{}

	scheduler, err := NewRoundScheduler(Config{RoundDelay: time.Second}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if scheduler == nil {
		t.Fatal("Scheduler is nil")
	}
}

func TestNewRoundScheduler_InvalidDelay(t *testing.T) {
	_, err := NewRoundScheduler(Config{RoundDelay: 0}, &mockRoundRunner{})
	if err == nil {
		t.Error("Expected error for zero delay, got nil")
	}
}

func TestNewRoundScheduler_NilRunner(t *testing.T) {
	_, err := NewRoundScheduler(Config{RoundDelay: time.Second}, nil)
	if err == nil {
		t.Error("Expected error for nil runner, got nil")
	}
}

func TestRoundScheduler_FirstRoundImmediate(t *testing.T) {
	runner := &mockRoundRunner{}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: time.Hour}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for runner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runner.count() != 1 {
		t.Errorf("Expected exactly one immediate round, got %d", runner.count())
	}

	cancel()
	waitDone(t, scheduler)
}

func TestRoundScheduler_RepeatsAfterDelay(t *testing.T) {
	runner := &mockRoundRunner{}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: 50 * time.Millisecond}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(180 * time.Millisecond)

	status := scheduler.Status()
	if !status.Running {
		t.Error("Scheduler should be running")
	}
	if status.TotalRuns < 2 {
		t.Errorf("Expected at least 2 runs, got %d", status.TotalRuns)
	}
	if status.SuccessfulRuns == 0 {
		t.Error("Expected successful runs > 0")
	}
	if status.NextRunTime.IsZero() {
		t.Error("Next run time should be set")
	}

	cancel()
	waitDone(t, scheduler)
}

func TestRoundScheduler_NoOverlap(t *testing.T) {
	// Each round takes longer than the delay; rounds must still be sequential
	runner := &mockRoundRunner{delay: 60 * time.Millisecond}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: 10 * time.Millisecond}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	cancel()
	waitDone(t, scheduler)

	// 200ms / (60ms + 10ms) allows at most 3 started rounds
	if n := runner.count(); n > 3 {
		t.Errorf("Expected at most 3 sequential rounds, got %d", n)
	}
}

func TestRoundScheduler_Stop(t *testing.T) {
	runner := &mockRoundRunner{}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: time.Hour}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	// Stop must interrupt the hour-long pause
	done := make(chan error, 1)
	go func() { done <- scheduler.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Failed to stop scheduler: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the round delay")
	}

	if scheduler.Status().Running {
		t.Error("Scheduler should not be running after stop")
	}
	if scheduler.Err() != nil {
		t.Errorf("Stop should not be fatal, got %v", scheduler.Err())
	}
	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("Expected error when restarting a stopped scheduler")
	}
}

func TestRoundScheduler_DoubleStart(t *testing.T) {
	scheduler, err := NewRoundScheduler(Config{RoundDelay: time.Second}, &mockRoundRunner{})
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx := context.Background()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	if err := scheduler.Start(ctx); err == nil {
		t.Error("Expected error when starting already running scheduler")
	}
}

func TestRoundScheduler_StopNotRunning(t *testing.T) {
	scheduler, err := NewRoundScheduler(Config{RoundDelay: time.Second}, &mockRoundRunner{})
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if err := scheduler.Stop(); err == nil {
		t.Error("Expected error when stopping non-running scheduler")
	}
}

func TestRoundScheduler_CancelMidRound(t *testing.T) {
	runner := &mockRoundRunner{delay: time.Hour}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: time.Second}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	cancel()
	waitDone(t, scheduler)

	status := scheduler.Status()
	if status.Running {
		t.Error("Scheduler should stop when context is cancelled")
	}
	if status.FailedRuns != 0 {
		t.Errorf("Interrupted round should not count as failed, got %d", status.FailedRuns)
	}
	if status.CancelledRuns != 1 {
		t.Errorf("Expected 1 cancelled round, got %d", status.CancelledRuns)
	}
	if scheduler.Err() != nil {
		t.Errorf("Cancellation should not be fatal, got %v", scheduler.Err())
	}
}

func TestRoundScheduler_ErrorHandling(t *testing.T) {
	runner := &mockRoundRunner{shouldErr: true}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: 20 * time.Millisecond}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	status := scheduler.Status()
	if status.FailedRuns < 2 {
		t.Errorf("Round errors should not stop the loop, got %d failed runs", status.FailedRuns)
	}
	if status.LastError == "" {
		t.Error("Expected last error to be set")
	}
	if !status.Running {
		t.Error("Scheduler should keep running after a round error")
	}

	cancel()
	waitDone(t, scheduler)
}

func TestRoundScheduler_PanicIsFatal(t *testing.T) {
	runner := &mockRoundRunner{panicOn: 2}
	scheduler, err := NewRoundScheduler(Config{RoundDelay: 10 * time.Millisecond}, runner)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	waitDone(t, scheduler)

	if !errors.Is(scheduler.Err(), ErrRoundPanic) {
		t.Fatalf("Expected ErrRoundPanic, got %v", scheduler.Err())
	}
	if runner.count() != 2 {
		t.Errorf("Expected loop to end at the panicking round, got %d calls", runner.count())
	}
	status := scheduler.Status()
	if status.Running {
		t.Error("Scheduler should not be running after a fatal fault")
	}
	if status.FailedRuns != 1 || status.SuccessfulRuns != 1 {
		t.Errorf("Unexpected stats after panic: %+v", status)
	}
}
