package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Ning0612/dedupwatch/internal/adapter"
	"github.com/Ning0612/dedupwatch/internal/adapter/local"
	"github.com/Ning0612/dedupwatch/internal/adapter/pan123"
	"github.com/Ning0612/dedupwatch/internal/cache"
	"github.com/Ning0612/dedupwatch/internal/config"
	"github.com/Ning0612/dedupwatch/internal/core/checksum"
	"github.com/Ning0612/dedupwatch/internal/core/stability"
	"github.com/Ning0612/dedupwatch/internal/core/upload"
	"github.com/Ning0612/dedupwatch/internal/logger"
	"github.com/Ning0612/dedupwatch/internal/progress"
	"github.com/Ning0612/dedupwatch/internal/scheduler"
	"github.com/Ning0612/dedupwatch/internal/state"
)

// hashProgressInterval throttles progress lines for large files
const hashProgressInterval = 10 * time.Second

// DaemonService wires configuration, adapters, the agent, the scheduler
// and round history together
type DaemonService struct {
	mu        sync.RWMutex
	config    *config.Config
	agent     *Agent
	uploader  adapter.HashUploader
	stateMgr  *state.Manager
	scheduler *scheduler.RoundScheduler
	log       logger.Logger
}

// DaemonStatus represents the current daemon status
type DaemonStatus struct {
	Running        bool
	State          State
	CurrentFile    string
	SchedulerStats *scheduler.Status
	LastRound      *state.RoundRecord
}

// NewDaemonService creates a new daemon service
func NewDaemonService(cfg *config.Config) (*DaemonService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log := logger.With("component", "daemon")

	files, err := local.New(cfg.WatchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open watch directory %s: %w", cfg.WatchDir, err)
	}

	stateMgr, err := state.NewManager(cfg.GetStateDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create state manager: %w", err)
	}

	uploader := NewUploader(cfg, log)

	fingerprints := cache.NewFingerprints()

	hasher := checksum.NewFingerprinter(files)
	hasher.SetReporter(progress.NewLogReporter(logger.With("component", "checksum"), hashProgressInterval))

	checker := stability.NewChecker(files, stability.Options{
		Interval:    cfg.Scan.StabilityInterval,
		MaxAttempts: cfg.Scan.StabilityAttempts,
	})

	// Sign-in and upload each get the client timeout
	engine := upload.NewEngine(uploader, files, fingerprints, upload.Options{
		Overwrite: cfg.Remote.Overwrite,
		Timeout:   2 * cfg.Remote.Timeout,
	})

	agent := NewAgent(files, fingerprints, checker, hasher, engine, AgentOptions{
		TargetID:  cfg.Remote.TargetID,
		FileDelay: cfg.Scan.FileDelay,
	})

	return &DaemonService{
		config:   cfg,
		agent:    agent,
		uploader: uploader,
		stateMgr: stateMgr,
		log:      log,
	}, nil
}

// NewUploader returns the 123pan client, or adapter.Disabled when no
// credentials are configured or the client cannot be built
func NewUploader(cfg *config.Config, log logger.Logger) adapter.HashUploader {
	if !cfg.UploadEnabled() {
		log.Warn("no remote credentials configured, uploads disabled")
		return adapter.Disabled{}
	}

	client, err := pan123.New(pan123.Config{
		Passport: cfg.Remote.Passport,
		Password: cfg.Remote.Password,
		BaseURL:  cfg.Remote.BaseURL,
		LoginURL: cfg.Remote.LoginURL,
		Timeout:  cfg.Remote.Timeout,
	})
	if err != nil {
		log.Warn("failed to create remote client, uploads disabled", "error", err)
		return adapter.Disabled{}
	}
	return client
}

// Agent exposes the scan agent
func (d *DaemonService) Agent() *Agent {
	return d.agent
}

// RunOnce runs a single round and records it
func (d *DaemonService) RunOnce(ctx context.Context) (RoundStats, error) {
	return d.runner().runRound(ctx)
}

// Start starts the round loop in the background
func (d *DaemonService) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler != nil {
		return fmt.Errorf("daemon is already running")
	}

	sched, err := scheduler.NewRoundScheduler(scheduler.Config{
		RoundDelay: d.config.Scan.RoundDelay,
	}, d.runner())
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	d.scheduler = sched
	d.log.Info("daemon started",
		"watch_dir", d.config.WatchDir,
		"target_id", d.config.Remote.TargetID,
		"round_delay", d.config.Scan.RoundDelay,
		"file_delay", d.config.Scan.FileDelay,
	)
	return nil
}

// Done is closed when the round loop exits; nil if not started
func (d *DaemonService) Done() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.scheduler == nil {
		return nil
	}
	return d.scheduler.Done()
}

// Err returns the fatal fault that ended the round loop, if any
func (d *DaemonService) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.scheduler == nil {
		return nil
	}
	return d.scheduler.Err()
}

// Stop stops the daemon
func (d *DaemonService) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler == nil {
		return fmt.Errorf("daemon is not running")
	}

	if err := d.scheduler.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	d.scheduler = nil
	return nil
}

// Status returns the current daemon status
func (d *DaemonService) Status() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st, current := d.agent.State()
	status := &DaemonStatus{
		State:       st,
		CurrentFile: current,
	}

	if d.scheduler != nil {
		status.SchedulerStats = d.scheduler.Status()
		status.Running = status.SchedulerStats.Running
	}

	if d.stateMgr != nil {
		if last, err := d.stateMgr.LastRound(); err == nil {
			status.LastRound = last
		}
	}

	return status
}

// Close releases all resources
func (d *DaemonService) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error

	if d.scheduler != nil {
		// Already exited on its own if this fails
		_ = d.scheduler.Stop()
		d.scheduler = nil
	}

	if d.uploader != nil {
		if err := d.uploader.Close(); err != nil {
			lastErr = err
		}
	}

	if d.stateMgr != nil {
		if err := d.stateMgr.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

func (d *DaemonService) runner() *roundRunner {
	return &roundRunner{agent: d.agent, stateMgr: d.stateMgr, log: d.log}
}

// roundRunner implements scheduler.RoundRunner
type roundRunner struct {
	agent    *Agent
	stateMgr *state.Manager
	log      logger.Logger
}

// RunRound executes a round and records it in state
func (r *roundRunner) RunRound(ctx context.Context) error {
	_, err := r.runRound(ctx)
	return err
}

func (r *roundRunner) runRound(ctx context.Context) (RoundStats, error) {
	stats, err := r.agent.RunRound(ctx)

	record := state.RoundRecord{
		StartTime:  stats.Start,
		EndTime:    stats.End,
		Status:     roundStatus(stats, err),
		FilesSeen:  stats.FilesSeen,
		Matched:    stats.Matched,
		NotMatched: stats.NotMatched,
		Unstable:   stats.Unstable,
		Vanished:   stats.Vanished,
		Failed:     stats.Failed,
		BytesFreed: stats.BytesFreed,
	}
	if err != nil {
		record.Error = err.Error()
	} else if stats.Failed > 0 {
		record.Error = fmt.Sprintf("%d file(s) failed", stats.Failed)
	}

	if saveErr := r.stateMgr.SaveRound(record); saveErr != nil {
		r.log.Error("failed to record round", "error", saveErr)
	}

	r.log.Info("round complete",
		"status", record.Status,
		"files", stats.FilesSeen,
		"matched", stats.Matched,
		"not_matched", stats.NotMatched,
		"unstable", stats.Unstable,
		"vanished", stats.Vanished,
		"failed", stats.Failed,
		"freed", humanize.IBytes(uint64(stats.BytesFreed)),
		"took", stats.End.Sub(stats.Start).Round(time.Millisecond),
	)

	return stats, err
}

func roundStatus(stats RoundStats, err error) string {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return state.StatusCancelled
	case err != nil:
		return state.StatusFailed
	case stats.Failed > 0:
		return state.StatusPartial
	default:
		return state.StatusSuccess
	}
}

// FormatStats renders round stats for humans
func FormatStats(s RoundStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s): %d matched, %d not matched, %d unstable, %d vanished, %d failed",
		s.FilesSeen, s.Matched, s.NotMatched, s.Unstable, s.Vanished, s.Failed)
	if s.BytesFreed > 0 {
		fmt.Fprintf(&b, "; freed %s", humanize.IBytes(uint64(s.BytesFreed)))
	}
	return b.String()
}
