package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Ning0612/dedupwatch/internal/adapter/local"
	"github.com/Ning0612/dedupwatch/internal/cache"
	"github.com/Ning0612/dedupwatch/internal/core/stability"
	"github.com/Ning0612/dedupwatch/internal/domain"
	"github.com/Ning0612/dedupwatch/internal/logger"
	"github.com/Ning0612/dedupwatch/internal/pace"
)

// State is the agent's position in the scan loop
type State int

const (
	StateIdle State = iota
	StateScanning
	StateStabilizing
	StateHashing
	StateUploading
	StateRoundComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStabilizing:
		return "stabilizing"
	case StateHashing:
		return "hashing"
	case StateUploading:
		return "uploading"
	case StateRoundComplete:
		return "round_complete"
	default:
		return "unknown"
	}
}

// Disposition is what a round did with one file
type Disposition int

const (
	DispositionMatched Disposition = iota
	DispositionNotMatched
	DispositionUnstable
	DispositionVanished
	DispositionFailed
)

func (d Disposition) String() string {
	switch d {
	case DispositionMatched:
		return "matched"
	case DispositionNotMatched:
		return "not_matched"
	case DispositionUnstable:
		return "unstable"
	case DispositionVanished:
		return "vanished"
	case DispositionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileReport describes how one file was handled
type FileReport struct {
	Path        string
	Disposition Disposition
	Size        int64
	Digest      string

	// Cached is set when the digest came from the fingerprint cache
	Cached bool

	// RemoteFileID is set for DispositionMatched
	RemoteFileID string

	// Deleted is set when the local copy is gone after a match
	Deleted bool

	// Attempted is set once the file reached the remote call
	Attempted bool

	// Err is the cause for DispositionFailed
	Err error
}

// RoundStats summarizes one pass over the watched directory
type RoundStats struct {
	Start      time.Time
	End        time.Time
	FilesSeen  int
	Matched    int
	NotMatched int
	Unstable   int
	Vanished   int
	Failed     int
	BytesFreed int64
}

func (s *RoundStats) add(r FileReport) {
	switch r.Disposition {
	case DispositionMatched:
		s.Matched++
		if r.Deleted {
			s.BytesFreed += r.Size
		}
	case DispositionNotMatched:
		s.NotMatched++
	case DispositionUnstable:
		s.Unstable++
	case DispositionVanished:
		s.Vanished++
	case DispositionFailed:
		s.Failed++
	}
}

// StabilityChecker decides whether a file has finished arriving
type StabilityChecker interface {
	Check(ctx context.Context, path string) (stability.Result, error)
}

// Fingerprinter computes content digests
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string) (string, error)
}

// UploadAttempter offers a fingerprinted file to the remote store
type UploadAttempter interface {
	Attempt(ctx context.Context, file domain.TrackedFile, targetID int64) domain.Outcome
}

// AgentOptions configures the scan loop
type AgentOptions struct {
	// TargetID is the remote folder receiving uploads
	TargetID int64

	// FileDelay is the pause after each file that reached the remote call
	FileDelay time.Duration
}

// Agent walks the watched directory one file at a time:
// stabilize, fingerprint (cache first), upload by hash, pause.
// It is the only owner of the fingerprint cache.
type Agent struct {
	files   *local.Adapter
	cache   *cache.Fingerprints
	checker StabilityChecker
	hasher  Fingerprinter
	uploads UploadAttempter
	opts    AgentOptions
	log     logger.Logger

	mu      sync.RWMutex
	state   State
	current string
}

// NewAgent creates an agent
func NewAgent(
	files *local.Adapter,
	fingerprints *cache.Fingerprints,
	checker StabilityChecker,
	hasher Fingerprinter,
	uploads UploadAttempter,
	opts AgentOptions,
) *Agent {
	return &Agent{
		files:   files,
		cache:   fingerprints,
		checker: checker,
		hasher:  hasher,
		uploads: uploads,
		opts:    opts,
		log:     logger.With("component", "agent"),
	}
}

// SetLogger replaces the agent's logger
func (a *Agent) SetLogger(l logger.Logger) {
	a.log = l
}

// State returns the current state and the file being handled, if any
func (a *Agent) State() (State, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.current
}

func (a *Agent) setState(s State, path string) {
	a.mu.Lock()
	a.state = s
	a.current = path
	a.mu.Unlock()
}

// RunRound makes one full pass over the watched directory.
//
// Per-file problems are counted in the stats and never end the round. A
// missing watch directory is logged and yields an empty round. The only
// errors returned are cancellation and a directory that cannot be listed.
func (a *Agent) RunRound(ctx context.Context) (stats RoundStats, err error) {
	stats.Start = time.Now()
	defer func() {
		stats.End = time.Now()
		a.setState(StateRoundComplete, "")
	}()

	a.setState(StateScanning, "")
	paths, err := a.files.List(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}
		if errors.Is(err, domain.ErrNotFound) {
			a.log.Warn("watch directory does not exist", "dir", a.files.Root())
			return stats, nil
		}
		a.log.Error("failed to scan watch directory", "dir", a.files.Root(), "error", err)
		return stats, fmt.Errorf("scan %s: %w", a.files.Root(), err)
	}

	stats.FilesSeen = len(paths)
	a.log.Debug("scan started", "dir", a.files.Root(), "files", len(paths))

	for _, path := range paths {
		report, err := a.ProcessFile(ctx, path)
		if err != nil {
			return stats, err
		}
		stats.add(report)
		if !report.Attempted {
			continue
		}

		if err := pace.Wait(ctx, a.opts.FileDelay); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// ProcessFile runs one file through stabilize, fingerprint and upload.
// The returned error is non-nil only on cancellation; every other problem
// is reported through FileReport.
func (a *Agent) ProcessFile(ctx context.Context, path string) (FileReport, error) {
	report := FileReport{Path: path}

	a.setState(StateStabilizing, path)
	result, err := a.checker.Check(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		a.log.Warn("failed to read file size", "path", path, "error", err)
		report.Disposition = DispositionFailed
		report.Err = err
		return report, nil
	}
	report.Size = result.Size

	switch result.Verdict {
	case domain.FileVanished:
		a.cache.Evict(path)
		a.log.Info("file vanished", "path", path)
		report.Disposition = DispositionVanished
		return report, nil
	case domain.SizeUnstable:
		a.log.Info("file still growing, skipping",
			"path", path,
			"size", humanize.IBytes(uint64(result.Size)),
			"reads", result.Reads,
		)
		report.Disposition = DispositionUnstable
		return report, nil
	}

	file := domain.TrackedFile{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     result.Size,
		LastSize: result.LastSize,
	}

	a.setState(StateHashing, path)
	digest, cached := a.cache.Get(path)
	if !cached {
		digest, err = a.hasher.Fingerprint(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			if errors.Is(err, domain.ErrFileVanished) {
				a.cache.Evict(path)
				a.log.Info("file vanished while hashing", "path", path)
				report.Disposition = DispositionVanished
				return report, nil
			}
			a.log.Warn("failed to fingerprint file", "path", path, "error", err)
			report.Disposition = DispositionFailed
			report.Err = err
			return report, nil
		}
		a.cache.Put(path, digest)
	}
	file.Digest = digest
	report.Digest = digest
	report.Cached = cached

	a.setState(StateUploading, path)
	report.Attempted = true
	outcome := a.uploads.Attempt(ctx, file, a.opts.TargetID)

	switch outcome.Kind {
	case domain.OutcomeMatched:
		report.Disposition = DispositionMatched
		report.RemoteFileID = outcome.RemoteFileID
		report.Deleted = a.gone(path)
		a.log.Info("instant upload matched",
			"path", path,
			"size", humanize.IBytes(uint64(file.Size)),
			"remote_id", outcome.RemoteFileID,
		)
	case domain.OutcomeNotMatched:
		report.Disposition = DispositionNotMatched
		a.log.Info("no dedup match, keeping file", "path", path, "response", outcome.Raw)
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		report.Disposition = DispositionFailed
		report.Err = outcome.Err
		if errors.Is(outcome.Err, domain.ErrRemoteDisabled) {
			a.log.Warn("upload disabled, keeping file", "path", path)
		} else {
			a.log.Error("upload attempt failed", "path", path, "error", outcome.Err)
		}
	}

	return report, nil
}

func (a *Agent) gone(path string) bool {
	_, err := a.files.Size(path)
	return errors.Is(err, domain.ErrNotFound)
}
