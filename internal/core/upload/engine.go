package upload

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Ning0612/dedupwatch/internal/adapter"
	"github.com/Ning0612/dedupwatch/internal/domain"
	"github.com/Ning0612/dedupwatch/internal/logger"
)

// Remover deletes local files
type Remover interface {
	Remove(path string) error
}

// Evicter drops cached fingerprints
type Evicter interface {
	Evict(identity string)
}

// Options configures the decision engine
type Options struct {
	// Overwrite replaces a same-named remote file instead of keeping both
	Overwrite bool

	// Timeout bounds a single attempt on top of the client's own timeout (0 = none)
	Timeout time.Duration
}

// DefaultOptions overwrites on name collision with a 60s attempt budget
func DefaultOptions() Options {
	return Options{
		Overwrite: true,
		Timeout:   60 * time.Second,
	}
}

// Engine offers fingerprints to the remote store and reconciles the local
// side. The local file is deleted only when the store reports success AND
// reuse of existing content; every other outcome leaves all state alone.
type Engine struct {
	uploader adapter.HashUploader
	files    Remover
	cache    Evicter
	opts     Options
	log      logger.Logger
}

// NewEngine creates a decision engine
func NewEngine(uploader adapter.HashUploader, files Remover, cache Evicter, opts Options) *Engine {
	return &Engine{
		uploader: uploader,
		files:    files,
		cache:    cache,
		opts:     opts,
		log:      logger.With("component", "upload"),
	}
}

// SetLogger replaces the engine's logger
func (e *Engine) SetLogger(l logger.Logger) {
	e.log = l
}

// Attempt submits file.Digest for file and acts on the result.
// The attempt is never retried here; the next scan round is the retry.
func (e *Engine) Attempt(ctx context.Context, file domain.TrackedFile, targetID int64) domain.Outcome {
	if !file.HasDigest() {
		return domain.Failed(fmt.Errorf("%w: %s has no fingerprint", domain.ErrRemoteCall, file.Path))
	}

	callCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	resp, err := e.uploader.UploadByHash(callCtx, adapter.UploadByHashRequest{
		Digest:    file.Digest,
		Size:      file.Size,
		Name:      file.Name,
		ParentID:  targetID,
		Overwrite: e.opts.Overwrite,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrRemoteCall) && !errors.Is(err, domain.ErrRemoteDisabled) {
			err = fmt.Errorf("%w: %w", domain.ErrRemoteCall, err)
		}
		return domain.Failed(err)
	}
	if resp == nil {
		return domain.Failed(fmt.Errorf("%w: empty response", domain.ErrRemoteCall))
	}

	if !resp.Matched() {
		return domain.NotMatched(resp.Raw)
	}

	outcome := domain.Matched(strconv.FormatInt(resp.FileID, 10))
	e.reconcile(file)
	return outcome
}

// reconcile removes the local copy of a matched file and its cache entry.
// If the delete fails the cache entry is kept so the next round's
// re-upload, an idempotent overwrite, does not rehash.
func (e *Engine) reconcile(file domain.TrackedFile) {
	err := e.files.Remove(file.Path)
	switch {
	case err == nil:
		e.cache.Evict(file.Path)
		e.log.Info("deleted local copy", "path", file.Path)
	case errors.Is(err, domain.ErrNotFound):
		e.cache.Evict(file.Path)
		e.log.Warn("local copy already gone", "path", file.Path)
	default:
		e.log.Error("failed to delete local copy after match", "path", file.Path, "error", err)
	}
}
