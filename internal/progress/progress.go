// Package progress reports how far a fingerprint read has got. Hashing a
// multi-gigabyte file takes long enough that a silent agent looks hung.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Ning0612/dedupwatch/internal/logger"
)

// Reporter receives progress for reading one file at a time
type Reporter interface {
	Start(path string, totalBytes int64)
	Update(bytesRead int64)
	Complete()
	Error(err error)
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateProgress
	UpdateComplete
	UpdateError
)

// Update is one progress event. Hashed and BytesHashed accumulate over the
// reporter's lifetime; the other fields describe the current file.
type Update struct {
	Type           UpdateType
	Path           string
	Read           int64
	Total          int64
	Elapsed        time.Duration
	BytesPerSecond float64
	Hashed         int
	BytesHashed    int64
	Err            error
}

// Percent returns how much of the current file has been read, or -1 when
// the size is unknown
func (u Update) Percent() float64 {
	if u.Total <= 0 {
		return -1
	}
	return float64(u.Read) / float64(u.Total) * 100
}

// Callback receives progress updates
type Callback func(Update)

// CallbackReporter turns Reporter calls into Updates for a callback.
// The callback runs outside the reporter's lock.
type CallbackReporter struct {
	callback Callback

	mu          sync.Mutex
	path        string
	total       int64
	read        int64
	started     time.Time
	hashed      int
	bytesHashed int64
}

// NewCallbackReporter creates a reporter that forwards to callback
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{callback: callback}
}

func (r *CallbackReporter) Start(path string, totalBytes int64) {
	r.emit(UpdateStart, nil, func() {
		r.path, r.total, r.read = path, totalBytes, 0
		r.started = time.Now()
	})
}

func (r *CallbackReporter) Update(bytesRead int64) {
	r.emit(UpdateProgress, nil, func() { r.read = bytesRead })
}

func (r *CallbackReporter) Complete() {
	r.emit(UpdateComplete, nil, func() {
		r.hashed++
		r.bytesHashed += r.read
	})
}

func (r *CallbackReporter) Error(err error) {
	r.emit(UpdateError, err, func() {})
}

// emit applies mutate under the lock, snapshots the state and hands it to
// the callback after unlocking
func (r *CallbackReporter) emit(t UpdateType, err error, mutate func()) {
	r.mu.Lock()
	mutate()
	u := Update{
		Type:        t,
		Path:        r.path,
		Read:        r.read,
		Total:       r.total,
		Elapsed:     time.Since(r.started),
		Hashed:      r.hashed,
		BytesHashed: r.bytesHashed,
		Err:         err,
	}
	if secs := u.Elapsed.Seconds(); secs > 0 {
		u.BytesPerSecond = float64(r.read) / secs
	}
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(u)
	}
}

// NewLogReporter logs hashing progress at debug level, at most once per
// interval per file. Files that finish within one interval produce no
// progress lines.
func NewLogReporter(log logger.Logger, interval time.Duration) *CallbackReporter {
	var last time.Time
	return NewCallbackReporter(func(u Update) {
		switch u.Type {
		case UpdateStart:
			last = time.Now()
		case UpdateProgress:
			if time.Since(last) < interval {
				return
			}
			last = time.Now()
			args := []any{
				"path", u.Path,
				"read", humanize.IBytes(uint64(u.Read)),
				"total", humanize.IBytes(uint64(u.Total)),
				"rate", humanize.IBytes(uint64(u.BytesPerSecond)) + "/s",
			}
			if pct := u.Percent(); pct >= 0 {
				args = append(args, "percent", fmt.Sprintf("%.1f%%", pct))
			}
			log.Debug("hashing", args...)
		case UpdateComplete:
			if u.Elapsed >= interval {
				log.Debug("hashed", "path", u.Path, "size", humanize.IBytes(uint64(u.Read)), "took", u.Elapsed.Round(time.Millisecond))
			}
		case UpdateError:
			log.Debug("hashing interrupted", "path", u.Path, "read", humanize.IBytes(uint64(u.Read)), "error", u.Err)
		}
	})
}

// ProgressReader reports cumulative bytes read through it
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	read     int64
}

// NewProgressReader wraps r; a nil reporter is allowed
func NewProgressReader(r io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{reader: r, reporter: reporter}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.reporter != nil {
			pr.reporter.Update(pr.read)
		}
	}
	return n, err
}

// NullReporter discards progress
type NullReporter struct{}

func (NullReporter) Start(string, int64) {}
func (NullReporter) Update(int64)        {}
func (NullReporter) Complete()           {}
func (NullReporter) Error(error)         {}
