package stability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ning0612/dedupwatch/internal/domain"
	"github.com/Ning0612/dedupwatch/internal/pace"
)

// SizeReader reports the current size of a file
type SizeReader interface {
	Size(path string) (int64, error)
}

// Options configures the stability checker
type Options struct {
	// Interval is the pause between two size reads
	Interval time.Duration

	// MaxAttempts is how many times the size is re-read before giving up
	MaxAttempts int
}

// DefaultOptions returns 30s between reads and up to 1000 attempts
func DefaultOptions() Options {
	return Options{
		Interval:    30 * time.Second,
		MaxAttempts: 1000,
	}
}

// Result describes a finished stability check
type Result struct {
	Verdict domain.Verdict

	// Size is the last size read; for Stable it is the final file size
	Size int64

	// LastSize is the read before Size
	LastSize int64

	// Reads is the number of size reads performed
	Reads int
}

// Checker decides whether a producer has finished writing a file by
// watching its size stop changing. A slow writer and a stalled one look
// the same: both are abandoned after MaxAttempts.
type Checker struct {
	sizer SizeReader
	opts  Options
	wait  func(ctx context.Context, d time.Duration) error
}

// NewChecker creates a checker reading sizes through sizer
func NewChecker(sizer SizeReader, opts Options) *Checker {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	return &Checker{
		sizer: sizer,
		opts:  opts,
		wait:  pace.Wait,
	}
}

// Options returns the effective options
func (c *Checker) Options() Options {
	return c.opts
}

// Check reads the size, then up to MaxAttempts times pauses Interval and
// reads it again, returning Stable as soon as two consecutive reads match.
//
// A file that disappears yields FileVanished. Other stat failures are
// returned wrapped in domain.ErrFileRead and cancellation returns ctx.Err();
// the Verdict is meaningless whenever an error is returned.
func (c *Checker) Check(ctx context.Context, path string) (Result, error) {
	var result Result

	size, vanished, err := c.read(path)
	result.Reads++
	if err != nil {
		return result, err
	}
	if vanished {
		result.Verdict = domain.FileVanished
		return result, nil
	}
	result.Size = size

	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if err := c.wait(ctx, c.opts.Interval); err != nil {
			return result, err
		}

		size, vanished, err := c.read(path)
		result.Reads++
		if err != nil {
			return result, err
		}
		if vanished {
			result.Verdict = domain.FileVanished
			return result, nil
		}

		result.LastSize, result.Size = result.Size, size
		if result.LastSize == result.Size {
			result.Verdict = domain.Stable
			return result, nil
		}
	}

	result.Verdict = domain.SizeUnstable
	return result, nil
}

func (c *Checker) read(path string) (size int64, vanished bool, err error) {
	size, err = c.sizer.Size(path)
	if err == nil {
		return size, false, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return 0, true, nil
	}
	return 0, false, fmt.Errorf("%w: stat %s: %v", domain.ErrFileRead, path, err)
}
