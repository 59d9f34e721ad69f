package checksum

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Ning0612/dedupwatch/internal/domain"
	"github.com/Ning0612/dedupwatch/internal/progress"
)

// Opener opens files for streaming reads
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// Fingerprinter produces the content digest used both as cache value and
// as the proof sent to the remote store. The algorithm must be the one the
// store compares, which for 123pan is MD5.
type Fingerprinter struct {
	opener   Opener
	algo     Algorithm
	reporter progress.Reporter
}

// NewFingerprinter creates an MD5 fingerprinter reading through opener
func NewFingerprinter(opener Opener) *Fingerprinter {
	return &Fingerprinter{
		opener:   opener,
		algo:     MD5,
		reporter: progress.NullReporter{},
	}
}

// NewFingerprinterWithAlgorithm creates a fingerprinter using algo.
// Only MD5 digests are accepted by the store.
func NewFingerprinterWithAlgorithm(opener Opener, algo Algorithm) (*Fingerprinter, error) {
	if !IsSupported(algo) {
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
	f := NewFingerprinter(opener)
	f.algo = algo
	return f, nil
}

// SetReporter routes read progress to r
func (f *Fingerprinter) SetReporter(r progress.Reporter) {
	if r == nil {
		r = progress.NullReporter{}
	}
	f.reporter = r
}

// sizer is implemented by openers that can report a file size up front
type sizer interface {
	Size(path string) (int64, error)
}

// Fingerprint streams the file at path and returns its hex digest.
// A missing file wraps domain.ErrFileVanished, any other I/O failure wraps
// domain.ErrFileRead. Context errors are returned as is.
func (f *Fingerprinter) Fingerprint(ctx context.Context, path string) (string, error) {
	reader, err := f.opener.Open(path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrFileVanished, path)
		}
		return "", fmt.Errorf("%w: open %s: %v", domain.ErrFileRead, path, err)
	}
	defer reader.Close()

	var total int64
	if s, ok := f.opener.(sizer); ok {
		total, _ = s.Size(path)
	}
	f.reporter.Start(path, total)

	digest, err := Sum(ctx, progress.NewProgressReader(reader, f.reporter), f.algo)
	if err != nil {
		f.reporter.Error(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrFileRead, path, err)
	}

	f.reporter.Complete()
	return digest, nil
}
