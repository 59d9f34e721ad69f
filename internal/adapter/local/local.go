package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ning0612/dedupwatch/internal/domain"
)

// Adapter gives root-confined access to the watched directory
type Adapter struct {
	root string
}

// New creates a new local filesystem adapter.
// The root may not exist yet (producers often create it later), but if it
// exists it must be a directory.
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err == nil && !info.IsDir() {
		return nil, domain.ErrNotDirectory
	}

	return &Adapter{root: absRoot}, nil
}

// resolvePath turns a path (absolute, or relative to root) into an absolute
// path within root. Returns ErrPermissionDenied if it escapes root.
func (a *Adapter) resolvePath(path string) (string, error) {
	if path == "" || path == "." {
		return a.root, nil
	}

	path = filepath.Clean(filepath.FromSlash(path))

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(a.root, path)
	}

	// Use filepath.Rel so root="/data/up" does not accept "/data/up2"
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil {
		return "", domain.ErrPermissionDenied
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrPermissionDenied
	}

	return fullPath, nil
}

// List returns the absolute paths of all files below root, recursively and
// in lexical order. Unreadable subdirectories are skipped.
// Returns domain.ErrNotFound if root does not exist.
func (a *Adapter) List(ctx context.Context) ([]string, error) {
	info, err := os.Stat(a.root)
	if err != nil {
		return nil, a.mapError(err)
	}
	if !info.IsDir() {
		return nil, domain.ErrNotDirectory
	}

	var files []string
	err = filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == a.root {
				return err
			}
			// Skip entries we can't read
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
			return nil
		}
		// Follow symlinks only when they point at a regular file
		if d.Type()&fs.ModeSymlink != 0 {
			if target, statErr := os.Stat(path); statErr == nil && target.Mode().IsRegular() {
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, a.mapError(err)
	}

	sort.Strings(files)
	return files, nil
}

// Size returns the current size of a file in bytes.
// Returns domain.ErrNotFound if the file does not exist.
func (a *Adapter) Size(path string) (int64, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, a.mapError(err)
	}
	if info.IsDir() {
		return 0, domain.ErrNotFile
	}

	return info.Size(), nil
}

// Open opens a file for reading.
// Caller is responsible for closing the reader.
func (a *Adapter) Open(path string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, a.mapError(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, a.mapError(err)
	}
	if info.IsDir() {
		file.Close()
		return nil, domain.ErrNotFile
	}

	return file, nil
}

// Remove deletes a file.
// Returns domain.ErrNotFound if it is already gone.
func (a *Adapter) Remove(path string) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return domain.ErrPermissionDenied
	}

	return a.mapError(os.Remove(fullPath))
}

// Root returns the absolute root path of this adapter
func (a *Adapter) Root() string {
	return a.root
}

// mapError converts OS errors to domain errors, keeping the original in the chain
func (a *Adapter) mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	}

	return err
}
