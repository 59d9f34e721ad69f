package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

var (
	// ErrAlreadyRunning is returned by Claim when another agent holds the lock
	ErrAlreadyRunning = errors.New("agent is already running")
	// ErrNotRunning is returned by Signal when no live agent owns the file
	ErrNotRunning = errors.New("agent is not running")
)

// PIDFile marks the single running agent for one state directory.
// Two agents scanning the same directory would race on uploads and
// deletes, so the second one must refuse to start. Exclusion comes from an
// advisory lock on a sibling ".lock" file; the PID file itself only tells
// status and stop which process to talk to.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// NewPIDFile returns a handle for the PID file at path; nothing is touched on disk
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file location
func (p *PIDFile) Path() string {
	return p.path
}

// Claim takes the agent lock and records this process's PID. A PID file
// left behind by a crashed agent is overwritten.
func (p *PIDFile) Claim() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}

	lock := flock.New(p.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !ok {
		pid, _, _ := p.Owner()
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, p.path)
	}

	if err := p.write(); err != nil {
		lock.Unlock()
		return err
	}
	p.lock = lock
	return nil
}

// write replaces the PID file atomically
func (p *PIDFile) write() error {
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Release removes the PID file if this process still owns it and drops
// the lock taken by Claim
func (p *PIDFile) Release() error {
	var errs []error

	pid, err := p.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		errs = append(errs, err)
	case pid == os.Getpid():
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove PID file: %w", err))
		}
	}

	if p.lock != nil {
		if err := p.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock: %w", err))
		}
		p.lock = nil
	}
	return errors.Join(errs...)
}

// Owner reports the recorded PID and whether that process is alive.
// A missing file yields (0, false, nil).
func (p *PIDFile) Owner() (pid int, running bool, err error) {
	pid, err = p.read()
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pid, isProcessRunning(pid), nil
}

// Signal asks the owning agent to shut down
func (p *PIDFile) Signal() error {
	pid, running, err := p.Owner()
	if err != nil {
		return err
	}
	if !running {
		return ErrNotRunning
	}
	return stopProcess(pid)
}

func (p *PIDFile) read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %q", p.path, raw)
	}
	return pid, nil
}
