// Package logger provides the agent's process-wide structured logger: slog
// handlers over stderr and an optional lumberjack-rotated file, with
// credentials masked before anything is written.
package logger

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// LegacyEnvVar switches Init to the plain line logger when set to "true"
const LegacyEnvVar = "DEDUPWATCH_USE_LEGACY_LOGGER"

// ErrAlreadyInitialized is returned by Init until Shutdown is called
var ErrAlreadyInitialized = errors.New("logger already initialized")

type installed struct{ Logger }

var current atomic.Pointer[installed]

// Init installs the process-wide logger
func Init(config Config) error {
	var l Logger
	if os.Getenv(LegacyEnvVar) == "true" {
		l = NewLegacyLogger(config.Level, NewSanitizer(config.Secrets...))
	} else {
		sl, err := NewSlogLogger(config)
		if err != nil {
			return fmt.Errorf("create slog logger: %w", err)
		}
		l = sl
	}

	if !current.CompareAndSwap(nil, &installed{l}) {
		l.Shutdown()
		return ErrAlreadyInitialized
	}
	return nil
}

// Get returns the process-wide logger, or a NullLogger before Init.
// Loggers taken before Init stay silent.
func Get() Logger {
	if in := current.Load(); in != nil {
		return in.Logger
	}
	return &NullLogger{}
}

// With returns a child of the process-wide logger carrying args
func With(args ...any) Logger {
	return Get().With(args...)
}

// Sync flushes buffered output
func Sync() error {
	return Get().Sync()
}

// Shutdown uninstalls the process-wide logger and closes its writers.
// Calling it without a logger installed does nothing.
func Shutdown() error {
	in := current.Swap(nil)
	if in == nil {
		return nil
	}
	return in.Shutdown()
}

// NullLogger discards everything
type NullLogger struct{}

func (*NullLogger) Debug(string, ...any) {}
func (*NullLogger) Info(string, ...any)  {}
func (*NullLogger) Warn(string, ...any)  {}
func (*NullLogger) Error(string, ...any) {}
func (n *NullLogger) With(...any) Logger { return n }
func (*NullLogger) Sync() error          { return nil }
func (*NullLogger) Shutdown() error      { return nil }
