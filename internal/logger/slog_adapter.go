package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger is the slog-backed Logger. It owns the writers it opened.
type SlogLogger struct {
	childLogger
	writers []io.WriteCloser
}

// NewSlogLogger builds a logger writing to every configured output. With
// no usable output it writes to stderr, which keeps stdout free for command
// output.
func NewSlogLogger(config Config) (*SlogLogger, error) {
	var (
		writers []io.Writer
		owned   []io.WriteCloser
		color   = true
	)

	for _, output := range config.Outputs {
		switch output.Type {
		case OutputStdout, OutputStderr:
			w, closer := streamWriter(output)
			writers = append(writers, w)
			if closer != nil {
				owned = append(owned, closer)
			}
			color = color && isTerminal(w)
		case OutputFile:
			if !config.File.Enabled {
				continue
			}
			fw, err := createFileWriter(config.File)
			if err != nil {
				return nil, fmt.Errorf("log file: %w", err)
			}
			writers = append(writers, fw)
			owned = append(owned, fw)
			color = false
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
		color = isTerminal(os.Stderr)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: config.Level}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	case FormatConsole:
		handler = tint.NewHandler(out, &tint.Options{
			Level:      config.Level,
			TimeFormat: time.DateTime,
			NoColor:    !color,
		})
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return &SlogLogger{
		childLogger: childLogger{
			logger:    slog.New(handler),
			sanitizer: NewSanitizer(config.Secrets...),
		},
		writers: owned,
	}, nil
}

// streamWriter resolves a stdout/stderr output. Custom writers that can be
// closed are handed back for Shutdown; the standard streams never are.
func streamWriter(output OutputConfig) (io.Writer, io.WriteCloser) {
	if output.Writer == nil {
		if output.Type == OutputStderr {
			return os.Stderr, nil
		}
		return os.Stdout, nil
	}

	if wc, ok := output.Writer.(io.WriteCloser); ok {
		if wc != os.Stdout && wc != os.Stderr && wc != os.Stdin {
			return output.Writer, wc
		}
	}
	return output.Writer, nil
}

// isTerminal reports whether w is a terminal file descriptor
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// createFileWriter opens a lumberjack rotating writer
func createFileWriter(config FileConfig) (io.WriteCloser, error) {
	if config.Path == "" {
		return nil, errors.New("path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

// Shutdown closes every writer this logger opened
func (l *SlogLogger) Shutdown() error {
	var errs []error
	for _, w := range l.writers {
		errs = append(errs, w.Close())
	}
	l.writers = nil
	return errors.Join(errs...)
}

// childLogger does the actual logging. Children made by With share the
// parent's handler but own no writers, so they never close anything.
type childLogger struct {
	logger    *slog.Logger
	sanitizer *Sanitizer
}

func (c *childLogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !c.logger.Enabled(ctx, level) {
		return
	}
	c.logger.Log(ctx, level, c.sanitizer.Sanitize(msg), c.sanitizer.SanitizeArgs(args)...)
}

func (c *childLogger) Debug(msg string, args ...any) { c.log(slog.LevelDebug, msg, args) }
func (c *childLogger) Info(msg string, args ...any)  { c.log(slog.LevelInfo, msg, args) }
func (c *childLogger) Warn(msg string, args ...any)  { c.log(slog.LevelWarn, msg, args) }
func (c *childLogger) Error(msg string, args ...any) { c.log(slog.LevelError, msg, args) }

func (c *childLogger) With(args ...any) Logger {
	return &childLogger{
		logger:    c.logger.With(c.sanitizer.SanitizeArgs(args)...),
		sanitizer: c.sanitizer,
	}
}

// Sync is a no-op; lumberjack writes through
func (c *childLogger) Sync() error     { return nil }
func (c *childLogger) Shutdown() error { return nil }
