package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LegacyLogger prints one plain line per record, for consoles and log
// collectors that cannot take slog's quoting. Context from With is kept.
type LegacyLogger struct {
	mu        *sync.Mutex
	level     Level
	out       io.Writer
	errOut    io.Writer
	sanitizer *Sanitizer
	context   []any
	now       func() time.Time
}

// NewLegacyLogger creates a legacy logger writing info and debug to stdout
// and warnings and errors to stderr
func NewLegacyLogger(level Level, sanitizer *Sanitizer) *LegacyLogger {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &LegacyLogger{
		mu:        &sync.Mutex{},
		level:     level,
		out:       os.Stdout,
		errOut:    os.Stderr,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

func (l *LegacyLogger) print(level Level, msg string, args []any) {
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString(l.now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(level.String()))
	b.WriteString("] ")
	b.WriteString(l.sanitizer.Sanitize(msg))
	writePairs(&b, l.context)
	writePairs(&b, l.sanitizer.SanitizeArgs(args))
	b.WriteByte('\n')

	w := l.out
	if level >= LevelWarn {
		w = l.errOut
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(w, b.String())
}

func writePairs(b *strings.Builder, args []any) {
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fmt.Fprintf(b, " %v", args[i])
			break
		}
		fmt.Fprintf(b, " %v=%v", args[i], args[i+1])
	}
}

func (l *LegacyLogger) Debug(msg string, args ...any) { l.print(LevelDebug, msg, args) }
func (l *LegacyLogger) Info(msg string, args ...any)  { l.print(LevelInfo, msg, args) }
func (l *LegacyLogger) Warn(msg string, args ...any)  { l.print(LevelWarn, msg, args) }
func (l *LegacyLogger) Error(msg string, args ...any) { l.print(LevelError, msg, args) }

// With returns a logger that appends args to every line. The child shares
// the parent's writers and lock.
func (l *LegacyLogger) With(args ...any) Logger {
	child := *l
	child.context = append(append([]any{}, l.context...), l.sanitizer.SanitizeArgs(args)...)
	return &child
}

func (l *LegacyLogger) Sync() error     { return nil }
func (l *LegacyLogger) Shutdown() error { return nil }
