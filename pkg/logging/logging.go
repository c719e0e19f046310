// Package logging wraps log/slog with the field names the organizer uses.
//
// Only orchestration code logs. The clustering packages return results and
// errors and never write to a logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with shelfsort-specific helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to w in the given format ("text" or "json")
// at the given level ("debug", "info", "warn", "error").
// A nil w writes to stderr.
func New(w io.Writer, format, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	return &Logger{Logger: slog.New(handler)}, nil
}

// Noop creates a Logger that discards all output.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", level)
	}
}

// WithJob adds a job id field.
func (l *Logger) WithJob(id string) *Logger {
	return &Logger{Logger: l.Logger.With("job", id)}
}

// WithStrategy adds a strategy field.
func (l *Logger) WithStrategy(strategy string) *Logger {
	return &Logger{Logger: l.Logger.With("strategy", strategy)}
}

// LogRun logs the outcome of an organization run.
func (l *Logger) LogRun(ctx context.Context, documents, clusters, changed int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "organization run failed",
			"documents", documents,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "organization run completed",
		"documents", documents,
		"clusters", clusters,
		"changed", changed,
		"took", took,
	)
}

// LogApply logs how many suggestions were persisted.
func (l *Logger) LogApply(ctx context.Context, applied, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "apply completed with failures",
			"applied", applied,
			"failed", failed,
		)
		return
	}
	l.InfoContext(ctx, "apply completed", "applied", applied)
}

// Badger adapts l to badger.Logger so storage internals share the
// application's handler.
func (l *Logger) Badger() *BadgerLogger {
	return &BadgerLogger{l: l.Logger.With("component", "badger")}
}

// BadgerLogger implements badger.Logger on top of slog.
type BadgerLogger struct {
	l *slog.Logger
}

func (b *BadgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *BadgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *BadgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *BadgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
