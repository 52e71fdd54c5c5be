package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Redacted replaces every configured secret in log output.
const Redacted = "***REDACTED***"

// Logger is the leveled logging capability injected into components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// RunLog is the logger for one harness run along with its backing file.
type RunLog struct {
	*slog.Logger
	Path string
	file *os.File
}

// Open creates the log directory if needed and starts a new run file named
// after the current time. An empty opts.Dir logs to the console only.
func Open(opts Options) (*RunLog, error) {
	opts = opts.withDefaults()

	run := &RunLog{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		run.Path = filepath.Join(opts.Dir, RunFileName(opts.Now()))
		f, err := os.OpenFile(run.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		run.file = f
		opts.File = f
	}

	run.Logger = slog.New(NewHandler(opts))
	return run, nil
}

// Close flushes and closes the run file.
func (r *RunLog) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// RunFileName returns the log file name for a run started at t.
func RunFileName(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "test-run-" + stamp + ".log"
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return slog.New(slog.DiscardHandler)
}
