package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Entry is one message recorded by Capture.
type Entry struct {
	Level   slog.Level
	Message string
}

// Capture is a Logger that keeps every message in memory, for tests.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Debug(msg string, args ...any) { c.add(slog.LevelDebug, msg, args) }
func (c *Capture) Info(msg string, args ...any)  { c.add(slog.LevelInfo, msg, args) }
func (c *Capture) Warn(msg string, args ...any)  { c.add(slog.LevelWarn, msg, args) }
func (c *Capture) Error(msg string, args ...any) { c.add(slog.LevelError, msg, args) }

func (c *Capture) add(level slog.Level, msg string, args []any) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Level: level, Message: b.String()})
	c.mu.Unlock()
}

// Entries returns a copy of everything logged so far.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Messages returns the messages logged at exactly level.
func (c *Capture) Messages(level slog.Level) []string {
	var out []string
	for _, e := range c.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
