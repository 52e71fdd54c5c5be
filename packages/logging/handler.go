package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Options configures a Handler.
type Options struct {
	Level   slog.Leveler
	Dir     string
	File    io.Writer
	Stdout  io.Writer
	Stderr  io.Writer
	Secrets []string
	NoColor bool
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Handler is a slog.Handler producing "[timestamp] [LEVEL] message k=v" lines.
type Handler struct {
	mu       *sync.Mutex
	opts     Options
	redactor *strings.Replacer
	attrs    []slog.Attr
	group    string
	colors   map[slog.Level]*color.Color
}

func NewHandler(opts Options) *Handler {
	opts = opts.withDefaults()
	h := &Handler{
		mu:       &sync.Mutex{},
		opts:     opts,
		redactor: newRedactor(opts.Secrets),
		colors: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgHiBlack),
			slog.LevelInfo:  color.New(color.FgCyan),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
	}
	if opts.NoColor {
		for _, c := range h.colors {
			c.DisableColor()
		}
	}
	return h
}

func newRedactor(secrets []string) *strings.Replacer {
	var list []string
	for _, s := range secrets {
		if s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		return nil
	}
	// longer secrets first so a secret containing another is fully masked
	sort.Slice(list, func(i, j int) bool { return len(list[i]) > len(list[j]) })
	pairs := make([]string, 0, len(list)*2)
	for _, s := range list {
		pairs = append(pairs, s, Redacted)
	}
	return strings.NewReplacer(pairs...)
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		writeAttr(&b, a)
	}

	ts := r.Time
	if ts.IsZero() {
		ts = h.opts.Now()
	}
	stamp := "[" + ts.UTC().Format(time.RFC3339Nano) + "]"
	tag := "[" + levelName(r.Level) + "]"
	message := h.redact(b.String())

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.File != nil {
		if _, err := io.WriteString(h.opts.File, stamp+" "+tag+" "+message+"\n"); err != nil {
			return err
		}
	}

	console := h.opts.Stdout
	if r.Level >= slog.LevelWarn {
		console = h.opts.Stderr
	}
	_, err := io.WriteString(console, stamp+" "+h.colorFor(r.Level).Sprint(tag)+" "+message+"\n")
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *Handler) redact(s string) string {
	if h.redactor == nil {
		return s
	}
	return h.redactor.Replace(s)
}

func (h *Handler) colorFor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return h.colors[slog.LevelError]
	case level >= slog.LevelWarn:
		return h.colors[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return h.colors[slog.LevelInfo]
	default:
		return h.colors[slog.LevelDebug]
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, inner := range a.Value.Group() {
			if a.Key != "" {
				inner.Key = a.Key + "." + inner.Key
			}
			writeAttr(b, inner)
		}
		return
	}
	value := a.Value.String()
	if value == "" || strings.ContainsAny(value, " \t\n\"=") {
		value = strconv.Quote(value)
	}
	b.WriteString(" ")
	b.WriteString(a.Key)
	b.WriteString("=")
	b.WriteString(value)
}
