package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/core/runner"
)

// TAPFormatter writes results as TAP version 13.
type TAPFormatter struct {
	writer  io.Writer
	results []tapResult
}

type tapResult struct {
	name       string
	status     runner.Status
	skipReason string
	err        string
	failures   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		tr := tapResult{
			name:       r.Name,
			status:     r.Status(),
			skipReason: r.SkipReason,
		}
		if r.Error != nil {
			tr.err = r.Error.Error()
		}
		for _, a := range r.Failures() {
			tr.failures = append(tr.failures, fmt.Sprintf("%s %s: %s", a.Field, a.Operator, a.Message))
		}
		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {}

func (f *TAPFormatter) FormatHeader(version string) {}

func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	var b strings.Builder
	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", len(f.results))

	for i, r := range f.results {
		n := i + 1
		switch r.status {
		case runner.StatusSkipped:
			reason := r.skipReason
			if reason == "" {
				reason = "skipped"
			}
			fmt.Fprintf(&b, "ok %d - %s # SKIP %s\n", n, r.name, reason)
		case runner.StatusErrored:
			fmt.Fprintf(&b, "not ok %d - %s\n", n, r.name)
			b.WriteString("  ---\n")
			fmt.Fprintf(&b, "  message: %s\n", escapeYAML(r.err))
			b.WriteString("  severity: error\n")
			b.WriteString("  ...\n")
		case runner.StatusFailed:
			fmt.Fprintf(&b, "not ok %d - %s\n", n, r.name)
			if len(r.failures) > 0 {
				b.WriteString("  ---\n")
				b.WriteString("  failures:\n")
				for _, msg := range r.failures {
					fmt.Fprintf(&b, "    - %s\n", escapeYAML(msg))
				}
				b.WriteString("  ...\n")
			}
		default:
			fmt.Fprintf(&b, "ok %d - %s\n", n, r.name)
		}
	}
	fmt.Fprintf(&b, "# time %dms\n", totalDuration.Milliseconds())

	_, err := io.WriteString(f.writer, b.String())
	return err
}

// escapeYAML quotes s when it would not survive as a plain YAML scalar.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		return `"` + s + `"`
	}
	return s
}
