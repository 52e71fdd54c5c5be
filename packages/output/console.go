package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/core/runner"
	"github.com/fatih/color"
)

// formatValue renders a value for a single console line.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose prints response status and captured values for every case.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.File
	if result.Suite != "" {
		title = fmt.Sprintf("%s (%s)", result.Suite, result.File)
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+title))

	for _, r := range result.Results {
		switch r.Status() {
		case runner.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintln(f.writer)
			continue
		case runner.StatusErrored:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose && r.Response != nil {
			fmt.Fprintf(f.writer, "    %s %s -> %d\n", r.Method, r.Endpoint, r.Response.Status)
		}

		for _, a := range r.Failures() {
			fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Field, a.Operator)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Message)
			}
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			names := make([]string, 0, len(r.Captures))
			for name := range r.Captures {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(f.writer, "      %s = %s\n", name, formatValue(r.Captures[name], 100))
			}
		}
	}

	fmt.Fprintf(f.writer, "\nTests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errored", result.Errored)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", result.Total())
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if lat := result.Latency; lat.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %s, p95 %s, p99 %s, max %s\n",
			roundMs(lat.P50), roundMs(lat.P95), roundMs(lat.P99), roundMs(lat.Max))
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("apiharness"), version)
}

func roundMs(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return d.Round(time.Microsecond)
	}
	return d.Round(time.Millisecond)
}
