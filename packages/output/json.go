package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/core/runner"
)

// JSONOutput is the document written by JSONFormatter.Flush.
type JSONOutput struct {
	Summary  JSONSummary  `json:"summary"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Tests    []JSONTest   `json:"tests"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// JSONLatency holds response latency percentiles in milliseconds.
type JSONLatency struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

type JSONTest struct {
	Name       string          `json:"name"`
	File       string          `json:"file"`
	Suite      string          `json:"suite,omitempty"`
	Status     runner.Status   `json:"status"`
	Passed     bool            `json:"passed"`
	Skipped    bool            `json:"skipped,omitempty"`
	SkipReason string          `json:"skipReason,omitempty"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Request    *JSONRequest    `json:"request,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Captures   map[string]any  `json:"captures,omitempty"`
}

type JSONRequest struct {
	Method   string `json:"method"`
	Endpoint string `json:"endpoint"`
}

type JSONResponse struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers,omitempty"`
	Duration float64           `json:"duration"`
}

type JSONAssertion struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter collects results from every file and writes one JSON
// document on Flush.
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	latency *runner.LatencyRecorder
	now     func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
		latency: runner.NewLatencyRecorder(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		test := JSONTest{
			Name:       r.Name,
			File:       result.File,
			Suite:      result.Suite,
			Status:     r.Status(),
			Passed:     r.Passed,
			Skipped:    r.Skipped,
			SkipReason: r.SkipReason,
			Duration:   millis(r.Duration),
			Captures:   r.Captures,
		}
		if r.Method != "" {
			test.Request = &JSONRequest{Method: r.Method, Endpoint: r.Endpoint}
		}
		if r.Error != nil {
			test.Error = r.Error.Error()
		}
		if r.Response != nil {
			test.Response = &JSONResponse{
				Status:   r.Response.Status,
				Headers:  r.Response.Headers,
				Duration: millis(r.Response.Latency),
			}
			f.latency.Record(r.Response.Latency)
		}
		for _, a := range r.Assertions {
			test.Assertions = append(test.Assertions, JSONAssertion{
				Field:    a.Field,
				Operator: a.Operator,
				Expected: a.Expected,
				Actual:   a.Actual,
				Passed:   a.Passed,
				Message:  a.Message,
			})
		}
		f.results = append(f.results, test)
	}
}

// FormatError is a no-op; errors are reported per test.
func (f *JSONFormatter) FormatError(err error) {}

func (f *JSONFormatter) FormatHeader(version string) {}

func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	summary := JSONSummary{Total: len(f.results)}
	for _, t := range f.results {
		switch t.Status {
		case runner.StatusPassed:
			summary.Passed++
		case runner.StatusFailed:
			summary.Failed++
		case runner.StatusErrored:
			summary.Errored++
		case runner.StatusSkipped:
			summary.Skipped++
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Tests:    f.results,
		Duration: millis(totalDuration),
		Time:     f.now().Format(time.RFC3339),
	}
	if stats := f.latency.Stats(); stats.Count > 0 {
		output.Latency = &JSONLatency{
			Count: stats.Count,
			Min:   millis(stats.Min),
			Mean:  millis(stats.Mean),
			P50:   millis(stats.P50),
			P95:   millis(stats.P95),
			P99:   millis(stats.P99),
			Max:   millis(stats.Max),
		}
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
