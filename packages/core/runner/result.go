package runner

import (
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/assertions"
	"github.com/abdul-hamid-achik/apiharness/packages/http"
)

// Status is the outcome of one case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

type RunResult struct {
	File     string
	Suite    string
	Results  []*CaseResult
	Duration time.Duration
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Latency  LatencyStats
}

// Total counts every case, including skipped ones.
func (r *RunResult) Total() int {
	return r.Passed + r.Failed + r.Errored + r.Skipped
}

// OK reports whether no case failed or errored.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && r.Errored == 0
}

func (r *RunResult) add(cr *CaseResult) {
	r.Results = append(r.Results, cr)
	switch cr.Status() {
	case StatusPassed:
		r.Passed++
	case StatusFailed:
		r.Failed++
	case StatusErrored:
		r.Errored++
	case StatusSkipped:
		r.Skipped++
	}
}

// CaseResult records what happened to one test case. Error is set when the
// request itself could not complete; failed checks live in Assertions.
type CaseResult struct {
	Name       string
	Method     string
	Endpoint   string
	Tags       []string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   map[string]any
	Error      error
}

func (c *CaseResult) Status() Status {
	switch {
	case c.Skipped:
		return StatusSkipped
	case c.Error != nil:
		return StatusErrored
	case c.Passed:
		return StatusPassed
	default:
		return StatusFailed
	}
}

// Failures returns the checks that did not pass.
func (c *CaseResult) Failures() []*assertions.Result {
	var failed []*assertions.Result
	for _, a := range c.Assertions {
		if !a.Passed {
			failed = append(failed, a)
		}
	}
	return failed
}
