package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/assertions"
	"github.com/abdul-hamid-achik/apiharness/packages/capture"
	"github.com/abdul-hamid-achik/apiharness/packages/core/env"
	"github.com/abdul-hamid-achik/apiharness/packages/http"
	"github.com/abdul-hamid-achik/apiharness/packages/logging"
	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency is the default number of concurrent requests in parallel mode
	DefaultConcurrency = 5
)

// Doer performs one request. *http.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, endpoint string, payload any) (*http.Response, error)
}

type Config struct {
	Bail        bool
	NameFilter  string
	TagsFilter  []string
	Parallel    bool
	Concurrency int
	// RateLimit caps requests per second across the runner. Zero disables it.
	RateLimit float64
	// Variables seed the resolver of every suite.
	Variables map[string]any
}

type Runner struct {
	client  Doer
	config  *Config
	logger  logging.Logger
	limiter *rate.Limiter
}

func New(cfg *Config, client Doer, logger logging.Logger) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	r := &Runner{
		client: client,
		config: cfg,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return r
}

// RunFile loads and runs one suite file.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := testdata.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return r.RunSuite(ctx, suite)
}

// RunSuite runs every case of suite. The returned error is only set when the
// context ends; case failures are reported in the result.
func (r *Runner) RunSuite(ctx context.Context, suite *testdata.Suite) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		File:  suite.Path,
		Suite: suite.TestSuite,
	}

	r.logger.Info(fmt.Sprintf("Running suite: %s", suiteLabel(suite)))

	resolver := env.NewResolver()
	resolver.SetVariables(env.MergeVariables(r.config.Variables, suite.Variables))
	resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn(fmt.Sprintf(format, args...))
	})

	var runnable []*testdata.TestCase
	for i := range suite.TestCases {
		tc := &suite.TestCases[i]
		if reason := r.skipReason(tc); reason != "" {
			r.logger.Debug(fmt.Sprintf("Skipping test case %q: %s", tc.Name, reason))
			result.add(&CaseResult{
				Name:       tc.Name,
				Method:     strings.ToUpper(tc.Method),
				Endpoint:   tc.Endpoint,
				Tags:       tc.Tags,
				Skipped:    true,
				SkipReason: reason,
			})
			continue
		}
		runnable = append(runnable, tc)
	}

	latency := NewLatencyRecorder()
	baseDir := filepath.Dir(suite.Path)

	var err error
	if r.config.Parallel && !capturesValues(runnable) {
		err = r.runParallel(ctx, runnable, resolver, baseDir, latency, result)
	} else {
		if r.config.Parallel {
			r.logger.Warn("Running sequentially: suite captures values for later cases")
		}
		err = r.runSequential(ctx, runnable, resolver, baseDir, latency, result)
	}

	result.Latency = latency.Stats()
	result.Duration = time.Since(start)
	r.logger.Info(fmt.Sprintf("Suite finished: %d passed, %d failed, %d errored, %d skipped (%dms)",
		result.Passed, result.Failed, result.Errored, result.Skipped, result.Duration.Milliseconds()))

	return result, err
}

func (r *Runner) runSequential(ctx context.Context, cases []*testdata.TestCase, resolver *env.Resolver, baseDir string, latency *LatencyRecorder, result *RunResult) error {
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return err
		}

		cr := r.executeCase(ctx, tc, resolver, baseDir, true)
		if cr.Response != nil {
			latency.Record(cr.Response.Latency)
		}
		result.add(cr)

		if r.config.Bail && !cr.Passed {
			r.logger.Warn(fmt.Sprintf("Stopping after %q: bail is enabled", tc.Name))
			break
		}
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context, cases []*testdata.TestCase, resolver *env.Resolver, baseDir string, latency *LatencyRecorder, result *RunResult) error {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*CaseResult, len(cases))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, tc *testdata.TestCase) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = r.executeCase(ctx, tc, resolver, baseDir, false)
		}(i, tc)
	}
	wg.Wait()

	for _, cr := range results {
		if cr == nil {
			continue
		}
		if cr.Response != nil {
			latency.Record(cr.Response.Latency)
		}
		result.add(cr)
	}
	return ctx.Err()
}

// executeCase runs one case. Captures are stored in resolver only when
// storeCaptures is set, which parallel runs never do.
func (r *Runner) executeCase(ctx context.Context, tc *testdata.TestCase, resolver *env.Resolver, baseDir string, storeCaptures bool) *CaseResult {
	method := strings.ToUpper(tc.Method)
	cr := &CaseResult{
		Name:     tc.Name,
		Method:   method,
		Endpoint: tc.Endpoint,
		Tags:     tc.Tags,
		Captures: make(map[string]any),
	}

	start := time.Now()
	defer func() {
		cr.Duration = time.Since(start)
		r.logOutcome(cr)
	}()

	r.logger.Info(fmt.Sprintf("Running test case: %s", tc.Name))

	if unresolved := resolver.GetUnresolvedVariables(tc.Endpoint); len(unresolved) > 0 {
		cr.Error = fmt.Errorf("unresolved variables in endpoint %q: %s", tc.Endpoint, strings.Join(unresolved, ", "))
		return cr
	}

	captures, err := capture.ParseAll(tc.Capture)
	if err != nil {
		cr.Error = err
		return cr
	}

	endpoint := resolver.Resolve(tc.Endpoint)
	if method == "GET" {
		endpoint = http.WithQuery(endpoint, resolver.ResolveAll(tc.Query))
	}
	cr.Endpoint = endpoint

	// GET and DELETE never carry a body.
	var payload any
	if tc.Body != nil && method != "GET" && method != "DELETE" {
		payload = resolver.ResolveValue(tc.Body)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			cr.Error = err
			return cr
		}
	}

	resp, err := r.client.Do(ctx, method, endpoint, payload)
	if err != nil {
		cr.Error = err
		return cr
	}
	cr.Response = resp

	cr.Assertions = r.check(tc, resolveAssertions(resolver, tc.Assertions), resp, baseDir)
	cr.Passed = len(cr.Failures()) == 0

	values, missing := capture.ExtractAll(resp, captures)
	for _, name := range missing {
		r.logger.Warn(fmt.Sprintf("Capture %q of %q not found in response", name, tc.Name))
	}
	for name, value := range values {
		cr.Captures[name] = value
		if storeCaptures {
			resolver.SetCapture(tc.Name, name, value)
		}
	}

	return cr
}

// check applies the status check, the optional schema, array length and
// response time checks, then the declared assertions, in that order.
func (r *Runner) check(tc *testdata.TestCase, declared []assertions.Assertion, resp *http.Response, baseDir string) []*assertions.Result {
	results := []*assertions.Result{assertions.Status(tc.ExpectedStatus, resp.Status)}

	switch {
	case tc.Schema.File != "":
		path := tc.Schema.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		results = append(results, assertions.SchemaFile(resp.Body, path))
	case len(tc.Schema.Fields) > 0:
		results = append(results, assertions.Schema(resp.Body, tc.Schema.Fields))
	}

	for _, lc := range tc.ArrayLength {
		results = append(results, assertions.ArrayLength(resp.Body, lc.Field, lc.Min, lc.Max))
	}

	if tc.MaxResponseTimeMs > 0 {
		results = append(results, assertions.ResponseTime(tc.MaxResponseTimeMs, resp.Latency))
	}

	return append(results, assertions.EvaluateAll(resp.Body, declared)...)
}

// resolveAssertions interpolates expected values, so a case can compare a
// field with an earlier capture.
func resolveAssertions(resolver *env.Resolver, list []assertions.Assertion) []assertions.Assertion {
	resolved := make([]assertions.Assertion, len(list))
	for i, a := range list {
		a.Value = resolver.ResolveValue(a.Value)
		resolved[i] = a
	}
	return resolved
}

func (r *Runner) logOutcome(cr *CaseResult) {
	switch cr.Status() {
	case StatusErrored:
		r.logger.Error(fmt.Sprintf("Test case %q errored: %v", cr.Name, cr.Error))
	case StatusFailed:
		for _, f := range cr.Failures() {
			r.logger.Error(fmt.Sprintf("Test case %q failed: %s", cr.Name, f.Message))
		}
	case StatusPassed:
		for _, a := range cr.Assertions {
			r.logger.Debug("   " + a.Message)
		}
		r.logger.Info(fmt.Sprintf("Test case %q passed (%dms)", cr.Name, cr.Duration.Milliseconds()))
	}
}

func capturesValues(cases []*testdata.TestCase) bool {
	for _, tc := range cases {
		if len(tc.Capture) > 0 {
			return true
		}
	}
	return false
}

func suiteLabel(s *testdata.Suite) string {
	switch {
	case s.TestSuite != "" && s.Path != "":
		return fmt.Sprintf("%s (%s)", s.TestSuite, s.Path)
	case s.TestSuite != "":
		return s.TestSuite
	default:
		return s.Path
	}
}
