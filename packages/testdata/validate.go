package testdata

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/apiharness/packages/capture"
)

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// ValidationError describes one problem in a suite.
type ValidationError struct {
	Case    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Case == "" {
		return e.Message
	}
	return fmt.Sprintf("test case %q: %s", e.Case, e.Message)
}

// Validate checks the suite for problems the decoder cannot catch and
// returns all of them joined.
func (s *Suite) Validate() error {
	var errs []error
	add := func(name, format string, args ...any) {
		errs = append(errs, &ValidationError{Case: name, Message: fmt.Sprintf(format, args...)})
	}

	if len(s.TestCases) == 0 {
		add("", "suite has no test cases")
	}

	names := make(map[string]bool, len(s.TestCases))
	for i, tc := range s.TestCases {
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			add(name, "name is required")
		} else if names[name] {
			add(name, "duplicate name")
		}
		names[name] = true

		if !methods[strings.ToUpper(tc.Method)] {
			add(name, "unsupported method %q (use GET, POST, PUT or DELETE)", tc.Method)
		}
		if tc.Endpoint == "" {
			add(name, "endpoint is required")
		}
		if tc.ExpectedStatus < 100 || tc.ExpectedStatus > 599 {
			add(name, "expectedStatus %d is not a valid HTTP status", tc.ExpectedStatus)
		}
		if len(tc.Query) > 0 && !strings.EqualFold(tc.Method, http.MethodGet) {
			add(name, "query is only supported for GET")
		}
		if len(tc.Body) > 0 && (strings.EqualFold(tc.Method, http.MethodGet) || strings.EqualFold(tc.Method, http.MethodDelete)) {
			add(name, "body is not sent with %s", strings.ToUpper(tc.Method))
		}
		if tc.MaxResponseTimeMs < 0 {
			add(name, "maxResponseTimeMs must not be negative")
		}

		for j, a := range tc.Assertions {
			if a.Field == "" {
				add(name, "assertion %d has no field", j+1)
			}
			if !a.Operator.IsKnown() {
				add(name, "assertion %d: Unknown operator: %s", j+1, a.Operator)
			}
		}

		for j, lc := range tc.ArrayLength {
			if lc.Field == "" {
				add(name, "arrayLength %d has no field", j+1)
			}
			if lc.Min != nil && lc.Max != nil && *lc.Min > *lc.Max {
				add(name, "arrayLength %d: min %d is greater than max %d", j+1, *lc.Min, *lc.Max)
			}
		}

		if _, err := capture.ParseAll(tc.Capture); err != nil {
			add(name, "%v", err)
		}
	}

	return errors.Join(errs...)
}
