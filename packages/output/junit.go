package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/core/runner"
)

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the cases of one test-data file.
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	File      string          `xml:"file,attr,omitempty"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
	now        func() time.Time
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	name := result.Suite
	if name == "" {
		name = result.File
	}
	suite := JUnitTestSuite{
		Name:      name,
		File:      result.File,
		Tests:     len(result.Results),
		Failures:  result.Failed,
		Errors:    result.Errored,
		Skipped:   result.Skipped,
		Time:      result.Duration.Seconds(),
		Timestamp: f.now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := JUnitTestCase{
			Name:      r.Name,
			ClassName: name,
			Time:      r.Duration.Seconds(),
		}

		switch r.Status() {
		case runner.StatusSkipped:
			tc.Skipped = &JUnitSkipped{Message: r.SkipReason}
		case runner.StatusErrored:
			tc.Error = &JUnitError{Message: r.Error.Error(), Type: "Error"}
		case runner.StatusFailed:
			var details strings.Builder
			for _, a := range r.Failures() {
				fmt.Fprintf(&details, "%s %s: %s\n", a.Field, a.Operator, a.Message)
			}
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%d check(s) failed", len(r.Failures())),
				Type:    "AssertionError",
				Content: details.String(),
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suite)
}

func (f *JUnitFormatter) FormatError(err error) {}

func (f *JUnitFormatter) FormatHeader(version string) {}

func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := JUnitTestSuites{
		Name:       "apiharness",
		Time:       totalDuration.Seconds(),
		Timestamp:  f.now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}
	for _, suite := range f.testSuites {
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.Skipped += suite.Skipped
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(f.writer, "\n")
	return err
}
