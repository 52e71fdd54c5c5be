// Package output renders runner results.
//
// Supported output formats:
//   - Console: coloured terminal output with a pass/fail/error summary
//   - JSON: one machine-readable document per invocation
//   - JUnit: JUnit XML for CI systems
//   - TAP: Test Anything Protocol version 13
//
// The JSON, JUnit and TAP formatters accumulate results and write them when
// Flush is called.
package output
