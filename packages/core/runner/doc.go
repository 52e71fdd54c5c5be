// Package runner executes test suites against an API.
//
// Cases in a suite run in file order, sharing one variable resolver so that
// values captured by earlier cases can be used by later ones. Suites without
// captures may run their cases in parallel with bounded concurrency. Every
// request waits on an optional rate limiter first.
package runner
