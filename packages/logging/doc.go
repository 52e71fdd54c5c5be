// Package logging provides the leveled run log used by every harness component.
//
// Components depend on the Logger interface, which *slog.Logger satisfies.
// Open builds a slog logger whose handler writes each record as one line to
// an append-only per-run file and to the console (stdout below warn, stderr
// from warn up). Configured secrets are replaced with Redacted before any
// output is written.
package logging
