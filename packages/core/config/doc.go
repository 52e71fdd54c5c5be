// Package config builds the harness configuration.
//
// Sources are applied in increasing precedence:
//   - built-in defaults
//   - a JSON config file (.apiharness.json or apiharness.json)
//   - a .env file, which never overrides the process environment
//   - process environment variables (BASE_URL, API_KEY, TIMEOUT, ...)
//   - command-line flags, merged by the caller
package config
