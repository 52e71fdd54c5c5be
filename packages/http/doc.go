// Package http provides the JSON HTTP client used to drive the API under test.
//
// It wraps the standard library's http package with:
//   - Endpoint resolution against a configured base URL
//   - JSON request bodies plus content-type and API key headers on every call
//   - Wall-clock latency measurement
//   - JSON response decoding, with empty (204 and DELETE) bodies read as {}
//   - Request and response logging through an injected logger
package http
