// Package capture extracts values from responses for use in later test cases.
//
// A capture expression is one of:
//   - a gjson path into the body, e.g. "id" or "data.items.0.id"
//   - "body" for the whole decoded body
//   - "header:<name>" for a response header
//   - "status" for the status code
//   - "duration" for the latency in milliseconds
//
// Captured values are referenced later as {{name}} or {{caseName.name}}.
package capture
