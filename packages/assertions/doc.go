// Package assertions evaluates declarative assertions against decoded JSON
// response bodies.
//
// An assertion names a dot-separated field path, an operator and an optional
// expected value:
//
//	field: data.count
//	operator: greaterThan
//	value: 10
//
// Supported operators: equals, exists, type, greaterThan, contains. Any other
// operator evaluates to a failed result rather than an error.
//
// The package also provides whole-response checks used by the runner: status
// code, response time, JSON Schema validation and array length bounds.
package assertions
