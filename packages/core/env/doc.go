// Package env resolves {{...}} placeholders in test data and loads .env
// files.
//
// A placeholder is one of:
//   - {{name}}: a configured variable or a captured value
//   - {{case.name}}: a value captured by the named test case
//   - {{$NAME}}: a process environment variable
//   - {{fn(args)}}: a built-in function call, see package builtin
package env
