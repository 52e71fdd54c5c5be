// Package builtin provides the functions callable from test data with the
// {{name(args)}} syntax, such as uuid(), now() and randomEmail().
package builtin
