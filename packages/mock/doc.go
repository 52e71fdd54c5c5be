// Package mock serves an in-process records API: a JSON CRUD collection
// with generated ids and timestamps. The harness CLI exposes it with
// "apiharness serve" and the test suites use it as a known-good target.
//
// Routes, relative to the configured base path:
//
//	POST   /records       create, 201
//	GET    /records       list, 200
//	GET    /records/{id}  read, 200 or 404
//	PUT    /records/{id}  merge fields, 200 or 404
//	DELETE /records/{id}  delete, 204 or 404
package mock
