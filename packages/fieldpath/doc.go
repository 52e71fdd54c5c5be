// Package fieldpath resolves dot-separated field paths against decoded JSON values.
//
// A path such as "data.user.name" is split on "." and each segment is looked up
// on the current object. Resolution never fails: a missing key, a null or
// non-object intermediate value all yield an absent result.
//
// Array indexes and keys that contain a literal "." are not supported.
package fieldpath
