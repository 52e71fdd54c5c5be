package fieldpath

import "strings"

// Resolve walks path through v. The boolean is false when nothing exists at
// path; a JSON null that does exist returns (nil, true).
func Resolve(v any, path string) (any, bool) {
	current := v
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[segment]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Exists reports whether path resolves to a non-null value.
func Exists(v any, path string) bool {
	value, found := Resolve(v, path)
	return found && value != nil
}
