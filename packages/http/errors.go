package http

import "fmt"

// ExcerptLength bounds how much of an undecodable body is logged and reported.
const ExcerptLength = 200

// JSONParseError is returned when a non-empty response body is not valid JSON.
type JSONParseError struct {
	Status  int
	Excerpt string
	Err     error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("Expected JSON response but got: %s", e.Excerpt)
}

func (e *JSONParseError) Unwrap() error {
	return e.Err
}

// excerpt returns at most ExcerptLength characters of s.
func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= ExcerptLength {
		return s
	}
	return string(runes[:ExcerptLength])
}
