package assertions

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/fieldpath"
	"github.com/xeipuuv/gojsonschema"
)

// Status checks the HTTP status code.
func Status(expected, actual int) *Result {
	return &Result{
		Passed:   expected == actual,
		Message:  fmt.Sprintf("Expected status %d but got %d", expected, actual),
		Field:    "status",
		Operator: string(OpEquals),
		Expected: expected,
		Actual:   actual,
	}
}

// ResponseTime checks that latency is at most maxMs milliseconds.
func ResponseTime(maxMs int64, latency time.Duration) *Result {
	ms := latency.Milliseconds()
	result := &Result{
		Passed:   ms <= maxMs,
		Field:    "responseTime",
		Operator: "lessOrEqual",
		Expected: maxMs,
		Actual:   ms,
	}
	if result.Passed {
		result.Message = fmt.Sprintf("Response time %dms within max %dms", ms, maxMs)
	} else {
		result.Message = fmt.Sprintf("Response time %dms exceeds max %dms", ms, maxMs)
	}
	return result
}

// schemaTypes maps the type tags used in test data to JSON Schema types.
var schemaTypes = map[string]any{
	"string":  "string",
	"number":  "number",
	"boolean": "boolean",
	"object":  []string{"object", "array", "null"},
	"array":   "array",
	"null":    "null",
}

// Schema checks that body is an object carrying every field in fields with
// the given type tag.
func Schema(body any, fields map[string]string) *Result {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	properties := make(map[string]any, len(fields))
	for _, name := range names {
		jsonType, ok := schemaTypes[fields[name]]
		if !ok {
			return &Result{
				Passed:   false,
				Message:  fmt.Sprintf("Unknown type %q for field %q", fields[name], name),
				Field:    name,
				Operator: "schema",
				Expected: fields,
			}
		}
		properties[name] = map[string]any{"type": jsonType}
	}

	schema := map[string]any{
		"type":       "object",
		"required":   names,
		"properties": properties,
	}
	return validateSchema(gojsonschema.NewGoLoader(schema), body, fields)
}

// SchemaFile validates body against the JSON Schema stored at path.
func SchemaFile(body any, path string) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{
			Passed:   false,
			Message:  fmt.Sprintf("failed to read schema file: %v", err),
			Operator: "schema",
			Expected: path,
		}
	}
	return validateSchema(gojsonschema.NewBytesLoader(data), body, path)
}

func validateSchema(schema gojsonschema.JSONLoader, body any, expected any) *Result {
	result := &Result{
		Operator: "schema",
		Expected: expected,
		Actual:   body,
	}

	validation, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(body))
	if err != nil {
		result.Message = fmt.Sprintf("schema validation error: %v", err)
		return result
	}
	if validation.Valid() {
		result.Passed = true
		result.Message = "Response matches schema"
		return result
	}

	var problems []string
	for _, desc := range validation.Errors() {
		problems = append(problems, desc.String())
	}
	result.Message = fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; "))
	return result
}

// ArrayLength checks that the value at path is an array whose length is
// within [min, max]. A nil bound is not checked.
func ArrayLength(body any, path string, min, max *int) *Result {
	value, found := fieldpath.Resolve(body, path)
	result := &Result{
		Field:    path,
		Operator: "length",
	}

	arr, ok := value.([]any)
	if !found || !ok {
		result.Actual = value
		result.Message = fmt.Sprintf("Field %q is not an array", path)
		return result
	}
	result.Actual = len(arr)

	switch {
	case min != nil && len(arr) < *min:
		result.Expected = *min
		result.Message = fmt.Sprintf("Array %q length %d < min %d", path, len(arr), *min)
	case max != nil && len(arr) > *max:
		result.Expected = *max
		result.Message = fmt.Sprintf("Array %q length %d > max %d", path, len(arr), *max)
	default:
		result.Passed = true
		result.Message = fmt.Sprintf("Array %q length %d within bounds", path, len(arr))
	}
	return result
}
