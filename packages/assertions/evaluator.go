package assertions

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apiharness/packages/fieldpath"
)

// Evaluator applies assertions to one response body. It never modifies the
// body, so a single Evaluator may be shared across goroutines.
type Evaluator struct {
	body any
}

func NewEvaluator(body any) *Evaluator {
	return &Evaluator{body: body}
}

// Evaluate resolves a.Field against body and applies a.Operator.
func Evaluate(body any, a Assertion) *Result {
	return NewEvaluator(body).Evaluate(a)
}

// EvaluateAll evaluates every assertion in order.
func EvaluateAll(body any, list []Assertion) []*Result {
	e := NewEvaluator(body)
	results := make([]*Result, len(list))
	for i, a := range list {
		results[i] = e.Evaluate(a)
	}
	return results
}

func (e *Evaluator) Evaluate(a Assertion) *Result {
	actual, found := fieldpath.Resolve(e.body, a.Field)

	result := &Result{
		Field:    a.Field,
		Operator: string(a.Operator),
		Expected: a.Value,
	}
	if found {
		result.Actual = actual
	}

	switch a.Operator {
	case OpEquals:
		result.Passed = equals(actual, found, a.Value, a.ValueGiven())
		result.Message = fmt.Sprintf("Expected %q to equal %q but got %q",
			a.Field, display(a.Value, a.ValueGiven()), display(actual, found))
	case OpExists:
		result.Passed = found && actual != nil
		result.Message = fmt.Sprintf("Expected %q to exist but it was %s",
			a.Field, display(actual, found))
		if result.Passed {
			result.Message = fmt.Sprintf("Expected %q to exist and it was %s",
				a.Field, display(actual, found))
		}
	case OpType:
		actualType := typeTag(actual, found)
		expectedType := display(a.Value, true)
		result.Passed = actualType == expectedType
		result.Message = fmt.Sprintf("Expected %q to be type %q but got %q",
			a.Field, expectedType, actualType)
	case OpGreaterThan:
		result.Passed = greaterThan(actual, found, a.Value)
		result.Message = fmt.Sprintf("Expected %q to be greater than %s but got %s",
			a.Field, display(a.Value, true), display(actual, found))
	case OpContains:
		result.Passed = contains(actual, found, a.Value)
		result.Message = fmt.Sprintf("Expected %q to contain %q but got %q",
			a.Field, display(a.Value, true), display(actual, found))
	default:
		result.Passed = false
		result.Message = fmt.Sprintf("Unknown operator: %s", a.Operator)
	}

	return result
}

// equals is strict: values of different kinds never match and strings are
// never read as numbers. Arrays and objects have identity semantics, so two
// decoded composites are never equal. An explicit null matches only null and
// an omitted value matches only an absent field.
func equals(actual any, found bool, expected any, given bool) bool {
	actualKind := fieldpath.KindOf(actual, found)
	expectedKind := fieldpath.KindOf(expected, given)

	if expected == nil {
		return actualKind == expectedKind
	}
	if actualKind != expectedKind {
		return false
	}

	switch actualKind {
	case fieldpath.Number:
		a, _ := fieldpath.Float(actual)
		b, _ := fieldpath.Float(expected)
		return a == b
	case fieldpath.String:
		return actual.(string) == expected.(string)
	case fieldpath.Bool:
		return actual.(bool) == expected.(bool)
	default:
		return false
	}
}

func greaterThan(actual any, found bool, expected any) bool {
	if fieldpath.KindOf(actual, found) != fieldpath.Number {
		return false
	}
	threshold, ok := fieldpath.Float(expected)
	if !ok {
		return false
	}
	value, _ := fieldpath.Float(actual)
	return value > threshold
}

func contains(actual any, found bool, expected any) bool {
	if !found {
		return false
	}
	s, ok := actual.(string)
	if !ok {
		return false
	}
	sub, ok := expected.(string)
	if !ok {
		return false
	}
	return strings.Contains(s, sub)
}

// typeTag reports the runtime type category of a value: string, number,
// boolean, object (objects, arrays and null) or undefined.
func typeTag(v any, found bool) string {
	switch fieldpath.KindOf(v, found) {
	case fieldpath.Absent:
		return "undefined"
	case fieldpath.Bool:
		return "boolean"
	case fieldpath.Number:
		return "number"
	case fieldpath.String:
		return "string"
	default:
		return "object"
	}
}
