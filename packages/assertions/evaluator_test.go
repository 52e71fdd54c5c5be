package assertions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parseBody(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestEvaluate_Equals(t *testing.T) {
	body := parseBody(t, `{"name": "John Doe", "age": 5, "active": true, "note": null, "tags": ["a"], "meta": {"k": 1}}`)

	tests := []struct {
		name     string
		field    string
		expected any
		passed   bool
	}{
		{name: "string match", field: "name", expected: "John Doe", passed: true},
		{name: "string mismatch", field: "name", expected: "Jane", passed: false},
		{name: "int against float", field: "age", expected: 5, passed: true},
		{name: "float against float", field: "age", expected: 5.0, passed: true},
		{name: "string never equals number", field: "age", expected: "5", passed: false},
		{name: "bool", field: "active", expected: true, passed: true},
		{name: "bool vs string", field: "active", expected: "true", passed: false},
		{name: "absent vs value", field: "missing", expected: "x", passed: false},
		{name: "array identity", field: "tags", expected: []any{"a"}, passed: false},
		{name: "object identity", field: "meta", expected: map[string]any{"k": 1}, passed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(body, Assertion{Field: tt.field, Operator: OpEquals, Value: tt.expected})
			assert.Equal(t, tt.passed, result.Passed, "Message: %s", result.Message)
			assert.Contains(t, result.Message, tt.field)
		})
	}
}

func TestEvaluate_EqualsNullVersusAbsent(t *testing.T) {
	body := parseBody(t, `{"id": "rec_1", "note": null}`)

	tests := []struct {
		name      string
		assertion Assertion
		passed    bool
	}{
		{name: "explicit null matches null", assertion: Assertion{Field: "note", Operator: OpEquals, HasValue: true}, passed: true},
		{name: "explicit null does not match absent", assertion: Assertion{Field: "deletedAt", Operator: OpEquals, HasValue: true}, passed: false},
		{name: "omitted value matches absent", assertion: Assertion{Field: "deletedAt", Operator: OpEquals}, passed: true},
		{name: "omitted value does not match null", assertion: Assertion{Field: "note", Operator: OpEquals}, passed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(body, tt.assertion)
			assert.Equal(t, tt.passed, result.Passed, "Message: %s", result.Message)
		})
	}
}

func TestAssertion_DecodeRecordsValuePresence(t *testing.T) {
	body := parseBody(t, `{"id": "rec_1"}`)

	var fromYAML []Assertion
	require.NoError(t, yaml.Unmarshal([]byte(`
- {field: deletedAt, operator: equals, value: null}
- {field: deletedAt, operator: equals}
`), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.True(t, fromYAML[0].HasValue)
	assert.False(t, fromYAML[1].HasValue)

	result := Evaluate(body, fromYAML[0])
	assert.False(t, result.Passed)
	assert.Equal(t, `Expected "deletedAt" to equal "null" but got "undefined"`, result.Message)
	assert.True(t, Evaluate(body, fromYAML[1]).Passed)

	var fromJSON []Assertion
	require.NoError(t, json.Unmarshal([]byte(`[{"field":"deletedAt","operator":"equals","value":null},{"field":"id","operator":"exists"}]`), &fromJSON))
	assert.True(t, fromJSON[0].HasValue)
	assert.False(t, fromJSON[1].HasValue)
	assert.False(t, Evaluate(body, fromJSON[0]).Passed)
}

func TestEvaluate_Exists(t *testing.T) {
	body := parseBody(t, `{"id": "rec_1", "zero": 0, "empty": "", "nothing": null, "nested": {"x": false}}`)

	tests := []struct {
		field  string
		passed bool
	}{
		{"id", true},
		{"zero", true},
		{"empty", true},
		{"nested.x", true},
		{"nothing", false},
		{"missing", false},
		{"nested.missing.deeper", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			result := Evaluate(body, Assertion{Field: tt.field, Operator: OpExists})
			assert.Equal(t, tt.passed, result.Passed)
			assert.NotEmpty(t, result.Message)
		})
	}

	result := Evaluate(body, Assertion{Field: "missing", Operator: OpExists})
	assert.Equal(t, `Expected "missing" to exist but it was undefined`, result.Message)
}

func TestEvaluate_Type(t *testing.T) {
	body := parseBody(t, `{"s": "x", "n": 1.5, "b": false, "o": {}, "a": [], "z": null}`)

	tests := []struct {
		field    string
		expected string
		passed   bool
	}{
		{"s", "string", true},
		{"n", "number", true},
		{"b", "boolean", true},
		{"o", "object", true},
		{"a", "object", true},
		{"z", "object", true},
		{"missing", "undefined", true},
		{"s", "number", false},
		{"n", "string", false},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.expected, func(t *testing.T) {
			result := Evaluate(body, Assertion{Field: tt.field, Operator: OpType, Value: tt.expected})
			assert.Equal(t, tt.passed, result.Passed, "Message: %s", result.Message)
		})
	}
}

func TestEvaluate_GreaterThan(t *testing.T) {
	body := parseBody(t, `{"data": {"count": 5, "label": "10"}}`)

	t.Run("fails below threshold", func(t *testing.T) {
		result := Evaluate(body, Assertion{Field: "data.count", Operator: OpGreaterThan, Value: 10})
		assert.False(t, result.Passed)
		assert.Contains(t, result.Message, "10")
		assert.Contains(t, result.Message, "5")
		assert.Equal(t, `Expected "data.count" to be greater than 10 but got 5`, result.Message)
	})

	t.Run("passes above threshold", func(t *testing.T) {
		result := Evaluate(body, Assertion{Field: "data.count", Operator: OpGreaterThan, Value: 4})
		assert.True(t, result.Passed)
		assert.NotEmpty(t, result.Message)
	})

	t.Run("equal is not greater", func(t *testing.T) {
		result := Evaluate(body, Assertion{Field: "data.count", Operator: OpGreaterThan, Value: 5})
		assert.False(t, result.Passed)
	})

	t.Run("numeric string is not a number", func(t *testing.T) {
		result := Evaluate(body, Assertion{Field: "data.label", Operator: OpGreaterThan, Value: 1})
		assert.False(t, result.Passed)
	})

	t.Run("non numeric threshold", func(t *testing.T) {
		result := Evaluate(body, Assertion{Field: "data.count", Operator: OpGreaterThan, Value: "1"})
		assert.False(t, result.Passed)
	})

	t.Run("absent value", func(t *testing.T) {
		result := Evaluate(body, Assertion{Field: "data.total", Operator: OpGreaterThan, Value: 1})
		assert.False(t, result.Passed)
		assert.Contains(t, result.Message, "undefined")
	})
}

func TestEvaluate_Contains(t *testing.T) {
	body := parseBody(t, `{"email": "john@example.com", "count": 123}`)

	assert.True(t, Evaluate(body, Assertion{Field: "email", Operator: OpContains, Value: "@example"}).Passed)
	assert.False(t, Evaluate(body, Assertion{Field: "email", Operator: OpContains, Value: "@other"}).Passed)
	assert.False(t, Evaluate(body, Assertion{Field: "count", Operator: OpContains, Value: "12"}).Passed)
	assert.False(t, Evaluate(body, Assertion{Field: "email", Operator: OpContains, Value: 1}).Passed)
	assert.False(t, Evaluate(body, Assertion{Field: "missing", Operator: OpContains, Value: "x"}).Passed)
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	body := parseBody(t, `{"a": 1}`)

	result := Evaluate(body, Assertion{Field: "a", Operator: "lessThan", Value: 2})

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "Unknown operator")
	assert.Contains(t, result.Message, "lessThan")
}

func TestEvaluate_DoesNotMutateBody(t *testing.T) {
	body := parseBody(t, `{"a": {"b": [1, 2]}, "c": "x"}`)
	before, _ := json.Marshal(body)

	for _, op := range append(Operators, "bogus") {
		Evaluate(body, Assertion{Field: "a.b", Operator: op, Value: 1})
		Evaluate(body, Assertion{Field: "a.z.q", Operator: op, Value: "x"})
	}

	after, _ := json.Marshal(body)
	assert.JSONEq(t, string(before), string(after))
}

func TestEvaluateAll(t *testing.T) {
	body := parseBody(t, `{"id": "rec_1", "name": "John Doe"}`)

	results := EvaluateAll(body, []Assertion{
		{Field: "id", Operator: OpExists},
		{Field: "name", Operator: OpEquals, Value: "John Doe"},
		{Field: "name", Operator: OpType, Value: "number"},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.False(t, results[2].Passed)
	assert.Equal(t, "name", results[2].Field)
	assert.Equal(t, "type", results[2].Operator)
}

func TestOperator_IsKnown(t *testing.T) {
	assert.True(t, OpGreaterThan.IsKnown())
	assert.False(t, Operator("matches").IsKnown())
}
