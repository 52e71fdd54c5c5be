package assertions

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Operator names a comparison applied to a resolved field value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpExists      Operator = "exists"
	OpType        Operator = "type"
	OpGreaterThan Operator = "greaterThan"
	OpContains    Operator = "contains"
)

// Operators lists every operator the evaluator understands.
var Operators = []Operator{OpEquals, OpExists, OpType, OpGreaterThan, OpContains}

// IsKnown reports whether op is one of Operators.
func (op Operator) IsKnown() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// Assertion is a single declarative check, usually loaded from test data.
type Assertion struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value,omitempty" json:"value,omitempty"`
	// HasValue is set when the value key was written, so an explicit null
	// can be told apart from an omitted value.
	HasValue bool `yaml:"-" json:"-"`
}

// ValueGiven reports whether the assertion carries an expected value,
// including an explicit null.
func (a Assertion) ValueGiven() bool {
	return a.HasValue || a.Value != nil
}

func (a *Assertion) UnmarshalYAML(node *yaml.Node) error {
	type plain Assertion
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = Assertion(p)
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "value" {
				a.HasValue = true
				break
			}
		}
	}
	return nil
}

func (a *Assertion) UnmarshalJSON(data []byte) error {
	type plain Assertion
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*a = Assertion(p)
	_, a.HasValue = keys["value"]
	return nil
}

// Result is the outcome of one assertion. Message is always set, for passing
// results too, so callers can log the full context of every check.
type Result struct {
	Passed   bool
	Message  string
	Field    string
	Operator string
	Expected any
	Actual   any
}
