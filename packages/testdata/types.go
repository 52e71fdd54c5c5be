package testdata

import (
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/apiharness/packages/assertions"
	"gopkg.in/yaml.v3"
)

// Suite is the top-level shape of a test data file.
type Suite struct {
	TestSuite    string         `yaml:"testSuite" json:"testSuite"`
	BaseEndpoint string         `yaml:"baseEndpoint" json:"baseEndpoint"`
	Variables    map[string]any `yaml:"variables,omitempty" json:"variables,omitempty"`
	TestCases    []TestCase     `yaml:"testCases" json:"testCases"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-" json:"-"`
}

// TestCase describes one request and the checks applied to its response.
type TestCase struct {
	Name              string                 `yaml:"name" json:"name"`
	Method            string                 `yaml:"method" json:"method"`
	Endpoint          string                 `yaml:"endpoint" json:"endpoint"`
	Query             map[string]string      `yaml:"query,omitempty" json:"query,omitempty"`
	Body              map[string]any         `yaml:"body,omitempty" json:"body,omitempty"`
	ExpectedStatus    int                    `yaml:"expectedStatus" json:"expectedStatus"`
	Assertions        []assertions.Assertion `yaml:"assertions" json:"assertions"`
	Schema            Schema                 `yaml:"schema,omitempty" json:"schema,omitempty"`
	MaxResponseTimeMs int64                  `yaml:"maxResponseTimeMs,omitempty" json:"maxResponseTimeMs,omitempty"`
	ArrayLength       []LengthCheck          `yaml:"arrayLength,omitempty" json:"arrayLength,omitempty"`
	Capture           map[string]string      `yaml:"capture,omitempty" json:"capture,omitempty"`
	Tags              []string               `yaml:"tags,omitempty" json:"tags,omitempty"`
	Skip              string                 `yaml:"skip,omitempty" json:"skip,omitempty"`
}

// HasTag reports whether the case carries tag.
func (tc *TestCase) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// LengthCheck bounds the length of the array at Field. A nil bound is not
// checked.
type LengthCheck struct {
	Field string `yaml:"field" json:"field"`
	Min   *int   `yaml:"min,omitempty" json:"min,omitempty"`
	Max   *int   `yaml:"max,omitempty" json:"max,omitempty"`
}

// Schema is either a map of field -> type tag or the path of a JSON Schema
// file, relative to the suite file.
type Schema struct {
	Fields map[string]string
	File   string
}

func (s Schema) IsZero() bool {
	return len(s.Fields) == 0 && s.File == ""
}

func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&s.File)
	case yaml.MappingNode:
		return node.Decode(&s.Fields)
	default:
		return fmt.Errorf("line %d: schema must be a file path or a map of field types", node.Line)
	}
}

func (s Schema) MarshalYAML() (any, error) {
	if s.File != "" {
		return s.File, nil
	}
	return s.Fields, nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if s.File != "" {
		return json.Marshal(s.File)
	}
	return json.Marshal(s.Fields)
}
