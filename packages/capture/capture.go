package capture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/apiharness/packages/http"
	"github.com/tidwall/gjson"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

// Capture is one parsed capture expression bound to a variable name.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse turns an expression into a Capture for name.
func Parse(name, expr string) (*Capture, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case name == "":
		return nil, fmt.Errorf("capture for %q has no variable name", expr)
	case expr == "":
		return nil, fmt.Errorf("capture %q has an empty expression", name)
	case expr == "status":
		return &Capture{Name: name, Source: SourceStatus}, nil
	case expr == "duration":
		return &Capture{Name: name, Source: SourceDuration}, nil
	case expr == "body":
		return &Capture{Name: name, Source: SourceBody}, nil
	case strings.HasPrefix(expr, "header:"):
		header := strings.TrimSpace(strings.TrimPrefix(expr, "header:"))
		if header == "" {
			return nil, fmt.Errorf("capture %q names no header", name)
		}
		return &Capture{Name: name, Source: SourceHeader, Path: header}, nil
	default:
		return &Capture{Name: name, Source: SourceBody, Path: expr}, nil
	}
}

// ParseAll parses a name -> expression map, sorted by name.
func ParseAll(specs map[string]string) ([]*Capture, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	captures := make([]*Capture, 0, len(names))
	for _, name := range names {
		c, err := Parse(name, specs[name])
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{response: resp}
	if gjson.ValidBytes(resp.Raw) {
		e.bodyJSON = gjson.ParseBytes(resp.Raw)
	}
	return e
}

func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		return e.response.Status, true
	case SourceDuration:
		return e.response.LatencyMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if path == "" {
		return e.response.Body, e.response.Body != nil
	}
	if !e.bodyJSON.Exists() {
		return nil, false
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll returns the captured values by name and the names that did not
// match anything in the response.
func ExtractAll(resp *http.Response, captures []*Capture) (map[string]any, []string) {
	extractor := NewExtractor(resp)
	results := make(map[string]any, len(captures))
	var missing []string

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		} else {
			missing = append(missing, c.Name)
		}
	}

	return results, missing
}
