package env

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/apiharness/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives warnings such as unresolved placeholders.
type WarnFunc func(format string, args ...any)

// Resolver expands placeholders against variables, captures, the process
// environment and built-in functions. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return NewResolverWithFuncs(builtin.NewRegistry())
}

// NewResolverWithFuncs uses funcs for {{fn()}} calls.
func NewResolverWithFuncs(funcs *builtin.Registry) *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		funcs:     funcs,
	}
}

func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

// SetCapture stores value under both "caseName.captureName" and the bare
// captureName. A later capture with the same bare name replaces it.
func (r *Resolver) SetCapture(caseName, captureName string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caseName != "" {
		r.captures[caseName+"."+captureName] = value
	}
	r.captures[captureName] = value
}

// Lookup returns a capture or variable by name. Captures win.
func (r *Resolver) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

// Resolve expands every placeholder in input. Placeholders that cannot be
// resolved are left as written.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		val, ok := r.evaluate(strings.TrimSpace(match[2 : len(match)-2]))
		if !ok {
			return match
		}
		return stringify(val)
	})
}

// stringify renders a resolved value for splicing into a string. Floats are
// written without an exponent so large numeric ids stay intact.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ResolveValue expands placeholders inside strings nested anywhere in v and
// returns a new value; v is not modified. A string that is exactly one
// placeholder takes the resolved value's own type, so "{{random(1,9)}}"
// becomes a number.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		if m := variablePattern.FindStringSubmatchIndex(val); m != nil && m[0] == 0 && m[1] == len(val) {
			if resolved, ok := r.evaluate(strings.TrimSpace(val[m[2]:m[3]])); ok {
				return resolved
			}
			return val
		}
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

func (r *Resolver) evaluate(expr string) (any, bool) {
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		if val, ok := os.LookupEnv(name); ok {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", name)
		return nil, false
	}

	if builtin.IsCall(expr) {
		val, ok, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return nil, false
		}
		if !ok {
			r.warn("unresolved function call: %s", expr)
			return nil, false
		}
		return val, true
	}

	if val, ok := r.Lookup(expr); ok {
		return val, true
	}

	r.warn("unresolved variable: %s", expr)
	return nil, false
}

// HasUnresolvedVariables reports whether input references a variable or
// capture that is not known yet.
func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

// GetUnresolvedVariables lists unknown variable and capture names in input,
// in order of appearance. Environment references and function calls are
// not reported.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var unresolved []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) {
			continue
		}
		if _, ok := r.Lookup(expr); !ok {
			unresolved = append(unresolved, expr)
		}
	}
	return unresolved
}
