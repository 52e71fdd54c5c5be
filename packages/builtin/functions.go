package builtin

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func evaluates a built-in call. args are the trimmed, unquoted arguments.
type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock used by now(), timestamp() and date().
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = funcUUID
	r.funcs["now"] = r.funcNow
	r.funcs["timestamp"] = r.funcTimestamp
	r.funcs["timestampMs"] = r.funcTimestampMs
	r.funcs["date"] = r.funcDate
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names lists the registered functions in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr has the shape of a function call.
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(expr)
}

// Call evaluates expr. ok is false when expr is not a call or names an
// unknown function; err reports bad arguments to a known one.
func (r *Registry) Call(expr string) (value any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false, nil
	}

	fn, found := r.funcs[matches[1]]
	if !found {
		return nil, false, nil
	}

	var args []string
	if strings.TrimSpace(matches[2]) != "" {
		args = parseArgs(matches[2])
	}

	value, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return value, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	args = append(args, strings.TrimSpace(current.String()))

	return args
}

func funcUUID(_ []string) (any, error) {
	return uuid.NewString(), nil
}

func (r *Registry) funcNow(_ []string) (any, error) {
	return r.now().UTC().Format(time.RFC3339), nil
}

func (r *Registry) funcTimestamp(_ []string) (any, error) {
	return r.now().Unix(), nil
}

func (r *Registry) funcTimestampMs(_ []string) (any, error) {
	return r.now().UnixMilli(), nil
}

func (r *Registry) funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 && args[0] != "" {
		format = args[0]
	}
	return r.now().UTC().Format(format), nil
}

func funcRandom(args []string) (any, error) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = intArg("min", args[0]); err != nil {
			return nil, err
		}
		if hi, err = intArg("max", args[1]); err != nil {
			return nil, err
		}
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is less than min %d", hi, lo)
	}
	return rand.IntN(hi-lo+1) + lo, nil
}

func funcRandomString(args []string) (any, error) {
	length := 16
	if len(args) >= 1 {
		var err error
		if length, err = intArg("length", args[0]); err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, fmt.Errorf("length must not be negative, got %d", length)
		}
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func funcRandomEmail(_ []string) (any, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("test.%s@example.com", user), nil
}

func intArg(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s argument %q is not a valid integer", name, s)
	}
	return v, nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.IntN(len(charset))]
	}
	return string(result)
}
