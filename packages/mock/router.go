package mock

import (
	"net/http"
	"regexp"
	"strings"
)

// HandlerFunc serves a matched route with its path parameters.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, params map[string]string)

// Route represents a mock route
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	Handler     HandlerFunc
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// Handle registers handler for method and a pattern such as
// "/records/{{id}}".
func (r *Router) Handle(method, pattern, name string, handler HandlerFunc) {
	pattern = normalizePath(pattern)
	r.routes = append(r.routes, &Route{
		Method:      method,
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Name:        name,
		Handler:     handler,
	})
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*Route {
	return r.routes
}

// Match finds a route for method and path. pathMatched reports whether any
// route matched the path under another method.
func (r *Router) Match(method, path string) (route *Route, params map[string]string, pathMatched bool) {
	path = normalizePath(path)

	for _, rt := range r.routes {
		p := matchPath(rt, path)
		if p == nil {
			continue
		}
		if strings.EqualFold(rt.Method, method) {
			return rt, p, true
		}
		pathMatched = true
	}

	return nil, nil, pathMatched
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Remove trailing slash (except for root)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

var paramPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

func createPathRegex(pattern string) *regexp.Regexp {
	parts := paramPattern.Split(pattern, -1)
	names := paramPattern.FindAllStringSubmatch(pattern, -1)

	var b strings.Builder
	b.WriteString("^")
	for i, part := range parts {
		b.WriteString(regexp.QuoteMeta(part))
		if i < len(names) {
			b.WriteString("(?P<" + strings.TrimSpace(names[i][1]) + ">[^/]+)")
		}
	}
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return regex
}

func matchPath(route *Route, path string) map[string]string {
	matches := route.PathRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}
	params := make(map[string]string)
	for i, name := range route.PathRegex.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = matches[i]
		}
	}
	return params
}
