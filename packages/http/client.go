package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultAPIKeyHeader carries the API key on every request
	DefaultAPIKeyHeader = "x-api-key"
)

// Client issues JSON requests against a base URL. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	timeout        time.Duration
	apiKey         string
	apiKeyHeader   string
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	logger         logging.Logger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		apiKeyHeader:   DefaultAPIKeyHeader,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		logger:         logging.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	return c
}

// WithBaseURL sets the URL relative endpoints are resolved against.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithAPIKey sends key in the API key header of every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithAPIKeyHeader changes the header name used for the API key.
func WithAPIKeyHeader(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.apiKeyHeader = name
		}
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

func WithLogger(l logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Get requests endpoint with params appended as a query string.
func (c *Client) Get(endpoint string, params map[string]string) (*Response, error) {
	return c.Do(context.Background(), http.MethodGet, WithQuery(endpoint, params), nil)
}

func (c *Client) Post(endpoint string, payload any) (*Response, error) {
	return c.Do(context.Background(), http.MethodPost, endpoint, payload)
}

func (c *Client) Put(endpoint string, payload any) (*Response, error) {
	return c.Do(context.Background(), http.MethodPut, endpoint, payload)
}

func (c *Client) Delete(endpoint string) (*Response, error) {
	return c.Do(context.Background(), http.MethodDelete, endpoint, nil)
}

// Do performs one request. A nil payload sends no body. Transport errors are
// returned as they come from net/http; an undecodable body yields a
// *JSONParseError.
func (c *Client) Do(ctx context.Context, method, endpoint string, payload any) (*Response, error) {
	target, err := c.ResolveURL(endpoint)
	if err != nil {
		return nil, err
	}

	c.logger.Info(fmt.Sprintf("REQUEST: %s %s", method, target))

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		c.logger.Debug("   Body: " + pretty(payload))
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	latency := time.Since(start)

	if err != nil {
		c.logger.Error(fmt.Sprintf("REQUEST FAILED: %s %s: %v", method, target, err))
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeBody(method, httpResp.StatusCode, raw)
	if err != nil {
		c.logger.Error("Failed to parse JSON response. Body starts with: " + excerpt(string(raw)))
		return nil, err
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k, values := range httpResp.Header {
		headers[strings.ToLower(k)] = strings.Join(values, ", ")
	}

	c.logger.Info(fmt.Sprintf("RESPONSE: %d (%dms)", httpResp.StatusCode, latency.Milliseconds()))
	c.logger.Debug("   Body: " + pretty(decoded))

	return &Response{
		Status:  httpResp.StatusCode,
		Body:    decoded,
		Headers: headers,
		Latency: latency,
		Raw:     raw,
	}, nil
}

// ResolveURL resolves endpoint against the base URL. Absolute endpoints are
// returned unchanged.
func (c *Client) ResolveURL(endpoint string) (string, error) {
	ref, err := neturl.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("relative endpoint %q requires a base URL", endpoint)
	}
	base, err := neturl.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", base.Scheme)
	}
	return base.ResolveReference(ref).String(), nil
}

// WithQuery appends params to endpoint in key order.
func WithQuery(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := neturl.Values{}
	for _, k := range keys {
		values.Set(k, params[k])
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + values.Encode()
}

// decodeBody reads a 204, a DELETE or a blank body as an empty object.
func decodeBody(method string, status int, raw []byte) (any, error) {
	if status == http.StatusNoContent || method == http.MethodDelete || len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &JSONParseError{
			Status:  status,
			Excerpt: excerpt(string(raw)),
			Err:     err,
		}
	}
	return decoded, nil
}

func pretty(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
