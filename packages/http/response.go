package http

import (
	"strings"
	"time"
)

// Response is the decoded result of one request. It is built once by the
// client and not modified afterwards.
type Response struct {
	Status  int
	Body    any
	Headers map[string]string
	Latency time.Duration
	// Raw is the undecoded response body.
	Raw []byte
}

func (r *Response) BodyString() string {
	return string(r.Raw)
}

// Header looks up a header case-insensitively.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[strings.ToLower(key)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) IsClientError() bool {
	return r.Status >= 400 && r.Status < 500
}

func (r *Response) IsServerError() bool {
	return r.Status >= 500
}

func (r *Response) LatencyMs() int64 {
	return r.Latency.Milliseconds()
}

// Object returns the body as a JSON object, or nil when it is not one.
func (r *Response) Object() map[string]any {
	obj, _ := r.Body.(map[string]any)
	return obj
}
