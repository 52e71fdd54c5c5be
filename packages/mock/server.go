package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/logging"
	"github.com/google/uuid"
)

const (
	DefaultPort         = 3000
	DefaultCollection   = "records"
	DefaultAPIKeyHeader = "x-api-key"
	// IDPrefix starts every generated record id.
	IDPrefix = "rec_"
)

// Server serves the records API.
type Server struct {
	router       *Router
	store        Store
	port         int
	basePath     string
	collection   string
	delay        time.Duration
	apiKey       string
	apiKeyHeader string
	logger       logging.Logger
	now          func() time.Time
	newID        func() string
}

// Option is a functional option for Server
type Option func(*Server)

func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithStore replaces the default in-memory store.
func WithStore(store Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBasePath mounts the collection below prefix, e.g. "/api".
func WithBasePath(prefix string) Option {
	return func(s *Server) {
		s.basePath = strings.TrimSuffix(prefix, "/")
	}
}

// WithCollection renames the collection segment of the routes.
func WithCollection(name string) Option {
	return func(s *Server) {
		if name = strings.Trim(name, "/"); name != "" {
			s.collection = name
		}
	}
}

// WithAPIKey rejects requests that do not carry key in the API key header.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

func WithAPIKeyHeader(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.apiKeyHeader = name
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:       NewRouter(),
		store:        NewMemoryStore(),
		port:         DefaultPort,
		collection:   DefaultCollection,
		apiKeyHeader: DefaultAPIKeyHeader,
		logger:       logging.Discard(),
		now:          time.Now,
		newID:        func() string { return IDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	collection := s.basePath + "/" + s.collection
	item := collection + "/{{id}}"
	s.router.Handle(http.MethodPost, collection, "createRecord", s.createRecord)
	s.router.Handle(http.MethodGet, collection, "listRecords", s.listRecords)
	s.router.Handle(http.MethodGet, item, "getRecord", s.getRecord)
	s.router.Handle(http.MethodPut, item, "updateRecord", s.updateRecord)
	s.router.Handle(http.MethodDelete, item, "deleteRecord", s.deleteRecord)
	return s
}

// Routes returns the registered routes in registration order.
func (s *Server) Routes() []*Route {
	return s.router.Routes()
}

// Handler returns the server as an http.Handler, for httptest or embedding.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start listens on the configured port until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info(fmt.Sprintf("Mock server listening on http://%s%s/%s", ln.Addr(), s.basePath, s.collection))

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		s.logger.Info(fmt.Sprintf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start)))
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	if s.apiKey != "" && r.Header.Get(s.apiKeyHeader) != s.apiKey {
		writeError(rec, http.StatusUnauthorized, "Missing or invalid API key")
		return
	}

	route, params, pathMatched := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		if pathMatched {
			writeError(rec, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeError(rec, http.StatusNotFound, "Not found")
		return
	}

	route.Handler(rec, r, params)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	fields, err := decodeFields(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := &Record{
		ID:        s.newID(),
		Fields:    fields,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(r.Context(), rec); err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec.JSON())
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	data := make([]any, len(records))
	for i, rec := range records {
		data[i] = rec.JSON()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"count": len(data),
	})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request, params map[string]string) {
	rec, err := s.store.Get(r.Context(), params["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.JSON())
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request, params map[string]string) {
	fields, err := decodeFields(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Get(r.Context(), params["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}

	if rec.Fields == nil {
		rec.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.store.Put(r.Context(), rec); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.JSON())
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := s.store.Delete(r.Context(), params["id"]); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	s.logger.Error("store error: " + err.Error())
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// decodeFields reads a JSON object payload, dropping service-owned fields.
// An empty body is an empty object.
func decodeFields(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	fields := make(map[string]any)
	if len(strings.TrimSpace(string(data))) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.New("request body must be a JSON object")
	}
	for k := range reserved {
		delete(fields, k)
	}
	return fields, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
