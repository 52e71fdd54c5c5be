package runner

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apihttp "github.com/abdul-hamid-achik/apiharness/packages/http"
	"github.com/abdul-hamid-achik/apiharness/packages/logging"
	"github.com/abdul-hamid-achik/apiharness/packages/mock"
	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) *apihttp.Client {
	t.Helper()
	server := httptest.NewServer(mock.NewServer().Handler())
	t.Cleanup(server.Close)
	return apihttp.NewClient(apihttp.WithBaseURL(server.URL + "/"))
}

func parseSuite(t *testing.T, doc string) *testdata.Suite {
	t.Helper()
	suite, err := testdata.Parse([]byte(doc))
	require.NoError(t, err)
	suite.Path = "suite.yaml"
	return suite
}

const lifecycleSuite = `
testSuite: Records lifecycle
baseEndpoint: records
variables:
  userName: Jane Doe
testCases:
  - name: create_record
    method: POST
    endpoint: records
    body:
      name: "{{userName}}"
      email: jane@example.com
      age: 31
    expectedStatus: 201
    schema:
      id: string
      name: string
      createdAt: string
    assertions:
      - field: id
        operator: exists
      - field: name
        operator: equals
        value: Jane Doe
      - field: age
        operator: greaterThan
        value: 30
    capture:
      recordId: id
  - name: update_record
    method: PUT
    endpoint: "records/{{recordId}}"
    body:
      name: Jane Updated
    expectedStatus: 200
    assertions:
      - field: id
        operator: equals
        value: "{{recordId}}"
      - field: name
        operator: equals
        value: Jane Updated
      - field: email
        operator: contains
        value: "@example.com"
      - field: updatedAt
        operator: type
        value: string
  - name: delete_record
    method: DELETE
    endpoint: "records/{{create_record.recordId}}"
    expectedStatus: 204
  - name: get_deleted_record
    method: GET
    endpoint: "records/{{recordId}}"
    expectedStatus: 404
    assertions:
      - field: error
        operator: equals
        value: Record not found
`

func TestRunSuite_Lifecycle(t *testing.T) {
	logs := logging.NewCapture()
	r := New(&Config{}, newMockClient(t), logs)

	result, err := r.RunSuite(context.Background(), parseSuite(t, lifecycleSuite))
	require.NoError(t, err)

	for _, cr := range result.Results {
		assert.Truef(t, cr.Passed, "%s: %v %v", cr.Name, cr.Error, cr.Failures())
	}
	assert.Equal(t, 4, result.Passed)
	assert.True(t, result.OK())
	assert.Equal(t, "Records lifecycle", result.Suite)

	id, ok := result.Results[0].Captures["recordId"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(id, mock.IDPrefix))
	assert.Equal(t, "records/"+id, result.Results[1].Endpoint)
	assert.Equal(t, "records/"+id, result.Results[2].Endpoint)

	assert.EqualValues(t, 4, result.Latency.Count)
	assert.Contains(t, logs.Messages(slog.LevelInfo), "Running test case: create_record")
	assert.Empty(t, logs.Messages(slog.LevelError))
}

func TestRunSuite_FailedVersusErrored(t *testing.T) {
	suite := parseSuite(t, `
testSuite: outcomes
testCases:
  - name: wrong_status
    method: GET
    endpoint: records
    expectedStatus: 201
  - name: wrong_field
    method: POST
    endpoint: records
    body: {name: John}
    expectedStatus: 201
    assertions:
      - field: name
        operator: equals
        value: Jane
      - field: nickname
        operator: exists
  - name: unknown_operator
    method: GET
    endpoint: records
    expectedStatus: 200
    assertions:
      - field: count
        operator: matches
        value: 1
`)
	logs := logging.NewCapture()
	r := New(nil, newMockClient(t), logs)

	result, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, result.Results, 3)

	assert.Equal(t, StatusFailed, result.Results[0].Status())
	require.Len(t, result.Results[0].Failures(), 1)
	assert.Equal(t, "Expected status 201 but got 200", result.Results[0].Failures()[0].Message)

	failures := result.Results[1].Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "name", failures[0].Field)
	assert.Equal(t, "nickname", failures[1].Field)

	assert.Equal(t, StatusFailed, result.Results[2].Status())
	assert.Equal(t, "Unknown operator: matches", result.Results[2].Failures()[0].Message)

	assert.Equal(t, 3, result.Failed)
	assert.False(t, result.OK())
	assert.Len(t, logs.Messages(slog.LevelError), 4)
}

func TestRunSuite_TransportErrorIsErrored(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := apihttp.NewClient(apihttp.WithBaseURL(server.URL+"/"), apihttp.WithTimeout(time.Second))
	r := New(nil, client, nil)

	result, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - name: unreachable
    method: GET
    endpoint: records
    expectedStatus: 200
`))
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, StatusErrored, result.Results[0].Status())
	assert.Error(t, result.Results[0].Error)
	assert.Equal(t, 1, result.Errored)
	assert.EqualValues(t, 0, result.Latency.Count)
}

func TestRunSuite_UnresolvedEndpointVariable(t *testing.T) {
	r := New(nil, newMockClient(t), nil)

	result, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - name: missing_id
    method: GET
    endpoint: "records/{{recordId}}"
    expectedStatus: 200
`))
	require.NoError(t, err)
	cr := result.Results[0]
	assert.Equal(t, StatusErrored, cr.Status())
	assert.Contains(t, cr.Error.Error(), "unresolved variables")
	assert.Contains(t, cr.Error.Error(), "recordId")
	assert.Nil(t, cr.Response)
}

func TestRunSuite_SkipAndFilters(t *testing.T) {
	doc := `
testCases:
  - name: create_one
    method: POST
    endpoint: records
    body: {name: one}
    expectedStatus: 201
    tags: [smoke]
  - name: create_two
    method: POST
    endpoint: records
    body: {name: two}
    expectedStatus: 201
    tags: [slow]
  - name: list_records
    method: GET
    endpoint: records
    expectedStatus: 200
    skip: not ready
`
	tests := []struct {
		name    string
		config  *Config
		want    []Status
		reasons []string
	}{
		{
			name:    "no filters",
			config:  &Config{},
			want:    []Status{StatusPassed, StatusPassed, StatusSkipped},
			reasons: []string{"", "", "not ready"},
		},
		{
			name:    "name glob",
			config:  &Config{NameFilter: "create_t*"},
			want:    []Status{StatusSkipped, StatusPassed, StatusSkipped},
			reasons: []string{"filtered out by name", "", "not ready"},
		},
		{
			name:    "tags",
			config:  &Config{TagsFilter: []string{"smoke"}},
			want:    []Status{StatusPassed, StatusSkipped, StatusSkipped},
			reasons: []string{"", "filtered out by tags", "not ready"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.config, newMockClient(t), nil)
			result, err := r.RunSuite(context.Background(), parseSuite(t, doc))
			require.NoError(t, err)
			require.Len(t, result.Results, 3)

			statuses := make([]Status, 0, 3)
			reasons := make([]string, 0, 3)
			for _, cr := range result.Results {
				statuses = append(statuses, cr.Status())
				reasons = append(reasons, cr.SkipReason)
			}
			// skipped cases are recorded before the ones that ran
			assert.ElementsMatch(t, tt.want, statuses)
			assert.ElementsMatch(t, tt.reasons, reasons)
		})
	}
}

func TestRunSuite_Bail(t *testing.T) {
	r := New(&Config{Bail: true}, newMockClient(t), nil)

	result, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - name: fails
    method: GET
    endpoint: records
    expectedStatus: 500
  - name: never_runs
    method: GET
    endpoint: records
    expectedStatus: 200
`))
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "fails", result.Results[0].Name)
	assert.Equal(t, 1, result.Failed)
}

func TestRunSuite_Parallel(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	t.Cleanup(server.Close)

	var doc strings.Builder
	doc.WriteString("testCases:\n")
	for _, name := range []string{"a", "b", "c", "d"} {
		doc.WriteString("  - name: case_" + name + "\n")
		doc.WriteString("    method: GET\n")
		doc.WriteString("    endpoint: items/" + name + "\n")
		doc.WriteString("    expectedStatus: 200\n")
		doc.WriteString("    assertions:\n")
		doc.WriteString("      - field: path\n")
		doc.WriteString("        operator: equals\n")
		doc.WriteString("        value: /items/" + name + "\n")
	}

	client := apihttp.NewClient(apihttp.WithBaseURL(server.URL + "/"))
	r := New(&Config{Parallel: true, Concurrency: 2}, client, nil)

	result, err := r.RunSuite(context.Background(), parseSuite(t, doc.String()))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Passed)

	names := make([]string, 0, 4)
	for _, cr := range result.Results {
		names = append(names, cr.Name)
	}
	assert.Equal(t, []string{"case_a", "case_b", "case_c", "case_d"}, names)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, peak)
}

func TestRunSuite_ParallelFallsBackWithCaptures(t *testing.T) {
	logs := logging.NewCapture()
	r := New(&Config{Parallel: true}, newMockClient(t), logs)

	result, err := r.RunSuite(context.Background(), parseSuite(t, lifecycleSuite))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Passed)
	assert.Contains(t, logs.Messages(slog.LevelWarn), "Running sequentially: suite captures values for later cases")
}

func TestRunSuite_RateLimit(t *testing.T) {
	r := New(&Config{RateLimit: 20}, newMockClient(t), nil)

	start := time.Now()
	result, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - {name: one, method: GET, endpoint: records, expectedStatus: 200}
  - {name: two, method: GET, endpoint: records, expectedStatus: 200}
  - {name: three, method: GET, endpoint: records, expectedStatus: 200}
`))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Passed)
	// 20 req/s with a burst of one spaces the last two requests by 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunSuite_QueryOnGet(t *testing.T) {
	queries := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := apihttp.NewClient(apihttp.WithBaseURL(server.URL + "/"))
	r := New(&Config{Variables: map[string]any{"page": 2}}, client, nil)

	_, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - name: paged
    method: GET
    endpoint: records
    query:
      page: "{{page}}"
      limit: "10"
    expectedStatus: 200
`))
	require.NoError(t, err)
	assert.Equal(t, "limit=10&page=2", <-queries)
}

func TestRunSuite_NoBodyOnGetOrDelete(t *testing.T) {
	type request struct {
		method string
		body   string
	}
	requests := make(chan request, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		requests <- request{method: r.Method, body: string(data)}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := apihttp.NewClient(apihttp.WithBaseURL(server.URL + "/"))
	r := New(&Config{}, client, nil)

	_, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - name: read
    method: GET
    endpoint: records/rec_1
    body: {ignored: true}
    expectedStatus: 200
  - name: remove
    method: DELETE
    endpoint: records/rec_1
    body: {ignored: true}
    expectedStatus: 200
  - name: replace
    method: PUT
    endpoint: records/rec_1
    body: {name: Jane}
    expectedStatus: 200
`))
	require.NoError(t, err)
	close(requests)

	var got []request
	for req := range requests {
		got = append(got, req)
	}
	require.Len(t, got, 3)
	assert.Equal(t, request{method: "GET"}, got[0])
	assert.Equal(t, request{method: "DELETE"}, got[1])
	assert.Equal(t, "PUT", got[2].method)
	assert.JSONEq(t, `{"name":"Jane"}`, got[2].body)
}

func TestRunFile_SchemaFileRelativeToSuite(t *testing.T) {
	dir := t.TempDir()
	schema := `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"}
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "record.schema.json"), []byte(schema), 0o644))
	suite := `
testSuite: schema
testCases:
  - name: create_valid
    method: POST
    endpoint: records
    body: {name: Valid}
    expectedStatus: 201
    schema: record.schema.json
  - name: list_is_not_a_record
    method: GET
    endpoint: records
    expectedStatus: 200
    schema: record.schema.json
`
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suite), 0o644))

	r := New(nil, newMockClient(t), nil)
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, result.File)
	assert.Equal(t, StatusPassed, result.Results[0].Status())
	assert.Equal(t, StatusFailed, result.Results[1].Status())
}

func TestRunFile_MissingFile(t *testing.T) {
	r := New(nil, newMockClient(t), nil)
	_, err := r.RunFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "reading test data")
}

func TestRunSuite_ResponseTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := apihttp.NewClient(apihttp.WithBaseURL(server.URL + "/"))
	r := New(nil, client, nil)

	result, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - {name: too_slow, method: GET, endpoint: x, expectedStatus: 200, maxResponseTimeMs: 5}
  - {name: fast_enough, method: GET, endpoint: x, expectedStatus: 200, maxResponseTimeMs: 5000}
`))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Results[0].Status())
	assert.Equal(t, "responseTime", result.Results[0].Failures()[0].Field)
	assert.Equal(t, StatusPassed, result.Results[1].Status())
}

func TestRunSuite_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(nil, newMockClient(t), nil)
	result, err := r.RunSuite(ctx, parseSuite(t, `
testCases:
  - {name: one, method: GET, endpoint: records, expectedStatus: 200}
`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Results)
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("create_record", ""))
	assert.True(t, matchesPattern("create_record", "create_*"))
	assert.False(t, matchesPattern("delete_record", "create_*"))
	assert.True(t, matchesPattern("a[", "a["))
}

func TestLatencyRecorder(t *testing.T) {
	rec := NewLatencyRecorder()
	assert.Equal(t, LatencyStats{}, rec.Stats())

	for i := 1; i <= 100; i++ {
		rec.Record(time.Duration(i) * time.Millisecond)
	}
	rec.Record(500 * time.Millisecond)

	stats := rec.Stats()
	assert.EqualValues(t, 101, stats.Count)
	assert.InDelta(t, float64(time.Millisecond), float64(stats.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(500*time.Millisecond), float64(stats.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(51*time.Millisecond), float64(stats.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(96*time.Millisecond), float64(stats.P95), float64(time.Millisecond))
}

func TestRunSuite_ArrayLength(t *testing.T) {
	r := New(nil, newMockClient(t), nil)

	result, err := r.RunSuite(context.Background(), parseSuite(t, `
testCases:
  - name: create
    method: POST
    endpoint: records
    body: {name: one}
    expectedStatus: 201
  - name: list_has_one
    method: GET
    endpoint: records
    expectedStatus: 200
    arrayLength:
      - {field: data, min: 1, max: 1}
  - name: list_too_short
    method: GET
    endpoint: records
    expectedStatus: 200
    arrayLength:
      - {field: data, min: 2}
`))
	require.NoError(t, err)
	require.Len(t, result.Results, 3)
	assert.Equal(t, StatusPassed, result.Results[1].Status())

	failures := result.Results[2].Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, `Array "data" length 1 < min 2`, failures[0].Message)
}
