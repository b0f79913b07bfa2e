package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/ledger-qa/internal/api/middleware"
	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/engine"
	"github.com/dvloznov/ledger-qa/internal/jobs"
	"github.com/dvloznov/ledger-qa/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSource is a mock implementation of pipeline.RowSource for testing.
type MockSource struct {
	RowsFunc func(ctx context.Context) ([]ledger.RawRow, error)
}

func (m *MockSource) Name() string { return "mock.csv" }

func (m *MockSource) Rows(ctx context.Context) ([]ledger.RawRow, error) {
	return m.RowsFunc(ctx)
}

// MockAnalyzer is a mock implementation of pipeline.Analyzer for testing.
type MockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, p selector.Payload) (string, error)
}

func (m *MockAnalyzer) Analyze(ctx context.Context, p selector.Payload) (string, error) {
	return m.AnalyzeFunc(ctx, p)
}

func strPtr(s string) *string { return &s }

func sampleRows(ctx context.Context) ([]ledger.RawRow, error) {
	return []ledger.RawRow{
		{Date: "01/06/25", Description: strPtr("UPI payment to grocery store"), Amount: "-500"},
		{Date: "02/06/25", Description: strPtr("Salary credit"), Amount: "5000"},
		{Date: "03/06/25", Description: strPtr("Netflix subscription"), Amount: "-199"},
		{Date: "04/06/25", Description: strPtr("ATM withdrawal"), Amount: "-1000"},
	}, nil
}

type testServer struct {
	handler http.Handler
	store   *inmemory.Store
}

func newTestServer(t *testing.T, rows func(ctx context.Context) ([]ledger.RawRow, error), analyzer *MockAnalyzer) testServer {
	t.Helper()
	return newTestServerWithLog(t, rows, analyzer, zerolog.Nop())
}

func newTestServerWithLog(t *testing.T, rows func(ctx context.Context) ([]ledger.RawRow, error), analyzer *MockAnalyzer, log zerolog.Logger) testServer {
	t.Helper()

	opts := engine.Options{}
	if analyzer != nil {
		opts.Analyzer = analyzer
	}
	e := engine.New(&MockSource{RowsFunc: rows}, classify.Default(), opts)

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, store)
	t.Cleanup(func() { _ = queue.Close() })

	return testServer{
		handler: NewRouter(RouterConfig{
			Ledger:    e,
			Publisher: queue,
			JobStore:  store,
			Log:       log,
		}),
		store: store,
	}
}

func (s testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestQuestionsHandler_Ask(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantAnswer string
	}{
		{
			name:       "total",
			body:       map[string]string{"question": "What's my total spend?"},
			wantStatus: http.StatusOK,
			wantAnswer: "₹3301.00",
		},
		{
			name:       "unknown question",
			body:       map[string]string{"question": "Tell me a joke"},
			wantStatus: http.StatusOK,
			wantAnswer: "couldn't understand",
		},
		{
			name:       "empty question",
			body:       map[string]string{"question": "   "},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := srv.do(t, http.MethodPost, "/api/ask", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantAnswer != "" {
				assert.Contains(t, out["answer"], tt.wantAnswer)
			}
		})
	}
}

func TestQuestionsHandler_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)

	rec, _ := srv.do(t, http.MethodGet, "/api/ask", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQuestionsHandler_DataLoadError(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context) ([]ledger.RawRow, error) {
		return nil, errors.New("bucket not found")
	}, nil)

	rec, out := srv.do(t, http.MethodPost, "/api/ask", map[string]string{"question": "count"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Ledger data is unavailable", out["error"])
}

func TestLedgerErrors_LoggedWithRequestID(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "ask", method: http.MethodPost, path: "/api/ask", body: `{"question":"count"}`},
		{name: "context", method: http.MethodPost, path: "/api/context", body: `{"question":"count"}`},
		{name: "summary", method: http.MethodGet, path: "/api/summary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			srv := newTestServerWithLog(t, func(ctx context.Context) ([]ledger.RawRow, error) {
				return nil, errors.New("bucket not found")
			}, nil, logger.NewWithWriter(&logs))

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set(middleware.RequestIDHeader, "req-42")
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var found bool
			for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				if entry["message"] != "Ledger unavailable" {
					continue
				}
				found = true
				assert.Equal(t, "req-42", entry["request_id"])
				assert.Equal(t, "error", entry["level"])
				assert.Equal(t, "mock.csv", entry["source"])
			}
			assert.True(t, found, "no ledger error logged: %s", logs.String())
		})
	}
}

func TestQuestionsHandler_Context(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)

	rec, out := srv.do(t, http.MethodPost, "/api/context", map[string]string{"question": "recent subscription charges"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "recent subscription charges", out["question"])
	assert.Equal(t, "SUBSCRIPTION", out["matched_category"])
	assert.Len(t, out["sample_records"], 1)
	assert.Contains(t, out, "statistics")
}

func TestAnalysesHandler_Create(t *testing.T) {
	t.Run("no generator", func(t *testing.T) {
		srv := newTestServer(t, sampleRows, nil)

		rec, _ := srv.do(t, http.MethodPost, "/api/analyses", map[string]string{"question": "Any trends?"})
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("enqueued", func(t *testing.T) {
		srv := newTestServer(t, sampleRows, &MockAnalyzer{
			AnalyzeFunc: func(ctx context.Context, p selector.Payload) (string, error) { return "ok", nil },
		})

		rec, out := srv.do(t, http.MethodPost, "/api/analyses", map[string]string{"question": "Any trends?"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, string(jobs.JobStatusPending), out["status"])

		jobID, _ := out["job_id"].(string)
		require.NotEmpty(t, jobID)

		job, err := srv.store.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, "Any trends?", job.Question)
		assert.Equal(t, "mock.csv", job.Source)
	})
}

func TestLedgerHandler_Summary(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)

	rec, out := srv.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, out["total_transactions"])
}

func TestLedgerHandler_ListTransactions(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantCount: 4},
		{name: "by category", query: "?category=subscription", wantStatus: http.StatusOK, wantCount: 1},
		{name: "limited", query: "?limit=2", wantStatus: http.StatusOK, wantCount: 2},
		{name: "bad limit", query: "?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := srv.do(t, http.MethodGet, "/api/transactions"+tt.query, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.EqualValues(t, tt.wantCount, out["count"])
			}
		})
	}
}

func TestLedgerHandler_Reload(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(ctx context.Context) ([]ledger.RawRow, error) {
		calls++
		return sampleRows(ctx)
	}, nil)

	_, _ = srv.do(t, http.MethodGet, "/api/summary", nil)
	_, _ = srv.do(t, http.MethodGet, "/api/summary", nil)
	assert.Equal(t, 1, calls)

	rec, _ := srv.do(t, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, _ = srv.do(t, http.MethodGet, "/api/summary", nil)
	assert.Equal(t, 2, calls)
}

func TestJobsHandler(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)
	ctx := context.Background()

	require.NoError(t, srv.store.SaveJob(ctx, &jobs.AnalysisJob{JobID: "job-1", Question: "q1", Status: jobs.JobStatusCompleted, Answer: "a1"}))
	require.NoError(t, srv.store.SaveJob(ctx, &jobs.AnalysisJob{JobID: "job-2", Question: "q2", Status: jobs.JobStatusPending}))

	t.Run("get", func(t *testing.T) {
		rec, out := srv.do(t, http.MethodGet, "/api/jobs/job-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "a1", out["answer"])
	})

	t.Run("not found", func(t *testing.T) {
		rec, _ := srv.do(t, http.MethodGet, "/api/jobs/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rec, _ := srv.do(t, http.MethodGet, "/api/jobs/", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list by status", func(t *testing.T) {
		rec, out := srv.do(t, http.MethodGet, "/api/jobs?status=pending", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, out["count"])
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, sampleRows, nil)

	rec, out := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", out["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
