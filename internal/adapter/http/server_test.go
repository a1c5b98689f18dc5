package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/burn-area-service/internal/adapter/http"
	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunner struct {
	mu      sync.Mutex
	started []pipeline.Request
	release chan struct{}
	done    chan struct{}
}

func newMockRunner() *mockRunner {
	return &mockRunner{release: make(chan struct{}), done: make(chan struct{}, 8)}
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request, sink domain.ProgressSink) (pipeline.Result, error) {
	m.mu.Lock()
	m.started = append(m.started, req)
	m.mu.Unlock()
	sink.Progress(5, "extracting")

	defer func() { m.done <- struct{}{} }()
	select {
	case <-m.release:
		return pipeline.Result{RunID: req.ID}, nil
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}
}

func (m *mockRunner) requests() []pipeline.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.Request(nil), m.started...)
}

type mockRuns struct {
	runs map[string]domain.Run
	err  error
}

func (m *mockRuns) GetRun(_ context.Context, id string) (domain.Run, error) {
	if m.err != nil {
		return domain.Run{}, m.err
	}
	run, ok := m.runs[id]
	if !ok {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return run, nil
}

func (m *mockRuns) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Run
	for _, r := range m.runs {
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, newMockRunner(), &mockRuns{}, testLogger())
}

func validBody() string {
	return `{
		"pre": [{"path": "images/S2A_MSIL2A_20200810T112121_N0214_R037_T29SNB_20200810T131012.zip"}],
		"post": [{"path": "images/S2A_MSIL2A_20200830T112121_N0214_R037_T29SNB_20200830T131012.zip"}],
		"boundary": "boundary/0808.shp",
		"variant": "burn-index",
		"output_name": "monchique_20200820_dnbr"
	}`
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("results directory not writable"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "results directory not writable", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStartAnalysisRunsInBackground(t *testing.T) {
	runner := newMockRunner()
	srv := httpadapter.NewServer(":0", &mockReadiness{}, runner, &mockRuns{}, testLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(validBody())))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["id"], 36)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "/v1/analyses/"+body["id"], rec.Header().Get("Location"))

	close(runner.release)
	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, body["id"], reqs[0].ID)
	assert.Equal(t, domain.BurnIndex, reqs[0].Variant)
	assert.Equal(t, "monchique_20200820_dnbr", reqs[0].OutputName)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestStartAnalysisRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"pre": [`},
		{"unknown field", `{"colour": "red"}`},
		{"missing archives", `{"boundary": "b.shp", "variant": "burn-index", "output_name": "x"}`},
		{"bad id", strings.Replace(validBody(), `"boundary"`, `"id": "not-a-uuid", "boundary"`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newMockRunner()
			srv := httpadapter.NewServer(":0", &mockReadiness{}, runner, &mockRuns{}, testLogger())
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
			assert.Empty(t, runner.requests())
		})
	}
}

func TestShutdownCancelsRunsAtDeadline(t *testing.T) {
	runner := newMockRunner()
	srv := httpadapter.NewServer(":0", &mockReadiness{}, runner, &mockRuns{}, testLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(validBody())))
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := srv.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-runner.done:
	default:
		t.Fatal("run still in flight after shutdown")
	}
}

func TestGetAnalysis(t *testing.T) {
	runs := &mockRuns{runs: map[string]domain.Run{
		"r1": {ID: "r1", OutputName: "x", Status: domain.RunRunning, Progress: 25, Message: "filtering"},
	}}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, newMockRunner(), runs, testLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 25, got.Progress)
	assert.Equal(t, "filtering", got.Message)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAnalysisLedgerError(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, newMockRunner(),
		&mockRuns{err: fmt.Errorf("disk I/O error")}, testLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses/r1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}

func TestListAnalyses(t *testing.T) {
	runs := &mockRuns{runs: map[string]domain.Run{"r1": {ID: "r1"}, "r2": {ID: "r2"}}}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, newMockRunner(), runs, testLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Analyses []domain.Run `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Analyses, 1)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	empty := httpadapter.NewServer(":0", &mockReadiness{}, newMockRunner(), &mockRuns{}, testLogger())
	rec = httptest.NewRecorder()
	empty.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	assert.JSONEq(t, `{"analyses": []}`, rec.Body.String())
}

func TestResponsesAreJSON(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{err: fmt.Errorf("ledger closed")},
		newMockRunner(), &mockRuns{}, testLogger())

	for _, target := range []string{"/healthz", "/readyz", "/v1/analyses", "/v1/analyses/missing", "/v1/analyses?limit=x"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.True(t, json.Valid(rec.Body.Bytes()), rec.Body.String())
		})
	}
}
