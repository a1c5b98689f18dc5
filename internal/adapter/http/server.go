package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

const maxRequestBody = 1 << 20

// AnalysisRunner executes one analysis.
type AnalysisRunner interface {
	Run(ctx context.Context, req pipeline.Request, sink domain.ProgressSink) (pipeline.Result, error)
}

// RunStore reads the run ledger.
type RunStore interface {
	GetRun(ctx context.Context, id string) (domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

// Server exposes health, readiness, metrics, and the analyses API.
type Server struct {
	httpServer *http.Server
	runner     AnalysisRunner
	runs       RunStore
	logger     *slog.Logger

	// Background runs outlive the request that started them.
	runCtx    context.Context
	cancelRun context.CancelFunc
	inflight  sync.WaitGroup
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /v1/analyses routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runner AnalysisRunner, runs RunStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	runCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner:    runner,
		runs:      runs,
		logger:    logger,
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/analyses", s.handleStartAnalysis)
	mux.HandleFunc("GET /v1/analyses", s.handleListAnalyses)
	mux.HandleFunc("GET /v1/analyses/{id}", s.handleGetAnalysis)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections and waits for running analyses
// within the given context deadline. Analyses still running at the deadline
// have their context cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancelRun()
		<-done
		if err == nil {
			err = ctx.Err()
		}
	}
	s.cancelRun()
	return err
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if _, err := uuid.Parse(req.ID); err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		logger := s.logger.With("run_id", req.ID)
		sink := domain.ProgressFunc(func(percent int, message string) {
			logger.Debug("analysis progress", "percent", percent, "message", message)
		})
		if _, err := s.runner.Run(s.runCtx, req, sink); err != nil {
			logger.Error("analysis failed", "error", err)
		}
	}()

	w.Header().Set("Location", "/v1/analyses/"+req.ID)
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{
		"id":     req.ID,
		"status": string(domain.RunRunning),
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "analysis not found")
	case err != nil:
		s.logger.Error("get analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger unavailable")
	default:
		sharedobs.WriteJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list analyses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"analyses": runs})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
