// Package server exposes the lake over a small JSON HTTP API: synchronous
// ingest, asynchronous jobs with run status, price reads, monthly rollups
// and operational stats.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/ingest"
	"github.com/xtxerr/pricelake/internal/jobs"
	"github.com/xtxerr/pricelake/internal/lake"
	"github.com/xtxerr/pricelake/internal/lake/aggregate"
	"github.com/xtxerr/pricelake/internal/lake/query"
	"github.com/xtxerr/pricelake/internal/lake/retention"
	"github.com/xtxerr/pricelake/internal/logging"
)

// Options configures the HTTP server.
type Options struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultOptions returns standard server timeouts.
func DefaultOptions() Options {
	return Options{
		Listen:          ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP front end. All dependencies except the ingest
// service are optional; nil collaborators disable their routes' features
// rather than the whole server.
type Server struct {
	ingest    *ingest.Service
	worker    *jobs.Worker
	runs      *jobs.RunRegistry
	builder   *aggregate.Builder
	retention *retention.Manager
	query     *query.Service

	opts Options
	http *http.Server
	log  *slog.Logger
}

// New creates the server and registers all routes.
func New(svc *ingest.Service, worker *jobs.Worker, runs *jobs.RunRegistry,
	builder *aggregate.Builder, ret *retention.Manager, qs *query.Service, opts Options) *Server {

	s := &Server{
		ingest:    svc,
		worker:    worker,
		runs:      runs,
		builder:   builder,
		retention: ret,
		query:     qs,
		opts:      opts,
		log:       logging.Component("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ingest", s.handleIngest)
	mux.HandleFunc("POST /v1/jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /v1/prices/{symbol}", s.handleGetPrices)
	mux.HandleFunc("GET /v1/prices/{symbol}/monthly", s.handleGetMonthly)
	mux.HandleFunc("POST /v1/rollup/{symbol}", s.handleRollup)
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:         opts.Listen,
		Handler:      mux,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Start begins serving. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.opts.Listen)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// ingestRequest is the body of POST /v1/ingest and POST /v1/jobs.
type ingestRequest struct {
	Symbol   string   `json:"symbol"`
	Symbols  []string `json:"symbols"`
	DateFrom string   `json:"date_from"`
	DateTo   string   `json:"date_to"`
}

func (r *ingestRequest) window() (from, to time.Time, err error) {
	from, err = time.Parse(time.DateOnly, r.DateFrom)
	if err != nil {
		return from, to, errors.NewInvalidValue("date_from", r.DateFrom, "expected YYYY-MM-DD")
	}
	to, err = time.Parse(time.DateOnly, r.DateTo)
	if err != nil {
		return from, to, errors.NewInvalidValue("date_to", r.DateTo, "expected YYYY-MM-DD")
	}
	return from, to, nil
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrInvalidMessage, err.Error()))
		return
	}

	from, to, err := req.window()
	if err != nil {
		s.writeError(w, err)
		return
	}

	if len(req.Symbols) > 0 {
		receipts, err := s.ingest.IngestMany(r.Context(), req.Symbols, from, to)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
		return
	}

	receipt, err := s.ingest.IngestWindow(r.Context(), req.Symbol, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		s.writeError(w, errors.Wrap(errors.ErrNotRunning, "job worker disabled"))
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrInvalidMessage, err.Error()))
		return
	}
	from, to, err := req.window()
	if err != nil {
		s.writeError(w, err)
		return
	}

	runID, err := s.worker.Submit(req.Symbol, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, errors.ErrRunNotFound)
		return
	}
	run, err := s.runs.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	var opts lake.ReadOptions
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			s.writeError(w, errors.NewInvalidValue("from", v, "expected YYYY-MM-DD"))
			return
		}
		opts.DateFrom = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			s.writeError(w, errors.NewInvalidValue("to", v, "expected YYYY-MM-DD"))
			return
		}
		opts.DateTo = t
	}
	if v := q.Get("limit"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 {
			s.writeError(w, errors.NewInvalidValue("limit", v, "expected a non-negative integer"))
			return
		}
		opts.Limit = n
	}

	bars, err := s.ingest.Read(r.Context(), symbol, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"count":  len(bars),
		"bars":   bars,
	})
}

func (s *Server) handleGetMonthly(w http.ResponseWriter, r *http.Request) {
	if s.builder == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"rows": []any{}})
		return
	}
	rows, err := s.builder.ReadMonthly(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

func (s *Server) handleRollup(w http.ResponseWriter, r *http.Request) {
	if s.builder == nil {
		s.writeError(w, errors.Wrap(errors.ErrNotRunning, "rollups disabled"))
		return
	}
	result, err := s.builder.BuildSymbol(r.Context(), r.PathValue("symbol"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleQuery runs ad-hoc read-only SQL against the lake's parquet files.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		s.writeError(w, errors.Wrap(errors.ErrNotRunning, "query service disabled"))
		return
	}

	var req struct {
		SQL string `json:"sql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrInvalidMessage, err.Error()))
		return
	}
	if req.SQL == "" {
		s.writeError(w, errors.NewMissingField("sql"))
		return
	}

	rows, err := s.query.ExecuteSQL(r.Context(), req.SQL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{}
	if s.worker != nil {
		stats["jobs"] = map[string]int64{
			"processed": s.worker.Processed(),
			"failed":    s.worker.Failed(),
		}
	}
	if s.retention != nil {
		stats["retention"] = s.retention.Stats()
		stats["disk"] = s.retention.GetDiskUsage()
	}
	if s.query != nil {
		stats["query"] = s.query.Stats()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

// writeError maps error categories to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.IsInput(err):
		status = http.StatusBadRequest
	case errors.IsSourceUnavailable(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
