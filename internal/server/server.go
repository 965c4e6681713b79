// Package server exposes the engine over HTTP: the root state-change feed,
// report and record lookups, health and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/store"
)

// Runner executes a run for a changed root entity.
// Implemented by *engine.Engine.
type Runner interface {
	OnEntityChanged(ctx context.Context, kind ir.EntityKind, id string, fields ir.IRObject) (*ir.ExecutionReport, error)
}

// Store answers the read endpoints. Implemented by *store.Store.
type Store interface {
	ReadReport(ctx context.Context, runID string) (*ir.ExecutionReport, error)
	ListRecordsByRoot(ctx context.Context, rootEntityID string) ([]ir.GeneratedRecord, error)
	Ping(ctx context.Context) error
}

// ChangeRequest is the body of POST /v1/entities/{kind}/{id}/changed.
type ChangeRequest struct {
	Fields ir.IRObject `json:"fields"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server holds the handler dependencies.
type Server struct {
	runner   Runner
	store    Store
	gatherer prometheus.Gatherer
	maxBody  int64
}

// DefaultMaxBodyBytes bounds a state-change request body.
const DefaultMaxBodyBytes = 1 << 20

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves /metrics from g. Without it the route is not mounted.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// New creates a Server.
func New(runner Runner, st Store, opts ...Option) *Server {
	s := &Server{runner: runner, store: st, maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.health)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/entities/{kind}/{id}/changed", s.entityChanged)
		r.Get("/reports/{runID}", s.report)
		r.Get("/roots/{id}/records", s.records)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		slog.Info("http server shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) entityChanged(w http.ResponseWriter, r *http.Request) {
	kind := ir.EntityKind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")

	var body ChangeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		slog.Warn("invalid change request body", "root_kind", kind, "root_id", id, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	report, err := s.runner.OnEntityChanged(r.Context(), kind, id, body.Fields)
	if err != nil {
		slog.Error("run failed", "root_kind", kind, "root_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	report, err := s.store.ReadReport(r.Context(), runID)
	if err != nil {
		s.storeError(w, "report", runID, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	recs, err := s.store.ListRecordsByRoot(r.Context(), id)
	if err != nil {
		s.storeError(w, "records", id, err)
		return
	}
	if recs == nil {
		recs = []ir.GeneratedRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) storeError(w http.ResponseWriter, what, id string, err error) {
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", what, id))
		return
	}
	slog.Error("store read failed", "resource", what, "id", id, "error", err)
	writeError(w, http.StatusServiceUnavailable, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
