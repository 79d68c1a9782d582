// Package http exposes audit runs and stored reports over a small JSON API.
//
// Routes:
//
//	GET  /healthz        liveness and version
//	POST /audit          audit the host against the control groups in the body
//	GET  /reports        stored runs, oldest first
//	GET  /reports/{id}   one stored run
//	GET  /metrics        Prometheus metrics, when enabled
//
// Convergence is deliberately not exposed: the API never mutates the host.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/aretw0/steward/pkg/config"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/observability"
	"github.com/aretw0/steward/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps POST /audit documents.
const maxBodyBytes = 1 << 20

// Auditor runs audits. *steward.Engine satisfies it.
type Auditor interface {
	Audit(ctx context.Context, groups []domain.ControlGroup) (*domain.AuditRun, error)
}

// Server holds the handler dependencies.
type Server struct {
	Auditor Auditor
	Store   ports.ReportStore
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Version string
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewHandler creates the HTTP handler. store may be nil, in which case the
// report routes answer 404.
func NewHandler(auditor Auditor, store ports.ReportStore, opts ...Option) http.Handler {
	s := &Server{
		Auditor: auditor,
		Store:   store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.Metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/healthz", s.Health)
	r.Post("/audit", s.RunAudit)
	r.Get("/reports", s.ListReports)
	r.Get("/reports/{id}", s.GetReport)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records every request under its route pattern, so that
// /reports/{id} is one series and not one per ID.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.Version})
}

// AuditResponse is the body of a successful POST /audit.
type AuditResponse struct {
	Passed bool             `json:"passed"`
	Totals domain.Summary   `json:"totals"`
	Run    *domain.AuditRun `json:"run"`
}

// RunAudit handles POST /audit. The body is a config document in JSON,
// YAML or TOML, picked from the Content-Type; only control_groups are
// accepted.
func (s *Server) RunAudit(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	doc, err := config.Parse(body, format)
	if err != nil {
		s.Logger.Warn("audit: invalid document", "err", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(doc.Resources) > 0 {
		s.writeError(w, http.StatusBadRequest, "resources are not accepted: convergence is not available over HTTP")
		return
	}
	if len(doc.ControlGroups) == 0 {
		s.writeError(w, http.StatusBadRequest, "document has no control_groups")
		return
	}

	run, err := s.Auditor.Audit(r.Context(), doc.ControlGroups)
	if err != nil && run == nil {
		s.Logger.Error("audit failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		// The audit itself completed; only recording it failed.
		s.Logger.Warn("audit not recorded", "run_id", run.RunID, "err", err)
	}

	s.writeJSON(w, http.StatusOK, AuditResponse{Passed: run.Passed(), Totals: run.Totals(), Run: run})
}

// ReportSummary is one entry of GET /reports.
type ReportSummary struct {
	ID        string         `json:"id"`
	Kind      domain.RunKind `json:"kind"`
	CreatedAt time.Time      `json:"created_at"`
	Passed    bool           `json:"passed"`
}

// ListReports handles GET /reports.
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		s.writeJSON(w, http.StatusOK, []ReportSummary{})
		return
	}
	ids, err := s.Store.List(r.Context())
	if err != nil {
		s.Logger.Error("list reports failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]ReportSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Store.Load(r.Context(), id)
		if errors.Is(err, domain.ErrReportNotFound) {
			// Expired between List and Load.
			continue
		}
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, ReportSummary{ID: rec.ID, Kind: rec.Kind, CreatedAt: rec.CreatedAt, Passed: rec.Passed()})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetReport handles GET /reports/{id}.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.Store == nil {
		s.writeError(w, http.StatusNotFound, domain.ErrReportNotFound.Error())
		return
	}
	rec, err := s.Store.Load(r.Context(), id)
	if errors.Is(err, domain.ErrReportNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("report %s not found", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func requestFormat(contentType string) (config.Format, error) {
	if contentType == "" {
		return config.FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("invalid content type: %w", err)
	}
	switch mediaType {
	case "application/json":
		return config.FormatJSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return config.FormatYAML, nil
	case "application/toml":
		return config.FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported content type %q", mediaType)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
