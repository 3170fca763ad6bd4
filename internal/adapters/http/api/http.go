// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/devhistory/internal/app"
	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/model"
	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/types"
	"github.com/okian/devhistory/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit accepts a pipeline result for asynchronous storage.
	Submit(ctx context.Context, sub model.Submission) (types.SubmitResponse, error)

	// Read operations over one user's history.
	History(ctx context.Context, userID string, filter query.FilterSpec, sort query.SortSpec) (types.HistoryView, error)
	Record(ctx context.Context, userID, recordID string) (record.AnalysisRecord, error)
	Metrics(ctx context.Context, userID string) (types.MetricsResponse, error)
	Export(ctx context.Context, userID string, filter query.FilterSpec, sort query.SortSpec, format export.Format) (export.Payload, string, error)

	// Write operations on stored records.
	Delete(ctx context.Context, userID, recordID string) error
	Retry(ctx context.Context, userID, recordID string) (record.AnalysisRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysesHandler *AnalysesHandler
	metricsHandler  *MetricsHandler
	exportHandler   *ExportHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		analysesHandler: NewAnalysesHandler(deps),
		metricsHandler:  NewMetricsHandler(deps),
		exportHandler:   NewExportHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	routes := []struct {
		pattern  string
		endpoint string
		handler  http.HandlerFunc
	}{
		{"GET /healthz", "healthz", s.healthHandler.HandleHealth},
		{"GET /stats", "stats", s.statsHandler.HandleStats},
		{"POST /analyses", "submit", s.analysesHandler.HandleSubmit},
		{"GET /users/{user}/analyses", "history", s.analysesHandler.HandleList},
		{"GET /users/{user}/analyses/{id}", "record", s.analysesHandler.HandleGet},
		{"DELETE /users/{user}/analyses/{id}", "delete", s.analysesHandler.HandleDelete},
		{"POST /users/{user}/analyses/{id}/retry", "retry", s.analysesHandler.HandleRetry},
		{"GET /users/{user}/metrics", "metrics", s.metricsHandler.HandleMetrics},
		{"GET /users/{user}/export", "export", s.exportHandler.HandleExport},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, MetricsMiddleware(rt.handler, rt.endpoint))
	}
	logger.Get().Debug(ctx, "api routes registered", logger.Int("routes", len(routes)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// writeFailure maps domain and service errors to HTTP status codes.
func writeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, query.ErrInvalidSpec):
		return http.StatusBadRequest, "invalid_spec"
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported_format"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidSubmission):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotRetryable):
		return http.StatusConflict, "not_retryable"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrOverloaded):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
