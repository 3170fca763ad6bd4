package api

import "net/http"

// MetricsHandler serves a user's summary snapshot.
type MetricsHandler struct {
	deps Dependencies
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(deps Dependencies) *MetricsHandler {
	return &MetricsHandler{deps: deps}
}

// HandleMetrics handles GET /users/{user}/metrics requests.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	resp, err := h.deps.Metrics(r.Context(), r.PathValue("user"))
	if err != nil {
		writeFailure(r.Context(), w, "api.user_metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
