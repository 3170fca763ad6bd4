package api

import (
	"net/http"
	"time"
)

// StatsProvider exposes service counters such as queue length, stored
// records and worker totals.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	now      func() time.Time
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, now: time.Now}
}

// HandleStats writes a fresh, uncached stats snapshot stamped with the time
// it was taken.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	src := h.provider.GetStats()
	stats := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		stats[k] = v
	}
	stats["generatedAt"] = h.now().UTC().Format(time.RFC3339)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}
