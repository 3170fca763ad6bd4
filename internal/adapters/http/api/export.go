package api

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/okian/devhistory/internal/domain/export"
)

// defaultExportFormat applies when the format parameter is omitted.
const defaultExportFormat = export.FormatCSV

// ExportHandler serves history downloads.
type ExportHandler struct {
	deps Dependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps Dependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleExport handles GET /users/{user}/export requests. It accepts the
// same filter and sort parameters as the history listing.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_history"
	q := r.URL.Query()

	format := defaultExportFormat
	if raw := q.Get("format"); raw != "" {
		f, err := export.ParseFormat(raw)
		if err != nil {
			writeFailure(r.Context(), w, op, err)
			return
		}
		format = f
	}
	filter, err := parseFilter(q)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	sort, err := parseSort(q)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}

	payload, name, err := h.deps.Export(r.Context(), r.PathValue("user"), filter, sort, format)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	w.Header().Set("Content-Type", payload.MediaType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload.Data)
}
