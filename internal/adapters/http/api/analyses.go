package api

import (
	"net/http"
	"time"

	"github.com/okian/devhistory/internal/domain/model"
	"github.com/okian/devhistory/internal/domain/record"
)

// submitRequest mirrors the OpenAPI schema for POST /analyses.
type submitRequest struct {
	DeliveryID string        `json:"deliveryId" validate:"omitempty,max=256"`
	UserID     string        `json:"userId" validate:"required,max=128"`
	Record     recordPayload `json:"record" validate:"required"`
}

// recordPayload is a record as the pipeline reports it. Scores outside
// 0-100 are accepted and clamped on ingest; a missing overallScore is
// derived from the source scores.
type recordPayload struct {
	ID              string             `json:"id" validate:"omitempty,max=128"`
	CompletedAt     *time.Time         `json:"completedAt"`
	OverallScore    *int               `json:"overallScore"`
	SourceScoreA    int                `json:"sourceScoreA"`
	SourceScoreB    int                `json:"sourceScoreB"`
	Status          string             `json:"status" validate:"required,oneof=complete in-progress failed"`
	SkillScores     map[string]int     `json:"skillScores" validate:"omitempty,max=50"`
	Achievements    []string           `json:"achievements" validate:"omitempty,max=100,dive,required,max=200"`
	Identities      *record.Identities `json:"identities"`
	DurationSeconds *int               `json:"durationSeconds" validate:"omitempty,min=0"`
}

func (req *submitRequest) submission() model.Submission {
	p := req.Record
	r := record.AnalysisRecord{
		ID:              p.ID,
		SourceScoreA:    p.SourceScoreA,
		SourceScoreB:    p.SourceScoreB,
		Status:          record.Status(p.Status),
		SkillScores:     record.SkillScores(p.SkillScores),
		Achievements:    p.Achievements,
		Identities:      p.Identities,
		DurationSeconds: p.DurationSeconds,
	}
	if p.CompletedAt != nil {
		r.CompletedAt = *p.CompletedAt
	}
	if p.OverallScore != nil {
		r.OverallScore = *p.OverallScore
	}
	return model.Submission{
		DeliveryID: req.DeliveryID,
		UserID:     req.UserID,
		Record:     r,
		HasOverall: p.OverallScore != nil,
	}
}

// AnalysesHandler handles ingest and per-record requests.
type AnalysesHandler struct {
	deps Dependencies
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies) *AnalysesHandler {
	return &AnalysesHandler{deps: deps}
}

// HandleSubmit handles POST /analyses requests.
func (h *AnalysesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_analysis"
	req, err := decodeJSON[submitRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	resp, err := h.deps.Submit(r.Context(), req.submission())
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	status := http.StatusAccepted
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// HandleList handles GET /users/{user}/analyses requests.
func (h *AnalysesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_analyses"
	q := r.URL.Query()
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
	view, err := h.deps.History(r.Context(), r.PathValue("user"), filter, sort)
	if err != nil {
		writeFailure(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGet handles GET /users/{user}/analyses/{id} requests.
func (h *AnalysesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Record(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, "api.get_analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete handles DELETE /users/{user}/analyses/{id} requests.
func (h *AnalysesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Delete(r.Context(), r.PathValue("user"), r.PathValue("id")); err != nil {
		writeFailure(r.Context(), w, "api.delete_analysis", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRetry handles POST /users/{user}/analyses/{id}/retry requests.
func (h *AnalysesHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Retry(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, "api.retry_analysis", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
