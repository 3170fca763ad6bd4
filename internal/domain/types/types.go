// Package types contains response shapes shared by the API and its clients
package types

import (
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/summary"
)

// HistoryView is a filtered and sorted page of one user's history
type HistoryView struct {
	UserID  string                  `json:"userId"`
	Total   int                     `json:"total"`
	Matched int                     `json:"matched"`
	Records []record.AnalysisRecord `json:"records"`
}

// NewHistoryView builds a view; Records is never null on the wire.
func NewHistoryView(userID string, total int, records []record.AnalysisRecord) HistoryView {
	if records == nil {
		records = []record.AnalysisRecord{}
	}
	return HistoryView{UserID: userID, Total: total, Matched: len(records), Records: records}
}

// MetricsResponse wraps a snapshot with its owner
type MetricsResponse struct {
	UserID string `json:"userId"`
	summary.Snapshot
}

// SubmitResponse acknowledges an ingest request
type SubmitResponse struct {
	Status     string `json:"status"`
	DeliveryID string `json:"deliveryId"`
	Duplicate  bool   `json:"duplicate"`
}

// Submit statuses.
const (
	SubmitAccepted  = "accepted"
	SubmitDuplicate = "duplicate"
)

// ErrorResponse is the body of every non-2xx API reply
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
