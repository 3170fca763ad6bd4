// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/devhistory/internal/domain/dedupe"
	"github.com/okian/devhistory/internal/domain/record"
)

// Submission is one pipeline result waiting to be stored for a user.
type Submission struct {
	DeliveryID string                // idempotency key; derived when empty
	UserID     string                // owner of the history
	Record     record.AnalysisRecord // result as reported
	HasOverall bool                  // false when the pipeline omitted overallScore
	ReceivedAt time.Time             // when the API accepted it
}

// Key returns the delivery id, deriving one from the record when the
// pipeline did not send it.
func (s Submission) Key() string {
	if s.DeliveryID != "" {
		return s.DeliveryID
	}
	return dedupe.DeliveryID(s.UserID, s.Record)
}
