package record

import (
	"fmt"
	"strings"
)

// Validate checks a single record against the record-model contract.
func (r AnalysisRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("record %s: %w", r.ID, &StatusError{Value: string(r.Status)})
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("%w: record %s has no completedAt", ErrInvalidRecord, r.ID)
	}
	if d, ok := r.Duration(); ok && d < 0 {
		return fmt.Errorf("%w: record %s has negative duration %d", ErrInvalidRecord, r.ID, d)
	}
	if !r.Complete() {
		return nil
	}
	scores := []struct {
		name  string
		value int
	}{
		{"overallScore", r.OverallScore},
		{"sourceScoreA", r.SourceScoreA},
		{"sourceScoreB", r.SourceScoreB},
	}
	for _, s := range scores {
		if s.value < MinScore || s.value > MaxScore {
			return fmt.Errorf("record %s: %w: %s=%d", r.ID, ErrScoreOutOfRange, s.name, s.value)
		}
	}
	for _, skill := range r.SkillScores.Names() {
		if v := r.SkillScores[skill]; v < MinScore || v > MaxScore {
			return fmt.Errorf("record %s: %w: skill %q=%d", r.ID, ErrScoreOutOfRange, skill, v)
		}
	}
	return nil
}

// Validate checks a collection: every record must be valid and ids unique.
func Validate(records []AnalysisRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[records[i].ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, records[i].ID)
		}
		seen[records[i].ID] = struct{}{}
	}
	return nil
}
