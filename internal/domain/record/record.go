// Package record defines the canonical shape of one analysis result.
//
// Records are produced by the external analysis pipeline and handed to the
// history engine as read-only collections. Nothing in this module mutates a
// record after construction; state changes produce new values.
package record

import (
	"maps"
	"slices"
	"time"
)

// Score bounds shared by all score fields.
const (
	MinScore = 0
	MaxScore = 100
)

// Status is the lifecycle state of an analysis run.
type Status string

// Known statuses. Complete and Failed are terminal.
const (
	StatusComplete   Status = "complete"
	StatusInProgress Status = "in-progress"
	StatusFailed     Status = "failed"
)

// Statuses lists every known status in lexicographic order.
func Statuses() []Status {
	return []Status{StatusComplete, StatusFailed, StatusInProgress}
}

// ParseStatus converts a wire value to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusComplete, StatusInProgress, StatusFailed:
		return st, nil
	default:
		return "", &StatusError{Value: s}
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Terminal reports whether the status will not transition further.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// SkillScores maps a skill name to its 0-100 score. Any output that must be
// stable iterates it through Names.
type SkillScores map[string]int

// Names returns the skill names in ascending order.
func (s SkillScores) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns an independent copy; nil stays nil.
func (s SkillScores) Clone() SkillScores {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// Identities holds the external account handles used for a run.
type Identities struct {
	SourceA string `json:"sourceA"`
	SourceB string `json:"sourceB"`
}

// AnalysisRecord is one completed or attempted analysis run.
type AnalysisRecord struct {
	ID              string      `json:"id"`
	CompletedAt     time.Time   `json:"completedAt"`
	OverallScore    int         `json:"overallScore"`
	SourceScoreA    int         `json:"sourceScoreA"`
	SourceScoreB    int         `json:"sourceScoreB"`
	Status          Status      `json:"status"`
	SkillScores     SkillScores `json:"skillScores"`
	Achievements    []string    `json:"achievements"`
	Identities      *Identities `json:"identities,omitempty"`
	DurationSeconds *int        `json:"durationSeconds,omitempty"`
}

// Complete reports whether the record carries real scores.
func (r AnalysisRecord) Complete() bool {
	return r.Status == StatusComplete
}

// Handles returns the identity handles, if the run recorded any.
func (r AnalysisRecord) Handles() (Identities, bool) {
	if r.Identities == nil {
		return Identities{}, false
	}
	return *r.Identities, true
}

// Duration returns the measured run time in seconds, if known.
func (r AnalysisRecord) Duration() (int, bool) {
	if r.DurationSeconds == nil {
		return 0, false
	}
	return *r.DurationSeconds, true
}

// Clone returns a deep copy so callers can hand records across ownership
// boundaries without sharing maps, slices, or pointers.
func (r AnalysisRecord) Clone() AnalysisRecord {
	out := r
	out.SkillScores = r.SkillScores.Clone()
	if r.Achievements != nil {
		out.Achievements = slices.Clone(r.Achievements)
	}
	if r.Identities != nil {
		ids := *r.Identities
		out.Identities = &ids
	}
	if r.DurationSeconds != nil {
		d := *r.DurationSeconds
		out.DurationSeconds = &d
	}
	return out
}

// WithStatus returns a copy of r in the given status. Scores are reset to
// placeholders when the new status is not complete.
func (r AnalysisRecord) WithStatus(st Status, at time.Time) AnalysisRecord {
	out := r.Clone()
	out.Status = st
	out.CompletedAt = at
	if st != StatusComplete {
		out.OverallScore, out.SourceScoreA, out.SourceScoreB = 0, 0, 0
	}
	return out
}

// DurationOf is a helper for building optional durations.
func DurationOf(seconds int) *int {
	return &seconds
}

// CloneAll deep-copies a collection.
func CloneAll(records []AnalysisRecord) []AnalysisRecord {
	out := make([]AnalysisRecord, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}
