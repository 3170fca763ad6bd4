package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/devhistory/internal/domain/record"
)

// StatusAll selects records of every status.
const StatusAll StatusSelector = "all"

// StatusSelector is either StatusAll or one concrete record status.
type StatusSelector string

// ParseStatusSelector parses a wire value; empty means all.
func ParseStatusSelector(s string) (StatusSelector, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == string(StatusAll) {
		return StatusAll, nil
	}
	if _, err := record.ParseStatus(s); err != nil {
		return "", fmt.Errorf("%w: status %q", ErrInvalidSpec, s)
	}
	return StatusSelector(s), nil
}

// Matches reports whether a record status passes the selector.
func (s StatusSelector) Matches(st record.Status) bool {
	return s == StatusAll || record.Status(s) == st
}

func (s StatusSelector) valid() bool {
	return s == StatusAll || record.Status(s).Valid()
}

// DateRange is an inclusive [Start, End] interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the interval, both ends included.
func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start) && !t.After(d.End)
}

// FilterSpec declares which records a view keeps. All active predicates are
// AND-combined.
type FilterSpec struct {
	// Dates restricts completedAt when set.
	Dates *DateRange
	// Status is StatusAll or a concrete status.
	Status StatusSelector
	// MinScore and MaxScore bound overallScore inclusively. The range is
	// always applied.
	MinScore int
	MaxScore int
	// Query is a case-insensitive substring matched against identity handles
	// and achievement labels. Empty disables the predicate.
	Query string
}

// DefaultFilter keeps every record.
func DefaultFilter() FilterSpec {
	return FilterSpec{
		Status:   StatusAll,
		MinScore: record.MinScore,
		MaxScore: record.MaxScore,
	}
}

// Validate fails fast on specs outside their declared domain.
func (f FilterSpec) Validate() error {
	if !f.Status.valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidSpec, f.Status)
	}
	if f.MinScore < record.MinScore || f.MaxScore > record.MaxScore {
		return fmt.Errorf("%w: score range [%d,%d] outside [%d,%d]",
			ErrInvalidSpec, f.MinScore, f.MaxScore, record.MinScore, record.MaxScore)
	}
	if f.MinScore > f.MaxScore {
		return fmt.Errorf("%w: min score %d greater than max score %d", ErrInvalidSpec, f.MinScore, f.MaxScore)
	}
	if f.Dates != nil {
		if f.Dates.Start.IsZero() || f.Dates.End.IsZero() {
			return fmt.Errorf("%w: date range needs both bounds", ErrInvalidSpec)
		}
		if f.Dates.Start.After(f.Dates.End) {
			return fmt.Errorf("%w: start %s after end %s", ErrInvalidSpec,
				f.Dates.Start.Format(time.RFC3339), f.Dates.End.Format(time.RFC3339))
		}
	}
	return nil
}

// Field names a sortable record attribute.
type Field string

// Sortable fields.
const (
	FieldCompletedAt  Field = "completedAt"
	FieldOverallScore Field = "overallScore"
	FieldSourceScoreA Field = "sourceScoreA"
	FieldSourceScoreB Field = "sourceScoreB"
	FieldStatus       Field = "status"
)

// ParseField parses a wire value; empty means completedAt.
func ParseField(s string) (Field, error) {
	if strings.TrimSpace(s) == "" {
		return FieldCompletedAt, nil
	}
	f := Field(strings.TrimSpace(s))
	if !f.valid() {
		return "", fmt.Errorf("%w: sort field %q", ErrInvalidSpec, s)
	}
	return f, nil
}

func (f Field) valid() bool {
	switch f {
	case FieldCompletedAt, FieldOverallScore, FieldSourceScoreA, FieldSourceScoreB, FieldStatus:
		return true
	}
	return false
}

// Direction orders a sort.
type Direction string

// Sort directions.
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection accepts asc/ascending and desc/descending; empty means
// descending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	}
	return "", fmt.Errorf("%w: sort direction %q", ErrInvalidSpec, s)
}

// SortSpec selects one field and a direction.
type SortSpec struct {
	Field     Field
	Direction Direction
}

// DefaultSort orders newest first.
func DefaultSort() SortSpec {
	return SortSpec{Field: FieldCompletedAt, Direction: Descending}
}

// Validate fails fast on unknown fields or directions.
func (s SortSpec) Validate() error {
	if !s.Field.valid() {
		return fmt.Errorf("%w: sort field %q", ErrInvalidSpec, s.Field)
	}
	if s.Direction != Ascending && s.Direction != Descending {
		return fmt.Errorf("%w: sort direction %q", ErrInvalidSpec, s.Direction)
	}
	return nil
}
