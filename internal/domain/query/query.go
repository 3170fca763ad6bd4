// Package query filters and orders analysis records for display.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/devhistory/internal/domain/record"
	"golang.org/x/text/cases"
)

// Apply returns the records that satisfy filter, ordered by sort. The input
// slice is never modified; the result shares no backing array with it.
func Apply(records []record.AnalysisRecord, filter FilterSpec, sort SortSpec) ([]record.AnalysisRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := sort.Validate(); err != nil {
		return nil, err
	}

	m := newMatcher(filter)
	out := make([]record.AnalysisRecord, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			out = append(out, records[i])
		}
	}

	cmpFn := comparator(sort.Field)
	if sort.Direction == Descending {
		asc := cmpFn
		cmpFn = func(a, b *record.AnalysisRecord) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, func(a, b record.AnalysisRecord) int { return cmpFn(&a, &b) })
	return out, nil
}

// matcher evaluates a validated FilterSpec in its documented order:
// dates, status, score range, search.
type matcher struct {
	spec  FilterSpec
	fold  cases.Caser
	query string
}

func newMatcher(spec FilterSpec) *matcher {
	fold := cases.Fold()
	return &matcher{
		spec:  spec,
		fold:  fold,
		query: fold.String(strings.TrimSpace(spec.Query)),
	}
}

func (m *matcher) match(r *record.AnalysisRecord) bool {
	if m.spec.Dates != nil && !m.spec.Dates.Contains(r.CompletedAt) {
		return false
	}
	if !m.spec.Status.Matches(r.Status) {
		return false
	}
	if r.OverallScore < m.spec.MinScore || r.OverallScore > m.spec.MaxScore {
		return false
	}
	if m.query == "" {
		return true
	}
	return m.search(r)
}

// search reports whether any identity handle or achievement contains the
// query under Unicode case folding.
func (m *matcher) search(r *record.AnalysisRecord) bool {
	if ids, ok := r.Handles(); ok {
		if m.contains(ids.SourceA) || m.contains(ids.SourceB) {
			return true
		}
	}
	return slices.ContainsFunc(r.Achievements, m.contains)
}

func (m *matcher) contains(s string) bool {
	return s != "" && strings.Contains(m.fold.String(s), m.query)
}

// comparator returns an ascending comparison for field.
func comparator(field Field) func(a, b *record.AnalysisRecord) int {
	switch field {
	case FieldOverallScore:
		return func(a, b *record.AnalysisRecord) int { return cmp.Compare(a.OverallScore, b.OverallScore) }
	case FieldSourceScoreA:
		return func(a, b *record.AnalysisRecord) int { return cmp.Compare(a.SourceScoreA, b.SourceScoreA) }
	case FieldSourceScoreB:
		return func(a, b *record.AnalysisRecord) int { return cmp.Compare(a.SourceScoreB, b.SourceScoreB) }
	case FieldStatus:
		return func(a, b *record.AnalysisRecord) int { return strings.Compare(string(a.Status), string(b.Status)) }
	default:
		return func(a, b *record.AnalysisRecord) int { return a.CompletedAt.Compare(b.CompletedAt) }
	}
}
