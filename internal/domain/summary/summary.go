// Package summary reduces an analysis history into a metrics snapshot.
package summary

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/devhistory/internal/domain/record"
)

// Fixed aggregation policy. These are part of the output contract and are
// intentionally not configurable.
const (
	WindowSize = 5
	Week       = 7 * 24 * time.Hour
)

// Snapshot is the derived summary of a record collection.
type Snapshot struct {
	TotalComplete     int        `json:"totalComplete"`
	AverageScore      int        `json:"averageScore"`
	TrendPercent      int        `json:"trendPercent"`
	LatestCompletedAt *time.Time `json:"latestCompletedAt,omitempty"`
	CurrentStreak     int        `json:"currentStreak"`
}

// Latest returns the most recent completion time, if any.
func (s Snapshot) Latest() (time.Time, bool) {
	if s.LatestCompletedAt == nil {
		return time.Time{}, false
	}
	return *s.LatestCompletedAt, true
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithClock overrides the time source used for streaks.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// Calculator computes snapshots. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	now func() time.Time
}

// NewCalculator creates a Calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute builds a snapshot from records using the calculator's clock.
func (c *Calculator) Compute(records []record.AnalysisRecord) Snapshot {
	return Compute(records, c.now())
}

// Compute builds a snapshot of records as seen at now.
func Compute(records []record.AnalysisRecord, now time.Time) Snapshot {
	done := completeByRecency(records)
	if len(done) == 0 {
		return Snapshot{}
	}

	scores := make([]int, len(done))
	for i := range done {
		scores[i] = done[i].OverallScore
	}

	latest := done[0].CompletedAt
	return Snapshot{
		TotalComplete:     len(done),
		AverageScore:      roundHalfUp(mean(scores)),
		TrendPercent:      trend(scores),
		LatestCompletedAt: &latest,
		CurrentStreak:     streak(done, now),
	}
}

// completeByRecency returns the complete subset, newest first. Equal
// timestamps are ordered by id so the result does not depend on input order.
func completeByRecency(records []record.AnalysisRecord) []record.AnalysisRecord {
	out := make([]record.AnalysisRecord, 0, len(records))
	for i := range records {
		if records[i].Complete() {
			out = append(out, records[i])
		}
	}
	slices.SortFunc(out, func(a, b record.AnalysisRecord) int {
		if c := b.CompletedAt.Compare(a.CompletedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// trend compares the mean of the most recent window with the window before
// it. scores must be ordered newest first.
func trend(scores []int) int {
	if len(scores) <= WindowSize {
		return 0
	}
	recent := scores[:WindowSize]
	previous := scores[WindowSize:min(len(scores), 2*WindowSize)]

	prev := mean(previous)
	if prev == 0 {
		return 0
	}
	return roundHalfUp((mean(recent) - prev) / prev * 100)
}

// streak counts leading records whose week bucket equals their rank.
// done must be ordered newest first.
func streak(done []record.AnalysisRecord, now time.Time) int {
	n := 0
	for i := range done {
		if weeksAgo(now, done[i].CompletedAt) != int64(i) {
			break
		}
		n++
	}
	return n
}

// weeksAgo floors the elapsed time to whole weeks; future timestamps give
// negative buckets.
func weeksAgo(now, t time.Time) int64 {
	d := int64(now.Sub(t))
	w := int64(Week)
	q := d / w
	if d%w != 0 && d < 0 {
		q--
	}
	return q
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

// roundHalfUp rounds to the nearest integer with halves toward +Inf.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
