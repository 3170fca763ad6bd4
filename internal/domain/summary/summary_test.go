package summary_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/summary"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return now.Add(-time.Duration(d) * 24 * time.Hour)
}

func done(id string, score int, at time.Time) record.AnalysisRecord {
	return record.AnalysisRecord{
		ID:           id,
		CompletedAt:  at,
		OverallScore: score,
		Status:       record.StatusComplete,
	}
}

// newestFirst builds complete records one day apart, index 0 being today.
func newestFirst(scores ...int) []record.AnalysisRecord {
	out := make([]record.AnalysisRecord, len(scores))
	for i, s := range scores {
		out[i] = done(fmt.Sprintf("r%02d", i), s, daysAgo(i))
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	Convey("Given no records", t, func() {
		Convey("Then the zero snapshot is returned", func() {
			So(summary.Compute(nil, now), ShouldResemble, summary.Snapshot{})
			So(summary.Compute([]record.AnalysisRecord{}, now), ShouldResemble, summary.Snapshot{})
		})
	})

	Convey("Given only failed and in-progress records", t, func() {
		records := []record.AnalysisRecord{
			{ID: "f", CompletedAt: daysAgo(0), OverallScore: 99, Status: record.StatusFailed},
			{ID: "p", CompletedAt: daysAgo(1), OverallScore: 88, Status: record.StatusInProgress},
		}

		Convey("Then their placeholder scores are ignored", func() {
			s := summary.Compute(records, now)
			So(s, ShouldResemble, summary.Snapshot{})
			_, ok := s.Latest()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestCompute_Average(t *testing.T) {
	Convey("Given complete records", t, func() {
		records := []record.AnalysisRecord{
			done("a", 70, daysAgo(3)),
			done("b", 85, daysAgo(1)),
			done("c", 92, daysAgo(2)),
		}

		Convey("Then the average is the rounded mean", func() {
			So(summary.Compute(records, now).AverageScore, ShouldEqual, 82)
			So(summary.Compute(records, now).TotalComplete, ShouldEqual, 3)
		})

		Convey("Then input order does not matter", func() {
			reversed := []record.AnalysisRecord{records[2], records[1], records[0]}
			So(summary.Compute(reversed, now), ShouldResemble, summary.Compute(records, now))
		})

		Convey("And non-complete records do not dilute the mean", func() {
			withFailed := append([]record.AnalysisRecord{
				{ID: "x", CompletedAt: daysAgo(0), Status: record.StatusFailed},
			}, records...)
			So(summary.Compute(withFailed, now).AverageScore, ShouldEqual, 82)
			So(summary.Compute(withFailed, now).TotalComplete, ShouldEqual, 3)
		})
	})

	Convey("Given a mean exactly between two integers", t, func() {
		Convey("Then it rounds half up", func() {
			So(summary.Compute(newestFirst(1, 2), now).AverageScore, ShouldEqual, 2)
		})
	})
}

func TestCompute_Trend(t *testing.T) {
	Convey("Given six records ordered most recent first", t, func() {
		records := newestFirst(90, 80, 70, 60, 50, 40)

		Convey("Then the trend compares the recent window with the previous one", func() {
			So(summary.Compute(records, now).TrendPercent, ShouldEqual, 75)
		})
	})

	Convey("Given exactly one window of history", t, func() {
		Convey("Then the trend is zero", func() {
			So(summary.Compute(newestFirst(90, 80, 70, 60, 50), now).TrendPercent, ShouldEqual, 0)
		})
	})

	Convey("Given a previous window averaging zero", t, func() {
		Convey("Then the trend falls back to zero", func() {
			So(summary.Compute(newestFirst(50, 50, 50, 50, 50, 0, 0), now).TrendPercent, ShouldEqual, 0)
		})
	})

	Convey("Given a declining history", t, func() {
		Convey("Then the trend is negative", func() {
			records := newestFirst(40, 40, 40, 40, 40, 80, 80, 80, 80, 80)
			So(summary.Compute(records, now).TrendPercent, ShouldEqual, -50)
		})
	})

	Convey("Given more than two windows of history", t, func() {
		Convey("Then records past index 9 are ignored", func() {
			records := newestFirst(60, 60, 60, 60, 60, 50, 50, 50, 50, 50, 0, 0)
			So(summary.Compute(records, now).TrendPercent, ShouldEqual, 20)
		})
	})
}

func TestCompute_Latest(t *testing.T) {
	Convey("Given records with a failed run newer than every complete run", t, func() {
		records := []record.AnalysisRecord{
			done("old", 10, daysAgo(9)),
			done("new", 20, daysAgo(2)),
			{ID: "f", CompletedAt: daysAgo(0), Status: record.StatusFailed},
		}

		Convey("Then latest is the newest complete record", func() {
			latest, ok := summary.Compute(records, now).Latest()
			So(ok, ShouldBeTrue)
			So(latest, ShouldEqual, daysAgo(2))
		})
	})
}

func TestCompute_Streak(t *testing.T) {
	Convey("Given one complete record in each of the last four weeks", t, func() {
		records := []record.AnalysisRecord{
			done("w0", 50, daysAgo(0)),
			done("w1", 50, daysAgo(7)),
			done("w2", 50, daysAgo(14)),
			done("w3", 50, daysAgo(21)),
		}

		Convey("Then the streak is four", func() {
			So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 4)
		})

		Convey("When a fifth record skips a week", func() {
			records = append(records, done("w5", 50, daysAgo(36)))

			Convey("Then the streak is not extended", func() {
				So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 4)
			})
		})

		Convey("When a fifth record lands in week four", func() {
			records = append(records, done("w4", 50, daysAgo(30)))

			// Deliberate: floor(30/7) = 4 equals its rank, so a 30-day-old run extends the streak to 5 rather than ending it at 4.
			Convey("Then the floor bucket matches its rank and extends the streak", func() {
				So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 5)
			})
		})
	})

	Convey("Given a history without a record this week", t, func() {
		records := []record.AnalysisRecord{
			done("w1", 50, daysAgo(7)),
			done("w2", 50, daysAgo(14)),
		}
		So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 0)

		Convey("When a record dated now is added", func() {
			records = append(records, done("w0", 50, now))

			Convey("Then a fresh streak is computed from week zero", func() {
				So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 3)
			})
		})
	})

	Convey("Given two records in the current week", t, func() {
		records := []record.AnalysisRecord{
			done("a", 50, daysAgo(0)),
			done("b", 50, daysAgo(1)),
			done("c", 50, daysAgo(7)),
		}

		Convey("Then the second one breaks the walk", func() {
			So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 1)
		})
	})

	Convey("Given a record dated in the future", t, func() {
		records := []record.AnalysisRecord{done("a", 50, now.Add(time.Hour))}

		Convey("Then it falls in a negative bucket and no streak is counted", func() {
			So(summary.Compute(records, now).CurrentStreak, ShouldEqual, 0)
		})
	})
}

func TestCalculator(t *testing.T) {
	Convey("Given a calculator with a fixed clock", t, func() {
		calc := summary.NewCalculator(summary.WithClock(func() time.Time { return now }))

		Convey("Then it computes the same snapshot as Compute at that instant", func() {
			records := newestFirst(90, 80, 70, 60, 50, 40)
			So(calc.Compute(records), ShouldResemble, summary.Compute(records, now))
		})

		Convey("And a nil clock option keeps the default", func() {
			c := summary.NewCalculator(summary.WithClock(nil))
			So(c.Compute(nil), ShouldResemble, summary.Snapshot{})
		})
	})
}
