package history_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/history"
	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func records() []record.AnalysisRecord {
	mk := func(id string, score, days int, st record.Status) record.AnalysisRecord {
		return record.AnalysisRecord{
			ID:           id,
			CompletedAt:  now.AddDate(0, 0, -days),
			OverallScore: score,
			Status:       st,
			Achievements: []string{"label-" + id},
		}
	}
	return []record.AnalysisRecord{
		mk("a", 40, 0, record.StatusComplete),
		mk("b", 60, 7, record.StatusComplete),
		mk("c", 80, 14, record.StatusComplete),
		mk("d", 0, 1, record.StatusFailed),
	}
}

func TestEngine(t *testing.T) {
	Convey("Given an engine with a fixed clock", t, func() {
		e := history.New(
			history.WithClock(func() time.Time { return now }),
			history.WithExportOptions(export.WithSourceLabels("GitHub", "LeetCode")),
		)
		in := records()

		Convey("Then metrics reflect complete records only", func() {
			s := e.Metrics(in)
			So(s.TotalComplete, ShouldEqual, 3)
			So(s.AverageScore, ShouldEqual, 60)
			So(s.CurrentStreak, ShouldEqual, 3)
			latest, ok := s.Latest()
			So(ok, ShouldBeTrue)
			So(latest, ShouldEqual, now)
		})

		Convey("Then views filter and sort", func() {
			f := query.DefaultFilter()
			f.MinScore = 50
			got, err := e.View(in, f, query.SortSpec{Field: query.FieldOverallScore, Direction: query.Descending})
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].ID, ShouldEqual, "c")
			So(got[1].ID, ShouldEqual, "b")
		})

		Convey("Then exports serialize the view", func() {
			f := query.DefaultFilter()
			f.Status = query.StatusSelector(record.StatusComplete)
			p, err := e.Export(in, f, query.SortSpec{Field: query.FieldCompletedAt, Direction: query.Ascending}, export.FormatCSV)
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(string(p.Data)), "\n")
			So(len(lines), ShouldEqual, 4)
			So(lines[0], ShouldContainSubstring, "GitHub Score")
			So(lines[1], ShouldStartWith, "c,")
			So(lines[3], ShouldStartWith, "a,")
		})

		Convey("Then an unsupported format is rejected before filtering", func() {
			bad := query.DefaultFilter()
			bad.MinScore = 90
			bad.MaxScore = 10
			_, err := e.Export(in, bad, query.DefaultSort(), export.Format("pdf"))
			So(errors.Is(err, export.ErrUnsupportedFormat), ShouldBeTrue)
		})

		Convey("Then invalid specs surface from exports", func() {
			_, err := e.Export(in, query.DefaultFilter(), query.SortSpec{Field: "nope", Direction: query.Ascending}, export.FormatJSON)
			So(errors.Is(err, query.ErrInvalidSpec), ShouldBeTrue)
		})

		Convey("Then file names use the clock", func() {
			So(e.FileName("", export.FormatJSON), ShouldEqual, "analysis-history-2026-10-19.json")
		})

		Convey("Then concurrent calls leave the input untouched", func() {
			before := record.CloneAll(in)
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = e.Metrics(in)
					_, _ = e.View(in, query.DefaultFilter(), query.SortSpec{Field: query.FieldStatus, Direction: query.Ascending})
					_, _ = e.Export(in, query.DefaultFilter(), query.DefaultSort(), export.FormatJSON)
				}()
			}
			wg.Wait()
			So(in, ShouldResemble, before)
		})
	})
}
