package export_test

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() []record.AnalysisRecord {
	return []record.AnalysisRecord{
		{
			ID:              "run-1",
			CompletedAt:     time.Date(2026, 3, 7, 15, 4, 5, 0, time.UTC),
			OverallScore:    82,
			SourceScoreA:    78,
			SourceScoreB:    86,
			Status:          record.StatusComplete,
			SkillScores:     record.SkillScores{"go": 90, "algorithms": 74},
			Achievements:    []string{"Top 10%", "Polyglot"},
			Identities:      &record.Identities{SourceA: "octocat", SourceB: "leetcoder"},
			DurationSeconds: record.DurationOf(42),
		},
		{
			ID:           "run-2",
			CompletedAt:  time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC),
			Status:       record.StatusFailed,
			Achievements: []string{},
		},
	}
}

func TestParseFormat(t *testing.T) {
	Convey("Given wire format values", t, func() {
		f, err := export.ParseFormat(" CSV ")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, export.FormatCSV)

		f, err = export.ParseFormat("json")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, export.FormatJSON)

		_, err = export.ParseFormat("xml")
		So(errors.Is(err, export.ErrUnsupportedFormat), ShouldBeTrue)
	})
}

func TestSerialize_JSON(t *testing.T) {
	Convey("Given a record collection", t, func() {
		records := sample()

		Convey("When serialized as JSON", func() {
			p, err := export.Serialize(records, export.FormatJSON)
			So(err, ShouldBeNil)

			Convey("Then the payload is tagged and indented", func() {
				So(p.MediaType, ShouldEqual, export.MediaTypeJSON)
				So(p.Extension, ShouldEqual, "json")
				So(string(p.Data), ShouldStartWith, "[\n  {\n    \"id\": \"run-1\"")
				So(string(p.Data), ShouldContainSubstring, `"sourceScoreA": 78`)
				So(string(p.Data), ShouldContainSubstring, `"durationSeconds": 42`)
			})

			Convey("Then decoding yields the same records", func() {
				back, err := export.DecodeJSON(p.Data)
				So(err, ShouldBeNil)
				So(back, ShouldResemble, records)
			})
		})
	})

	Convey("Given an empty collection", t, func() {
		for _, in := range [][]record.AnalysisRecord{nil, {}} {
			p, err := export.Serialize(in, export.FormatJSON)
			So(err, ShouldBeNil)
			So(string(p.Data), ShouldEqual, "[]")

			back, err := export.DecodeJSON(p.Data)
			So(err, ShouldBeNil)
			So(back, ShouldResemble, []record.AnalysisRecord{})
		}
	})

	Convey("Given malformed input", t, func() {
		_, err := export.DecodeJSON([]byte("{"))
		So(err, ShouldNotBeNil)
	})
}

func TestSerialize_CSV(t *testing.T) {
	Convey("Given the default serializer", t, func() {
		s := export.New()

		Convey("When the collection is empty", func() {
			p, err := s.Serialize(nil, export.FormatCSV)

			Convey("Then only the header is written", func() {
				So(err, ShouldBeNil)
				So(p.MediaType, ShouldEqual, export.MediaTypeCSV)
				So(p.Extension, ShouldEqual, "csv")
				So(string(p.Data), ShouldEqual,
					"ID,Date,Overall Score,Source-A Score,Source-B Score,Status,Source-A Handle,Source-B Handle,Duration(s),Achievements\n")
			})
		})

		Convey("When records are written", func() {
			p, err := s.Serialize(sample(), export.FormatCSV)
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSuffix(string(p.Data), "\n"), "\n")

			Convey("Then rows follow the fixed column order", func() {
				So(len(lines), ShouldEqual, 3)
				So(lines[1], ShouldEqual, "run-1,3/7/2026,82,78,86,complete,octocat,leetcoder,42,Top 10%; Polyglot")
				So(lines[2], ShouldEqual, "run-2,3/8/2026,0,0,0,failed,,,,")
			})
		})

		Convey("When an achievement contains a comma", func() {
			records := sample()[:1]
			records[0].Achievements = []string{"Fast, accurate"}
			p, err := s.Serialize(records, export.FormatCSV)

			Convey("Then the legacy format leaves it unescaped", func() {
				So(err, ShouldBeNil)
				So(string(p.Data), ShouldEndWith, ",42,Fast, accurate\n")
			})
		})
	})

	Convey("Given a configured serializer", t, func() {
		loc := time.FixedZone("UTC-10", -10*3600)
		s := export.New(
			export.WithSourceLabels("GitHub", "LeetCode"),
			export.WithDateLayout(time.DateOnly),
			export.WithLocation(loc),
			export.WithQuotedFields(true),
		)

		Convey("Then headers use the labels", func() {
			So(s.Header()[3], ShouldEqual, "GitHub Score")
			So(s.Header()[7], ShouldEqual, "LeetCode Handle")
		})

		Convey("When an achievement contains a comma", func() {
			records := sample()[:1]
			records[0].Achievements = []string{"Fast, accurate", "Tidy"}
			p, err := s.Serialize(records, export.FormatCSV)
			So(err, ShouldBeNil)

			Convey("Then quoting keeps the column count", func() {
				rows, err := csv.NewReader(strings.NewReader(string(p.Data))).ReadAll()
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(len(rows[1]), ShouldEqual, 10)
				So(rows[1][9], ShouldEqual, "Fast, accurate; Tidy")
			})

			Convey("Then dates render in the configured zone", func() {
				So(string(p.Data), ShouldContainSubstring, "run-1,2026-03-07,")
			})
		})
	})
}

func TestSerialize_Unsupported(t *testing.T) {
	Convey("Given an unknown format", t, func() {
		_, err := export.Serialize(sample(), export.Format("xlsx"))
		So(errors.Is(err, export.ErrUnsupportedFormat), ShouldBeTrue)
	})
}

func TestFileName(t *testing.T) {
	Convey("Given a date and format", t, func() {
		now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
		So(export.FileName("", export.FormatCSV, now), ShouldEqual, "analysis-history-2026-10-19.csv")
		So(export.FileName("alice", export.FormatJSON, now), ShouldEqual, "alice-2026-10-19.json")
	})
}
