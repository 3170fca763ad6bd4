package seeding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/devhistory/internal/adapters/http/api"
	service "github.com/okian/devhistory/internal/app"
	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/summary"
	"github.com/okian/devhistory/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var genNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	Convey("Given a seeded generator config", t, func() {
		cfg := &Config{Users: 4, RecordsPerUser: 12, Seed: 42, WeightA: 1, WeightB: 1}

		Convey("The same seed yields the same histories", func() {
			a, err := Generate(context.Background(), cfg, genNow)
			So(err, ShouldBeNil)
			b, err := Generate(context.Background(), cfg, genNow)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("A different seed yields different ids", func() {
			a, _ := Generate(context.Background(), cfg, genNow)
			other := *cfg
			other.Seed = 43
			b, _ := Generate(context.Background(), &other, genNow)
			So(a[0].Requests[0].Record.ID, ShouldNotEqual, b[0].Requests[0].Record.ID)
		})

		Convey("Every expected history is valid and in the past", func() {
			users, err := Generate(context.Background(), cfg, genNow)
			So(err, ShouldBeNil)
			So(users, ShouldHaveLength, 4)
			for _, u := range users {
				So(u.Requests, ShouldHaveLength, 12)
				So(u.Expected, ShouldHaveLength, 12)
				So(record.Validate(u.Expected), ShouldBeNil)
				for i, r := range u.Expected {
					So(r.CompletedAt.Before(genNow), ShouldBeTrue)
					So(u.Requests[i].UserID, ShouldEqual, u.UserID)
					if r.Status != record.StatusComplete {
						So(r.OverallScore, ShouldEqual, 0)
					}
				}
			}
		})

		Convey("A missing overall score is derived with the configured weights", func() {
			weighted := *cfg
			weighted.WeightA, weighted.WeightB = 3, 1
			users, _ := Generate(context.Background(), &weighted, genNow)
			checked := 0
			for _, u := range users {
				for i, req := range u.Requests {
					if req.Record.Status != record.StatusComplete || req.Record.OverallScore != nil {
						continue
					}
					a, b := u.Expected[i].SourceScoreA, u.Expected[i].SourceScoreB
					want := int((float64(3*a+b))/4 + 0.5)
					So(u.Expected[i].OverallScore, ShouldEqual, want)
					checked++
				}
			}
			So(checked, ShouldBeGreaterThan, 0)
		})

		Convey("A cancelled context stops generation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := Generate(ctx, cfg, genNow)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCompareSnapshots(t *testing.T) {
	Convey("Given two snapshots", t, func() {
		at := genNow
		want := summary.Snapshot{TotalComplete: 3, AverageScore: 70, TrendPercent: 5, LatestCompletedAt: &at, CurrentStreak: 2}

		Convey("Equal snapshots have no diffs", func() {
			got := want
			later := at.In(time.FixedZone("x", 3600))
			got.LatestCompletedAt = &later
			So(compareSnapshots(want, got), ShouldBeEmpty)
		})

		Convey("Each differing field is reported", func() {
			got := want
			got.AverageScore = 71
			got.LatestCompletedAt = nil
			diffs := compareSnapshots(want, got)
			So(diffs, ShouldHaveLength, 2)
			So(diffs[0], ShouldContainSubstring, "averageScore")
			So(diffs[1], ShouldContainSubstring, "latestCompletedAt")
		})
	})
}

func TestWithDefaults(t *testing.T) {
	Convey("Zero config values get defaults", t, func() {
		c := withDefaults(Config{})
		So(c.Users, ShouldEqual, DefaultUsers)
		So(c.RecordsPerUser, ShouldEqual, DefaultRecordsPerUser)
		So(c.Workers, ShouldBeGreaterThan, 0)
		So(c.Timeout, ShouldEqual, DefaultTimeout)
		So(c.SettleTimeout, ShouldEqual, DefaultSettleTimeout)
		So(c.WeightA, ShouldEqual, 1)
		So(c.WeightB, ShouldEqual, 1)
	})
}

func newTestServer(weights map[string]float64) (*httptest.Server, func()) {
	ctx := context.Background()
	svc := service.New(service.WithWorkerCount(2), service.WithSourceWeights(weights))
	So(svc.Start(ctx), ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, stop := newTestServer(map[string]float64{"sourceA": 3, "sourceB": 1})
		defer stop()

		dir := t.TempDir()
		cfg := &Config{
			BaseURL:        srv.URL,
			Users:          3,
			RecordsPerUser: 10,
			Workers:        2,
			SettleTimeout:  5 * time.Second,
			OutputDir:      dir,
			Seed:           7,
			WeightA:        3,
			WeightB:        1,
		}

		Convey("A seeding run submits, settles and verifies every user", func() {
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.UsersGenerated, ShouldEqual, 3)
			So(stats.RecordsGenerated, ShouldEqual, 30)
			So(stats.Accepted, ShouldEqual, 30)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.UsersVerified, ShouldEqual, 3)
			So(stats.Mismatches, ShouldEqual, 0)

			data, err := os.ReadFile(filepath.Join(dir, "user-000.json"))
			So(err, ShouldBeNil)
			records, err := export.DecodeJSON(data)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 10)

			Convey("A second run with the same seed only sees duplicates", func() {
				stats, err := Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(stats.Duplicate, ShouldEqual, 30)
				So(stats.Accepted, ShouldEqual, 0)
				So(stats.Mismatches, ShouldEqual, 0)
			})
		})

		Convey("Mismatched weights are reported", func() {
			cfg.WeightA, cfg.WeightB = 1, 3
			cfg.Users = 6
			cfg.OutputDir = ""
			stats, err := Run(context.Background(), cfg)
			So(errors.Is(err, ErrMismatch), ShouldBeTrue)
			So(stats.Mismatches, ShouldBeGreaterThan, 0)
		})
	})

	Convey("An unreachable service fails the health check", t, func() {
		_, err := Run(context.Background(), &Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		So(err, ShouldNotBeNil)
	})
}
