package seeding

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/devhistory/internal/domain/history"
	"github.com/okian/devhistory/internal/domain/summary"
	"github.com/okian/devhistory/pkg/logger"
)

// verify compares every user's served metrics with the snapshot computed
// locally from the expected records.
func verify(ctx context.Context, client *HTTPClient, users []UserHistory, stats *Stats) error {
	log := logger.Get()
	engine := history.New()

	for _, u := range users {
		got, err := client.metrics(ctx, u.UserID)
		if err != nil {
			return fmt.Errorf("metrics for %s: %w", u.UserID, err)
		}
		want := engine.Metrics(u.Expected)
		if diffs := compareSnapshots(want, got.Snapshot); len(diffs) > 0 {
			stats.Mismatches++
			log.Warn(ctx, "metrics mismatch", logger.String("user", u.UserID), logger.Any("diffs", diffs))
			continue
		}
		stats.UsersVerified++
	}

	log.Info(ctx, "verification completed",
		logger.Int("verified", stats.UsersVerified),
		logger.Int("mismatches", stats.Mismatches),
	)
	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d of %d users", ErrMismatch, stats.Mismatches, len(users))
	}
	return nil
}

// compareSnapshots lists the fields that differ.
func compareSnapshots(want, got summary.Snapshot) []string { //nolint:gocritic // hugeParam: read-only
	var diffs []string
	check := func(field string, w, g int) {
		if w != g {
			diffs = append(diffs, fmt.Sprintf("%s: want %d, got %d", field, w, g))
		}
	}
	check("totalComplete", want.TotalComplete, got.TotalComplete)
	check("averageScore", want.AverageScore, got.AverageScore)
	check("trendPercent", want.TrendPercent, got.TrendPercent)
	check("currentStreak", want.CurrentStreak, got.CurrentStreak)

	wl, wok := want.Latest()
	gl, gok := got.Latest()
	if wok != gok || !wl.Equal(gl) {
		diffs = append(diffs, fmt.Sprintf("latestCompletedAt: want %s, got %s", fmtTime(wl, wok), fmtTime(gl, gok)))
	}
	return diffs
}

func fmtTime(t time.Time, ok bool) string {
	if !ok {
		return "none"
	}
	return t.Format(time.RFC3339)
}
