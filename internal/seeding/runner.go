package seeding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	exportPermission    = 0o640
)

// ErrNotSettled is returned when the service has not stored every accepted
// record within the settle timeout.
var ErrNotSettled = errors.New("records not settled")

// ErrMismatch is returned when served metrics differ from the expected ones.
var ErrMismatch = errors.New("metrics mismatch")

// Run executes a complete seeding run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := withDefaults(*config)
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting devhistory seeding",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("recordsPerUser", cfg.RecordsPerUser),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate histories
	users, err := Generate(ctx, &cfg, stats.StartTime)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}
	stats.UsersGenerated = len(users)
	for _, u := range users {
		stats.RecordsGenerated += len(u.Requests)
	}

	// Step 3: Submit concurrently
	submitAll(ctx, &cfg, users, stats)

	// Step 4: Wait for the workers to store everything
	if err := settle(ctx, &cfg, client, users); err != nil {
		return stats, err
	}

	// Step 5: Compare served metrics with local ones
	if err := verify(ctx, client, users, stats); err != nil {
		return stats, err
	}

	// Step 6: Save exports
	if cfg.OutputDir != "" {
		if err := saveExports(ctx, client, cfg.OutputDir, users); err != nil {
			log.Warn(ctx, "failed to save exports", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func withDefaults(c Config) Config { //nolint:gocritic // hugeParam: returns a copy
	if c.Users <= 0 {
		c.Users = DefaultUsers
	}
	if c.RecordsPerUser <= 0 {
		c.RecordsPerUser = DefaultRecordsPerUser
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * 2
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = DefaultSettleTimeout
	}
	if c.WeightA <= 0 && c.WeightB <= 0 {
		c.WeightA, c.WeightB = 1, 1
	}
	return c
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	// Any 200 is healthy; the body is the Prometheus exposition.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// settle polls every user's metrics until their complete counts reach the
// expected ones.
func settle(ctx context.Context, config *Config, client *HTTPClient, users []UserHistory) error {
	ctx, cancel := context.WithTimeout(ctx, config.SettleTimeout)
	defer cancel()

	pending := make(map[string]int, len(users))
	for _, u := range users {
		pending[u.UserID] = countComplete(u.Expected)
	}

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		for userID, want := range pending {
			m, err := client.metrics(ctx, userID)
			if err == nil && m.TotalComplete >= want {
				delete(pending, userID)
			}
		}
		if len(pending) == 0 {
			logger.Get().Info(ctx, "all records stored")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d users pending: %w", ErrNotSettled, len(pending), ctx.Err())
		case <-ticker.C:
		}
	}
}

func countComplete(records []record.AnalysisRecord) int {
	n := 0
	for i := range records {
		if records[i].Status == record.StatusComplete {
			n++
		}
	}
	return n
}

// saveExports writes each user's JSON export to dir/<user>.json.
func saveExports(ctx context.Context, client *HTTPClient, dir string, users []UserHistory) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for _, u := range users {
		path := "/users/" + url.PathEscape(u.UserID) + "/export?format=" + string(export.FormatJSON)
		resp, err := client.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("export %s: %w", u.UserID, err)
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("export %s: %w", u.UserID, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("export %s: status %d", u.UserID, resp.StatusCode)
		}
		if _, err := export.DecodeJSON(data); err != nil {
			return fmt.Errorf("export %s: %w", u.UserID, err)
		}
		if err := os.WriteFile(filepath.Join(dir, u.UserID+".json"), data, exportPermission); err != nil {
			return fmt.Errorf("export %s: %w", u.UserID, err)
		}
	}
	logger.Get().Info(ctx, "exports saved", logger.String("dir", dir), logger.Int("users", len(users)))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("usersGenerated", stats.UsersGenerated),
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("recordsPerSecond", perSecond),
	)
}
