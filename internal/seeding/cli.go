package seeding

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/devhistory/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging initializes the global logger writing to stdout and, when
// logFile is not "-", to a log file. An empty logFile gets a timestamped
// name. The returned func closes the log file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	out := io.Writer(os.Stdout)
	closer := func() error { return nil }

	if logFile != "-" {
		if logFile == "" {
			logFile = "seed_log_" + time.Now().Format("20060102_150405") + ".log"
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file.Close
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// ShowHelp prints usage information for the seeding tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`devhistory seeder
=================

Generates synthetic analysis histories, submits them to a running service,
and checks the served metrics against locally computed ones.

Usage:
  go run ./cmd/seed-history [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of synthetic users (default 20)
  -records int
        Analysis runs per user (default 25)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -settle duration
        How long to wait for the service to store every record (default 30s)
  -seed uint
        Generator seed (default: current time)
  -weight-a, -weight-b float
        Source weights configured on the service (default 1, 1)
  -out string
        Directory for per-user JSON exports (default: none)
  -log string
        Log file; "-" logs to stdout only (default: seed_log_TIMESTAMP.log)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  go run ./cmd/seed-history -users 100 -records 50 -out seeded/
  go run ./cmd/seed-history -url http://localhost:8080 -seed 42 -log -
`)
}
