package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/devhistory/internal/seeding"
)

// Default configuration constants.
const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users     = flag.Int("users", seeding.DefaultUsers, "Number of synthetic users")
		records   = flag.Int("records", seeding.DefaultRecordsPerUser, "Analysis runs per user")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", seeding.DefaultTimeout, "HTTP request timeout")
		settle    = flag.Duration("settle", seeding.DefaultSettleTimeout, "How long to wait for every record to be stored")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		weightA   = flag.Float64("weight-a", 1, "Source A weight configured on the service")
		weightB   = flag.Float64("weight-b", 1, "Source B weight configured on the service")
		outputDir = flag.String("out", "", "Directory for per-user JSON exports")
		logFile   = flag.String("log", "", "Log file; \"-\" logs to stdout only (default: seed_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeding.ShowHelp()
		return
	}

	closeLog, err := seeding.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := &seeding.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		RecordsPerUser: *records,
		Workers:        *workers,
		Timeout:        *timeout,
		SettleTimeout:  *settle,
		OutputDir:      *outputDir,
		Seed:           *seed,
		WeightA:        *weightA,
		WeightB:        *weightB,
		Verbose:        *verbose,
	}

	if _, err := seeding.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Seeding failed: " + err.Error() + "\n")
		_ = closeLog()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: log closed above
	}
}
