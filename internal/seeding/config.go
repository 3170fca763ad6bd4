package seeding

import "time"

// Config holds configuration for a seeding run
type Config struct {
	BaseURL        string        // Base URL of the service
	Users          int           // Number of synthetic users
	RecordsPerUser int           // Analysis runs generated per user
	Workers        int           // Number of concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	SettleTimeout  time.Duration // How long to wait for the service to store everything
	OutputDir      string        // Directory for per-user JSON exports; empty disables
	Seed           uint64        // Generator seed; equal seeds give equal histories
	WeightA        float64       // Source A weight the service derives overall scores with
	WeightB        float64       // Source B weight
	Verbose        bool          // Enable debug logging
}

// Stats holds run statistics
type Stats struct {
	UsersGenerated   int
	RecordsGenerated int
	Submitted        int
	Accepted         int
	Duplicate        int
	Failed           int
	UsersVerified    int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
