package seeding

import "time"

// Defaults applied by withDefaults.
const (
	DefaultUsers          = 20
	DefaultRecordsPerUser = 25
	DefaultTimeout        = 10 * time.Second
	DefaultSettleTimeout  = 30 * time.Second
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	settlePollInterval   = 100 * time.Millisecond
	PercentageMultiplier = 100
)
