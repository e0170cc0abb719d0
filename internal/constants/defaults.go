package constants

import "time"

// Centralized default values for timeouts, intervals, and related settings.
// Environment/config may override where supported.

const (
	// Database
	DBReadTimeoutDefault  = 8 * time.Second
	DBWriteTimeoutDefault = 6 * time.Second

	// Map lookups (browser page fetch and Places API)
	MapFetchTimeout        = 20 * time.Second
	PlacesOperationTimeout = 10 * time.Second
	PlacesOpenFor          = 30 * time.Second

	// Aggregator search + venue page
	AggregatorFetchTimeout = 15 * time.Second

	// Image search
	ImageFetchTimeout = 15 * time.Second

	// Proposal source / OpenAI
	ProposalOperationTimeout = 90 * time.Second
	ProposalOpenFor          = 45 * time.Second

	// Pacing between sequential network lookups
	SettleDelayDefault = 1500 * time.Millisecond

	// Batch scheduler
	JobCooldownDefault = 3 * time.Second
	JobTimeoutDefault  = 10 * time.Minute

	// Health
	HealthTimeoutDefault = 10 * time.Second

	// App shutdown
	GracefulShutdownTimeoutDefault = 10 * time.Second

	// Events store SQL operations
	EventsSQLTimeoutDefault = 5 * time.Second

	// Monitoring
	MonitoringIntervalDefault = 5 * time.Second
)
