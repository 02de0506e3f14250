package domain

import "time"

// DatabaseStats summarises stored data for the statistics endpoint.
type DatabaseStats struct {
	Backend        Backend
	TotalArtworks  int
	Favorites      int
	SoftDeleted    int
	OperationLogs  int
	FailedOps      int
	SchemaVersion  int
	OldestArtwork  *time.Time
	NewestArtwork  *time.Time
}

// StatsFilter narrows a statistics query.
type StatsFilter struct {
	Since *time.Time
	Model string
}

// QualityStats are the monitor's rolling connection-health counters.
// Reset on demand.
type QualityStats struct {
	Probes          int
	Successes       int
	Failures        int
	AvgLatencyMs    float64
	PeakLatencyMs   int64
	LastProbe       time.Time
}
