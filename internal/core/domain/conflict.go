package domain

import "time"

// ConflictStrategy selects how a detected write conflict is resolved.
type ConflictStrategy string

// Available strategies. The detection contract is strategy-agnostic so
// new strategies (field-level merge, row versions) can be added without
// touching callers.
const (
	// StrategyLatestWins keeps the row with the newer timestamp whole;
	// the loser's update is discarded but logged.
	StrategyLatestWins ConflictStrategy = "latest_wins"
)

// IsValid returns true if the strategy is recognised.
func (s ConflictStrategy) IsValid() bool {
	return s == StrategyLatestWins
}

// ConflictInfo describes one detected divergence between a caller's
// intended update and the stored row. Created transiently inside an
// update call; retained only in the bounded conflict log.
type ConflictInfo struct {
	EntityID   string
	Scope      string
	LocalTime  time.Time
	RemoteTime time.Time
	DetectedAt time.Time
}

// ConflictResolution is the outcome of resolving one conflict.
type ConflictResolution struct {
	Resolved  bool
	FinalData *Artwork
	Message   string
}

// ConflictStats summarises the conflict log.
type ConflictStats struct {
	Total    int
	Resolved int
	ByScope  map[string]int
}
