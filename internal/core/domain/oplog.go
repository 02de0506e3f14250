package domain

import "time"

// OperationStatus is the terminal outcome of a logged operation.
type OperationStatus string

// Operation outcomes.
const (
	OperationSuccess OperationStatus = "SUCCESS"
	OperationFailed  OperationStatus = "FAILED"
)

// IsValid returns true if the status is recognised.
func (s OperationStatus) IsValid() bool {
	return s == OperationSuccess || s == OperationFailed
}

// OperationLogEntry records one significant persistence operation.
// Entries are append-only and pruned by age-based retention.
type OperationLogEntry struct {
	ID        string
	Operation string
	Entity    string
	RecordID  string
	Status    OperationStatus
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// OperationLogPage is one page of operation log entries.
type OperationLogPage struct {
	Data     []OperationLogEntry
	PageInfo PageInfo
}
