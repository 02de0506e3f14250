package domain

import "time"

// Migration is one versioned schema change: forward scripts and,
// optionally, rollback scripts. Scripts are dialect-specific; the
// canonical catalog is written for the networked backend and translated
// for the embedded one.
type Migration struct {
	Version     int
	Description string
	Up          []string
	Down        []string
}

// MigrationRecord is one applied migration in the history store.
type MigrationRecord struct {
	Version     int
	Description string
	Checksum    string
	AppliedAt   time.Time
}

// TableRequirement names the columns a table must carry for the
// application to function. Used by integrity validation.
type TableRequirement struct {
	Table   string
	Columns []string
}

// IntegrityIssue reports one missing table or column.
type IntegrityIssue struct {
	Table   string
	Column  string
	Problem string
}

// IntegrityReport is the outcome of a schema integrity check.
// Issues are reported, never thrown.
type IntegrityReport struct {
	Valid  bool
	Issues []IntegrityIssue
}
