package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// Backend identifies which storage engine a connection targets.
type Backend string

// Available backends.
const (
	// BackendEmbedded is the file-resident SQLite engine.
	BackendEmbedded Backend = "embedded"

	// BackendNetworked is a PostgreSQL server reached over the network.
	BackendNetworked Backend = "networked"
)

// IsValid returns true if the backend is recognised.
func (b Backend) IsValid() bool {
	switch b {
	case BackendEmbedded, BackendNetworked:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b Backend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b Backend) Description() string {
	switch b {
	case BackendEmbedded:
		return "Embedded (SQLite file)"
	case BackendNetworked:
		return "Networked (PostgreSQL server)"
	default:
		return unknownDescription
	}
}

// ConnectionConfig identifies one backend target. It is immutable once
// a connection is established; a new Connect call replaces it.
type ConnectionConfig struct {
	Backend Backend

	// Embedded backend.
	Path string

	// Networked backend.
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      bool

	Enabled bool
}

// Validate checks the fields required for the configured backend.
func (c ConnectionConfig) Validate() error {
	if !c.Backend.IsValid() {
		return fmt.Errorf("%w: backend %q", ErrInvalidConfig, string(c.Backend))
	}
	switch c.Backend {
	case BackendEmbedded:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("%w: path is required for the embedded backend", ErrInvalidConfig)
		}
	case BackendNetworked:
		if strings.TrimSpace(c.Host) == "" {
			return fmt.Errorf("%w: host is required for the networked backend", ErrInvalidConfig)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
		}
		if strings.TrimSpace(c.User) == "" {
			return fmt.Errorf("%w: user is required for the networked backend", ErrInvalidConfig)
		}
		if strings.TrimSpace(c.Database) == "" {
			return fmt.Errorf("%w: database is required for the networked backend", ErrInvalidConfig)
		}
	}
	return nil
}

// Redacted returns an operator-safe description with the credential
// partially masked.
func (c ConnectionConfig) Redacted() string {
	if c.Backend == BackendEmbedded {
		return fmt.Sprintf("embedded path=%s", c.Path)
	}
	return fmt.Sprintf("networked host=%s port=%d user=%s password=%s database=%s tls=%t",
		c.Host, c.Port, c.User, MaskSecret(c.Password), c.Database, c.TLS)
}

// MaskSecret keeps the first two characters of a secret and masks the
// rest. Short secrets are fully masked.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-2)
}

// ConnectionStatus is the backend-agnostic view of the active
// connection. It is mutated only by the connection manager.
type ConnectionStatus struct {
	Connected     bool
	LastConnected *time.Time
	LastError     string
	LatencyMs     int64
}

// ConnectionTestResult reports an on-demand connection probe.
type ConnectionTestResult struct {
	Success   bool
	LatencyMs int64
	Error     string
}
