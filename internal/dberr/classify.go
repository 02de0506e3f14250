// Package dberr maps backend-specific error signals onto a small
// taxonomy with a fixed retryability bit, a user-facing message, and
// remediation suggestions. Every classification is also recorded in a
// bounded in-memory log for statistics.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

// Type is one classified error category.
type Type string

// The error taxonomy.
const (
	TypeConnection     Type = "CONNECTION"
	TypeAuthentication Type = "AUTHENTICATION"
	TypePermission     Type = "PERMISSION"
	TypeSyntax         Type = "SYNTAX"
	TypeConstraint     Type = "CONSTRAINT"
	TypeData           Type = "DATA"
	TypeTimeout        Type = "TIMEOUT"
	TypeResource       Type = "RESOURCE"
	TypeUnknown        Type = "UNKNOWN"
)

// retryable is the fixed retryability bit per type. Transient
// infrastructure failures retry; caller mistakes do not.
var retryable = map[Type]bool{
	TypeConnection: true,
	TypeTimeout:    true,
	TypeResource:   true,
}

// Retryable returns the fixed retryability bit for the type.
func (t Type) Retryable() bool {
	return retryable[t]
}

// userMessages are what callers see instead of raw driver strings.
var userMessages = map[Type]string{
	TypeConnection:     "Could not reach the database. The operation will be retried automatically.",
	TypeAuthentication: "Database authentication failed. Check the configured credentials.",
	TypePermission:     "The database user lacks permission for this operation.",
	TypeSyntax:         "The database rejected the statement. This is an application defect.",
	TypeConstraint:     "The change conflicts with existing data.",
	TypeData:           "The supplied value is not valid for the target column.",
	TypeTimeout:        "The database did not respond in time. The operation will be retried automatically.",
	TypeResource:       "The database is temporarily overloaded or locked. The operation will be retried automatically.",
	TypeUnknown:        "An unexpected database error occurred.",
}

// suggestions are ordered remediation hints per type.
var suggestions = map[Type][]string{
	TypeConnection: {
		"Verify the database host and port are reachable",
		"Check that the database server is running",
		"Review firewall and TLS settings",
	},
	TypeAuthentication: {
		"Verify the configured user and password",
		"Confirm the account is not locked or expired",
	},
	TypePermission: {
		"Grant the required privileges to the database user",
		"Confirm the user owns the Glimmer schema objects",
	},
	TypeSyntax: {
		"Update to a build matching the schema version",
		"Run schema validation to spot drift",
	},
	TypeConstraint: {
		"Check for duplicate identifiers",
		"Verify referenced rows exist",
	},
	TypeData: {
		"Check field lengths and value ranges",
		"Verify date and numeric formats",
	},
	TypeTimeout: {
		"Check database load and slow queries",
		"Increase the statement timeout if the workload is legitimate",
	},
	TypeResource: {
		"Wait for concurrent writers to finish",
		"Check disk space and connection limits",
	},
	TypeUnknown: {
		"Inspect the operation log for the raw error",
	},
}

// Details is the typed error surfaced to callers: classification,
// retryability, and a presentable message wrapped around the raw cause.
type Details struct {
	Type        Type
	Code        string
	Retryable   bool
	UserMessage string
	Suggestions []string
	Context     string
	Raw         error
}

// Error implements error. The raw driver text stays available for
// logs via Unwrap; UserMessage is what callers should display.
func (d *Details) Error() string {
	if d.Context != "" {
		return fmt.Sprintf("%s [%s]: %v", d.Context, d.Type, d.Raw)
	}
	return fmt.Sprintf("[%s]: %v", d.Type, d.Raw)
}

// Unwrap exposes the raw cause for errors.Is / errors.As.
func (d *Details) Unwrap() error {
	return d.Raw
}

// Classify maps a raw error to its Details. Domain errors pass through
// untyped driver inspection: they are caller mistakes, never retried.
func Classify(err error, operation string) *Details {
	t, code := typeOf(err)
	return &Details{
		Type:        t,
		Code:        code,
		Retryable:   t.Retryable(),
		UserMessage: userMessages[t],
		Suggestions: suggestions[t],
		Context:     operation,
		Raw:         err,
	}
}

// typeOf inspects driver error types first, then falls back to the
// keyword heuristic.
func typeOf(err error) (Type, string) {
	if err == nil {
		return TypeUnknown, ""
	}

	// Already classified.
	var details *Details
	if errors.As(err, &details) {
		return details.Type, details.Code
	}

	// Domain-level failures are never infrastructure problems.
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidConfig):
		return TypeData, "domain"
	case errors.Is(err, domain.ErrNotConnected):
		return TypeConnection, "not_connected"
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TypeTimeout, "context"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return TypeTimeout, "net_timeout"
		}
		return TypeConnection, "net"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgType(pgErr.Code), pgErr.Code
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff // strip extended result bits
		return sqliteType(code), fmt.Sprintf("sqlite_%d", sqliteErr.Code())
	}

	return heuristicType(err.Error()), "heuristic"
}

// pgType maps a PostgreSQL SQLSTATE to the taxonomy by class prefix.
func pgType(code string) Type {
	switch {
	case code == "57014", code == "55P03": // query_canceled, lock_not_available
		return TypeTimeout
	case code == "42501": // insufficient_privilege
		return TypePermission
	case strings.HasPrefix(code, "08"): // connection exceptions
		return TypeConnection
	case strings.HasPrefix(code, "28"): // invalid authorization
		return TypeAuthentication
	case strings.HasPrefix(code, "42"): // syntax or access rule
		return TypeSyntax
	case strings.HasPrefix(code, "23"): // integrity constraint
		return TypeConstraint
	case strings.HasPrefix(code, "22"): // data exceptions
		return TypeData
	case strings.HasPrefix(code, "53"), strings.HasPrefix(code, "54"): // resources
		return TypeResource
	case strings.HasPrefix(code, "57"): // operator intervention
		return TypeConnection
	default:
		return TypeUnknown
	}
}

// sqliteType maps a primary SQLite result code to the taxonomy.
func sqliteType(code int) Type {
	switch code {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_PROTOCOL:
		return TypeResource
	case sqlite3.SQLITE_AUTH:
		return TypeAuthentication
	case sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
		return TypePermission
	case sqlite3.SQLITE_CONSTRAINT:
		return TypeConstraint
	case sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_RANGE, sqlite3.SQLITE_TOOBIG:
		return TypeData
	case sqlite3.SQLITE_ERROR:
		return TypeSyntax
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_NOMEM:
		return TypeResource
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return TypeConnection
	default:
		return TypeUnknown
	}
}

// heuristicType is the fallback keyword scan over the raw message for
// codes no driver mapping recognises.
func heuristicType(msg string) Type {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return TypeTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "refused"),
		strings.Contains(msg, "broken pipe"), strings.Contains(msg, "reset by peer"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "unreachable"):
		return TypeConnection
	case strings.Contains(msg, "lock"), strings.Contains(msg, "busy"):
		return TypeResource
	case strings.Contains(msg, "password"), strings.Contains(msg, "authentication"):
		return TypeAuthentication
	case strings.Contains(msg, "permission"), strings.Contains(msg, "denied"):
		return TypePermission
	case strings.Contains(msg, "syntax"):
		return TypeSyntax
	case strings.Contains(msg, "constraint"), strings.Contains(msg, "unique"),
		strings.Contains(msg, "duplicate"):
		return TypeConstraint
	default:
		return TypeUnknown
	}
}
