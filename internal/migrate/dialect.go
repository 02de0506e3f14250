package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresDialect is the networked backend's migration dialect.
type PostgresDialect struct{}

// Name identifies the dialect.
func (PostgresDialect) Name() string { return "postgres" }

// Rebind converts '?' placeholders to $1, $2, ... Literal question
// marks do not occur in the engine's bookkeeping queries.
func (PostgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TableColumns reads column names from information_schema.
func (PostgresDialect) TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// SQLiteDialect is the embedded backend's migration dialect.
type SQLiteDialect struct{}

// Name identifies the dialect.
func (SQLiteDialect) Name() string { return "sqlite" }

// Rebind is a no-op; SQLite takes '?' natively.
func (SQLiteDialect) Rebind(query string) string { return query }

// TableColumns reads column names via PRAGMA table_info.
func (SQLiteDialect) TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
