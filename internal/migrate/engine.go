// Package migrate applies versioned, ordered schema changes with
// rollback, history, and integrity validation. One engine runs per
// adapter, parameterised by dialect; the canonical script catalog is
// written for PostgreSQL and translated by the embedded adapter.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

// Dialect abstracts the engine-specific pieces of migration bookkeeping.
type Dialect interface {
	// Name identifies the dialect in errors and logs.
	Name() string

	// Rebind converts '?' placeholders to the engine's native style.
	Rebind(query string) string

	// TableColumns lists the columns of a table, or an empty slice if
	// the table does not exist.
	TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error)
}

// historyTable holds applied migrations. The DDL is valid in both
// supported dialects.
const historyTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`

// Engine runs migrations from an ordered catalog against one database.
type Engine struct {
	db       *sql.DB
	dialect  Dialect
	catalog  []domain.Migration
	required []domain.TableRequirement
	now      func() time.Time
}

// NewEngine validates the catalog (ascending, unique, positive
// versions) and returns an engine bound to the database.
func NewEngine(db *sql.DB, dialect Dialect, catalog []domain.Migration, required []domain.TableRequirement) (*Engine, error) {
	sorted := make([]domain.Migration, len(catalog))
	copy(sorted, catalog)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	seen := make(map[int]bool, len(sorted))
	for _, m := range sorted {
		if m.Version <= 0 {
			return nil, fmt.Errorf("%w: version %d", domain.ErrUnknownVersion, m.Version)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
		if len(m.Up) == 0 {
			return nil, fmt.Errorf("migration version %d has no forward scripts", m.Version)
		}
		seen[m.Version] = true
	}

	return &Engine{
		db:       db,
		dialect:  dialect,
		catalog:  sorted,
		required: required,
		now:      time.Now,
	}, nil
}

// Latest returns the newest catalog version, or 0 for an empty catalog.
func (e *Engine) Latest() int {
	if len(e.catalog) == 0 {
		return 0
	}
	return e.catalog[len(e.catalog)-1].Version
}

// CurrentVersion reads the highest applied version, bootstrapping the
// history table if absent.
func (e *Engine) CurrentVersion(ctx context.Context) (int, error) {
	if err := e.ensureHistory(ctx); err != nil {
		return 0, err
	}
	var version int
	row := e.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("reading current version: %w", err)
	}
	return version, nil
}

// MigrateToLatest applies every pending migration.
func (e *Engine) MigrateToLatest(ctx context.Context) error {
	if len(e.catalog) == 0 {
		return nil
	}
	return e.MigrateTo(ctx, e.Latest())
}

// MigrateTo applies the not-yet-applied versions up to and including
// target, each in its own transaction with a history record. On the
// first failure the call aborts reporting the failed version; versions
// committed before it stay applied so operators can retry from there.
func (e *Engine) MigrateTo(ctx context.Context, target int) error {
	if _, ok := e.find(target); !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownVersion, target)
	}
	current, err := e.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range e.catalog {
		if m.Version <= current || m.Version > target {
			continue
		}
		if err := e.applyVersion(ctx, m); err != nil {
			return fmt.Errorf("migration version %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// RollbackTo applies rollback scripts in reverse order down to target.
// Versions without rollback scripts abort the call before any work.
func (e *Engine) RollbackTo(ctx context.Context, target int) error {
	if target != 0 {
		if _, ok := e.find(target); !ok {
			return fmt.Errorf("%w: %d", domain.ErrUnknownVersion, target)
		}
	}
	current, err := e.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if target >= current {
		return nil
	}

	var pending []domain.Migration
	for i := len(e.catalog) - 1; i >= 0; i-- {
		m := e.catalog[i]
		if m.Version > current || m.Version <= target {
			continue
		}
		if len(m.Down) == 0 {
			return fmt.Errorf("%w: %d", domain.ErrNoRollbackScript, m.Version)
		}
		pending = append(pending, m)
	}

	for _, m := range pending {
		if err := e.rollbackVersion(ctx, m); err != nil {
			return fmt.Errorf("rollback of version %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// History returns applied migrations, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]domain.MigrationRecord, error) {
	if err := e.ensureHistory(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = len(e.catalog) + 1
	}
	rows, err := e.db.QueryContext(ctx, e.dialect.Rebind(`
		SELECT version, description, checksum, applied_at
		FROM schema_migrations ORDER BY version DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("querying migration history: %w", err)
	}
	defer rows.Close()

	var records []domain.MigrationRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.MigrationRecord
		if err := rows.Scan(&r.Version, &r.Description, &r.Checksum, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migration history: %w", err)
	}
	return records, nil
}

// ValidateIntegrity checks every required table and column and reports
// what is missing without throwing.
func (e *Engine) ValidateIntegrity(ctx context.Context) (*domain.IntegrityReport, error) {
	report := &domain.IntegrityReport{Valid: true}

	for _, req := range e.required {
		columns, err := e.dialect.TableColumns(ctx, e.db, req.Table)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %s: %w", req.Table, err)
		}
		if len(columns) == 0 {
			report.Valid = false
			report.Issues = append(report.Issues, domain.IntegrityIssue{
				Table:   req.Table,
				Problem: "table missing",
			})
			continue
		}
		have := make(map[string]bool, len(columns))
		for _, c := range columns {
			have[strings.ToLower(c)] = true
		}
		for _, col := range req.Columns {
			if !have[strings.ToLower(col)] {
				report.Valid = false
				report.Issues = append(report.Issues, domain.IntegrityIssue{
					Table:   req.Table,
					Column:  col,
					Problem: "column missing",
				})
			}
		}
	}
	return report, nil
}

// Cleanup prunes history records older than the retention window. The
// newest applied record always survives so the current version remains
// readable.
func (e *Engine) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if err := e.ensureHistory(ctx); err != nil {
		return 0, err
	}
	if daysToKeep < 0 {
		daysToKeep = 0
	}
	cutoff := e.now().AddDate(0, 0, -daysToKeep)
	res, err := e.db.ExecContext(ctx, e.dialect.Rebind(`
		DELETE FROM schema_migrations
		WHERE applied_at < ?
		  AND version < (SELECT MAX(version) FROM schema_migrations)
	`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning migration history: %w", err)
	}
	return res.RowsAffected()
}

// applyVersion runs one version's forward scripts and its history
// record inside a single transaction.
func (e *Engine) applyVersion(ctx context.Context, m domain.Migration) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, script := range m.Up {
		if _, err := tx.ExecContext(ctx, script); err != nil {
			return fmt.Errorf("executing script: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, e.dialect.Rebind(`
		INSERT INTO schema_migrations (version, description, checksum, applied_at)
		VALUES (?, ?, ?, ?)
	`), m.Version, m.Description, Checksum(m), e.now().UTC())
	if err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// rollbackVersion runs one version's rollback scripts and removes its
// history record inside a single transaction.
func (e *Engine) rollbackVersion(ctx context.Context, m domain.Migration) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, script := range m.Down {
		if _, err := tx.ExecContext(ctx, script); err != nil {
			return fmt.Errorf("executing rollback script: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, e.dialect.Rebind(
		"DELETE FROM schema_migrations WHERE version = ?"), m.Version); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}
	return tx.Commit()
}

// ensureHistory bootstraps the history table.
func (e *Engine) ensureHistory(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, historyTable); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

// find looks a version up in the catalog.
func (e *Engine) find(version int) (domain.Migration, bool) {
	for _, m := range e.catalog {
		if m.Version == version {
			return m, true
		}
	}
	return domain.Migration{}, false
}

// Checksum is the stable digest of one migration's scripts.
func Checksum(m domain.Migration) string {
	h := sha256.New()
	for _, script := range m.Up {
		h.Write([]byte(script))
	}
	return hex.EncodeToString(h.Sum(nil))
}
