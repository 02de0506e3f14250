// Package sqlite is the embedded backend adapter: a file-resident
// SQLite database requiring no network connection. It implements the
// uniform persistence contract and translates the canonical SQL
// dialect so callers never branch on backend type.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
	"github.com/glimmerhq/glimmer/internal/migrate"
)

// dbFileName is the database file created under the configured path.
const dbFileName = "glimmer.db"

// sortColumns is the allow-listed sort field set. Anything else falls
// back to created_at.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
	"model":      "model",
	"favorite":   "favorite",
}

// Store is the embedded adapter. One Store owns one database file; it
// is not expected to tolerate concurrent multi-process writers.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	engine *migrate.Engine
}

var _ driven.Store = (*Store)(nil)

// NewStore creates a disconnected embedded adapter.
func NewStore() *Store {
	return &Store{}
}

// Backend identifies the adapter variant.
func (s *Store) Backend() domain.Backend {
	return domain.BackendEmbedded
}

// Connect opens (creating if needed) the database file under the
// configured path with WAL journaling and foreign keys enabled.
func (s *Store) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDir := cfg.Path
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, dbFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("probing database: %w", err)
	}

	engine, err := migrate.NewEngine(db, migrate.SQLiteDialect{},
		translateCatalog(migrate.Catalog()), migrate.Requirements())
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration engine: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
	}
	s.db = db
	s.path = dbPath
	s.engine = engine
	return nil
}

// Disconnect closes the database file. Safe to call when not connected.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.engine = nil
	return err
}

// Ping is a cheap liveness probe.
func (s *Store) Ping(ctx context.Context) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Path returns the database file path, empty when disconnected.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// InitializeSchema migrates to the newest catalog version.
func (s *Store) InitializeSchema(ctx context.Context) error {
	_, engine, err := s.handle()
	if err != nil {
		return err
	}
	return engine.MigrateToLatest(ctx)
}

// handle returns the live connection or ErrNotConnected.
func (s *Store) handle() (*sql.DB, *migrate.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, nil, domain.ErrNotConnected
	}
	return s.db, s.engine, nil
}

// ==================== Artwork CRUD ====================

const artworkColumns = `id, title, prompt, negative_prompt, model, image_path, thumbnail_path,
	favorite, tags, is_deleted, deleted_at, deleted_by, created_at, updated_at,
	width, height, seed`

// SaveArtwork stores or updates an artwork.
func (s *Store) SaveArtwork(ctx context.Context, artwork *domain.Artwork) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	if err := artwork.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if artwork.CreatedAt.IsZero() {
		artwork.CreatedAt = now
	}
	artwork.UpdatedAt = now

	tagsJSON, err := json.Marshal(artwork.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	var deletedAt any
	if artwork.DeletedAt != nil {
		deletedAt = isoTime(*artwork.DeletedAt)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO artworks (`+artworkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			prompt = excluded.prompt,
			negative_prompt = excluded.negative_prompt,
			model = excluded.model,
			image_path = excluded.image_path,
			thumbnail_path = excluded.thumbnail_path,
			favorite = excluded.favorite,
			tags = excluded.tags,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			deleted_by = excluded.deleted_by,
			updated_at = excluded.updated_at,
			width = excluded.width,
			height = excluded.height,
			seed = excluded.seed
	`, artwork.ID, artwork.Title, artwork.Prompt, artwork.NegativePrompt, artwork.Model,
		artwork.ImagePath, artwork.ThumbnailPath, boolToInt(artwork.Favorite), string(tagsJSON),
		boolToInt(artwork.IsDeleted), deletedAt, artwork.DeletedBy,
		isoTime(artwork.CreatedAt), isoTime(artwork.UpdatedAt),
		artwork.Width, artwork.Height, artwork.Seed)
	if err != nil {
		return fmt.Errorf("saving artwork: %w", err)
	}
	return nil
}

// Artwork retrieves an artwork by ID, soft-deleted rows included.
func (s *Store) Artwork(ctx context.Context, id string) (*domain.Artwork, error) {
	db, _, err := s.handle()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT `+artworkColumns+` FROM artworks WHERE id = ?
	`, id)
	return scanArtwork(row.Scan)
}

// ArtworkPage returns one filtered, sorted page.
func (s *Store) ArtworkPage(ctx context.Context, req domain.PageRequest) (*domain.ArtworkPage, error) {
	db, _, err := s.handle()
	if err != nil {
		return nil, err
	}
	req = req.Normalised()

	where, args := buildFilter(req)

	var total int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artworks"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting artworks: %w", err)
	}

	column, ok := sortColumns[req.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if req.SortDir == domain.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM artworks%s ORDER BY %s %s LIMIT ? OFFSET ?",
		artworkColumns, where, column, direction)
	rows, err := db.QueryContext(ctx, query, append(args, req.PageSize, req.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying artworks: %w", err)
	}
	defer rows.Close()

	var artworks []domain.Artwork //nolint:prealloc // size unknown from query
	for rows.Next() {
		artwork, err := scanArtwork(rows.Scan)
		if err != nil {
			return nil, err
		}
		artworks = append(artworks, *artwork)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artworks: %w", err)
	}

	return &domain.ArtworkPage{
		Data:     artworks,
		PageInfo: domain.NewPageInfo(total, req.Page, req.PageSize),
	}, nil
}

// UpdateArtwork writes the already-merged artwork row.
func (s *Store) UpdateArtwork(ctx context.Context, artwork *domain.Artwork) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(artwork.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE artworks SET
			title = ?, prompt = ?, negative_prompt = ?, model = ?,
			image_path = ?, thumbnail_path = ?, favorite = ?, tags = ?,
			width = ?, height = ?, seed = ?, updated_at = ?
		WHERE id = ?
	`, artwork.Title, artwork.Prompt, artwork.NegativePrompt, artwork.Model,
		artwork.ImagePath, artwork.ThumbnailPath, boolToInt(artwork.Favorite), string(tagsJSON),
		artwork.Width, artwork.Height, artwork.Seed, isoTime(artwork.UpdatedAt), artwork.ID)
	if err != nil {
		return fmt.Errorf("updating artwork: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating artwork: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDeleteArtwork flags an artwork deleted without removing the row.
func (s *Store) SoftDeleteArtwork(ctx context.Context, id, deletedBy string) error {
	n, err := s.SoftDeleteArtworks(ctx, []string{id}, deletedBy)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDeleteArtworks flags a batch deleted and reports how many rows
// changed.
func (s *Store) SoftDeleteArtworks(ctx context.Context, ids []string, deletedBy string) (int64, error) {
	db, _, err := s.handle()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := []any{isoTime(time.Now().UTC()), deletedBy}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE artworks SET is_deleted = 1, deleted_at = ?, deleted_by = ?
		WHERE id IN (%s) AND is_deleted = 0
	`, placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("soft-deleting artworks: %w", err)
	}
	return res.RowsAffected()
}

// RestoreArtwork clears the soft-delete flags.
func (s *Store) RestoreArtwork(ctx context.Context, id string) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE artworks SET is_deleted = 0, deleted_at = NULL, deleted_by = ''
		WHERE id = ? AND is_deleted = 1
	`, id)
	if err != nil {
		return fmt.Errorf("restoring artwork: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restoring artwork: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// PurgeArtwork removes the row permanently.
func (s *Store) PurgeArtwork(ctx context.Context, id string) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM artworks WHERE id = ?", id); err != nil {
		return fmt.Errorf("purging artwork: %w", err)
	}
	return nil
}

// buildFilter assembles the WHERE clause for a page request.
func buildFilter(req domain.PageRequest) (string, []any) {
	var clauses []string
	var args []any

	if !req.IncludeDeleted {
		clauses = append(clauses, "is_deleted = 0")
	}
	if req.FavoriteOnly {
		clauses = append(clauses, "favorite = 1")
	}
	if req.Model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, req.Model)
	}
	if req.Tag != "" {
		clauses = append(clauses, `tags LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(`"`+req.Tag+`"`))
	}
	if req.Search != "" {
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR prompt LIKE ? ESCAPE '\')`)
		pattern := likePattern(req.Search)
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanArtwork reads one artwork row.
func scanArtwork(scan func(dest ...any) error) (*domain.Artwork, error) {
	var (
		artwork                        domain.Artwork
		favorite, isDeleted            int
		tagsJSON                       string
		deletedAt                      sql.NullString
		createdAt, updatedAt           string
	)
	err := scan(&artwork.ID, &artwork.Title, &artwork.Prompt, &artwork.NegativePrompt,
		&artwork.Model, &artwork.ImagePath, &artwork.ThumbnailPath,
		&favorite, &tagsJSON, &isDeleted, &deletedAt, &artwork.DeletedBy,
		&createdAt, &updatedAt, &artwork.Width, &artwork.Height, &artwork.Seed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning artwork: %w", err)
	}

	artwork.Favorite = favorite != 0
	artwork.IsDeleted = isDeleted != 0
	if err := json.Unmarshal([]byte(tagsJSON), &artwork.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}
	if deletedAt.Valid && deletedAt.String != "" {
		t, err := parseISOTime(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing deleted_at: %w", err)
		}
		artwork.DeletedAt = &t
	}
	if artwork.CreatedAt, err = parseISOTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if artwork.UpdatedAt, err = parseISOTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &artwork, nil
}

// ==================== Configuration Blobs ====================

// SaveConfigBlob stores an already-encrypted configuration value under
// the fixed tenant key.
func (s *Store) SaveConfigBlob(ctx context.Context, kind domain.SecretKind, blob string) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO app_config (kind, tenant, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, tenant) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, string(kind), domain.TenantID, blob, isoTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("saving config blob: %w", err)
	}
	return nil
}

// ConfigBlob retrieves a stored configuration value.
func (s *Store) ConfigBlob(ctx context.Context, kind domain.SecretKind) (string, error) {
	db, _, err := s.handle()
	if err != nil {
		return "", err
	}
	var blob string
	err = db.QueryRowContext(ctx, `
		SELECT value FROM app_config WHERE kind = ? AND tenant = ?
	`, string(kind), domain.TenantID).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("loading config blob: %w", err)
	}
	return blob, nil
}

// DeleteConfigBlob removes a stored configuration value.
func (s *Store) DeleteConfigBlob(ctx context.Context, kind domain.SecretKind) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
		DELETE FROM app_config WHERE kind = ? AND tenant = ?
	`, string(kind), domain.TenantID); err != nil {
		return fmt.Errorf("deleting config blob: %w", err)
	}
	return nil
}

// ==================== Operation Log ====================

// AppendOperationLog writes one append-only audit entry.
func (s *Store) AppendOperationLog(ctx context.Context, entry domain.OperationLogEntry) error {
	db, _, err := s.handle()
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO operation_logs (id, operation, entity, record_id, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Operation, entry.Entity, entry.RecordID, string(entry.Status),
		entry.Error, entry.Duration.Milliseconds(), isoTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending operation log: %w", err)
	}
	return nil
}

// OperationLogs returns one page of entries, newest first.
func (s *Store) OperationLogs(ctx context.Context, req domain.PageRequest) (*domain.OperationLogPage, error) {
	db, _, err := s.handle()
	if err != nil {
		return nil, err
	}
	req = req.Normalised()

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operation_logs").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting operation logs: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, operation, entity, record_id, status, error, duration_ms, created_at
		FROM operation_logs ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, req.PageSize, req.Offset())
	if err != nil {
		return nil, fmt.Errorf("querying operation logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.OperationLogEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			entry      domain.OperationLogEntry
			status     string
			durationMs int64
			createdAt  string
		)
		if err := rows.Scan(&entry.ID, &entry.Operation, &entry.Entity, &entry.RecordID,
			&status, &entry.Error, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning operation log: %w", err)
		}
		entry.Status = domain.OperationStatus(status)
		entry.Duration = time.Duration(durationMs) * time.Millisecond
		if entry.CreatedAt, err = parseISOTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing operation log timestamp: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation logs: %w", err)
	}

	return &domain.OperationLogPage{
		Data:     entries,
		PageInfo: domain.NewPageInfo(total, req.Page, req.PageSize),
	}, nil
}

// PruneOperationLogs removes entries older than the cutoff.
func (s *Store) PruneOperationLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	db, _, err := s.handle()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		"DELETE FROM operation_logs WHERE created_at < ?", isoTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("pruning operation logs: %w", err)
	}
	return res.RowsAffected()
}

// ==================== Statistics ====================

// Stats summarises stored data.
func (s *Store) Stats(ctx context.Context, filter domain.StatsFilter) (*domain.DatabaseStats, error) {
	db, engine, err := s.handle()
	if err != nil {
		return nil, err
	}

	where := " WHERE is_deleted = 0"
	var args []any
	if filter.Model != "" {
		where += " AND model = ?"
		args = append(args, filter.Model)
	}
	if filter.Since != nil {
		where += " AND created_at >= ?"
		args = append(args, isoTime(*filter.Since))
	}

	stats := &domain.DatabaseStats{Backend: domain.BackendEmbedded}
	var oldest, newest sql.NullString
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(favorite), 0), MIN(created_at), MAX(created_at)
		FROM artworks`+where, args...).
		Scan(&stats.TotalArtworks, &stats.Favorites, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("collecting artwork stats: %w", err)
	}
	if oldest.Valid {
		t, err := parseISOTime(oldest.String)
		if err == nil {
			stats.OldestArtwork = &t
		}
	}
	if newest.Valid {
		t, err := parseISOTime(newest.String)
		if err == nil {
			stats.NewestArtwork = &t
		}
	}

	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artworks WHERE is_deleted = 1").Scan(&stats.SoftDeleted); err != nil {
		return nil, fmt.Errorf("collecting trash stats: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END), 0)
		FROM operation_logs`).Scan(&stats.OperationLogs, &stats.FailedOps)
	if err != nil {
		return nil, fmt.Errorf("collecting operation log stats: %w", err)
	}
	if stats.SchemaVersion, err = engine.CurrentVersion(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

// ==================== Migration Operations ====================

// SchemaVersion reads the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	_, engine, err := s.handle()
	if err != nil {
		return 0, err
	}
	return engine.CurrentVersion(ctx)
}

// MigrateTo applies pending migrations up to the target version.
func (s *Store) MigrateTo(ctx context.Context, version int) error {
	_, engine, err := s.handle()
	if err != nil {
		return err
	}
	return engine.MigrateTo(ctx, version)
}

// RollbackTo rolls the schema back down to the target version.
func (s *Store) RollbackTo(ctx context.Context, version int) error {
	_, engine, err := s.handle()
	if err != nil {
		return err
	}
	return engine.RollbackTo(ctx, version)
}

// MigrationHistory lists applied migrations, newest first.
func (s *Store) MigrationHistory(ctx context.Context, limit int) ([]domain.MigrationRecord, error) {
	_, engine, err := s.handle()
	if err != nil {
		return nil, err
	}
	return engine.History(ctx, limit)
}

// ValidateIntegrity reports missing tables and columns.
func (s *Store) ValidateIntegrity(ctx context.Context) (*domain.IntegrityReport, error) {
	_, engine, err := s.handle()
	if err != nil {
		return nil, err
	}
	return engine.ValidateIntegrity(ctx)
}

// CleanupMigrationLogs prunes migration history by retention.
func (s *Store) CleanupMigrationLogs(ctx context.Context, daysToKeep int) (int64, error) {
	_, engine, err := s.handle()
	if err != nil {
		return 0, err
	}
	return engine.Cleanup(ctx, daysToKeep)
}
