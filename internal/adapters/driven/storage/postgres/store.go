// Package postgres is the networked backend adapter: a PostgreSQL
// server reached over the network with its own authentication and a
// small connection pool. It implements the uniform persistence
// contract in the canonical SQL dialect.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for PostgreSQL

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
	"github.com/glimmerhq/glimmer/internal/migrate"
)

// Pool sizing for single-tenant deployments.
const (
	maxOpenConns    = 5
	maxIdleConns    = 2
	connMaxLifetime = 30 * time.Minute
	connectTimeout  = 10 * time.Second
)

// sortColumns is the allow-listed sort field set. Anything else falls
// back to created_at.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
	"model":      "model",
	"favorite":   "favorite",
}

// Store is the networked adapter. It relies on the server for mutual
// exclusion between writers.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	engine *migrate.Engine
}

var _ driven.Store = (*Store)(nil)

// NewStore creates a disconnected networked adapter.
func NewStore() *Store {
	return &Store{}
}

// Backend identifies the adapter variant.
func (s *Store) Backend() domain.Backend {
	return domain.BackendNetworked
}

// dsn builds the connection string. The TLS flag maps onto sslmode.
func dsn(cfg domain.ConnectionConfig) string {
	sslmode := "disable"
	if cfg.TLS {
		sslmode = "require"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	q.Set("connect_timeout", fmt.Sprintf("%d", int(connectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect opens the pool and verifies the server is reachable. A
// failed probe closes the pool rather than leaving it half-open.
func (s *Store) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := sql.Open("pgx", dsn(cfg))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("probing database: %w", err)
	}

	engine, err := migrate.NewEngine(db, migrate.PostgresDialect{},
		migrate.Catalog(), migrate.Requirements())
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
	s.engine = engine
	return nil
}

// Disconnect closes the pool. Safe to call when not connected.
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

// InitializeSchema migrates to the newest catalog version.
func (s *Store) InitializeSchema(ctx context.Context) error {
	_, engine, err := s.handle()
	if err != nil {
		return err
	}
	return engine.MigrateToLatest(ctx)
}

// handle returns the live pool or ErrNotConnected.
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

	_, err = db.ExecContext(ctx, `
		INSERT INTO artworks (`+artworkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
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
		artwork.ImagePath, artwork.ThumbnailPath, artwork.Favorite, string(tagsJSON),
		artwork.IsDeleted, artwork.DeletedAt, artwork.DeletedBy,
		artwork.CreatedAt, artwork.UpdatedAt,
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
		SELECT `+artworkColumns+` FROM artworks WHERE id = $1
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

	query := fmt.Sprintf("SELECT %s FROM artworks%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		artworkColumns, where, column, direction, len(args)+1, len(args)+2)
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
			title = $1, prompt = $2, negative_prompt = $3, model = $4,
			image_path = $5, thumbnail_path = $6, favorite = $7, tags = $8,
			width = $9, height = $10, seed = $11, updated_at = $12
		WHERE id = $13
	`, artwork.Title, artwork.Prompt, artwork.NegativePrompt, artwork.Model,
		artwork.ImagePath, artwork.ThumbnailPath, artwork.Favorite, string(tagsJSON),
		artwork.Width, artwork.Height, artwork.Seed, artwork.UpdatedAt, artwork.ID)
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

	placeholders := make([]string, len(ids))
	args := []any{time.Now().UTC(), deletedBy}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	res, err := db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE artworks SET is_deleted = TRUE, deleted_at = $1, deleted_by = $2
		WHERE id IN (%s) AND is_deleted = FALSE
	`, strings.Join(placeholders, ", ")), args...)
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
		UPDATE artworks SET is_deleted = FALSE, deleted_at = NULL, deleted_by = ''
		WHERE id = $1 AND is_deleted = TRUE
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
	if _, err := db.ExecContext(ctx, "DELETE FROM artworks WHERE id = $1", id); err != nil {
		return fmt.Errorf("purging artwork: %w", err)
	}
	return nil
}

// buildFilter assembles the WHERE clause for a page request.
func buildFilter(req domain.PageRequest) (string, []any) {
	var clauses []string
	var args []any

	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if !req.IncludeDeleted {
		clauses = append(clauses, "is_deleted = FALSE")
	}
	if req.FavoriteOnly {
		clauses = append(clauses, "favorite = TRUE")
	}
	if req.Model != "" {
		args = append(args, req.Model)
		clauses = append(clauses, "model = "+next())
	}
	if req.Tag != "" {
		args = append(args, likePattern(`"`+req.Tag+`"`))
		clauses = append(clauses, "tags LIKE "+next()+` ESCAPE '\'`)
	}
	if req.Search != "" {
		pattern := likePattern(req.Search)
		args = append(args, pattern)
		first := next()
		args = append(args, pattern)
		clauses = append(clauses, fmt.Sprintf(`(title ILIKE %s ESCAPE '\' OR prompt ILIKE %s ESCAPE '\')`, first, next()))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// likePattern escapes user input for a LIKE or ILIKE clause so %
// and _ match literally.
func likePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return "%" + s + "%"
}

// scanArtwork reads one artwork row.
func scanArtwork(scan func(dest ...any) error) (*domain.Artwork, error) {
	var (
		artwork   domain.Artwork
		tagsJSON  string
		deletedAt sql.NullTime
	)
	err := scan(&artwork.ID, &artwork.Title, &artwork.Prompt, &artwork.NegativePrompt,
		&artwork.Model, &artwork.ImagePath, &artwork.ThumbnailPath,
		&artwork.Favorite, &tagsJSON, &artwork.IsDeleted, &deletedAt, &artwork.DeletedBy,
		&artwork.CreatedAt, &artwork.UpdatedAt, &artwork.Width, &artwork.Height, &artwork.Seed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning artwork: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &artwork.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		artwork.DeletedAt = &t
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
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT(kind, tenant) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, string(kind), domain.TenantID, blob)
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
		SELECT value FROM app_config WHERE kind = $1 AND tenant = $2
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
		DELETE FROM app_config WHERE kind = $1 AND tenant = $2
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.Operation, entry.Entity, entry.RecordID, string(entry.Status),
		entry.Error, entry.Duration.Milliseconds(), entry.CreatedAt)
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
		FROM operation_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2
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
		)
		if err := rows.Scan(&entry.ID, &entry.Operation, &entry.Entity, &entry.RecordID,
			&status, &entry.Error, &durationMs, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning operation log: %w", err)
		}
		entry.Status = domain.OperationStatus(status)
		entry.Duration = time.Duration(durationMs) * time.Millisecond
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
		"DELETE FROM operation_logs WHERE created_at < $1", olderThan)
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

	where := " WHERE is_deleted = FALSE"
	var args []any
	if filter.Model != "" {
		args = append(args, filter.Model)
		where += fmt.Sprintf(" AND model = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	stats := &domain.DatabaseStats{Backend: domain.BackendNetworked}
	var oldest, newest sql.NullTime
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE favorite), MIN(created_at), MAX(created_at)
		FROM artworks`+where, args...).
		Scan(&stats.TotalArtworks, &stats.Favorites, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("collecting artwork stats: %w", err)
	}
	if oldest.Valid {
		t := oldest.Time
		stats.OldestArtwork = &t
	}
	if newest.Valid {
		t := newest.Time
		stats.NewestArtwork = &t
	}

	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artworks WHERE is_deleted = TRUE").Scan(&stats.SoftDeleted); err != nil {
		return nil, fmt.Errorf("collecting trash stats: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'FAILED')
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
