package driven

import (
	"context"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

// StoreFactory creates a fresh, unconnected Store for a backend.
// Used to test candidate connection targets without touching the
// active connection.
type StoreFactory func(backend domain.Backend) Store

// Store is the uniform persistence contract both backend adapters
// implement. The facade selects one implementation at startup and
// never mixes adapters within one process lifetime.
//
// Implementations report infrastructure failures as raw driver errors;
// classification and retry happen in the connection manager above.
type Store interface {
	// Backend identifies the adapter variant.
	Backend() domain.Backend

	// Connect opens the underlying connection (or pool) for the given
	// target. A failed connect must not leave a half-open connection.
	Connect(ctx context.Context, cfg domain.ConnectionConfig) error

	// Disconnect closes the connection. Safe to call when not connected.
	Disconnect() error

	// Ping is a cheap liveness probe against the active backend.
	Ping(ctx context.Context) error

	// InitializeSchema migrates the schema to the newest catalog version.
	InitializeSchema(ctx context.Context) error

	// Artwork CRUD.

	SaveArtwork(ctx context.Context, artwork *domain.Artwork) error
	Artwork(ctx context.Context, id string) (*domain.Artwork, error)
	ArtworkPage(ctx context.Context, req domain.PageRequest) (*domain.ArtworkPage, error)
	UpdateArtwork(ctx context.Context, artwork *domain.Artwork) error
	SoftDeleteArtwork(ctx context.Context, id, deletedBy string) error
	SoftDeleteArtworks(ctx context.Context, ids []string, deletedBy string) (int64, error)
	RestoreArtwork(ctx context.Context, id string) error
	PurgeArtwork(ctx context.Context, id string) error

	// Configuration blobs. Values arrive already encrypted; the adapter
	// stores them opaquely under the fixed tenant key.

	SaveConfigBlob(ctx context.Context, kind domain.SecretKind, blob string) error
	ConfigBlob(ctx context.Context, kind domain.SecretKind) (string, error)
	DeleteConfigBlob(ctx context.Context, kind domain.SecretKind) error

	// Operation log. Append-only; pruned by age.

	AppendOperationLog(ctx context.Context, entry domain.OperationLogEntry) error
	OperationLogs(ctx context.Context, req domain.PageRequest) (*domain.OperationLogPage, error)
	PruneOperationLogs(ctx context.Context, olderThan time.Time) (int64, error)

	// Statistics.

	Stats(ctx context.Context, filter domain.StatsFilter) (*domain.DatabaseStats, error)

	// Migration operations, delegated to the adapter's migration engine.

	SchemaVersion(ctx context.Context) (int, error)
	MigrateTo(ctx context.Context, version int) error
	RollbackTo(ctx context.Context, version int) error
	MigrationHistory(ctx context.Context, limit int) ([]domain.MigrationRecord, error)
	ValidateIntegrity(ctx context.Context) (*domain.IntegrityReport, error)
	CleanupMigrationLogs(ctx context.Context, daysToKeep int) (int64, error)
}
