package driving

import (
	"context"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

// Persistence is the single service contract collaborators use. All
// calls forward to the one backend adapter chosen at startup; callers
// never branch on backend type.
type Persistence interface {
	// Connection lifecycle.

	Connect(ctx context.Context, cfg domain.ConnectionConfig) error
	Disconnect() error
	TestConnection(ctx context.Context, cfg *domain.ConnectionConfig) *domain.ConnectionTestResult
	ConnectionStatus() domain.ConnectionStatus

	// Artwork CRUD.

	SaveArtwork(ctx context.Context, artwork *domain.Artwork) error
	Artwork(ctx context.Context, id string) (*domain.Artwork, error)
	ArtworkPage(ctx context.Context, req domain.PageRequest) (*domain.ArtworkPage, error)
	UpdateArtwork(ctx context.Context, id string, patch domain.ArtworkPatch) (*domain.Artwork, error)
	DeleteArtwork(ctx context.Context, id, deletedBy string) error
	DeleteArtworks(ctx context.Context, ids []string, deletedBy string) (int64, error)
	RestoreArtwork(ctx context.Context, id string) error
	PurgeArtwork(ctx context.Context, id string) error

	// Secret configuration. Values are encrypted before storage and
	// decrypted only in memory on read.

	SaveSecretConfig(ctx context.Context, kind domain.SecretKind, cfg domain.SecretConfig) error
	SecretConfig(ctx context.Context, kind domain.SecretKind) (domain.SecretConfig, error)
	DeleteSecretConfig(ctx context.Context, kind domain.SecretKind) error

	// Operational.

	InitializeSchema(ctx context.Context) error
	Statistics(ctx context.Context, filter domain.StatsFilter) (*domain.DatabaseStats, error)
	OperationLogs(ctx context.Context, req domain.PageRequest) (*domain.OperationLogPage, error)
	PruneOperationLogs(ctx context.Context, olderThanDays int) (int64, error)

	// Migration.

	MigrateToVersion(ctx context.Context, version int) error
	RollbackToVersion(ctx context.Context, version int) error
	CurrentVersion(ctx context.Context) (int, error)
	MigrationHistory(ctx context.Context, limit int) ([]domain.MigrationRecord, error)
	ValidateIntegrity(ctx context.Context) (*domain.IntegrityReport, error)
}
