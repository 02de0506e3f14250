package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
	"github.com/glimmerhq/glimmer/internal/core/ports/driving"
	cryptosvc "github.com/glimmerhq/glimmer/internal/crypto"
	"github.com/glimmerhq/glimmer/internal/dberr"
	"github.com/glimmerhq/glimmer/internal/logger"
)

// Manager is the persistence facade. It holds exactly one backend
// adapter chosen at startup and forwards every call through the
// connection manager's retry wrapping; callers never branch on backend
// type. One Manager is constructed at process start and passed by
// reference to every collaborator.
type Manager struct {
	store      driven.Store
	conn       *ConnectionManager
	monitor    *Monitor
	resolver   *ConflictResolver
	crypto     *cryptosvc.Service
	classifier *dberr.Classifier
}

var _ driving.Persistence = (*Manager)(nil)

// ManagerOptions tune the facade's collaborators. StoreFactory, when
// set, supplies throwaway stores for testing candidate connection
// targets without disturbing the active connection.
type ManagerOptions struct {
	Retry           RetryPolicy
	MonitorInterval time.Duration
	StoreFactory    driven.StoreFactory
}

// NewManager wires the facade around one backend adapter. The adapter
// is selected by the composition root so this package never imports
// adapter code.
func NewManager(store driven.Store, crypto *cryptosvc.Service, opts ManagerOptions) *Manager {
	classifier := dberr.NewClassifier(dberr.DefaultLogSize)
	conn := NewConnectionManager(store, classifier, opts.Retry)
	conn.newStore = opts.StoreFactory
	if crypto.UsingFallbackKey() {
		logger.Warn("no encryption key configured; using a generated fallback unsuitable for production")
	}
	return &Manager{
		store:      store,
		conn:       conn,
		monitor:    NewMonitor(conn, opts.MonitorInterval),
		resolver:   NewConflictResolver(),
		crypto:     crypto,
		classifier: classifier,
	}
}

// Backend identifies the active adapter.
func (m *Manager) Backend() domain.Backend {
	return m.store.Backend()
}

// Monitor exposes the connection monitor for lifecycle control and
// subscriptions.
func (m *Manager) Monitor() *Monitor {
	return m.monitor
}

// Resolver exposes the conflict resolver's observability surface.
func (m *Manager) Resolver() *ConflictResolver {
	return m.resolver
}

// Classifier exposes classification statistics.
func (m *Manager) Classifier() *dberr.Classifier {
	return m.classifier
}

// ==================== Connection Lifecycle ====================

// Connect establishes the backend connection.
func (m *Manager) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	return m.conn.Connect(ctx, cfg)
}

// Disconnect stops the monitor and closes the connection.
func (m *Manager) Disconnect() error {
	m.monitor.Stop()
	return m.conn.Disconnect()
}

// TestConnection probes the given target or the active connection.
func (m *Manager) TestConnection(ctx context.Context, cfg *domain.ConnectionConfig) *domain.ConnectionTestResult {
	return m.conn.TestConnection(ctx, cfg)
}

// ConnectionStatus returns the backend-agnostic connection status.
func (m *Manager) ConnectionStatus() domain.ConnectionStatus {
	return m.conn.Status()
}

// ==================== Artwork CRUD ====================

// SaveArtwork stores or replaces an artwork.
func (m *Manager) SaveArtwork(ctx context.Context, artwork *domain.Artwork) error {
	return m.conn.ExecuteWithRetry(ctx, "save_artwork", func(ctx context.Context) error {
		return m.store.SaveArtwork(ctx, artwork)
	})
}

// Artwork retrieves an artwork by ID. A missing row returns
// domain.ErrNotFound via the classified error's cause chain.
func (m *Manager) Artwork(ctx context.Context, id string) (*domain.Artwork, error) {
	var artwork *domain.Artwork
	err := m.conn.ExecuteWithRetry(ctx, "get_artwork", func(ctx context.Context) error {
		var err error
		artwork, err = m.store.Artwork(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return artwork, nil
}

// ArtworkPage returns one filtered, sorted page.
func (m *Manager) ArtworkPage(ctx context.Context, req domain.PageRequest) (*domain.ArtworkPage, error) {
	var page *domain.ArtworkPage
	err := m.conn.ExecuteWithRetry(ctx, "list_artworks", func(ctx context.Context) error {
		var err error
		page, err = m.store.ArtworkPage(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// UpdateArtwork applies a partial update with optimistic conflict
// detection. When the stored row moved past the caller's baseline, the
// conflict is resolved LATEST_WINS: a newer stored row survives intact
// and the caller's patch is discarded but logged. A conflict that
// fails to resolve falls back to applying the caller's write.
func (m *Manager) UpdateArtwork(ctx context.Context, id string, patch domain.ArtworkPatch) (*domain.Artwork, error) {
	var result *domain.Artwork
	err := m.conn.ExecuteWithRetry(ctx, "update_artwork", func(ctx context.Context) error {
		current, err := m.store.Artwork(ctx, id)
		if err != nil {
			return err
		}

		stored := *current
		candidate := *current
		patch.Apply(&candidate, time.Now().UTC())

		var baseline time.Time
		if patch.BaselineUpdatedAt != nil {
			baseline = *patch.BaselineUpdatedAt
		}
		if info := m.resolver.DetectConflict(baseline, &stored, id, "artworks"); info != nil {
			resolution := m.resolver.ResolveConflict(info, domain.StrategyLatestWins, &candidate, &stored)
			if resolution.Resolved && resolution.FinalData == &stored {
				// The stored row won; nothing to write.
				result = &stored
				return nil
			}
		}

		if err := m.store.UpdateArtwork(ctx, &candidate); err != nil {
			return err
		}
		result = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteArtwork soft-deletes one artwork.
func (m *Manager) DeleteArtwork(ctx context.Context, id, deletedBy string) error {
	return m.conn.ExecuteWithRetry(ctx, "delete_artwork", func(ctx context.Context) error {
		return m.store.SoftDeleteArtwork(ctx, id, deletedBy)
	})
}

// DeleteArtworks soft-deletes a batch and reports how many rows
// changed.
func (m *Manager) DeleteArtworks(ctx context.Context, ids []string, deletedBy string) (int64, error) {
	var deleted int64
	err := m.conn.ExecuteWithRetry(ctx, "delete_artworks", func(ctx context.Context) error {
		var err error
		deleted, err = m.store.SoftDeleteArtworks(ctx, ids, deletedBy)
		return err
	})
	return deleted, err
}

// RestoreArtwork brings a soft-deleted artwork back.
func (m *Manager) RestoreArtwork(ctx context.Context, id string) error {
	return m.conn.ExecuteWithRetry(ctx, "restore_artwork", func(ctx context.Context) error {
		return m.store.RestoreArtwork(ctx, id)
	})
}

// PurgeArtwork removes an artwork permanently.
func (m *Manager) PurgeArtwork(ctx context.Context, id string) error {
	return m.conn.ExecuteWithRetry(ctx, "purge_artwork", func(ctx context.Context) error {
		return m.store.PurgeArtwork(ctx, id)
	})
}

// ==================== Secret Configuration ====================

// SaveSecretConfig encrypts the config as one JSON blob and stores it.
// Plaintext credentials never reach the adapter.
func (m *Manager) SaveSecretConfig(ctx context.Context, kind domain.SecretKind, cfg domain.SecretConfig) error {
	if !kind.IsValid() {
		return m.classifier.Classify(fmt.Errorf("%w: secret kind %q", domain.ErrInvalidInput, string(kind)), "save_secret_config")
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return m.classifier.Classify(fmt.Errorf("marshalling secret config: %w", err), "save_secret_config")
	}
	blob, err := m.crypto.Encrypt(string(payload))
	if err != nil {
		return m.classifier.Classify(fmt.Errorf("encrypting secret config: %w", err), "save_secret_config")
	}
	return m.conn.ExecuteWithRetry(ctx, "save_secret_config", func(ctx context.Context) error {
		return m.store.SaveConfigBlob(ctx, kind, blob)
	})
}

// SecretConfig loads and decrypts one credential blob.
func (m *Manager) SecretConfig(ctx context.Context, kind domain.SecretKind) (domain.SecretConfig, error) {
	var blob string
	err := m.conn.ExecuteWithRetry(ctx, "get_secret_config", func(ctx context.Context) error {
		var err error
		blob, err = m.store.ConfigBlob(ctx, kind)
		return err
	})
	if err != nil {
		return nil, err
	}

	payload, err := m.crypto.Decrypt(blob)
	if err != nil {
		return nil, m.classifier.Classify(fmt.Errorf("decrypting secret config: %w", err), "get_secret_config")
	}
	var cfg domain.SecretConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, m.classifier.Classify(fmt.Errorf("unmarshalling secret config: %w", err), "get_secret_config")
	}
	return cfg, nil
}

// DeleteSecretConfig removes one credential blob.
func (m *Manager) DeleteSecretConfig(ctx context.Context, kind domain.SecretKind) error {
	return m.conn.ExecuteWithRetry(ctx, "delete_secret_config", func(ctx context.Context) error {
		return m.store.DeleteConfigBlob(ctx, kind)
	})
}

// ==================== Operational ====================

// InitializeSchema migrates the schema to the newest catalog version.
func (m *Manager) InitializeSchema(ctx context.Context) error {
	return m.conn.ExecuteWithRetry(ctx, "initialize_schema", func(ctx context.Context) error {
		return m.store.InitializeSchema(ctx)
	})
}

// Statistics summarises stored data.
func (m *Manager) Statistics(ctx context.Context, filter domain.StatsFilter) (*domain.DatabaseStats, error) {
	var stats *domain.DatabaseStats
	err := m.conn.ExecuteWithRetry(ctx, "get_statistics", func(ctx context.Context) error {
		var err error
		stats, err = m.store.Stats(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// OperationLogs returns one page of the operation audit trail.
func (m *Manager) OperationLogs(ctx context.Context, req domain.PageRequest) (*domain.OperationLogPage, error) {
	var page *domain.OperationLogPage
	err := m.conn.ExecuteWithRetry(ctx, "get_operation_logs", func(ctx context.Context) error {
		var err error
		page, err = m.store.OperationLogs(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// PruneOperationLogs applies age-based retention to the audit trail.
func (m *Manager) PruneOperationLogs(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	var pruned int64
	err := m.conn.ExecuteWithRetry(ctx, "prune_operation_logs", func(ctx context.Context) error {
		var err error
		pruned, err = m.store.PruneOperationLogs(ctx, cutoff)
		return err
	})
	return pruned, err
}

// ==================== Migration ====================

// MigrateToVersion applies pending migrations up to the target.
func (m *Manager) MigrateToVersion(ctx context.Context, version int) error {
	return m.conn.ExecuteWithRetry(ctx, "migrate_to_version", func(ctx context.Context) error {
		return m.store.MigrateTo(ctx, version)
	})
}

// RollbackToVersion rolls the schema back down to the target.
func (m *Manager) RollbackToVersion(ctx context.Context, version int) error {
	return m.conn.ExecuteWithRetry(ctx, "rollback_to_version", func(ctx context.Context) error {
		return m.store.RollbackTo(ctx, version)
	})
}

// CurrentVersion reads the highest applied migration version.
func (m *Manager) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.conn.ExecuteWithRetry(ctx, "get_current_version", func(ctx context.Context) error {
		var err error
		version, err = m.store.SchemaVersion(ctx)
		return err
	})
	return version, err
}

// MigrationHistory lists applied migrations, newest first.
func (m *Manager) MigrationHistory(ctx context.Context, limit int) ([]domain.MigrationRecord, error) {
	var records []domain.MigrationRecord
	err := m.conn.ExecuteWithRetry(ctx, "get_migration_history", func(ctx context.Context) error {
		var err error
		records, err = m.store.MigrationHistory(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ValidateIntegrity reports missing tables and columns without
// throwing.
func (m *Manager) ValidateIntegrity(ctx context.Context) (*domain.IntegrityReport, error) {
	var report *domain.IntegrityReport
	err := m.conn.ExecuteWithRetry(ctx, "validate_integrity", func(ctx context.Context) error {
		var err error
		report, err = m.store.ValidateIntegrity(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
