package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	cryptosvc "github.com/glimmerhq/glimmer/internal/crypto"
)

func newTestFacade(t *testing.T) (*Manager, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := cryptosvc.NewService("unit-test-passphrase")
	require.NoError(t, err)

	m := NewManager(store, svc, ManagerOptions{Retry: DefaultRetryPolicy})
	require.NoError(t, m.Connect(context.Background(), testConfig()))
	return m, store
}

func sampleArtwork(id string) *domain.Artwork {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return &domain.Artwork{
		ID:        id,
		Title:     "Neon Koi Pond",
		Prompt:    "koi swimming through neon reflections, night rain",
		Model:     "flux-dev",
		ImagePath: "/gallery/neon-koi.png",
		Width:     1024,
		Height:    1024,
		Seed:      424242,
		Tags:      []string{"neon", "koi"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestManagerArtworkRoundTrip(t *testing.T) {
	m, _ := newTestFacade(t)
	ctx := context.Background()

	artwork := sampleArtwork("art-1")
	require.NoError(t, m.SaveArtwork(ctx, artwork))

	got, err := m.Artwork(ctx, "art-1")
	require.NoError(t, err)
	assert.Equal(t, "Neon Koi Pond", got.Title)
	assert.Equal(t, []string{"neon", "koi"}, got.Tags)

	_, err = m.Artwork(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagerUpdateArtworkNoConflict(t *testing.T) {
	m, store := newTestFacade(t)
	ctx := context.Background()

	artwork := sampleArtwork("art-1")
	require.NoError(t, m.SaveArtwork(ctx, artwork))

	title := "Neon Koi Pond II"
	baseline := artwork.UpdatedAt
	updated, err := m.UpdateArtwork(ctx, "art-1", domain.ArtworkPatch{
		Title:             &title,
		BaselineUpdatedAt: &baseline,
	})
	require.NoError(t, err)
	assert.Equal(t, "Neon Koi Pond II", updated.Title)
	assert.True(t, updated.UpdatedAt.After(baseline))
	assert.Equal(t, 1, store.updates)
	assert.Zero(t, m.Resolver().ConflictStats().Total)
}

func TestManagerUpdateArtworkConflictStoredWins(t *testing.T) {
	m, store := newTestFacade(t)
	ctx := context.Background()

	artwork := sampleArtwork("art-1")
	require.NoError(t, m.SaveArtwork(ctx, artwork))

	// A second writer moved the row past this caller's baseline.
	stale := artwork.UpdatedAt.Add(-time.Hour)
	title := "Stale Edit"
	result, err := m.UpdateArtwork(ctx, "art-1", domain.ArtworkPatch{
		Title:             &title,
		BaselineUpdatedAt: &stale,
	})
	require.NoError(t, err)

	assert.Equal(t, "Neon Koi Pond", result.Title, "the newer stored row survives intact")
	assert.Zero(t, store.updates, "the losing update is discarded")

	stats := m.Resolver().ConflictStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Resolved)

	logs := m.Resolver().ConflictLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "art-1", logs[0].EntityID)
}

func TestManagerUpdateArtworkNoBaseline(t *testing.T) {
	m, store := newTestFacade(t)
	ctx := context.Background()

	require.NoError(t, m.SaveArtwork(ctx, sampleArtwork("art-1")))

	favorite := true
	updated, err := m.UpdateArtwork(ctx, "art-1", domain.ArtworkPatch{Favorite: &favorite})
	require.NoError(t, err)
	assert.True(t, updated.Favorite)
	assert.Equal(t, 1, store.updates, "no baseline means no detection, the write applies")
}

func TestManagerDeleteRestorePurge(t *testing.T) {
	m, _ := newTestFacade(t)
	ctx := context.Background()

	require.NoError(t, m.SaveArtwork(ctx, sampleArtwork("art-1")))
	require.NoError(t, m.SaveArtwork(ctx, sampleArtwork("art-2")))

	deleted, err := m.DeleteArtworks(ctx, []string{"art-1", "art-2", "ghost"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	require.NoError(t, m.RestoreArtwork(ctx, "art-1"))
	restored, err := m.Artwork(ctx, "art-1")
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	require.NoError(t, m.PurgeArtwork(ctx, "art-2"))
	_, err = m.Artwork(ctx, "art-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagerSecretConfigRoundTrip(t *testing.T) {
	m, store := newTestFacade(t)
	ctx := context.Background()

	cfg := domain.SecretConfig{
		"api_key":  "sk-glimmer-0123456789",
		"endpoint": "https://api.imagegen.example",
	}
	require.NoError(t, m.SaveSecretConfig(ctx, domain.SecretKindImageGen, cfg))

	// The adapter only ever sees ciphertext.
	blob := store.blobs[domain.SecretKindImageGen]
	require.NotEmpty(t, blob)
	assert.NotContains(t, blob, "sk-glimmer")
	assert.Equal(t, 3, len(strings.Split(blob, ":")), "salt:iv:ciphertext")

	got, err := m.SecretConfig(ctx, domain.SecretKindImageGen)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	require.NoError(t, m.DeleteSecretConfig(ctx, domain.SecretKindImageGen))
	_, err = m.SecretConfig(ctx, domain.SecretKindImageGen)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagerSecretConfigInvalidKind(t *testing.T) {
	m, _ := newTestFacade(t)

	err := m.SaveSecretConfig(context.Background(), domain.SecretKind("telegram"), domain.SecretConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestManagerPruneOperationLogs(t *testing.T) {
	m, store := newTestFacade(t)
	ctx := context.Background()

	old := domain.OperationLogEntry{
		ID:        "old",
		Operation: "save_artwork",
		Status:    domain.OperationSuccess,
		CreatedAt: time.Now().UTC().AddDate(0, 0, -90),
	}
	require.NoError(t, store.AppendOperationLog(ctx, old))

	// Generate a fresh entry through the facade.
	require.NoError(t, m.SaveArtwork(ctx, sampleArtwork("art-1")))

	pruned, err := m.PruneOperationLogs(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	page, err := m.OperationLogs(ctx, domain.PageRequest{})
	require.NoError(t, err)
	for _, e := range page.Data {
		assert.NotEqual(t, "old", e.ID)
	}
}

func TestManagerMigrationPassthrough(t *testing.T) {
	m, _ := newTestFacade(t)
	ctx := context.Background()

	version, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, version)

	require.NoError(t, m.RollbackToVersion(ctx, 2))
	version, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	require.NoError(t, m.MigrateToVersion(ctx, 4))
	version, err = m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, version)

	report, err := m.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestManagerStatistics(t *testing.T) {
	m, _ := newTestFacade(t)
	ctx := context.Background()

	require.NoError(t, m.SaveArtwork(ctx, sampleArtwork("art-1")))
	require.NoError(t, m.SaveArtwork(ctx, sampleArtwork("art-2")))

	stats, err := m.Statistics(ctx, domain.StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.BackendEmbedded, stats.Backend)
	assert.Equal(t, 2, stats.TotalArtworks)
}

func TestManagerDisconnectStopsMonitor(t *testing.T) {
	m, store := newTestFacade(t)

	m.Monitor().Start(context.Background())
	require.NoError(t, m.Disconnect())
	assert.False(t, m.ConnectionStatus().Connected)
	assert.False(t, store.connected)
}
