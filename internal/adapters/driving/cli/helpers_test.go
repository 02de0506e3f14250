package cli

import (
	"context"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driving"
)

// fakePersistence backs command tests without a database. Set err to
// make every call fail with it.
type fakePersistence struct {
	status     domain.ConnectionStatus
	testResult domain.ConnectionTestResult
	artworks   map[string]*domain.Artwork
	order      []string
	secrets    map[domain.SecretKind]domain.SecretConfig
	logs       []domain.OperationLogEntry
	stats      domain.DatabaseStats
	version    int
	history    []domain.MigrationRecord
	integrity  domain.IntegrityReport
	pruned     int64
	err        error
}

var _ driving.Persistence = (*fakePersistence)(nil)

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		status:     domain.ConnectionStatus{Connected: true, LatencyMs: 3},
		testResult: domain.ConnectionTestResult{Success: true, LatencyMs: 3},
		artworks:   make(map[string]*domain.Artwork),
		secrets:    make(map[domain.SecretKind]domain.SecretConfig),
		version:    4,
		integrity:  domain.IntegrityReport{Valid: true},
	}
}

func (f *fakePersistence) add(a domain.Artwork) {
	f.artworks[a.ID] = &a
	f.order = append(f.order, a.ID)
}

func (f *fakePersistence) Connect(_ context.Context, _ domain.ConnectionConfig) error {
	return f.err
}

func (f *fakePersistence) Disconnect() error { return f.err }

func (f *fakePersistence) TestConnection(_ context.Context, _ *domain.ConnectionConfig) *domain.ConnectionTestResult {
	result := f.testResult
	return &result
}

func (f *fakePersistence) ConnectionStatus() domain.ConnectionStatus { return f.status }

func (f *fakePersistence) SaveArtwork(_ context.Context, artwork *domain.Artwork) error {
	if f.err != nil {
		return f.err
	}
	f.add(*artwork)
	return nil
}

func (f *fakePersistence) Artwork(_ context.Context, id string) (*domain.Artwork, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.artworks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (f *fakePersistence) ArtworkPage(_ context.Context, req domain.PageRequest) (*domain.ArtworkPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	req = req.Normalised()
	var rows []domain.Artwork
	for _, id := range f.order {
		a := f.artworks[id]
		if a.IsDeleted && !req.IncludeDeleted {
			continue
		}
		if req.FavoriteOnly && !a.Favorite {
			continue
		}
		rows = append(rows, *a)
	}
	return &domain.ArtworkPage{
		Data:     rows,
		PageInfo: domain.NewPageInfo(len(rows), req.Page, req.PageSize),
	}, nil
}

func (f *fakePersistence) UpdateArtwork(_ context.Context, id string, patch domain.ArtworkPatch) (*domain.Artwork, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.artworks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(a, time.Now().UTC())
	out := *a
	return &out, nil
}

func (f *fakePersistence) DeleteArtwork(_ context.Context, id, deletedBy string) error {
	if f.err != nil {
		return f.err
	}
	a, ok := f.artworks[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	a.IsDeleted = true
	a.DeletedAt = &now
	a.DeletedBy = deletedBy
	return nil
}

func (f *fakePersistence) DeleteArtworks(_ context.Context, ids []string, deletedBy string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, id := range ids {
		if err := f.DeleteArtwork(context.Background(), id, deletedBy); err == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakePersistence) RestoreArtwork(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	a, ok := f.artworks[id]
	if !ok || !a.IsDeleted {
		return domain.ErrNotFound
	}
	a.IsDeleted = false
	a.DeletedAt = nil
	a.DeletedBy = ""
	return nil
}

func (f *fakePersistence) PurgeArtwork(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.artworks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.artworks, id)
	return nil
}

func (f *fakePersistence) SaveSecretConfig(_ context.Context, kind domain.SecretKind, cfg domain.SecretConfig) error {
	if f.err != nil {
		return f.err
	}
	stored := make(domain.SecretConfig, len(cfg))
	for k, v := range cfg {
		stored[k] = v
	}
	f.secrets[kind] = stored
	return nil
}

func (f *fakePersistence) SecretConfig(_ context.Context, kind domain.SecretKind) (domain.SecretConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	cfg, ok := f.secrets[kind]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make(domain.SecretConfig, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out, nil
}

func (f *fakePersistence) DeleteSecretConfig(_ context.Context, kind domain.SecretKind) error {
	if f.err != nil {
		return f.err
	}
	delete(f.secrets, kind)
	return nil
}

func (f *fakePersistence) InitializeSchema(_ context.Context) error { return f.err }

func (f *fakePersistence) Statistics(_ context.Context, _ domain.StatsFilter) (*domain.DatabaseStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	stats := f.stats
	return &stats, nil
}

func (f *fakePersistence) OperationLogs(_ context.Context, req domain.PageRequest) (*domain.OperationLogPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	req = req.Normalised()
	return &domain.OperationLogPage{
		Data:     append([]domain.OperationLogEntry(nil), f.logs...),
		PageInfo: domain.NewPageInfo(len(f.logs), req.Page, req.PageSize),
	}, nil
}

func (f *fakePersistence) PruneOperationLogs(_ context.Context, _ int) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.pruned, nil
}

func (f *fakePersistence) MigrateToVersion(_ context.Context, version int) error {
	if f.err != nil {
		return f.err
	}
	f.version = version
	return nil
}

func (f *fakePersistence) RollbackToVersion(_ context.Context, version int) error {
	if f.err != nil {
		return f.err
	}
	f.version = version
	return nil
}

func (f *fakePersistence) CurrentVersion(_ context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.version, nil
}

func (f *fakePersistence) MigrationHistory(_ context.Context, _ int) ([]domain.MigrationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.MigrationRecord(nil), f.history...), nil
}

func (f *fakePersistence) ValidateIntegrity(_ context.Context) (*domain.IntegrityReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	report := f.integrity
	return &report, nil
}

// setupTestPersistence swaps in a fresh fake and returns it with a
// cleanup that restores the previous service.
func setupTestPersistence() (*fakePersistence, func()) {
	old := persistence
	fake := newFakePersistence()
	persistence = fake
	return fake, func() { persistence = old }
}
