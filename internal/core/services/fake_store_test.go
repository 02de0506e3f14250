package services

import (
	"context"
	"sync"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
)

// fakeStore is an in-memory driven.Store with scriptable connect and
// ping failures for exercising the retry and monitoring paths.
type fakeStore struct {
	mu sync.Mutex

	connectErrs []error
	pingErrs    []error
	connects    int
	pings       int
	connected   bool
	lastCfg     domain.ConnectionConfig

	artworks map[string]*domain.Artwork
	blobs    map[domain.SecretKind]string
	oplog    []domain.OperationLogEntry
	updates  int
	version  int
}

var _ driven.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		artworks: make(map[string]*domain.Artwork),
		blobs:    make(map[domain.SecretKind]string),
		version:  4,
	}
}

// failConnect queues errors returned by the next Connect calls.
func (f *fakeStore) failConnect(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErrs = append(f.connectErrs, errs...)
}

// failPing queues errors returned by the next Ping calls.
func (f *fakeStore) failPing(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErrs = append(f.pingErrs, errs...)
}

func (f *fakeStore) Backend() domain.Backend { return domain.BackendEmbedded }

func (f *fakeStore) Connect(_ context.Context, cfg domain.ConnectionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	f.connected = true
	f.lastCfg = cfg
	return nil
}

func (f *fakeStore) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if len(f.pingErrs) > 0 {
		err := f.pingErrs[0]
		f.pingErrs = f.pingErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) InitializeSchema(context.Context) error { return nil }

func (f *fakeStore) SaveArtwork(_ context.Context, artwork *domain.Artwork) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *artwork
	f.artworks[artwork.ID] = &cp
	return nil
}

func (f *fakeStore) Artwork(_ context.Context, id string) (*domain.Artwork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artworks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ArtworkPage(_ context.Context, req domain.PageRequest) (*domain.ArtworkPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req = req.Normalised()
	page := &domain.ArtworkPage{}
	for _, a := range f.artworks {
		if a.IsDeleted && !req.IncludeDeleted {
			continue
		}
		page.Data = append(page.Data, *a)
	}
	page.PageInfo = domain.NewPageInfo(len(page.Data), req.Page, req.PageSize)
	return page, nil
}

func (f *fakeStore) UpdateArtwork(_ context.Context, artwork *domain.Artwork) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.artworks[artwork.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *artwork
	f.artworks[artwork.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeStore) SoftDeleteArtwork(_ context.Context, id, deletedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeStore) SoftDeleteArtworks(ctx context.Context, ids []string, deletedBy string) (int64, error) {
	var n int64
	for _, id := range ids {
		if err := f.SoftDeleteArtwork(ctx, id, deletedBy); err == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RestoreArtwork(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artworks[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsDeleted = false
	a.DeletedAt = nil
	a.DeletedBy = ""
	return nil
}

func (f *fakeStore) PurgeArtwork(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.artworks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.artworks, id)
	return nil
}

func (f *fakeStore) SaveConfigBlob(_ context.Context, kind domain.SecretKind, blob string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[kind] = blob
	return nil
}

func (f *fakeStore) ConfigBlob(_ context.Context, kind domain.SecretKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.blobs[kind]
	if !ok {
		return "", domain.ErrNotFound
	}
	return blob, nil
}

func (f *fakeStore) DeleteConfigBlob(_ context.Context, kind domain.SecretKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, kind)
	return nil
}

func (f *fakeStore) AppendOperationLog(_ context.Context, entry domain.OperationLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.oplog = append(f.oplog, entry)
	return nil
}

func (f *fakeStore) OperationLogs(_ context.Context, req domain.PageRequest) (*domain.OperationLogPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req = req.Normalised()
	page := &domain.OperationLogPage{Data: append([]domain.OperationLogEntry(nil), f.oplog...)}
	page.PageInfo = domain.NewPageInfo(len(page.Data), req.Page, req.PageSize)
	return page, nil
}

func (f *fakeStore) PruneOperationLogs(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []domain.OperationLogEntry
	var pruned int64
	for _, e := range f.oplog {
		if e.CreatedAt.Before(olderThan) {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	f.oplog = kept
	return pruned, nil
}

func (f *fakeStore) Stats(_ context.Context, _ domain.StatsFilter) (*domain.DatabaseStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &domain.DatabaseStats{
		Backend:       domain.BackendEmbedded,
		TotalArtworks: len(f.artworks),
		SchemaVersion: f.version,
	}
	return stats, nil
}

func (f *fakeStore) SchemaVersion(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, nil
}

func (f *fakeStore) MigrateTo(_ context.Context, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = version
	return nil
}

func (f *fakeStore) RollbackTo(_ context.Context, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = version
	return nil
}

func (f *fakeStore) MigrationHistory(context.Context, int) ([]domain.MigrationRecord, error) {
	return nil, nil
}

func (f *fakeStore) ValidateIntegrity(context.Context) (*domain.IntegrityReport, error) {
	return &domain.IntegrityReport{Valid: true}, nil
}

func (f *fakeStore) CleanupMigrationLogs(context.Context, int) (int64, error) {
	return 0, nil
}

// opLogEntries returns a copy of the appended operation log.
func (f *fakeStore) opLogEntries() []domain.OperationLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OperationLogEntry(nil), f.oplog...)
}
