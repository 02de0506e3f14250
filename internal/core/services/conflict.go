package services

import (
	"sync"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/logger"
)

// conflictLogCap bounds the in-memory conflict log.
const conflictLogCap = 128

// Comparator decides whether the stored timestamp supersedes the
// caller's baseline. The default is strictly-newer; alternative
// strategies (row versions, vector clocks) can replace it without
// touching the detection contract.
type Comparator func(baseline, stored time.Time) bool

// strictlyNewer is the default comparator.
func strictlyNewer(baseline, stored time.Time) bool {
	return stored.After(baseline)
}

// loggedConflict pairs a conflict with its resolution outcome.
type loggedConflict struct {
	info     domain.ConflictInfo
	resolved bool
}

// ConflictResolver detects and resolves concurrent-update races on a
// per-record basis. Every detected conflict, resolved or not, lands in
// a fixed-capacity circular log for observability.
type ConflictResolver struct {
	compare Comparator

	mu     sync.Mutex
	buf    []loggedConflict
	head   int
	filled bool
	now    func() time.Time
}

// NewConflictResolver creates a resolver with the default comparator.
func NewConflictResolver() *ConflictResolver {
	return &ConflictResolver{
		compare: strictlyNewer,
		buf:     make([]loggedConflict, conflictLogCap),
		now:     time.Now,
	}
}

// SetComparator swaps the detection comparator. Intended for wiring at
// startup, not mid-flight.
func (r *ConflictResolver) SetComparator(c Comparator) {
	if c != nil {
		r.compare = c
	}
}

// DetectConflict compares the caller's baseline timestamp against the
// just-fetched stored row. A nil return means no conflict. A zero
// baseline cannot be checked and is treated as no conflict -- callers
// that omit it bypass detection, which is the documented trade-off of
// optimistic timestamps.
func (r *ConflictResolver) DetectConflict(baseline time.Time, stored *domain.Artwork, entityID, scope string) *domain.ConflictInfo {
	if stored == nil || baseline.IsZero() {
		return nil
	}
	if !r.compare(baseline, stored.UpdatedAt) {
		return nil
	}
	info := &domain.ConflictInfo{
		EntityID:   entityID,
		Scope:      scope,
		LocalTime:  baseline,
		RemoteTime: stored.UpdatedAt,
		DetectedAt: r.now(),
	}
	logger.Warn("write conflict on %s/%s: stored row is %s newer",
		scope, entityID, stored.UpdatedAt.Sub(baseline))
	return info
}

// ResolveConflict applies the strategy to the two candidate rows.
// LATEST_WINS keeps the newer row whole; the loser is discarded but
// logged. Unknown strategies are reported unresolved, and the caller
// falls back to applying its original write.
func (r *ConflictResolver) ResolveConflict(info *domain.ConflictInfo, strategy domain.ConflictStrategy, local, stored *domain.Artwork) domain.ConflictResolution {
	resolution := domain.ConflictResolution{}

	switch strategy {
	case domain.StrategyLatestWins:
		resolution.Resolved = true
		if info.RemoteTime.After(info.LocalTime) {
			resolution.FinalData = stored
			resolution.Message = "stored row is newer; local update discarded"
		} else {
			resolution.FinalData = local
			resolution.Message = "local update is newer; stored row overwritten"
		}
	default:
		resolution.FinalData = local
		resolution.Message = "unknown strategy; falling back to the caller's write"
	}

	r.log(*info, resolution.Resolved)
	return resolution
}

// log records one detected conflict, oldest evicted first.
func (r *ConflictResolver) log(info domain.ConflictInfo, resolved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = loggedConflict{info: info, resolved: resolved}
	r.head = (r.head + 1) % len(r.buf)
	if r.head == 0 {
		r.filled = true
	}
}

// ConflictLogs returns the recorded conflicts, newest first.
func (r *ConflictResolver) ConflictLogs() []domain.ConflictInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.head
	if r.filled {
		size = len(r.buf)
	}
	out := make([]domain.ConflictInfo, 0, size)
	for i := 1; i <= size; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx].info)
	}
	return out
}

// ConflictStats summarises the conflict log.
func (r *ConflictResolver) ConflictStats() domain.ConflictStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := domain.ConflictStats{ByScope: make(map[string]int)}
	size := r.head
	if r.filled {
		size = len(r.buf)
	}
	for i := 0; i < size; i++ {
		entry := r.buf[i]
		stats.Total++
		if entry.resolved {
			stats.Resolved++
		}
		stats.ByScope[entry.info.Scope]++
	}
	return stats
}
