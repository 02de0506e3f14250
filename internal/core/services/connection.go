package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
	"github.com/glimmerhq/glimmer/internal/dberr"
	"github.com/glimmerhq/glimmer/internal/logger"
)

// RetryPolicy bounds the retry loop: a fixed attempt ceiling and an
// exponential backoff capped per sleep. Jitter spreads simultaneous
// retries from multiple processes apart.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is the production policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// delay computes the backoff before the given attempt (1-based, so
// attempt 2 gets the first sleep). Jitter multiplies by [0.5, 1.5).
func (p RetryPolicy) delay(attempt int, jitter float64) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * float64(int64(1)<<uint(attempt-1)) * jitter)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// ConnectionManager owns the single logical connection to the active
// backend: lifecycle, liveness, and retry-wrapped execution. It is the
// only writer of ConnectionStatus.
type ConnectionManager struct {
	store      driven.Store
	classifier *dberr.Classifier
	retry      RetryPolicy
	newStore   driven.StoreFactory

	mu         sync.RWMutex
	cfg        domain.ConnectionConfig
	hasCfg     bool
	connecting bool
	status     domain.ConnectionStatus

	// Swappable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error
	randF func() float64
	now   func() time.Time
}

// NewConnectionManager wires a manager around one backend adapter.
func NewConnectionManager(store driven.Store, classifier *dberr.Classifier, retry RetryPolicy) *ConnectionManager {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &ConnectionManager{
		store:      store,
		classifier: classifier,
		retry:      retry,
		sleep:      sleepCtx,
		randF:      rand.Float64,
		now:        time.Now,
	}
}

// sleepCtx waits for the delay or the caller's cancellation, whichever
// comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Connect validates the config and establishes the connection,
// recording latency on success. Overlapping calls short-circuit with
// ErrConnectInProgress instead of racing; a failed attempt never
// leaves a half-open connection.
func (m *ConnectionManager) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return m.classifier.Classify(err, "connect")
	}

	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return m.classifier.Classify(domain.ErrConnectInProgress, "connect")
	}
	m.connecting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	start := m.now()
	if err := m.store.Connect(ctx, cfg); err != nil {
		details := m.classifier.Classify(err, "connect")
		m.mu.Lock()
		m.status.Connected = false
		m.status.LastError = details.UserMessage
		m.mu.Unlock()
		return details
	}

	latency := m.now().Sub(start)
	connectedAt := m.now()
	m.mu.Lock()
	m.cfg = cfg
	m.hasCfg = true
	m.status = domain.ConnectionStatus{
		Connected:     true,
		LastConnected: &connectedAt,
		LatencyMs:     latency.Milliseconds(),
	}
	m.mu.Unlock()

	logger.Info("connected to %s backend in %s", cfg.Backend, latency)
	return nil
}

// Disconnect closes the connection and records the transition.
func (m *ConnectionManager) Disconnect() error {
	err := m.store.Disconnect()

	m.mu.Lock()
	m.status.Connected = false
	if err != nil {
		m.status.LastError = err.Error()
	}
	m.mu.Unlock()
	return err
}

// Status returns a copy of the current connection status.
func (m *ConnectionManager) Status() domain.ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Config returns the last-known connection config.
func (m *ConnectionManager) Config() (domain.ConnectionConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.hasCfg
}

// TestConnection checks the given target, or the active connection
// when cfg is nil, and reports latency. Testing a candidate target
// never disturbs the active connection. Never throws; failures land in
// the result.
func (m *ConnectionManager) TestConnection(ctx context.Context, cfg *domain.ConnectionConfig) *domain.ConnectionTestResult {
	start := m.now()

	var err error
	if cfg != nil {
		err = m.testCandidate(ctx, *cfg)
	} else {
		err = m.Ping(ctx)
	}

	latency := m.now().Sub(start).Milliseconds()
	if err != nil {
		details := m.classifier.Classify(err, "test_connection")
		return &domain.ConnectionTestResult{Success: false, LatencyMs: latency, Error: details.UserMessage}
	}
	return &domain.ConnectionTestResult{Success: true, LatencyMs: latency}
}

// testCandidate connects to the candidate target and pings it. With a
// store factory the check runs on a throwaway store; without one it
// borrows the shared store and restores the active connection after.
func (m *ConnectionManager) testCandidate(ctx context.Context, cfg domain.ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if m.newStore != nil {
		candidate := m.newStore(cfg.Backend)
		defer func() {
			if err := candidate.Disconnect(); err != nil {
				logger.Warn("failed to close %s test connection: %v", cfg.Backend, err)
			}
		}()
		if err := candidate.Connect(ctx, cfg); err != nil {
			return err
		}
		return candidate.Ping(ctx)
	}

	err := m.store.Connect(ctx, cfg)
	if err == nil {
		err = m.store.Ping(ctx)
	}
	m.restoreActive(ctx)
	return err
}

// restoreActive reconnects the shared store to the last-known config
// after a candidate test borrowed it, or disconnects it when no config
// was ever established.
func (m *ConnectionManager) restoreActive(ctx context.Context) {
	prev, ok := m.Config()
	if !ok {
		if err := m.store.Disconnect(); err != nil {
			logger.Warn("failed to disconnect after connection test: %v", err)
		}
		return
	}
	if err := m.store.Connect(ctx, prev); err != nil {
		logger.Warn("failed to restore %s connection after test: %v", prev.Backend, err)
		m.mu.Lock()
		m.status.Connected = false
		m.status.LastError = err.Error()
		m.mu.Unlock()
	}
}

// Ping probes the active connection and updates status with the
// measured latency.
func (m *ConnectionManager) Ping(ctx context.Context) error {
	start := m.now()
	err := m.store.Ping(ctx)
	latency := m.now().Sub(start)

	m.mu.Lock()
	if err != nil {
		m.status.Connected = false
		m.status.LastError = err.Error()
	} else {
		m.status.Connected = true
		m.status.LastError = ""
		m.status.LatencyMs = latency.Milliseconds()
	}
	m.mu.Unlock()
	return err
}

// ExecuteWithRetry wraps one unit of work in the retry state machine.
// Before each attempt the connection is probed and, if dead, reconnected
// once from the last-known config. Retryable failures back off
// exponentially up to the attempt ceiling; non-retryable ones abort
// immediately. Every terminal outcome appends one operation log entry.
//
// Retry sleeps honor ctx cancellation in addition to the ceiling.
func (m *ConnectionManager) ExecuteWithRetry(ctx context.Context, label string, op func(ctx context.Context) error) error {
	start := m.now()

	var details *dberr.Details
	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			// Backoff between attempts, jittered to avoid retry storms.
			jitter := 0.5 + m.randF()
			if err := m.sleep(ctx, m.retry.delay(attempt, jitter)); err != nil {
				details = m.classifier.Classify(err, label)
				break
			}
		}

		if err := m.ensureLive(ctx); err != nil {
			details = m.classifier.Classify(err, label)
			if !details.Retryable {
				break
			}
			continue
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("%s succeeded on attempt %d", label, attempt)
			}
			m.logOutcome(ctx, label, domain.OperationSuccess, "", m.now().Sub(start))
			return nil
		}

		details = m.classifier.Classify(err, label)
		if !details.Retryable {
			logger.Debug("%s failed with non-retryable %s error", label, details.Type)
			break
		}
		logger.Debug("%s attempt %d/%d failed: %v", label, attempt, m.retry.MaxAttempts, err)
	}

	m.logOutcome(ctx, label, domain.OperationFailed, details.UserMessage, m.now().Sub(start))
	return details
}

// ensureLive probes the connection and performs one reconnect from the
// last-known config when the probe fails.
func (m *ConnectionManager) ensureLive(ctx context.Context) error {
	if err := m.store.Ping(ctx); err == nil {
		return nil
	}
	cfg, ok := m.Config()
	if !ok {
		return domain.ErrNotConnected
	}
	logger.Warn("connection lost, reconnecting to %s backend", cfg.Backend)
	return m.store.Connect(ctx, cfg)
}

// logOutcome appends one operation log entry. Log writes never throw
// outward; a failure here is warned about so it cannot mask the
// operation's own result.
func (m *ConnectionManager) logOutcome(ctx context.Context, label string, status domain.OperationStatus, errMsg string, duration time.Duration) {
	entry := domain.OperationLogEntry{
		ID:        uuid.NewString(),
		Operation: label,
		Status:    status,
		Error:     errMsg,
		Duration:  duration,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.AppendOperationLog(ctx, entry); err != nil {
		logger.Warn("failed to append operation log for %s: %v", label, err)
	}
}

// String describes the manager's target for operator display.
func (m *ConnectionManager) String() string {
	cfg, ok := m.Config()
	if !ok {
		return fmt.Sprintf("%s backend (not configured)", m.store.Backend())
	}
	return cfg.Redacted()
}
