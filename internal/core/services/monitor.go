package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/logger"
)

// Monitor defaults.
const (
	DefaultProbeInterval = 30 * time.Second
	transitionHistoryCap = 64

	// Manual connection tests are throttled so a misbehaving caller
	// cannot hammer the backend outside the timer cadence.
	manualTestsPerSecond = 1
	manualTestBurst      = 3
)

// StatusTransition is one recorded connection state change.
type StatusTransition struct {
	Connected bool
	LatencyMs int64
	Error     string
	At        time.Time
}

// StatusListener is invoked synchronously on every status transition.
type StatusListener func(StatusTransition)

// Monitor probes the active backend on an independent timer, keeps a
// bounded transition history and rolling quality counters, and pushes
// status changes to subscribed listeners. Probes never run in the
// request path.
type Monitor struct {
	manager  *ConnectionManager
	interval time.Duration
	limiter  *rate.Limiter

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
	lastConnected bool
	seeded        bool
	history       []StatusTransition
	stats         domain.QualityStats
	listeners     map[int]StatusListener
	nextListener  int
	now           func() time.Time
}

// NewMonitor creates a monitor for the given connection manager.
// Non-positive intervals fall back to the default.
func NewMonitor(manager *ConnectionManager, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		manager:   manager,
		interval:  interval,
		limiter:   rate.NewLimiter(manualTestsPerSecond, manualTestBurst),
		listeners: make(map[int]StatusListener),
		now:       time.Now,
	}
}

// Start launches the probe loop. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		// Probe immediately so status is fresh at startup.
		m.probe(ctx)
		for {
			select {
			case <-ticker.C:
				m.probe(ctx)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit. Idempotent; the
// ticker never leaks.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	logger.Debug("connection monitor stopped")
}

// TriggerConnectionTest runs one on-demand probe outside the timer
// cadence, throttled to protect the backend.
func (m *Monitor) TriggerConnectionTest(ctx context.Context) *domain.ConnectionTestResult {
	if !m.limiter.Allow() {
		return &domain.ConnectionTestResult{Success: false, Error: "connection tests are rate limited"}
	}
	m.probe(ctx)
	status := m.manager.Status()
	return &domain.ConnectionTestResult{
		Success:   status.Connected,
		LatencyMs: status.LatencyMs,
		Error:     status.LastError,
	}
}

// Subscribe registers a listener and returns its handle for
// Unsubscribe.
func (m *Monitor) Subscribe(listener StatusListener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = listener
	return id
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (m *Monitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// History returns the recorded status transitions, oldest first.
func (m *Monitor) History() []StatusTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusTransition, len(m.history))
	copy(out, m.history)
	return out
}

// Stats returns the rolling quality counters.
func (m *Monitor) Stats() domain.QualityStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ResetStats clears the rolling counters on demand.
func (m *Monitor) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = domain.QualityStats{}
}

// QualityScore derives a 0-100 health score from the recent success
// ratio, penalised by average latency.
func (m *Monitor) QualityScore() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stats.Probes == 0 {
		return 0
	}
	score := 100 * float64(m.stats.Successes) / float64(m.stats.Probes)

	// Latency above 100ms starts eating into the score, at most 20
	// points.
	penalty := (m.stats.AvgLatencyMs - 100) / 50
	if penalty < 0 {
		penalty = 0
	}
	if penalty > 20 {
		penalty = 20
	}
	score -= penalty
	if score < 0 {
		score = 0
	}
	return score
}

// probe runs one liveness round-trip and records the outcome.
func (m *Monitor) probe(ctx context.Context) {
	err := m.manager.Ping(ctx)
	status := m.manager.Status()

	m.mu.Lock()
	m.stats.Probes++
	if err == nil {
		m.stats.Successes++
	} else {
		m.stats.Failures++
	}
	if status.LatencyMs > m.stats.PeakLatencyMs {
		m.stats.PeakLatencyMs = status.LatencyMs
	}
	// Rolling average over successful probes.
	if m.stats.Successes > 0 && err == nil {
		n := float64(m.stats.Successes)
		m.stats.AvgLatencyMs += (float64(status.LatencyMs) - m.stats.AvgLatencyMs) / n
	}
	m.stats.LastProbe = m.now()

	transitioned := !m.seeded || m.lastConnected != status.Connected
	m.seeded = true
	m.lastConnected = status.Connected

	var transition StatusTransition
	var listeners []StatusListener
	if transitioned {
		transition = StatusTransition{
			Connected: status.Connected,
			LatencyMs: status.LatencyMs,
			Error:     status.LastError,
			At:        m.now(),
		}
		m.history = append(m.history, transition)
		if len(m.history) > transitionHistoryCap {
			m.history = m.history[len(m.history)-transitionHistoryCap:]
		}
		listeners = make([]StatusListener, 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	// Push outside the lock; listeners are invoked synchronously.
	for _, l := range listeners {
		l(transition)
	}
	if transitioned {
		if transition.Connected {
			logger.Info("backend connection is healthy (%dms)", transition.LatencyMs)
		} else {
			logger.Warn("backend connection lost: %s", transition.Error)
		}
	}
}
