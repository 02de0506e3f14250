package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(store *fakeStore) (*Monitor, *ConnectionManager) {
	m, _ := newTestManager(store, DefaultRetryPolicy)
	// Long interval; tests drive probes directly for determinism.
	mon := NewMonitor(m, time.Hour)
	return mon, m
}

func TestMonitorProbeRecordsTransitions(t *testing.T) {
	store := newFakeStore()
	mon, m := newTestMonitor(store)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	// First probe seeds the history with the initial state.
	mon.probe(context.Background())
	history := mon.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Connected)

	// A healthy probe with no state change adds nothing.
	mon.probe(context.Background())
	assert.Len(t, mon.History(), 1)

	// A failed probe records the drop.
	store.failPing(errors.New("connection reset by peer"))
	mon.probe(context.Background())
	history = mon.History()
	require.Len(t, history, 2)
	assert.False(t, history[1].Connected)
	assert.NotEmpty(t, history[1].Error)

	// Recovery records the flip back.
	mon.probe(context.Background())
	history = mon.History()
	require.Len(t, history, 3)
	assert.True(t, history[2].Connected)

	stats := mon.Stats()
	assert.Equal(t, 4, stats.Probes)
	assert.Equal(t, 3, stats.Successes)
	assert.Equal(t, 1, stats.Failures)
	assert.False(t, stats.LastProbe.IsZero())
}

func TestMonitorListeners(t *testing.T) {
	store := newFakeStore()
	mon, m := newTestMonitor(store)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	var seen []StatusTransition
	id := mon.Subscribe(func(tr StatusTransition) {
		seen = append(seen, tr)
	})

	mon.probe(context.Background())
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Connected)

	store.failPing(errors.New("broken pipe"))
	mon.probe(context.Background())
	require.Len(t, seen, 2)
	assert.False(t, seen[1].Connected)

	mon.Unsubscribe(id)
	mon.probe(context.Background())
	assert.Len(t, seen, 2, "unsubscribed listeners are not invoked")
}

func TestMonitorStartStop(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(store, DefaultRetryPolicy)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	mon := NewMonitor(m, 10*time.Millisecond)
	mon.Start(context.Background())
	mon.Start(context.Background()) // second start is a no-op

	// The loop probes immediately and then on the ticker.
	deadline := time.After(2 * time.Second)
	for mon.Stats().Probes < 3 {
		select {
		case <-deadline:
			t.Fatal("monitor never probed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mon.Stop()
	mon.Stop() // idempotent

	probes := mon.Stats().Probes
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, probes, mon.Stats().Probes, "no probes after Stop")
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(store, DefaultRetryPolicy)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	mon := NewMonitor(m, 5*time.Millisecond)
	mon.Start(ctx)

	deadline := time.After(2 * time.Second)
	for mon.Stats().Probes < 1 {
		select {
		case <-deadline:
			t.Fatal("monitor never probed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	time.Sleep(30 * time.Millisecond)

	probes := mon.Stats().Probes
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, probes, mon.Stats().Probes, "loop exits when the context is cancelled")
}

func TestMonitorTriggerConnectionTestRateLimit(t *testing.T) {
	store := newFakeStore()
	mon, m := newTestMonitor(store)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	// The burst allows a few immediate tests, then throttling kicks in.
	var limited bool
	for i := 0; i < manualTestBurst+2; i++ {
		result := mon.TriggerConnectionTest(context.Background())
		if !result.Success && result.Error == "connection tests are rate limited" {
			limited = true
		}
	}
	assert.True(t, limited)
}

func TestMonitorQualityScore(t *testing.T) {
	store := newFakeStore()
	mon, m := newTestMonitor(store)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	assert.Zero(t, mon.QualityScore(), "no probes yet")

	mon.probe(context.Background())
	mon.probe(context.Background())
	assert.InDelta(t, 100, mon.QualityScore(), 1, "all probes healthy, negligible latency")

	store.failPing(errors.New("connection refused"))
	mon.probe(context.Background())
	score := mon.QualityScore()
	assert.Less(t, score, 100.0)
	assert.Greater(t, score, 0.0)

	mon.ResetStats()
	assert.Zero(t, mon.Stats().Probes)
	assert.Zero(t, mon.QualityScore())
}

func TestMonitorHistoryBounded(t *testing.T) {
	store := newFakeStore()
	mon, m := newTestMonitor(store)
	require.NoError(t, m.Connect(context.Background(), testConfig()))

	// Alternate up and down to force a transition on every probe.
	for i := 0; i < transitionHistoryCap+20; i++ {
		if i%2 == 0 {
			store.failPing(errors.New("connection refused"))
		}
		mon.probe(context.Background())
	}
	assert.Len(t, mon.History(), transitionHistoryCap)
}
