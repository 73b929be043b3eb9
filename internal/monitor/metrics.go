package monitor

import (
	"sync"

	"trading-bot/internal/events"
)

// Metrics tracks runtime counters: dispatched events by type plus API
// traffic. Cheap enough to sit on the bus as a global subscriber.
type Metrics struct {
	mu          sync.RWMutex
	eventCounts map[events.EventType]uint64
	apiRequests uint64
	apiErrors   uint64
}

func NewMetrics() *Metrics {
	return &Metrics{eventCounts: make(map[events.EventType]uint64)}
}

// Register attaches the metrics collector to the bus.
func (m *Metrics) Register(bus *events.Bus) {
	bus.SubscribeAll(m.count)
}

func (m *Metrics) count(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCounts[e.Type]++
	return nil
}

// IncrementAPI counts one handled HTTP request.
func (m *Metrics) IncrementAPI() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiRequests++
}

// IncrementAPIErrors counts one HTTP request that ended >= 400.
func (m *Metrics) IncrementAPIErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiErrors++
}

// Snapshot returns a copy of all counters.
type MetricsSnapshot struct {
	Events      map[string]uint64 `json:"events"`
	APIRequests uint64            `json:"api_requests"`
	APIErrors   uint64            `json:"api_errors"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := MetricsSnapshot{
		Events:      make(map[string]uint64, len(m.eventCounts)),
		APIRequests: m.apiRequests,
		APIErrors:   m.apiErrors,
	}
	for t, n := range m.eventCounts {
		snap.Events[string(t)] = n
	}
	return snap
}
