// Package lifecycle tracks the bot's run state. The state machine
// governs what the process as a whole is doing; a separate trading-pause
// overlay can forbid order placement even while the bot itself keeps
// running.
package lifecycle

import (
	"fmt"
	"sync"
	"time"
)

// State is the bot lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StatePaused       State = "paused"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateError        State = "error"
)

// validTransitions is the full transition table. StateStopped loops
// back to StateInitializing so a stopped bot can be restarted without
// rebuilding the manager.
var validTransitions = map[State][]State{
	StateInitializing: {StateRunning, StateError, StateStopped},
	StateRunning:      {StatePaused, StateStopping, StateError},
	StatePaused:       {StateRunning, StateStopping, StateError},
	StateStopping:     {StateStopped, StateError},
	StateStopped:      {StateInitializing},
	StateError:        {StateInitializing, StateStopped},
}

// States lists every lifecycle state in a stable order.
func States() []State {
	return []State{
		StateInitializing,
		StateRunning,
		StatePaused,
		StateStopping,
		StateStopped,
		StateError,
	}
}

// InvalidTransitionError reports a disallowed state change. The
// manager's state is left untouched when it is returned.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// TradingPause forbids trading until ResumeAt (unix ms). A zero
// ResumeAt means the pause holds until explicitly cleared.
type TradingPause struct {
	Reason   string `json:"reason"`
	PausedAt int64  `json:"paused_at"`
	ResumeAt int64  `json:"resume_at,omitempty"`
}

func (p TradingPause) active(nowMs int64) bool {
	return p.ResumeAt == 0 || p.ResumeAt > nowMs
}

// Manager owns the lifecycle state, the trading-pause list and a
// free-form metadata map. All three are guarded by one mutex; every
// mutation is atomic with respect to concurrent callers.
type Manager struct {
	mu       sync.RWMutex
	state    State
	pauses   []TradingPause
	metadata map[string]any
}

// NewManager starts in StateInitializing with no pauses.
func NewManager() *Manager {
	return &Manager{
		state:    StateInitializing,
		metadata: make(map[string]any),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TransitionTo moves to target if the transition table allows it.
// On a disallowed transition it returns *InvalidTransitionError and
// changes nothing. Notifying the rest of the system is the caller's
// job, typically by publishing on the event bus.
func (m *Manager) TransitionTo(target State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range validTransitions[m.state] {
		if allowed == target {
			m.state = target
			return nil
		}
	}
	return &InvalidTransitionError{From: m.state, To: target}
}

// AddTradingPause records a pause. A positive duration schedules
// automatic expiry; zero or negative makes the pause permanent until
// ClearTradingPauses.
func (m *Manager) AddTradingPause(reason string, duration time.Duration) {
	p := TradingPause{
		Reason:   reason,
		PausedAt: time.Now().UnixMilli(),
	}
	if duration > 0 {
		p.ResumeAt = p.PausedAt + duration.Milliseconds()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses = append(m.pauses, p)
}

// ClearTradingPauses drops every pause, expired or not.
func (m *Manager) ClearTradingPauses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses = nil
}

// ActivePauses returns the pauses still in force. Expiry is lazy:
// nothing removes an expired pause from the list, it simply stops
// being reported here.
func (m *Manager) ActivePauses() []TradingPause {
	now := time.Now().UnixMilli()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []TradingPause
	for _, p := range m.pauses {
		if p.active(now) {
			active = append(active, p)
		}
	}
	return active
}

// IsTradingAllowed reports whether orders may be placed right now:
// the bot must be running and no pause may be in force.
func (m *Manager) IsTradingAllowed() bool {
	now := time.Now().UnixMilli()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateRunning {
		return false
	}
	for _, p := range m.pauses {
		if p.active(now) {
			return false
		}
	}
	return true
}

// SetMetadata stores an arbitrary value under key. The map carries no
// schema; it is an extension point for callers.
func (m *Manager) SetMetadata(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
}

// GetMetadata returns the value for key, or def when absent.
func (m *Manager) GetMetadata(key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.metadata[key]; ok {
		return v
	}
	return def
}
