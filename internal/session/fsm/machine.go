package fsm

import "sync"

// State describes the lifecycle of one conversation session instance.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// Machine is a lightweight deterministic session state machine. Closed and
// Error are terminal; a fresh conversation needs a fresh machine.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// New creates a state machine in idle.
func New() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TryStart claims the machine for connection setup. It reports false when the
// session already started.
func (m *Machine) TryStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return false
	}
	m.state = StateConnecting
	return true
}

// MarkConnected confirms the channel opened. It reports false when teardown
// won the race during setup.
func (m *Machine) MarkConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnecting {
		return false
	}
	m.state = StateConnected
	return true
}

// MarkClosed ends the session normally. An error outcome already recorded is
// preserved.
func (m *Machine) MarkClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed || m.state == StateError {
		return false
	}
	m.state = StateClosed
	return true
}

// MarkError ends the session with a fault. It reports false when the session
// already reached a terminal state.
func (m *Machine) MarkError() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed || m.state == StateError {
		return false
	}
	m.state = StateError
	return true
}

// Terminal reports whether the machine reached closed or error.
func (m *Machine) Terminal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Terminal()
}

// Terminal reports whether the state is closed or error.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}
