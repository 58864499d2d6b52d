// Package session tracks the administrator's broadcast-collection state.
//
// A session is either idle or collecting. While collecting it accumulates
// an ordered buffer of messages; Flush hands the buffer to the caller and
// resets the session. State is in-memory only: a restart loses an
// in-flight session by design.
package session

import (
	"errors"
	"sync"
)

var (
	// ErrNoSession is returned when flushing without an active session.
	ErrNoSession = errors.New("no active broadcast session")

	// ErrNoMessages is returned when flushing an empty buffer. The session
	// stays active so the administrator can keep sending messages.
	ErrNoMessages = errors.New("no messages to broadcast")
)

type state struct {
	active bool
	buffer []Message
}

// Manager holds one session per administrator identity. The map form keeps
// the door open for multiple admins even though exactly one is trusted
// today; only the command router gates who may drive transitions.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*state
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*state)}
}

func (m *Manager) get(adminID int64) *state {
	st := m.sessions[adminID]
	if st == nil {
		st = &state{}
		m.sessions[adminID] = st
	}
	return st
}

// Begin enters collecting mode with an empty buffer. Calling it while
// already collecting resets the buffer rather than erroring.
func (m *Manager) Begin(adminID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.get(adminID)
	st.active = true
	st.buffer = nil
}

// Active reports whether a collection session is in progress.
func (m *Manager) Active(adminID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(adminID).active
}

// Append adds a message to the buffer and returns the new buffer length.
// It is a no-op returning ok=false when no session is active.
func (m *Manager) Append(adminID int64, msg Message) (n int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.get(adminID)
	if !st.active {
		return 0, false
	}
	st.buffer = append(st.buffer, msg)
	return len(st.buffer), true
}

// Flush returns the buffered messages and resets the session to idle.
//
// Flushing while idle returns ErrNoSession; flushing an active session
// with an empty buffer returns ErrNoMessages and leaves it collecting.
func (m *Manager) Flush(adminID int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.get(adminID)
	if !st.active {
		return nil, ErrNoSession
	}
	if len(st.buffer) == 0 {
		return nil, ErrNoMessages
	}
	msgs := st.buffer
	st.active = false
	st.buffer = nil
	return msgs, nil
}
