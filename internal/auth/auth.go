// Package auth defines the boundary to the authentication subsystem. The
// sync layer consumes only the current user identifier and a stream of
// session transitions; it never authenticates anyone itself.
package auth

import "sync"

// EventType is a session transition kind.
type EventType int

const (
	SignedIn EventType = iota
	SignedOut
)

// Event carries a session transition and the identifier it concerns. A
// sign-out names the user whose session ended so per-user state can be
// evicted.
type Event struct {
	Type   EventType
	UserID string
}

// Authenticator is the contract the authentication subsystem fulfils.
type Authenticator interface {
	// CurrentUserID returns the signed-in user, or false when nobody is.
	CurrentUserID() (string, bool)
	// Subscribe registers a session-transition handler and returns a cancel
	// function.
	Subscribe(fn func(Event)) func()
}

// Memory is a minimal in-process Authenticator used for wiring and tests.
type Memory struct {
	mu     sync.RWMutex
	userID string
	nextID int
	subs   map[int]func(Event)
}

// NewMemory creates an authenticator with no session.
func NewMemory() *Memory {
	return &Memory{subs: make(map[int]func(Event))}
}

// CurrentUserID returns the signed-in user, if any.
func (m *Memory) CurrentUserID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID, m.userID != ""
}

// Subscribe registers a session-transition handler.
func (m *Memory) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SignIn starts a session for the given user, signing out any prior one.
func (m *Memory) SignIn(userID string) {
	m.mu.Lock()
	prev := m.userID
	m.userID = userID
	handlers := m.snapshot()
	m.mu.Unlock()

	if prev != "" && prev != userID {
		for _, fn := range handlers {
			go fn(Event{Type: SignedOut, UserID: prev})
		}
	}
	for _, fn := range handlers {
		go fn(Event{Type: SignedIn, UserID: userID})
	}
}

// SignOut ends the current session.
func (m *Memory) SignOut() {
	m.mu.Lock()
	prev := m.userID
	m.userID = ""
	handlers := m.snapshot()
	m.mu.Unlock()

	if prev == "" {
		return
	}
	for _, fn := range handlers {
		go fn(Event{Type: SignedOut, UserID: prev})
	}
}

func (m *Memory) snapshot() []func(Event) {
	out := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}
