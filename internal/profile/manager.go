package profile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/profile-sync/internal/auth"
)

// Manager owns one Session per user and reacts to authentication
// transitions: sign-in runs the full load pipeline for the new identifier,
// sign-out clears that user's in-memory state and cache entry.
type Manager struct {
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	cancelAuth func()
}

// NewManager creates a session manager. Pass a nil authenticator when
// session transitions are driven purely by the HTTP surface.
func NewManager(deps Deps, authenticator auth.Authenticator, logger *slog.Logger) *Manager {
	m := &Manager{
		deps:     deps,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	if authenticator != nil {
		m.cancelAuth = authenticator.Subscribe(m.onAuthEvent)
	}
	return m
}

// Session returns the session for a user, creating and loading it on first
// use. The initial load is synchronous only on the cache-miss path, per the
// loader's contract.
func (m *Manager) Session(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		s = NewSession(userID, m.deps)
		m.sessions[userID] = s
	}
	m.mu.Unlock()

	if !ok {
		s.Load(ctx)
	}
	return s
}

// Peek returns an existing session without creating one.
func (m *Manager) Peek(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Close shuts down every session and the auth subscription.
func (m *Manager) Close() {
	if m.cancelAuth != nil {
		m.cancelAuth()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
	m.sessions = make(map[string]*Session)
}

func (m *Manager) onAuthEvent(evt auth.Event) {
	switch evt.Type {
	case auth.SignedIn:
		m.logger.Info("user signed in, loading profile", "user_id", evt.UserID)
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		m.Session(ctx, evt.UserID)

	case auth.SignedOut:
		m.mu.Lock()
		s, ok := m.sessions[evt.UserID]
		if ok {
			delete(m.sessions, evt.UserID)
		}
		m.mu.Unlock()
		if ok {
			m.logger.Info("user signed out, evicting session", "user_id", evt.UserID)
			s.Reset()
			s.Close()
		}
	}
}
