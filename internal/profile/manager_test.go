package profile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profile-sync/internal/auth"
	"github.com/profile-sync/internal/domain"
)

func TestManagerSessionIsCreatedOnce(t *testing.T) {
	f := newFixture(t)
	f.source.profiles["u1"] = &domain.Profile{ID: "u1", DisplayName: "Mario"}

	m := NewManager(f.deps, nil, f.deps.Logger)
	defer m.Close()

	s1 := m.Session(context.Background(), "u1")
	s2 := m.Session(context.Background(), "u1")
	assert.Same(t, s1, s2)

	p := s1.Profile()
	require.NotNil(t, p)
	assert.Equal(t, "Mario", p.DisplayName)
}

func TestManagerPeek(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil, f.deps.Logger)
	defer m.Close()

	_, ok := m.Peek("u1")
	assert.False(t, ok)

	m.Session(context.Background(), "u1")
	_, ok = m.Peek("u1")
	assert.True(t, ok)
}

func TestManagerSignInLoadsSession(t *testing.T) {
	f := newFixture(t)
	f.source.profiles["u1"] = &domain.Profile{ID: "u1", DisplayName: "Mario"}

	authn := auth.NewMemory()
	m := NewManager(f.deps, authn, f.deps.Logger)
	defer m.Close()

	authn.SignIn("u1")

	assert.Eventually(t, func() bool {
		s, ok := m.Peek("u1")
		if !ok {
			return false
		}
		p := s.Profile()
		return p != nil && p.DisplayName == "Mario"
	}, time.Second, 10*time.Millisecond)
}

func TestManagerSignOutEvictsSessionAndCache(t *testing.T) {
	f := newFixture(t)
	f.source.profiles["u1"] = &domain.Profile{ID: "u1", DisplayName: "Mario"}

	authn := auth.NewMemory()
	m := NewManager(f.deps, authn, f.deps.Logger)
	defer m.Close()

	authn.SignIn("u1")
	assert.Eventually(t, func() bool {
		_, ok := m.Peek("u1")
		return ok
	}, time.Second, 10*time.Millisecond)

	authn.SignOut()
	assert.Eventually(t, func() bool {
		_, ok := m.Peek("u1")
		return !ok
	}, time.Second, 10*time.Millisecond)

	// Sign-out clears the persistent cache entry too.
	assert.Eventually(t, func() bool {
		_, ok := f.cache.Read("u1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestManagerSwitchingUsersEvictsPrevious(t *testing.T) {
	f := newFixture(t)
	f.source.profiles["u1"] = &domain.Profile{ID: "u1"}
	f.source.profiles["u2"] = &domain.Profile{ID: "u2"}

	authn := auth.NewMemory()
	m := NewManager(f.deps, authn, f.deps.Logger)
	defer m.Close()

	authn.SignIn("u1")
	assert.Eventually(t, func() bool {
		_, ok := m.Peek("u1")
		return ok
	}, time.Second, 10*time.Millisecond)

	authn.SignIn("u2")
	assert.Eventually(t, func() bool {
		_, u1Alive := m.Peek("u1")
		_, u2Alive := m.Peek("u2")
		return !u1Alive && u2Alive
	}, time.Second, 10*time.Millisecond)
}

func TestManagerCloseShutsDownSessions(t *testing.T) {
	f := newFixture(t)
	f.source.profiles["u1"] = &domain.Profile{ID: "u1"}

	m := NewManager(f.deps, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Session(context.Background(), "u1")
	m.Close()

	_, ok := m.Peek("u1")
	assert.False(t, ok)
}
