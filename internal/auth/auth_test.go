package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestMemoryCurrentUser(t *testing.T) {
	m := NewMemory()

	_, ok := m.CurrentUserID()
	assert.False(t, ok)

	m.SignIn("u1")
	id, ok := m.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	m.SignOut()
	_, ok = m.CurrentUserID()
	assert.False(t, ok)
}

func TestMemorySignInEmitsEvent(t *testing.T) {
	m := NewMemory()
	r := &recorder{}
	m.Subscribe(r.record)

	m.SignIn("u1")

	assert.Eventually(t, func() bool {
		evts := r.snapshot()
		return len(evts) == 1 && evts[0] == Event{Type: SignedIn, UserID: "u1"}
	}, time.Second, 10*time.Millisecond)
}

func TestMemorySwitchingUsersSignsOutPrevious(t *testing.T) {
	m := NewMemory()
	r := &recorder{}
	m.Subscribe(r.record)

	m.SignIn("u1")
	m.SignIn("u2")

	assert.Eventually(t, func() bool {
		var sawOut, sawIn bool
		for _, evt := range r.snapshot() {
			if evt == (Event{Type: SignedOut, UserID: "u1"}) {
				sawOut = true
			}
			if evt == (Event{Type: SignedIn, UserID: "u2"}) {
				sawIn = true
			}
		}
		return sawOut && sawIn
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCancelStopsDelivery(t *testing.T) {
	m := NewMemory()
	r := &recorder{}
	cancel := m.Subscribe(r.record)
	cancel()

	m.SignIn("u1")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, r.snapshot())
}

func TestMemorySignOutWithoutSessionIsNoop(t *testing.T) {
	m := NewMemory()
	r := &recorder{}
	m.Subscribe(r.record)

	m.SignOut()
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, r.snapshot())
}
