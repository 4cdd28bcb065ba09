// Package bus is the explicit in-process publish/subscribe channel between
// the sync layer and its collaborators. It replaces any ambient global event
// mechanism: every producer and consumer receives the bus by injection.
package bus

import (
	"log/slog"
	"sync"
)

// Well-known signal names. Any subsystem may publish these to request a
// targeted reload; they are the sync layer's only externally-triggerable
// invalidation mechanism.
const (
	ProfileSyncComplete = "profile-sync-complete"
	PointsUpdated       = "points-updated"
)

// Event is a user-scoped signal.
type Event struct {
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// Bus dispatches events to subscribers asynchronously. Handlers run on their
// own goroutine so a slow subscriber never blocks a publisher.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(Event)
	logger *slog.Logger
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[int]func(Event)),
		logger: logger,
	}
}

// Subscribe registers a handler for a signal name and returns a cancel
// function. Cancelling twice is harmless.
func (b *Bus) Subscribe(name string, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[name] == nil {
		b.subs[name] = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.subs[name][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.subs[name]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subs, name)
			}
		}
	}
}

// Publish delivers an event to every subscriber of its name.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs[evt.Name]))
	for _, fn := range b.subs[evt.Name] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing event", "name", evt.Name, "user_id", evt.UserID, "subscribers", len(handlers))
	for _, fn := range handlers {
		go fn(evt)
	}
}
