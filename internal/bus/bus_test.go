package bus

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishReachesSubscribers(t *testing.T) {
	b := testBus()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})

	b.Subscribe(PointsUpdated, func(evt Event) {
		mu.Lock()
		got = append(got, evt)
		mu.Unlock()
		close(done)
	})

	b.Publish(Event{Name: PointsUpdated, UserID: "u1"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Event{{Name: PointsUpdated, UserID: "u1"}}, got)
}

func TestPublishIgnoresOtherSignals(t *testing.T) {
	b := testBus()

	called := make(chan struct{}, 1)
	b.Subscribe(ProfileSyncComplete, func(Event) {
		called <- struct{}{}
	})

	b.Publish(Event{Name: PointsUpdated, UserID: "u1"})

	select {
	case <-called:
		t.Fatal("handler invoked for a signal it did not subscribe to")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := testBus()

	called := make(chan struct{}, 1)
	cancel := b.Subscribe(PointsUpdated, func(Event) {
		called <- struct{}{}
	})

	cancel()
	// Cancelling twice is harmless.
	cancel()

	b.Publish(Event{Name: PointsUpdated, UserID: "u1"})

	select {
	case <-called:
		t.Fatal("handler invoked after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := testBus()

	var wg sync.WaitGroup
	wg.Add(2)
	b.Subscribe(ProfileSyncComplete, func(Event) { wg.Done() })
	b.Subscribe(ProfileSyncComplete, func(Event) { wg.Done() })

	b.Publish(Event{Name: ProfileSyncComplete, UserID: "u1"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all handlers were invoked")
	}
}
