package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/profile-sync/internal/bus"
)

func TestValidSignal(t *testing.T) {
	assert.True(t, validSignal(SignalMessage{Signal: bus.ProfileSyncComplete, UserID: "u1"}))
	assert.True(t, validSignal(SignalMessage{Signal: bus.PointsUpdated, UserID: "u1"}))

	// Unknown names and unscoped signals are dropped.
	assert.False(t, validSignal(SignalMessage{Signal: "leaderboard-updated", UserID: "u1"}))
	assert.False(t, validSignal(SignalMessage{Signal: bus.PointsUpdated}))
	assert.False(t, validSignal(SignalMessage{}))
}
