package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a@x.com"))
	assert.True(t, rl.Allow("a@x.com"))
	assert.False(t, rl.Allow("a@x.com"))
	assert.True(t, rl.Allow("b@x.com"), "limits are per identity")

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow("a@x.com"))
}

func TestRoomRateLimiterSweepsIdleIdentities(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRoomRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	for i := 0; i <= sweepAt; i++ {
		rl.Allow(domainID(i))
	}
	now = now.Add(2 * time.Second)
	rl.Allow("late@x.com")

	assert.Len(t, rl.history, 1)
}
