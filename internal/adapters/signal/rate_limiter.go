package signal

import (
	"sync"
	"time"

	"github.com/dkeye/ucode/internal/domain"
)

// RoomRateLimiter is a sliding window of attempts per identity.
type RoomRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.Identity][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// sweepAt bounds how many idle identities are kept around.
const sweepAt = 4096

func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		history:  make(map[domain.Identity][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RoomRateLimiter) Allow(id domain.Identity) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	fresh := freshSince(rl.history[id], windowStart)
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}
	rl.history[id] = append(fresh, now)

	if len(rl.history) > sweepAt {
		for k, attempts := range rl.history {
			if len(freshSince(attempts, windowStart)) == 0 {
				delete(rl.history, k)
			}
		}
	}
	return true
}

func freshSince(attempts []time.Time, start time.Time) []time.Time {
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(start) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
