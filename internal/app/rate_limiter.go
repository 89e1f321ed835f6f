package app

import (
	"sync"
	"time"

	"github.com/parlor-chat/parlor/internal/core"
)

// RateLimiter gates message creation to one accepted post per session
// per interval, measured from the last *accepted* call. Rejected calls
// do not touch the timestamp, so repeated attempts never extend the
// lockout.
type RateLimiter struct {
	mu       sync.Mutex
	last     map[core.SessionID]time.Time
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		last:     make(map[core.SessionID]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if last, ok := rl.last[sid]; ok && now.Sub(last) < rl.interval {
		return false
	}
	rl.last[sid] = now
	return true
}

// Forget drops the session's record; called when the registry unbinds so
// the table does not grow for the process lifetime.
func (rl *RateLimiter) Forget(sid core.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.last, sid)
}
