package session

import (
	"sync"
	"time"
)

// RateLimiter allows at most limit requests per key within a sliding window.
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) IsAllowed(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	if requests, exists := rl.requests[key]; exists {
		valid := requests[:0]
		for _, t := range requests {
			if now.Sub(t) < rl.window {
				valid = append(valid, t)
			}
		}
		rl.requests[key] = valid
	}

	if len(rl.requests[key]) >= rl.limit {
		return false
	}

	rl.requests[key] = append(rl.requests[key], now)
	return true
}

// Prune forgets keys with no requests inside the window.
func (rl *RateLimiter) Prune() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, requests := range rl.requests {
		if len(requests) == 0 || now.Sub(requests[len(requests)-1]) >= rl.window {
			delete(rl.requests, key)
		}
	}
}
