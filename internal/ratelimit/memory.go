package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local Limiter. Hit logs are lost on restart and
// not shared between instances, which is fine for development and tests.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// WithClock swaps the time source. Tests use it to slide the window.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, rule Rule, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := storageKey(rule, key)

	log := prune(l.hits[k], now, rule.Window)
	allowed := len(log) < rule.Limit
	if allowed {
		log = append(log, now)
	}
	l.hits[k] = log

	// Drop idle keys opportunistically so the map doesn't grow forever.
	if len(l.hits) > 10000 {
		for other, times := range l.hits {
			if len(prune(times, now, rule.Window)) == 0 {
				delete(l.hits, other)
			}
		}
	}

	resetAfter := rule.Window
	if len(log) > 0 {
		resetAfter = log[0].Add(rule.Window).Sub(now)
	}
	return result(rule, allowed, int64(len(log)), resetAfter), nil
}

// prune drops hits that have slid out of the window. log is in hit order.
func prune(log []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(log) && now.Sub(log[i]) >= window {
		i++
	}
	return log[i:]
}
