package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneInterval bounds how often the limiter sweeps identities that went idle.
const pruneInterval = 5 * time.Minute

// MemoryLimiter is a process-local sliding-window limiter. Correct within a single
// process instance; deployments spanning several processes should use RedisLimiter.
type MemoryLimiter struct {
	mu        sync.Mutex
	records   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter constructs an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		records: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check prunes the identity's window and admits the request if capacity remains.
// Access to the record map is serialized; concurrent requests from the same user
// must not both observe stale capacity.
func (l *MemoryLimiter) Check(_ context.Context, identity string, tier Tier) (Decision, error) {
	limit := tier.Limit()
	windowDuration := tier.Window()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-windowDuration)

	timestamps := l.records[identity]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	l.sweepLocked(now)

	if len(kept) >= limit {
		l.records[identity] = kept
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   kept[0].Add(windowDuration),
		}, nil
	}

	kept = append(kept, now)
	l.records[identity] = kept

	return Decision{
		Allowed:   true,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(windowDuration),
	}, nil
}

// sweepLocked lazily drops identities whose entire window has elapsed.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < pruneInterval {
		return
	}
	l.lastSweep = now

	cutoff := now.Add(-window)
	for identity, timestamps := range l.records {
		stale := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.records, identity)
		}
	}
}
