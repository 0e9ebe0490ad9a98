// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryCounter keeps per-key call timestamps in memory. The mutex makes
// the check-and-increment sequence atomic per process, so two concurrent
// calls cannot both slip through just under the ceiling. For multi-node
// deployments use the Redis counter instead.
type MemoryCounter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		hits: make(map[string][]time.Time, 32),
		now:  time.Now,
	}
}

func (c *MemoryCounter) TryConsume(_ context.Context, key string, ceiling int, window time.Duration) (Decision, error) {
	if ceiling <= 0 {
		ceiling = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-window)

	kept := c.hits[key][:0]
	for _, ts := range c.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.hits[key] = kept

	if len(kept) >= ceiling {
		oldest := kept[0]
		wait := int(math.Ceil(oldest.Add(window).Sub(now).Seconds()))
		if wait < 1 {
			wait = 1
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfterSeconds: wait}, nil
	}

	c.hits[key] = append(kept, now)
	return Decision{Allowed: true, Remaining: ceiling - len(kept) - 1}, nil
}
