// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryCounterEnforcesCeiling(t *testing.T) {
	counter := NewMemoryCounter()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := counter.TryConsume(ctx, "api:a:user:u", 3, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		if d.Remaining != 3-i-1 {
			t.Fatalf("call %d: expected remaining %d got %d", i+1, 3-i-1, d.Remaining)
		}
	}

	d, err := counter.TryConsume(ctx, "api:a:user:u", 3, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth call should be rejected")
	}
	if d.RetryAfterSeconds != 3600 {
		t.Fatalf("expected retry after 3600s, got %d", d.RetryAfterSeconds)
	}
}

func TestMemoryCounterWindowSlides(t *testing.T) {
	counter := NewMemoryCounter()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }

	ctx := context.Background()

	if d, _ := counter.TryConsume(ctx, "k", 1, time.Hour); !d.Allowed {
		t.Fatal("first call should be allowed")
	}

	now = now.Add(30 * time.Minute)
	d, _ := counter.TryConsume(ctx, "k", 1, time.Hour)
	if d.Allowed {
		t.Fatal("second call inside the window should be rejected")
	}
	if d.RetryAfterSeconds != 1800 {
		t.Fatalf("expected retry after 1800s, got %d", d.RetryAfterSeconds)
	}

	now = now.Add(31 * time.Minute)
	if d, _ := counter.TryConsume(ctx, "k", 1, time.Hour); !d.Allowed {
		t.Fatal("call after the window slid should be allowed")
	}
}

func TestMemoryCounterKeysAreIndependent(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()

	if d, _ := counter.TryConsume(ctx, "api:a:user:u", 1, time.Hour); !d.Allowed {
		t.Fatal("first key should be allowed")
	}
	if d, _ := counter.TryConsume(ctx, "api:b:user:u", 1, time.Hour); !d.Allowed {
		t.Fatal("second key should be allowed")
	}
	if d, _ := counter.TryConsume(ctx, "api:a:user:u", 1, time.Hour); d.Allowed {
		t.Fatal("first key should now be at its ceiling")
	}
}

func TestMemoryCounterConcurrentConsume(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()

	const ceiling = 50
	const attempts = 200

	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := counter.TryConsume(ctx, "hot", ceiling, time.Hour)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			allowed <- d.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != ceiling {
		t.Fatalf("expected exactly %d allowed calls, got %d", ceiling, count)
	}
}
