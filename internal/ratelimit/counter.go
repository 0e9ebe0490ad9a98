// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one check-and-increment attempt.
type Decision struct {
	Allowed           bool
	Remaining         int
	RetryAfterSeconds int
}

// Counter is a keyed rolling-window call counter. TryConsume atomically
// checks the count for key within the trailing window against ceiling
// and, when below it, registers the current call. RetryAfterSeconds is
// the time until the oldest counted call ages out of the window.
type Counter interface {
	TryConsume(ctx context.Context, key string, ceiling int, window time.Duration) (Decision, error)
}
