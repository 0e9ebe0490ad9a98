// SPDX-License-Identifier: Apache-2.0

package access

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/domain"
	"github.com/mavrk/apihub/internal/metrics"
	"github.com/mavrk/apihub/internal/ratelimit"
)

const (
	msgInactive     = "This API is currently inactive"
	msgNoDepartment = "You do not have access to this API. Access is limited based on your active department assignments."
	msgCheckFailed  = "access check failed"
)

// GrantSource enumerates the rate limits granted to a user for one API
// through that user's active department memberships. An empty slice means
// no qualifying department exists.
type GrantSource interface {
	RateLimitsForUser(ctx context.Context, userID, apiID uuid.UUID) ([]int, error)
}

// Decision is the gate's verdict for one call attempt.
type Decision struct {
	Allowed           bool
	Status            int
	Message           string
	RetryAfterSeconds int
	RateLimit         int
}

func allow() Decision {
	return Decision{Allowed: true}
}

// Gate decides, before dispatch, whether a caller may invoke an API and
// enforces the effective rate ceiling. It fails closed: any error while
// evaluating memberships or rate state becomes a denial, never a grant.
type Gate struct {
	grants  GrantSource
	counter ratelimit.Counter
	logger  *slog.Logger
}

func NewGate(grants GrantSource, counter ratelimit.Counter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		grants:  grants,
		counter: counter,
		logger:  logger,
	}
}

// Check runs the decision order: admin bypass, API active flag,
// department grants, then the rolling-window rate counter keyed by
// (api, caller). Admins skip every later step including rate limiting.
func (g *Gate) Check(ctx context.Context, user domain.User, api domain.API) Decision {
	if user.IsAdmin() {
		return allow()
	}

	if !api.Active {
		g.logger.Warn("inactive api access attempt", "user_id", user.ID, "api_id", api.ID)
		metrics.IncAccessDenial("inactive")
		return Decision{Status: http.StatusForbidden, Message: msgInactive}
	}

	limits, err := g.grants.RateLimitsForUser(ctx, user.ID, api.ID)
	if err != nil {
		g.logger.Error("department grant lookup failed", "user_id", user.ID, "api_id", api.ID, "error", err)
		metrics.IncAccessDenial("check_failed")
		return Decision{Status: http.StatusInternalServerError, Message: msgCheckFailed}
	}

	if len(limits) == 0 {
		g.logger.Warn("api access denied", "user_id", user.ID, "api_id", api.ID)
		metrics.IncAccessDenial("no_department")
		return Decision{Status: http.StatusForbidden, Message: msgNoDepartment}
	}

	// The most permissive qualifying department wins.
	ceiling := limits[0]
	for _, limit := range limits[1:] {
		if limit > ceiling {
			ceiling = limit
		}
	}
	if ceiling <= 0 {
		ceiling = api.RateLimit
	}
	if ceiling <= 0 {
		ceiling = domain.DefaultRateLimit
	}
	if ceiling > domain.MaxRateLimit {
		ceiling = domain.MaxRateLimit
	}

	key := fmt.Sprintf("api:%s:user:%s", api.ID, user.ID)
	decision, err := g.counter.TryConsume(ctx, key, ceiling, domain.RateLimitWindow)
	if err != nil {
		g.logger.Error("rate counter failed", "user_id", user.ID, "api_id", api.ID, "error", err)
		metrics.IncAccessDenial("check_failed")
		return Decision{Status: http.StatusInternalServerError, Message: msgCheckFailed}
	}

	if !decision.Allowed {
		metrics.IncRateLimitRejection()
		metrics.IncAccessDenial("rate_limited")
		return Decision{
			Status:            http.StatusTooManyRequests,
			Message:           fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", decision.RetryAfterSeconds),
			RetryAfterSeconds: decision.RetryAfterSeconds,
			RateLimit:         ceiling,
		}
	}

	d := allow()
	d.RateLimit = ceiling
	return d
}
