// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/domain"
)

type userContextKey struct{}
type denialContextKey struct{}
type apiContextKey struct{}

var ctxUserKey userContextKey
var ctxDenialKey denialContextKey
var ctxAPIKey apiContextKey

// Denial is a structured access-gate refusal carried on the request
// context. The gate never aborts the chain itself; the call handler reads
// the denial and renders it, and must never invoke the dispatcher when
// one is present.
type Denial struct {
	Status            int    `json:"status"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// WithUser stores the authenticated caller on the request context.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, user)
}

// UserFromContext reads the authenticated caller from context.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(ctxUserKey).(domain.User)
	if !ok || user.ID == uuid.Nil {
		return domain.User{}, false
	}
	return user, true
}

func WithDenial(ctx context.Context, denial Denial) context.Context {
	return context.WithValue(ctx, ctxDenialKey, denial)
}

func DenialFromContext(ctx context.Context) (Denial, bool) {
	denial, ok := ctx.Value(ctxDenialKey).(Denial)
	if !ok || denial.Status == 0 {
		return Denial{}, false
	}
	return denial, true
}

// WithAPI caches the gate-resolved API so the call handler does not fetch
// it a second time.
func WithAPI(ctx context.Context, api domain.API) context.Context {
	return context.WithValue(ctx, ctxAPIKey, api)
}

func APIFromContext(ctx context.Context) (domain.API, bool) {
	api, ok := ctx.Value(ctxAPIKey).(domain.API)
	if !ok || api.ID == uuid.Nil {
		return domain.API{}, false
	}
	return api, true
}
