// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/access"
	"github.com/mavrk/apihub/internal/auth"
	"github.com/mavrk/apihub/internal/domain"
)

type APISource interface {
	GetAPI(ctx context.Context, id uuid.UUID) (domain.API, error)
}

// AccessGate resolves the {apiID} route parameter, runs the access gate
// for the authenticated caller, and carries the verdict on request
// context. A denial never aborts the chain here; the call handler reads
// it and renders the envelope, so the response shape stays uniform.
func AccessGate(gate *access.Gate, apis APISource, logger *slog.Logger) func(http.Handler) http.Handler {
	if gate == nil {
		panic("middleware.AccessGate requires a gate")
	}
	if apis == nil {
		panic("middleware.AccessGate requires an api source")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
			if err != nil {
				http.Error(w, "invalid API ID", http.StatusBadRequest)
				return
			}

			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "missing or invalid session token", http.StatusUnauthorized)
				return
			}

			api, err := apis.GetAPI(r.Context(), apiID)
			if err != nil {
				if errors.Is(err, domain.ErrAPINotFound) {
					http.Error(w, "API not found", http.StatusNotFound)
					return
				}
				logger.Error("gate api lookup failed", "api_id", apiID, "error", err)
				http.Error(w, "access check failed", http.StatusInternalServerError)
				return
			}

			decision := gate.Check(r.Context(), user, api)
			ctx := auth.WithAPI(r.Context(), api)
			if !decision.Allowed {
				ctx = auth.WithDenial(ctx, auth.Denial{
					Status:            decision.Status,
					Message:           decision.Message,
					RetryAfterSeconds: decision.RetryAfterSeconds,
				})
			}

			*r = *r.WithContext(ctx)
			next.ServeHTTP(w, r)
		})
	}
}
