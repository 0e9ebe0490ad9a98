// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mavrk/apihub/internal/auth"
)

// RequireAdmin restricts a route group to admin callers. It must sit
// inside SessionAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "missing or invalid session token", http.StatusUnauthorized)
				return
			}

			if !user.IsAdmin() {
				logger.Warn("admin route denied",
					"path", r.URL.Path,
					"user_id", user.ID,
				)
				http.Error(w, "admin access required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
