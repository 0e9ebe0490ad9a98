// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/auth"
	"github.com/mavrk/apihub/internal/domain"
)

const healthzPath = "/healthz"
const metricsPath = "/metrics"
const versionPath = "/version"
const loginPath = "/login"

type TokenVerifier interface {
	Verify(raw string) (uuid.UUID, domain.Role, error)
}

type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// SessionAuth enforces bearer-token authentication for all routes except
// /healthz, /metrics, /version, and /login; verifies the session token,
// loads the caller, and stores it on request context.
func SessionAuth(verifier TokenVerifier, users UserSource, logger *slog.Logger) func(http.Handler) http.Handler {
	if verifier == nil {
		panic("middleware.SessionAuth requires a token verifier")
	}
	if users == nil {
		panic("middleware.SessionAuth requires a user source")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case healthzPath, metricsPath, versionPath, loginPath:
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				logger.Warn("request blocked by session middleware",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "missing or invalid session token", http.StatusUnauthorized)
				return
			}

			userID, _, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("session token rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "missing or invalid session token", http.StatusUnauthorized)
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				logger.Warn("session user lookup failed",
					"path", r.URL.Path,
					"user_id", userID,
					"error", err,
				)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "missing or invalid session token", http.StatusUnauthorized)
				return
			}

			// Preserve authenticated context on the current request pointer so
			// outer middleware (request logging) can read user_id after next returns.
			*r = *r.WithContext(auth.WithUser(r.Context(), user))
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	schemeToken := strings.SplitN(header, " ", 2)
	if len(schemeToken) != 2 {
		return "", false
	}
	if !strings.EqualFold(schemeToken[0], "Bearer") {
		return "", false
	}
	if schemeToken[1] == "" {
		return "", false
	}
	return schemeToken[1], true
}
