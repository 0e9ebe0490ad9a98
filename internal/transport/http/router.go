// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/access"
	"github.com/mavrk/apihub/internal/auth"
	"github.com/mavrk/apihub/internal/domain"
	"github.com/mavrk/apihub/internal/metrics"
	"github.com/mavrk/apihub/internal/proxy"
	"github.com/mavrk/apihub/internal/transport/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxMultipartMemory = 32 << 20

const defaultStatsTimeframe = 3600 // seconds

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createAPIRequest struct {
	Name      string `json:"name"`
	BaseURL   string `json:"base_url"`
	RateLimit int    `json:"rate_limit"`
}

type createEndpointRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Method      string             `json:"method"`
	Path        string             `json:"path"`
	Parameters  []domain.Parameter `json:"parameters"`
}

type createDepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type callRequest struct {
	EndpointID uuid.UUID      `json:"endpoint_id"`
	Values     map[string]any `json:"values"`
}

type draftCallRequest struct {
	BaseURL  string                `json:"base_url"`
	Endpoint createEndpointRequest `json:"endpoint"`
	Values   map[string]any        `json:"values"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type Deps struct {
	APIs        APIStore
	Departments DepartmentStore
	Usage       UsageQuerier
	Users       UserStore
	Dispatcher  Caller
	Sessions    SessionIssuer
	Gate        *access.Gate
	Health      HealthChecker
	Logger      *slog.Logger
	Version     string
	Commit      string
	BuildDate   string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		if deps.Health != nil {
			if err := deps.Health.Check(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- LOGIN ----------------

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSONBody(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		user, err := deps.Users.GetByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			logger.Error("login lookup failed", "error", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}

		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			logger.Warn("login rejected", "user_id", user.ID)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		token, err := deps.Sessions.Issue(user)
		if err != nil {
			logger.Error("issue session token failed", "user_id", user.ID, "error", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"token": token,
			"user":  user,
		})
	})

	// ---------------- AUTHENTICATED SURFACE ----------------

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(deps.Sessions, deps.Users, logger))

		// ---------------- API CATALOG ----------------

		r.Get("/apis", func(w http.ResponseWriter, r *http.Request) {
			apis, err := deps.APIs.ListAPIs(r.Context())
			if err != nil {
				logger.Error("list apis failed", "error", err)
				http.Error(w, "failed to list APIs", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"apis": apis})
		})

		r.Get("/apis/{apiID}", func(w http.ResponseWriter, r *http.Request) {
			apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
			if err != nil {
				http.Error(w, "invalid API ID", http.StatusBadRequest)
				return
			}

			api, err := deps.APIs.GetAPI(r.Context(), apiID)
			if err != nil {
				if errors.Is(err, domain.ErrAPINotFound) {
					http.Error(w, "API not found", http.StatusNotFound)
					return
				}
				logger.Error("get api failed", "api_id", apiID, "error", err)
				http.Error(w, "failed to get API", http.StatusInternalServerError)
				return
			}

			endpoints, err := deps.APIs.ListEndpoints(r.Context(), apiID)
			if err != nil {
				logger.Error("list endpoints failed", "api_id", apiID, "error", err)
				http.Error(w, "failed to get API", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"api":       api,
				"endpoints": endpoints,
			})
		})

		// ---------------- PROXIED CALL ----------------

		r.With(middleware.AccessGate(deps.Gate, deps.APIs, logger)).
			Post("/apis/{apiID}/call", func(w http.ResponseWriter, r *http.Request) {
				if denial, denied := auth.DenialFromContext(r.Context()); denied {
					if denial.RetryAfterSeconds > 0 {
						w.Header().Set("Retry-After", strconv.Itoa(denial.RetryAfterSeconds))
					}
					writeJSON(w, denial.Status, proxy.Envelope{
						Status: denial.Status,
						Error:  denial.Message,
					})
					return
				}

				api, ok := auth.APIFromContext(r.Context())
				if !ok {
					http.Error(w, "access check failed", http.StatusInternalServerError)
					return
				}
				user, _ := auth.UserFromContext(r.Context())

				req, err := decodeCallRequest(r)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				endpoint, err := deps.APIs.GetEndpoint(r.Context(), api.ID, req.EndpointID)
				if err != nil {
					if errors.Is(err, domain.ErrEndpointNotFound) {
						http.Error(w, "endpoint not found", http.StatusNotFound)
						return
					}
					logger.Error("get endpoint failed", "endpoint_id", req.EndpointID, "error", err)
					http.Error(w, "failed to load endpoint", http.StatusInternalServerError)
					return
				}

				if err := resolveFileValues(endpoint, req.Values); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				env := deps.Dispatcher.Dispatch(r.Context(), proxy.CallInput{
					Endpoint:   endpoint,
					BaseURL:    api.BaseURL,
					Values:     req.Values,
					APIID:      api.ID,
					UserID:     user.ID,
					TrackUsage: true,
				})

				writeJSON(w, env.Status, env)
			})

		// ---------------- USAGE STATS ----------------

		r.Get("/apis/{apiID}/stats", func(w http.ResponseWriter, r *http.Request) {
			apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
			if err != nil {
				http.Error(w, "invalid API ID", http.StatusBadRequest)
				return
			}

			timeframe := defaultStatsTimeframe
			if raw := strings.TrimSpace(r.URL.Query().Get("timeframe")); raw != "" {
				timeframe, err = strconv.Atoi(raw)
				if err != nil || timeframe <= 0 {
					http.Error(w, "invalid timeframe", http.StatusBadRequest)
					return
				}
			}
			since := time.Now().Add(-time.Duration(timeframe) * time.Second)

			summary, err := deps.Usage.Summary(r.Context(), apiID, since)
			if err != nil {
				logger.Error("usage summary failed", "api_id", apiID, "error", err)
				http.Error(w, "failed to load usage stats", http.StatusInternalServerError)
				return
			}
			breakdown, err := deps.Usage.EndpointBreakdown(r.Context(), apiID, since)
			if err != nil {
				logger.Error("endpoint breakdown failed", "api_id", apiID, "error", err)
				http.Error(w, "failed to load usage stats", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"timeframe_seconds": timeframe,
				"summary":           summary,
				"endpoints":         breakdown,
			})
		})

		// ---------------- ADMIN ----------------

		r.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(logger))

			admin.Post("/apis", func(w http.ResponseWriter, r *http.Request) {
				var req createAPIRequest
				if err := decodeJSONBody(r, &req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				user, _ := auth.UserFromContext(r.Context())
				api, err := deps.APIs.CreateAPI(r.Context(), domain.API{
					Name:      strings.TrimSpace(req.Name),
					BaseURL:   req.BaseURL,
					RateLimit: req.RateLimit,
					CreatedBy: user.ID,
				})
				if err != nil {
					if errors.Is(err, domain.ErrInvalidBaseURL) || errors.Is(err, domain.ErrInvalidRateLimit) {
						http.Error(w, err.Error(), http.StatusBadRequest)
						return
					}
					logger.Error("create api failed", "error", err)
					http.Error(w, "failed to create API", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusCreated, api)
			})

			admin.Patch("/apis/{apiID}/active", func(w http.ResponseWriter, r *http.Request) {
				apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
				if err != nil {
					http.Error(w, "invalid API ID", http.StatusBadRequest)
					return
				}

				var req setActiveRequest
				if err := decodeJSONBody(r, &req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				if err := deps.APIs.SetAPIActive(r.Context(), apiID, req.Active); err != nil {
					if errors.Is(err, domain.ErrAPINotFound) {
						http.Error(w, "API not found", http.StatusNotFound)
						return
					}
					logger.Error("set api active failed", "api_id", apiID, "error", err)
					http.Error(w, "failed to update API", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, map[string]any{
					"id":     apiID.String(),
					"active": req.Active,
				})
			})

			admin.Post("/apis/{apiID}/endpoints", func(w http.ResponseWriter, r *http.Request) {
				apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
				if err != nil {
					http.Error(w, "invalid API ID", http.StatusBadRequest)
					return
				}

				var req createEndpointRequest
				if err := decodeJSONBody(r, &req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				draft := domain.Endpoint{
					APIID:       apiID,
					Name:        strings.TrimSpace(req.Name),
					Description: req.Description,
					Method:      strings.ToUpper(strings.TrimSpace(req.Method)),
					Path:        req.Path,
					Parameters:  req.Parameters,
				}
				if err := draft.Validate(); err != nil {
					http.Error(w, err.Error(), http.StatusUnprocessableEntity)
					return
				}

				endpoint, err := deps.APIs.CreateEndpoint(r.Context(), draft)
				if err != nil {
					if errors.Is(err, domain.ErrAPINotFound) {
						http.Error(w, "API not found", http.StatusNotFound)
						return
					}
					logger.Error("create endpoint failed", "api_id", apiID, "error", err)
					http.Error(w, "failed to create endpoint", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusCreated, endpoint)
			})

			// ---------------- DRAFT TEST CALL ----------------

			admin.Post("/apis/test", func(w http.ResponseWriter, r *http.Request) {
				var req draftCallRequest
				if err := decodeJSONBody(r, &req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				if err := domain.ValidateBaseURL(req.BaseURL); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				endpoint := domain.Endpoint{
					Name:        req.Endpoint.Name,
					Description: req.Endpoint.Description,
					Method:      strings.ToUpper(strings.TrimSpace(req.Endpoint.Method)),
					Path:        req.Endpoint.Path,
					Parameters:  req.Endpoint.Parameters,
				}
				if err := endpoint.Validate(); err != nil {
					http.Error(w, err.Error(), http.StatusUnprocessableEntity)
					return
				}

				values := req.Values
				if values == nil {
					values = map[string]any{}
				}
				if err := resolveFileValues(endpoint, values); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				env := deps.Dispatcher.Dispatch(r.Context(), proxy.CallInput{
					Endpoint:   endpoint,
					BaseURL:    req.BaseURL,
					Values:     values,
					TrackUsage: false,
				})

				writeJSON(w, env.Status, env)
			})

			// ---------------- USERS ----------------

			admin.Post("/users", func(w http.ResponseWriter, r *http.Request) {
				var req createUserRequest
				if err := decodeJSONBody(r, &req); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				role := domain.Role(req.Role)
				if role == "" {
					role = domain.RoleMember
				}

				user, err := deps.Users.CreateUser(r.Context(), req.Email, req.Name, req.Password, role)
				if err != nil {
					logger.Error("create user failed", "error", err)
					http.Error(w, "failed to create user", http.StatusBadRequest)
					return
				}

				writeJSON(w, http.StatusCreated, user)
			})

			// ---------------- DEPARTMENTS ----------------

			admin.Route("/departments", func(dr chi.Router) {
				dr.Post("/", func(w http.ResponseWriter, r *http.Request) {
					var req createDepartmentRequest
					if err := decodeJSONBody(r, &req); err != nil {
						http.Error(w, "invalid request body", http.StatusBadRequest)
						return
					}

					user, _ := auth.UserFromContext(r.Context())
					dept, err := deps.Departments.CreateDepartment(r.Context(), domain.Department{
						Name:        strings.TrimSpace(req.Name),
						Description: req.Description,
						CreatedBy:   user.ID,
					})
					if err != nil {
						logger.Error("create department failed", "error", err)
						http.Error(w, "failed to create department", http.StatusInternalServerError)
						return
					}

					writeJSON(w, http.StatusCreated, dept)
				})

				dr.Get("/", func(w http.ResponseWriter, r *http.Request) {
					depts, err := deps.Departments.ListDepartments(r.Context())
					if err != nil {
						logger.Error("list departments failed", "error", err)
						http.Error(w, "failed to list departments", http.StatusInternalServerError)
						return
					}
					writeJSON(w, http.StatusOK, map[string]any{"departments": depts})
				})

				dr.Get("/{deptID}", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}

					dept, err := deps.Departments.GetDepartment(r.Context(), deptID)
					if err != nil {
						if errors.Is(err, domain.ErrDepartmentNotFound) {
							http.Error(w, "department not found", http.StatusNotFound)
							return
						}
						logger.Error("get department failed", "department_id", deptID, "error", err)
						http.Error(w, "failed to get department", http.StatusInternalServerError)
						return
					}

					writeJSON(w, http.StatusOK, dept)
				})

				dr.Patch("/{deptID}/active", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}

					var req setActiveRequest
					if err := decodeJSONBody(r, &req); err != nil {
						http.Error(w, "invalid request body", http.StatusBadRequest)
						return
					}

					if err := deps.Departments.SetDepartmentActive(r.Context(), deptID, req.Active); err != nil {
						if errors.Is(err, domain.ErrDepartmentNotFound) {
							http.Error(w, "department not found", http.StatusNotFound)
							return
						}
						logger.Error("set department active failed", "department_id", deptID, "error", err)
						http.Error(w, "failed to update department", http.StatusInternalServerError)
						return
					}

					writeJSON(w, http.StatusOK, map[string]any{
						"id":     deptID.String(),
						"active": req.Active,
					})
				})

				dr.Post("/{deptID}/users", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}

					var req struct {
						UserID uuid.UUID `json:"user_id"`
					}
					if err := decodeJSONBody(r, &req); err != nil || req.UserID == uuid.Nil {
						http.Error(w, "invalid request body", http.StatusBadRequest)
						return
					}

					if err := deps.Departments.AssignUser(r.Context(), deptID, req.UserID); err != nil {
						writeDepartmentError(w, logger, deptID, err)
						return
					}

					w.WriteHeader(http.StatusNoContent)
				})

				dr.Delete("/{deptID}/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}
					userID, err := uuid.Parse(chi.URLParam(r, "userID"))
					if err != nil {
						http.Error(w, "invalid user ID", http.StatusBadRequest)
						return
					}

					if err := deps.Departments.RemoveUser(r.Context(), deptID, userID); err != nil {
						writeDepartmentError(w, logger, deptID, err)
						return
					}

					w.WriteHeader(http.StatusNoContent)
				})

				dr.Post("/{deptID}/apis", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}

					var req struct {
						APIID     uuid.UUID `json:"api_id"`
						RateLimit int       `json:"rate_limit"`
					}
					if err := decodeJSONBody(r, &req); err != nil || req.APIID == uuid.Nil {
						http.Error(w, "invalid request body", http.StatusBadRequest)
						return
					}

					if err := deps.Departments.AssignAPI(r.Context(), deptID, req.APIID, req.RateLimit); err != nil {
						writeDepartmentError(w, logger, deptID, err)
						return
					}

					w.WriteHeader(http.StatusNoContent)
				})

				dr.Patch("/{deptID}/apis/{apiID}", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}
					apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
					if err != nil {
						http.Error(w, "invalid API ID", http.StatusBadRequest)
						return
					}

					var req struct {
						RateLimit int `json:"rate_limit"`
					}
					if err := decodeJSONBody(r, &req); err != nil {
						http.Error(w, "invalid request body", http.StatusBadRequest)
						return
					}

					if err := deps.Departments.UpdateGrantRateLimit(r.Context(), deptID, apiID, req.RateLimit); err != nil {
						writeDepartmentError(w, logger, deptID, err)
						return
					}

					w.WriteHeader(http.StatusNoContent)
				})

				dr.Delete("/{deptID}/apis/{apiID}", func(w http.ResponseWriter, r *http.Request) {
					deptID, err := uuid.Parse(chi.URLParam(r, "deptID"))
					if err != nil {
						http.Error(w, "invalid department ID", http.StatusBadRequest)
						return
					}
					apiID, err := uuid.Parse(chi.URLParam(r, "apiID"))
					if err != nil {
						http.Error(w, "invalid API ID", http.StatusBadRequest)
						return
					}

					if err := deps.Departments.RevokeAPI(r.Context(), deptID, apiID); err != nil {
						writeDepartmentError(w, logger, deptID, err)
						return
					}

					w.WriteHeader(http.StatusNoContent)
				})
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDepartmentError(w http.ResponseWriter, logger *slog.Logger, deptID uuid.UUID, err error) {
	switch {
	case errors.Is(err, domain.ErrDepartmentNotFound):
		http.Error(w, "department not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrDepartmentInactive):
		http.Error(w, "department is inactive", http.StatusConflict)
	case errors.Is(err, domain.ErrGrantNotFound):
		http.Error(w, "grant not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidRateLimit):
		http.Error(w, "invalid rate limit", http.StatusBadRequest)
	default:
		logger.Error("department operation failed", "department_id", deptID, "error", err)
		http.Error(w, "department operation failed", http.StatusInternalServerError)
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

// decodeCallRequest accepts either a JSON body or a multipart form. The
// multipart shape carries endpoint_id and a JSON values field alongside
// the uploaded files, which join values keyed by their form field name.
func decodeCallRequest(r *http.Request) (callRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var req callRequest
		if err := decodeJSONBody(r, &req); err != nil {
			return callRequest{}, errors.New("invalid request body")
		}
		if req.EndpointID == uuid.Nil {
			return callRequest{}, errors.New("endpoint_id is required")
		}
		if req.Values == nil {
			req.Values = map[string]any{}
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return callRequest{}, errors.New("invalid multipart body")
	}

	endpointID, err := uuid.Parse(r.FormValue("endpoint_id"))
	if err != nil {
		return callRequest{}, errors.New("endpoint_id is required")
	}

	values := map[string]any{}
	if raw := r.FormValue("values"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return callRequest{}, errors.New("invalid values field")
		}
	}

	for field, headers := range r.MultipartForm.File {
		if len(headers) == 1 {
			values[field] = proxy.FileSource(proxy.FormUpload{Header: headers[0]})
			continue
		}
		sources := make([]proxy.FileSource, 0, len(headers))
		for _, h := range headers {
			sources = append(sources, proxy.FormUpload{Header: h})
		}
		values[field] = sources
	}

	return callRequest{EndpointID: endpointID, Values: values}, nil
}

// resolveFileValues converts JSON-shaped file values for file-typed
// parameters into streamable sources: {"name","content_base64"} becomes
// an inline blob, {"path","original_name"} a path-backed file. Values
// that already are file sources pass through untouched.
func resolveFileValues(endpoint domain.Endpoint, values map[string]any) error {
	for _, p := range endpoint.Parameters {
		if p.Type != domain.ParamFile {
			continue
		}
		raw, ok := values[p.Name]
		if !ok {
			continue
		}

		switch v := raw.(type) {
		case proxy.FileSource, []proxy.FileSource:
			// already resolved by the multipart decoder
		case map[string]any:
			src, err := fileSourceFromObject(p.Name, v)
			if err != nil {
				return err
			}
			values[p.Name] = src
		case []any:
			sources := make([]proxy.FileSource, 0, len(v))
			for _, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					return errors.New("invalid file value for parameter " + p.Name)
				}
				src, err := fileSourceFromObject(p.Name, obj)
				if err != nil {
					return err
				}
				sources = append(sources, src)
			}
			values[p.Name] = sources
		default:
			return errors.New("invalid file value for parameter " + p.Name)
		}
	}
	return nil
}

func fileSourceFromObject(param string, obj map[string]any) (proxy.FileSource, error) {
	if encoded, ok := obj["content_base64"].(string); ok {
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errors.New("invalid base64 content for parameter " + param)
		}
		name, _ := obj["name"].(string)
		if name == "" {
			name = param
		}
		return proxy.InlineBlob{Name: name, Content: content}, nil
	}

	if path, ok := obj["path"].(string); ok && path != "" {
		name, _ := obj["original_name"].(string)
		if name == "" {
			name = path
		}
		return proxy.PathBackedFile{Path: path, OriginalName: name}, nil
	}

	return nil, errors.New("invalid file value for parameter " + param)
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
