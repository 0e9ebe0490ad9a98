// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/access"
	"github.com/mavrk/apihub/internal/auth"
	"github.com/mavrk/apihub/internal/domain"
	"github.com/mavrk/apihub/internal/proxy"
	"github.com/mavrk/apihub/internal/ratelimit"
)

type fakeAPIStore struct {
	apis      map[uuid.UUID]domain.API
	endpoints map[uuid.UUID]domain.Endpoint
}

func (s *fakeAPIStore) CreateAPI(_ context.Context, api domain.API) (domain.API, error) {
	if err := domain.ValidateBaseURL(api.BaseURL); err != nil {
		return domain.API{}, err
	}
	api.ID = uuid.New()
	api.Active = true
	if api.RateLimit == 0 {
		api.RateLimit = domain.DefaultRateLimit
	}
	s.apis[api.ID] = api
	return api, nil
}

func (s *fakeAPIStore) GetAPI(_ context.Context, id uuid.UUID) (domain.API, error) {
	api, ok := s.apis[id]
	if !ok {
		return domain.API{}, domain.ErrAPINotFound
	}
	return api, nil
}

func (s *fakeAPIStore) ListAPIs(context.Context) ([]domain.API, error) {
	out := make([]domain.API, 0, len(s.apis))
	for _, api := range s.apis {
		out = append(out, api)
	}
	return out, nil
}

func (s *fakeAPIStore) SetAPIActive(_ context.Context, id uuid.UUID, active bool) error {
	api, ok := s.apis[id]
	if !ok {
		return domain.ErrAPINotFound
	}
	api.Active = active
	s.apis[id] = api
	return nil
}

func (s *fakeAPIStore) CreateEndpoint(_ context.Context, endpoint domain.Endpoint) (domain.Endpoint, error) {
	if err := endpoint.Validate(); err != nil {
		return domain.Endpoint{}, err
	}
	if _, ok := s.apis[endpoint.APIID]; !ok {
		return domain.Endpoint{}, domain.ErrAPINotFound
	}
	endpoint.ID = uuid.New()
	s.endpoints[endpoint.ID] = endpoint
	return endpoint, nil
}

func (s *fakeAPIStore) GetEndpoint(_ context.Context, apiID, endpointID uuid.UUID) (domain.Endpoint, error) {
	endpoint, ok := s.endpoints[endpointID]
	if !ok || endpoint.APIID != apiID {
		return domain.Endpoint{}, domain.ErrEndpointNotFound
	}
	return endpoint, nil
}

func (s *fakeAPIStore) ListEndpoints(_ context.Context, apiID uuid.UUID) ([]domain.Endpoint, error) {
	out := make([]domain.Endpoint, 0, len(s.endpoints))
	for _, endpoint := range s.endpoints {
		if endpoint.APIID == apiID {
			out = append(out, endpoint)
		}
	}
	return out, nil
}

type fakeUserStore struct {
	byID    map[uuid.UUID]domain.User
	byEmail map[string]domain.User
}

func (s *fakeUserStore) add(t *testing.T, email string, role domain.Role, password string) domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.User{ID: uuid.New(), Email: email, Role: role, PasswordHash: hash}
	s.byID[user.ID] = user
	s.byEmail[email] = user
	return user
}

func (s *fakeUserStore) CreateUser(_ context.Context, email, name, password string, role domain.Role) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{ID: uuid.New(), Email: email, Name: name, Role: role, PasswordHash: hash}
	s.byID[user.ID] = user
	s.byEmail[email] = user
	return user, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

type fakeGrantSource struct {
	limits map[uuid.UUID][]int // keyed by user
}

func (s *fakeGrantSource) RateLimitsForUser(_ context.Context, userID, _ uuid.UUID) ([]int, error) {
	return s.limits[userID], nil
}

type captureRecorder struct {
	mu      sync.Mutex
	records []domain.UsageRecord
}

func (r *captureRecorder) Record(_ context.Context, rec domain.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type routerFixture struct {
	handler  http.Handler
	apis     *fakeAPIStore
	users    *fakeUserStore
	grants   *fakeGrantSource
	recorder *captureRecorder
	sessions *auth.Tokens
	admin    domain.User
	member   domain.User
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions, err := auth.NewTokens("router-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}

	apis := &fakeAPIStore{
		apis:      map[uuid.UUID]domain.API{},
		endpoints: map[uuid.UUID]domain.Endpoint{},
	}
	users := &fakeUserStore{
		byID:    map[uuid.UUID]domain.User{},
		byEmail: map[string]domain.User{},
	}
	grants := &fakeGrantSource{limits: map[uuid.UUID][]int{}}
	recorder := &captureRecorder{}

	admin := users.add(t, "admin@example.test", domain.RoleAdmin, "admin-pw")
	member := users.add(t, "member@example.test", domain.RoleMember, "member-pw")

	handler := NewRouter(Deps{
		APIs:       apis,
		Users:      users,
		Dispatcher: proxy.NewDispatcher(proxy.Deps{Recorder: recorder, Logger: logger}),
		Sessions:   sessions,
		Gate:       access.NewGate(grants, ratelimit.NewMemoryCounter(), logger),
		Logger:     logger,
	})

	return &routerFixture{
		handler:  handler,
		apis:     apis,
		users:    users,
		grants:   grants,
		recorder: recorder,
		sessions: sessions,
		admin:    admin,
		member:   member,
	}
}

func (f *routerFixture) token(t *testing.T, user domain.User) string {
	t.Helper()
	token, err := f.sessions.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) registerAPI(t *testing.T, baseURL string) (domain.API, domain.Endpoint) {
	t.Helper()
	api, err := f.apis.CreateAPI(context.Background(), domain.API{
		Name:      "upstream",
		BaseURL:   baseURL,
		CreatedBy: f.admin.ID,
	})
	if err != nil {
		t.Fatalf("create api: %v", err)
	}
	endpoint, err := f.apis.CreateEndpoint(context.Background(), domain.Endpoint{
		APIID:  api.ID,
		Method: "GET",
		Path:   "/items/{id}",
		Parameters: []domain.Parameter{
			{Name: "id", Type: domain.ParamString, Location: domain.LocationPath, Required: true},
		},
	})
	if err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	return api, endpoint
}

func TestLogin(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("valid credentials return a token", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/login", "", map[string]string{
			"email":    "admin@example.test",
			"password": "admin-pw",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("expected a session token")
		}
		if userID, _, err := f.sessions.Verify(resp.Token); err != nil || userID != f.admin.ID {
			t.Fatalf("token must verify to the admin, got %s (%v)", userID, err)
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/login", "", map[string]string{
			"email":    "admin@example.test",
			"password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("unknown email is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/login", "", map[string]string{
			"email":    "nobody@example.test",
			"password": "whatever",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestRouterRequiresSession(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/apis", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestProxiedCall(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"item":"` + r.URL.Path + `"}`))
	}))
	defer upstream.Close()

	t.Run("granted member call reaches the upstream and records usage", func(t *testing.T) {
		f := newRouterFixture(t)
		api, endpoint := f.registerAPI(t, upstream.URL)
		f.grants.limits[f.member.ID] = []int{100}

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", f.token(t, f.member), map[string]any{
			"endpoint_id": endpoint.ID,
			"values":      map[string]any{"id": "7"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var env proxy.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Status != http.StatusOK {
			t.Fatalf("expected envelope status 200, got %d", env.Status)
		}
		data, ok := env.Data.(map[string]any)
		if !ok || data["item"] != "/items/7" {
			t.Fatalf("expected substituted upstream path, got %#v", env.Data)
		}
		if env.ResponseTimeMs == nil {
			t.Fatal("expected response_time_ms")
		}
		if f.recorder.count() != 1 {
			t.Fatalf("expected 1 usage record, got %d", f.recorder.count())
		}
	})

	t.Run("member without a department is denied with the envelope shape", func(t *testing.T) {
		f := newRouterFixture(t)
		api, endpoint := f.registerAPI(t, upstream.URL)

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", f.token(t, f.member), map[string]any{
			"endpoint_id": endpoint.ID,
			"values":      map[string]any{"id": "7"},
		})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}

		var env proxy.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Status != http.StatusForbidden {
			t.Fatalf("expected envelope status 403, got %d", env.Status)
		}
		if env.Error != "You do not have access to this API. Access is limited based on your active department assignments." {
			t.Fatalf("unexpected denial message: %q", env.Error)
		}
		if f.recorder.count() != 0 {
			t.Fatal("denied calls must not record usage")
		}
	})

	t.Run("inactive api is denied for members", func(t *testing.T) {
		f := newRouterFixture(t)
		api, endpoint := f.registerAPI(t, upstream.URL)
		f.grants.limits[f.member.ID] = []int{100}
		if err := f.apis.SetAPIActive(context.Background(), api.ID, false); err != nil {
			t.Fatalf("deactivate api: %v", err)
		}

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", f.token(t, f.member), map[string]any{
			"endpoint_id": endpoint.ID,
			"values":      map[string]any{"id": "7"},
		})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}

		var env proxy.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Error != "This API is currently inactive" {
			t.Fatalf("unexpected denial message: %q", env.Error)
		}
	})

	t.Run("rate limited member gets 429 with Retry-After", func(t *testing.T) {
		f := newRouterFixture(t)
		api, endpoint := f.registerAPI(t, upstream.URL)
		f.grants.limits[f.member.ID] = []int{1}
		token := f.token(t, f.member)

		body := map[string]any{
			"endpoint_id": endpoint.ID,
			"values":      map[string]any{"id": "7"},
		}
		if rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", token, body); rec.Code != http.StatusOK {
			t.Fatalf("first call must pass, got %d", rec.Code)
		}

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", token, body)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}
		if f.recorder.count() != 1 {
			t.Fatal("rate limited calls must not record usage")
		}
	})

	t.Run("admin bypasses department grants", func(t *testing.T) {
		f := newRouterFixture(t)
		api, endpoint := f.registerAPI(t, upstream.URL)

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", f.token(t, f.admin), map[string]any{
			"endpoint_id": endpoint.ID,
			"values":      map[string]any{"id": "7"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected admin call to pass, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing path parameter yields 422 and no usage", func(t *testing.T) {
		f := newRouterFixture(t)
		api, endpoint := f.registerAPI(t, upstream.URL)
		f.grants.limits[f.member.ID] = []int{100}

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", f.token(t, f.member), map[string]any{
			"endpoint_id": endpoint.ID,
			"values":      map[string]any{},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}

		var env proxy.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Error != "Missing path parameter: id" {
			t.Fatalf("unexpected error: %q", env.Error)
		}
		if f.recorder.count() != 0 {
			t.Fatal("validation failures must not record usage")
		}
	})

	t.Run("unknown endpoint is a 404", func(t *testing.T) {
		f := newRouterFixture(t)
		api, _ := f.registerAPI(t, upstream.URL)
		f.grants.limits[f.member.ID] = []int{100}

		rec := f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/call", f.token(t, f.member), map[string]any{
			"endpoint_id": uuid.New(),
			"values":      map[string]any{"id": "7"},
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestDraftTestCall(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"draft":true}`))
	}))
	defer upstream.Close()

	draftBody := map[string]any{
		"base_url": upstream.URL,
		"endpoint": map[string]any{
			"method": "GET",
			"path":   "/ping",
		},
		"values": map[string]any{},
	}

	t.Run("admin draft call skips usage recording", func(t *testing.T) {
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodPost, "/apis/test", f.token(t, f.admin), draftBody)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var env proxy.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.ResponseTimeMs == nil {
			t.Fatal("draft envelopes must report response time")
		}
		if f.recorder.count() != 0 {
			t.Fatal("draft calls must never record usage")
		}
	})

	t.Run("members cannot run draft calls", func(t *testing.T) {
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodPost, "/apis/test", f.token(t, f.member), draftBody)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("invalid draft endpoint is a 422", func(t *testing.T) {
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodPost, "/apis/test", f.token(t, f.admin), map[string]any{
			"base_url": upstream.URL,
			"endpoint": map[string]any{
				"method": "GET",
				"path":   "/upload",
				"parameters": []map[string]any{
					{"name": "file", "type": "file", "location": "body", "file_config": map[string]any{}},
				},
			},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for file parameter on GET, got %d", rec.Code)
		}
	})
}

func TestAdminRegistration(t *testing.T) {
	f := newRouterFixture(t)
	adminToken := f.token(t, f.admin)

	t.Run("create api validates base url", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/apis", adminToken, map[string]any{
			"name":     "broken",
			"base_url": "not a url",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("members cannot create apis", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/apis", f.token(t, f.member), map[string]any{
			"name":     "nope",
			"base_url": "https://x.test",
		})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("create endpoint rejects file parameters on GET", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/apis", adminToken, map[string]any{
			"name":     "files",
			"base_url": "https://files.test",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create api: expected 201, got %d", rec.Code)
		}
		var api domain.API
		if err := json.Unmarshal(rec.Body.Bytes(), &api); err != nil {
			t.Fatalf("decode api: %v", err)
		}

		rec = f.do(t, http.MethodPost, "/apis/"+api.ID.String()+"/endpoints", adminToken, map[string]any{
			"method": "GET",
			"path":   "/upload",
			"parameters": []map[string]any{
				{"name": "file", "type": "file", "location": "body", "file_config": map[string]any{}},
			},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
