// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/domain"
	"github.com/mavrk/apihub/internal/proxy"
)

type APIStore interface {
	CreateAPI(ctx context.Context, api domain.API) (domain.API, error)
	GetAPI(ctx context.Context, id uuid.UUID) (domain.API, error)
	ListAPIs(ctx context.Context) ([]domain.API, error)
	SetAPIActive(ctx context.Context, id uuid.UUID, active bool) error
	CreateEndpoint(ctx context.Context, endpoint domain.Endpoint) (domain.Endpoint, error)
	GetEndpoint(ctx context.Context, apiID, endpointID uuid.UUID) (domain.Endpoint, error)
	ListEndpoints(ctx context.Context, apiID uuid.UUID) ([]domain.Endpoint, error)
}

type DepartmentStore interface {
	CreateDepartment(ctx context.Context, dept domain.Department) (domain.Department, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (domain.Department, error)
	ListDepartments(ctx context.Context) ([]domain.Department, error)
	SetDepartmentActive(ctx context.Context, id uuid.UUID, active bool) error
	AssignUser(ctx context.Context, deptID, userID uuid.UUID) error
	RemoveUser(ctx context.Context, deptID, userID uuid.UUID) error
	AssignAPI(ctx context.Context, deptID, apiID uuid.UUID, rateLimit int) error
	UpdateGrantRateLimit(ctx context.Context, deptID, apiID uuid.UUID, rateLimit int) error
	RevokeAPI(ctx context.Context, deptID, apiID uuid.UUID) error
}

type UsageQuerier interface {
	Summary(ctx context.Context, apiID uuid.UUID, since time.Time) (domain.UsageSummary, error)
	EndpointBreakdown(ctx context.Context, apiID uuid.UUID, since time.Time) ([]domain.EndpointUsage, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, email, name, password string, role domain.Role) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
}

type Caller interface {
	Dispatch(ctx context.Context, in proxy.CallInput) proxy.Envelope
}

type SessionIssuer interface {
	Issue(user domain.User) (string, error)
	Verify(raw string) (uuid.UUID, domain.Role, error)
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
