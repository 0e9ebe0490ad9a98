// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Department groups users and grants them access to a set of APIs. An
// assignment's rate limit overrides the API's own default for members of
// that department.
type Department struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Active      bool             `json:"active"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	APIGrants   []APIGrant       `json:"api_grants"`
	UserMembers []UserMembership `json:"user_members"`
}

// APIGrant is one (api, rate limit) pair held by a department.
type APIGrant struct {
	APIID     uuid.UUID `json:"api_id"`
	RateLimit int       `json:"rate_limit"`
}

type UserMembership struct {
	UserID     uuid.UUID `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ValidateRateLimit enforces the positive, capped grant ceiling.
func ValidateRateLimit(limit int) error {
	if limit <= 0 || limit > MaxRateLimit {
		return ErrInvalidRateLimit
	}
	return nil
}
