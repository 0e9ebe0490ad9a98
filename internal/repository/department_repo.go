// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mavrk/apihub/internal/domain"
)

type DepartmentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDepartmentRepository(pool *pgxpool.Pool, logger *slog.Logger) *DepartmentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &DepartmentRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *DepartmentRepository) CreateDepartment(ctx context.Context, dept domain.Department) (domain.Department, error) {
	dept.ID = uuid.New()
	dept.Active = true

	err := r.pool.QueryRow(ctx, `
		INSERT INTO departments (id, name, description, active, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		dept.ID, dept.Name, dept.Description, dept.Active, dept.CreatedBy,
	).Scan(&dept.CreatedAt)
	if err != nil {
		r.logger.Error("insert department failed", "department_id", dept.ID, "error", err)
		return domain.Department{}, err
	}

	r.logger.Info("department created", "department_id", dept.ID, "name", dept.Name)
	return dept, nil
}

func (r *DepartmentRepository) GetDepartment(ctx context.Context, id uuid.UUID) (domain.Department, error) {
	var dept domain.Department

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, active, created_by, created_at
		FROM departments
		WHERE id=$1
	`, id).Scan(
		&dept.ID,
		&dept.Name,
		&dept.Description,
		&dept.Active,
		&dept.CreatedBy,
		&dept.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Department{}, domain.ErrDepartmentNotFound
	}
	if err != nil {
		r.logger.Error("get department failed", "department_id", id, "error", err)
		return domain.Department{}, err
	}

	dept.APIGrants, err = r.loadGrants(ctx, id)
	if err != nil {
		return domain.Department{}, err
	}
	dept.UserMembers, err = r.loadMembers(ctx, id)
	if err != nil {
		return domain.Department{}, err
	}

	return dept, nil
}

func (r *DepartmentRepository) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, active, created_by, created_at
		FROM departments
		ORDER BY name
	`)
	if err != nil {
		r.logger.Error("list departments query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Department, 0, 8)
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(
			&dept.ID,
			&dept.Name,
			&dept.Description,
			&dept.Active,
			&dept.CreatedBy,
			&dept.CreatedAt,
		); err != nil {
			r.logger.Error("scan department row failed", "error", err)
			return nil, err
		}
		out = append(out, dept)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("departments rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}

func (r *DepartmentRepository) SetDepartmentActive(ctx context.Context, id uuid.UUID, active bool) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE departments SET active=$2 WHERE id=$1`,
		id, active,
	)
	if err != nil {
		r.logger.Error("update department active failed", "department_id", id, "error", err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrDepartmentNotFound
	}

	r.logger.Info("department active flag updated", "department_id", id, "active", active)
	return nil
}

// AssignUser adds userID to the department's membership. Re-assigning
// an existing member is a no-op.
func (r *DepartmentRepository) AssignUser(ctx context.Context, deptID, userID uuid.UUID) error {
	if err := r.requireActiveDepartment(ctx, deptID); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO department_users (department_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (department_id, user_id) DO NOTHING
	`, deptID, userID)
	if err != nil {
		r.logger.Error("assign user failed",
			"department_id", deptID,
			"user_id", userID,
			"error", err,
		)
		return err
	}

	r.logger.Info("user assigned to department", "department_id", deptID, "user_id", userID)
	return nil
}

func (r *DepartmentRepository) RemoveUser(ctx context.Context, deptID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM department_users WHERE department_id=$1 AND user_id=$2`,
		deptID, userID,
	)
	if err != nil {
		r.logger.Error("remove user failed",
			"department_id", deptID,
			"user_id", userID,
			"error", err,
		)
		return err
	}

	return nil
}

// AssignAPI grants the department access to apiID at the given rate
// ceiling, replacing any existing grant for the same API.
func (r *DepartmentRepository) AssignAPI(ctx context.Context, deptID, apiID uuid.UUID, rateLimit int) error {
	if err := domain.ValidateRateLimit(rateLimit); err != nil {
		return err
	}
	if err := r.requireActiveDepartment(ctx, deptID); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO department_api_grants (department_id, api_id, rate_limit)
		VALUES ($1, $2, $3)
		ON CONFLICT (department_id, api_id) DO UPDATE SET rate_limit=EXCLUDED.rate_limit
	`, deptID, apiID, rateLimit)
	if err != nil {
		r.logger.Error("assign api failed",
			"department_id", deptID,
			"api_id", apiID,
			"error", err,
		)
		return err
	}

	r.logger.Info("api granted to department",
		"department_id", deptID,
		"api_id", apiID,
		"rate_limit", rateLimit,
	)
	return nil
}

func (r *DepartmentRepository) UpdateGrantRateLimit(ctx context.Context, deptID, apiID uuid.UUID, rateLimit int) error {
	if err := domain.ValidateRateLimit(rateLimit); err != nil {
		return err
	}
	if err := r.requireActiveDepartment(ctx, deptID); err != nil {
		return err
	}

	cmd, err := r.pool.Exec(ctx, `
		UPDATE department_api_grants
		SET rate_limit=$3
		WHERE department_id=$1 AND api_id=$2
	`, deptID, apiID, rateLimit)
	if err != nil {
		r.logger.Error("update grant rate limit failed",
			"department_id", deptID,
			"api_id", apiID,
			"error", err,
		)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrGrantNotFound
	}

	r.logger.Info("grant rate limit updated",
		"department_id", deptID,
		"api_id", apiID,
		"rate_limit", rateLimit,
	)
	return nil
}

func (r *DepartmentRepository) RevokeAPI(ctx context.Context, deptID, apiID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM department_api_grants WHERE department_id=$1 AND api_id=$2`,
		deptID, apiID,
	)
	if err != nil {
		r.logger.Error("revoke api failed",
			"department_id", deptID,
			"api_id", apiID,
			"error", err,
		)
		return err
	}

	return nil
}

// RateLimitsForUser returns the rate ceilings of every grant for apiID
// held by an active department the user belongs to. Inactive
// departments contribute nothing.
func (r *DepartmentRepository) RateLimitsForUser(ctx context.Context, userID, apiID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.rate_limit
		FROM department_api_grants g
		JOIN departments d ON g.department_id = d.id
		JOIN department_users m ON m.department_id = d.id
		WHERE m.user_id=$1
		  AND g.api_id=$2
		  AND d.active
	`, userID, apiID)
	if err != nil {
		r.logger.Error("rate limits query failed",
			"user_id", userID,
			"api_id", apiID,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]int, 0, 2)
	for rows.Next() {
		var limit int
		if err := rows.Scan(&limit); err != nil {
			r.logger.Error("scan rate limit row failed", "user_id", userID, "error", err)
			return nil, err
		}
		out = append(out, limit)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("rate limits rows iteration failed", "user_id", userID, "error", err)
		return nil, err
	}

	return out, nil
}

func (r *DepartmentRepository) requireActiveDepartment(ctx context.Context, id uuid.UUID) error {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT active FROM departments WHERE id=$1`,
		id,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDepartmentNotFound
	}
	if err != nil {
		r.logger.Error("read department failed", "department_id", id, "error", err)
		return err
	}
	if !active {
		return domain.ErrDepartmentInactive
	}
	return nil
}

func (r *DepartmentRepository) loadGrants(ctx context.Context, deptID uuid.UUID) ([]domain.APIGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT api_id, rate_limit
		FROM department_api_grants
		WHERE department_id=$1
	`, deptID)
	if err != nil {
		r.logger.Error("list grants query failed", "department_id", deptID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.APIGrant, 0, 4)
	for rows.Next() {
		var g domain.APIGrant
		if err := rows.Scan(&g.APIID, &g.RateLimit); err != nil {
			r.logger.Error("scan grant row failed", "department_id", deptID, "error", err)
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("grants rows iteration failed", "department_id", deptID, "error", err)
		return nil, err
	}

	return out, nil
}

func (r *DepartmentRepository) loadMembers(ctx context.Context, deptID uuid.UUID) ([]domain.UserMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, assigned_at
		FROM department_users
		WHERE department_id=$1
	`, deptID)
	if err != nil {
		r.logger.Error("list members query failed", "department_id", deptID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserMembership, 0, 4)
	for rows.Next() {
		var m domain.UserMembership
		if err := rows.Scan(&m.UserID, &m.AssignedAt); err != nil {
			r.logger.Error("scan member row failed", "department_id", deptID, "error", err)
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("members rows iteration failed", "department_id", deptID, "error", err)
		return nil, err
	}

	return out, nil
}
