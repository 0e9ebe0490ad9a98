// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mavrk/apihub/internal/auth"
	"github.com/mavrk/apihub/internal/domain"
)

type UserRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUserRepository(pool *pgxpool.Pool, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, email, name, password string, role domain.Role) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, errors.New("email is required")
	}
	if password == "" {
		return domain.User{}, errors.New("password is required")
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return domain.User{}, errors.New("unknown role")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		r.logger.Error("hash password failed", "error", err)
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		r.logger.Error("insert user failed", "email", email, "error", err)
		return domain.User{}, err
	}

	r.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx,
		`SELECT id, email, name, role, password_hash, created_at FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email)),
	)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return r.getUser(ctx,
		`SELECT id, email, name, role, password_hash, created_at FROM users WHERE id=$1`,
		id,
	)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var user domain.User

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		r.logger.Error("get user failed", "error", err)
		return domain.User{}, err
	}

	return user, nil
}

// EnsureBootstrapAdmin creates the configured admin account on first
// boot. An existing account with the same email is left untouched.
func (r *UserRepository) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := r.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	if _, err := r.CreateUser(ctx, email, "Administrator", password, domain.RoleAdmin); err != nil {
		return err
	}

	r.logger.Info("bootstrap admin created", "email", email)
	return nil
}
