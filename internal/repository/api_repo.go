// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mavrk/apihub/internal/domain"
)

type APIRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAPIRepository(pool *pgxpool.Pool, logger *slog.Logger) *APIRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *APIRepository) CreateAPI(ctx context.Context, api domain.API) (domain.API, error) {
	if err := domain.ValidateBaseURL(api.BaseURL); err != nil {
		return domain.API{}, err
	}
	if api.RateLimit == 0 {
		api.RateLimit = domain.DefaultRateLimit
	}
	if err := domain.ValidateRateLimit(api.RateLimit); err != nil {
		return domain.API{}, err
	}

	api.ID = uuid.New()
	api.Active = true

	err := r.pool.QueryRow(ctx, `
		INSERT INTO apis (id, name, base_url, active, rate_limit, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`,
		api.ID, api.Name, api.BaseURL, api.Active, api.RateLimit, api.CreatedBy,
	).Scan(&api.CreatedAt)
	if err != nil {
		r.logger.Error("insert api failed", "api_id", api.ID, "error", err)
		return domain.API{}, err
	}

	r.logger.Info("api registered", "api_id", api.ID, "name", api.Name)
	return api, nil
}

func (r *APIRepository) GetAPI(ctx context.Context, id uuid.UUID) (domain.API, error) {
	var api domain.API

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, base_url, active, rate_limit, created_by, created_at
		FROM apis
		WHERE id=$1
	`, id).Scan(
		&api.ID,
		&api.Name,
		&api.BaseURL,
		&api.Active,
		&api.RateLimit,
		&api.CreatedBy,
		&api.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.API{}, domain.ErrAPINotFound
	}
	if err != nil {
		r.logger.Error("get api failed", "api_id", id, "error", err)
		return domain.API{}, err
	}

	return api, nil
}

func (r *APIRepository) ListAPIs(ctx context.Context) ([]domain.API, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, base_url, active, rate_limit, created_by, created_at
		FROM apis
		ORDER BY created_at DESC
	`)
	if err != nil {
		r.logger.Error("list apis query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.API, 0, 8)
	for rows.Next() {
		var api domain.API
		if err := rows.Scan(
			&api.ID,
			&api.Name,
			&api.BaseURL,
			&api.Active,
			&api.RateLimit,
			&api.CreatedBy,
			&api.CreatedAt,
		); err != nil {
			r.logger.Error("scan api row failed", "error", err)
			return nil, err
		}
		out = append(out, api)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("apis rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}

func (r *APIRepository) SetAPIActive(ctx context.Context, id uuid.UUID, active bool) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE apis SET active=$2 WHERE id=$1`,
		id, active,
	)
	if err != nil {
		r.logger.Error("update api active failed", "api_id", id, "error", err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAPINotFound
	}

	r.logger.Info("api active flag updated", "api_id", id, "active", active)
	return nil
}

// CreateEndpoint inserts the endpoint and its parameters in one
// transaction after definition-time validation.
func (r *APIRepository) CreateEndpoint(ctx context.Context, endpoint domain.Endpoint) (domain.Endpoint, error) {
	if err := endpoint.Validate(); err != nil {
		return domain.Endpoint{}, err
	}

	if _, err := r.GetAPI(ctx, endpoint.APIID); err != nil {
		return domain.Endpoint{}, err
	}

	endpoint.ID = uuid.New()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return domain.Endpoint{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO endpoints (id, api_id, name, description, method, path)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		endpoint.ID, endpoint.APIID, endpoint.Name, endpoint.Description,
		endpoint.Method, endpoint.Path,
	)
	if err != nil {
		r.logger.Error("insert endpoint failed", "endpoint_id", endpoint.ID, "error", err)
		return domain.Endpoint{}, err
	}

	for i := range endpoint.Parameters {
		p := &endpoint.Parameters[i]
		p.ID = uuid.New()
		p.EndpointID = endpoint.ID

		defaultJSON, err := marshalNullable(p.Default)
		if err != nil {
			r.logger.Error("encode parameter default failed", "parameter", p.Name, "error", err)
			return domain.Endpoint{}, err
		}
		fileConfigJSON, err := marshalNullable(p.FileConfig)
		if err != nil {
			r.logger.Error("encode file config failed", "parameter", p.Name, "error", err)
			return domain.Endpoint{}, err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO parameters (id, endpoint_id, name, type, location, required, default_value, file_config)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			p.ID, p.EndpointID, p.Name, p.Type, p.Location, p.Required,
			defaultJSON, fileConfigJSON,
		); err != nil {
			r.logger.Error("insert parameter failed",
				"endpoint_id", endpoint.ID,
				"parameter", p.Name,
				"error", err,
			)
			return domain.Endpoint{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit endpoint failed", "endpoint_id", endpoint.ID, "error", err)
		return domain.Endpoint{}, err
	}

	r.logger.Info("endpoint created",
		"endpoint_id", endpoint.ID,
		"api_id", endpoint.APIID,
		"method", endpoint.Method,
		"path", endpoint.Path,
	)
	return endpoint, nil
}

func (r *APIRepository) GetEndpoint(ctx context.Context, apiID, endpointID uuid.UUID) (domain.Endpoint, error) {
	var endpoint domain.Endpoint

	err := r.pool.QueryRow(ctx, `
		SELECT id, api_id, name, description, method, path
		FROM endpoints
		WHERE id=$1 AND api_id=$2
	`, endpointID, apiID).Scan(
		&endpoint.ID,
		&endpoint.APIID,
		&endpoint.Name,
		&endpoint.Description,
		&endpoint.Method,
		&endpoint.Path,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Endpoint{}, domain.ErrEndpointNotFound
	}
	if err != nil {
		r.logger.Error("get endpoint failed", "endpoint_id", endpointID, "error", err)
		return domain.Endpoint{}, err
	}

	endpoint.Parameters, err = r.loadParameters(ctx, endpointID)
	if err != nil {
		return domain.Endpoint{}, err
	}

	return endpoint, nil
}

func (r *APIRepository) ListEndpoints(ctx context.Context, apiID uuid.UUID) ([]domain.Endpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, api_id, name, description, method, path
		FROM endpoints
		WHERE api_id=$1
		ORDER BY path, method
	`, apiID)
	if err != nil {
		r.logger.Error("list endpoints query failed", "api_id", apiID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Endpoint, 0, 8)
	for rows.Next() {
		var endpoint domain.Endpoint
		if err := rows.Scan(
			&endpoint.ID,
			&endpoint.APIID,
			&endpoint.Name,
			&endpoint.Description,
			&endpoint.Method,
			&endpoint.Path,
		); err != nil {
			r.logger.Error("scan endpoint row failed", "api_id", apiID, "error", err)
			return nil, err
		}
		out = append(out, endpoint)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("endpoints rows iteration failed", "api_id", apiID, "error", err)
		return nil, err
	}

	for i := range out {
		out[i].Parameters, err = r.loadParameters(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (r *APIRepository) loadParameters(ctx context.Context, endpointID uuid.UUID) ([]domain.Parameter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, endpoint_id, name, type, location, required, default_value, file_config
		FROM parameters
		WHERE endpoint_id=$1
		ORDER BY name
	`, endpointID)
	if err != nil {
		r.logger.Error("list parameters query failed", "endpoint_id", endpointID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Parameter, 0, 4)
	for rows.Next() {
		var (
			p              domain.Parameter
			defaultJSON    []byte
			fileConfigJSON []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.EndpointID,
			&p.Name,
			&p.Type,
			&p.Location,
			&p.Required,
			&defaultJSON,
			&fileConfigJSON,
		); err != nil {
			r.logger.Error("scan parameter row failed", "endpoint_id", endpointID, "error", err)
			return nil, err
		}

		if len(defaultJSON) > 0 {
			if err := json.Unmarshal(defaultJSON, &p.Default); err != nil {
				r.logger.Error("decode parameter default failed", "parameter", p.Name, "error", err)
				return nil, err
			}
		}
		if len(fileConfigJSON) > 0 {
			p.FileConfig = &domain.FileConfig{}
			if err := json.Unmarshal(fileConfigJSON, p.FileConfig); err != nil {
				r.logger.Error("decode file config failed", "parameter", p.Name, "error", err)
				return nil, err
			}
		}

		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("parameters rows iteration failed", "endpoint_id", endpointID, "error", err)
		return nil, err
	}

	return out, nil
}

// marshalNullable maps nil (or a nil pointer) to a SQL NULL instead of
// the JSON literal "null".
func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if fc, ok := v.(*domain.FileConfig); ok && fc == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
