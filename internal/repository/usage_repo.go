// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mavrk/apihub/internal/domain"
)

type UsageRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUsageRepository(pool *pgxpool.Pool, logger *slog.Logger) *UsageRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UsageRepository{
		pool:   pool,
		logger: logger,
	}
}

// Record appends one usage fact. Records are immutable once written.
func (r *UsageRepository) Record(ctx context.Context, rec domain.UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_usage
			(id, api_id, endpoint_id, user_id, created_at, response_time_ms,
			 status_code, is_success, error_message, request_method, request_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.ID, rec.APIID, rec.EndpointID, rec.UserID, rec.Timestamp,
		rec.ResponseTimeMs, rec.StatusCode, rec.Success, rec.ErrorMessage,
		rec.RequestMethod, rec.RequestPath,
	)
	if err != nil {
		r.logger.Error("insert usage record failed",
			"api_id", rec.APIID,
			"endpoint_id", rec.EndpointID,
			"error", err,
		)
		return err
	}

	return nil
}

// Summary aggregates records for apiID created at or after since.
// Average response time covers successful calls only; success rate is a
// percentage of all calls in the window.
func (r *UsageRepository) Summary(ctx context.Context, apiID uuid.UUID, since time.Time) (domain.UsageSummary, error) {
	var summary domain.UsageSummary

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(response_time_ms) FILTER (WHERE is_success), 0),
			COALESCE(100.0 * COUNT(*) FILTER (WHERE is_success) / NULLIF(COUNT(*), 0), 0)
		FROM api_usage
		WHERE api_id=$1 AND created_at >= $2
	`, apiID, since).Scan(
		&summary.TotalRequests,
		&summary.AvgResponseTimeMs,
		&summary.SuccessRate,
	)
	if err != nil {
		r.logger.Error("usage summary query failed", "api_id", apiID, "error", err)
		return domain.UsageSummary{}, err
	}

	return summary, nil
}

// EndpointBreakdown returns per-endpoint aggregates for apiID over the
// same window as Summary, busiest endpoints first.
func (r *UsageRepository) EndpointBreakdown(ctx context.Context, apiID uuid.UUID, since time.Time) ([]domain.EndpointUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			u.endpoint_id,
			e.path,
			e.method,
			COUNT(*),
			COALESCE(AVG(u.response_time_ms) FILTER (WHERE u.is_success), 0),
			COALESCE(100.0 * COUNT(*) FILTER (WHERE u.is_success) / NULLIF(COUNT(*), 0), 0)
		FROM api_usage u
		JOIN endpoints e ON u.endpoint_id = e.id
		WHERE u.api_id=$1 AND u.created_at >= $2
		GROUP BY u.endpoint_id, e.path, e.method
		ORDER BY COUNT(*) DESC
	`, apiID, since)
	if err != nil {
		r.logger.Error("endpoint breakdown query failed", "api_id", apiID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EndpointUsage, 0, 8)
	for rows.Next() {
		var eu domain.EndpointUsage
		if err := rows.Scan(
			&eu.EndpointID,
			&eu.Path,
			&eu.Method,
			&eu.TotalRequests,
			&eu.AvgResponseTimeMs,
			&eu.SuccessRate,
		); err != nil {
			r.logger.Error("scan endpoint usage row failed", "api_id", apiID, "error", err)
			return nil, err
		}
		out = append(out, eu)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("endpoint usage rows iteration failed", "api_id", apiID, "error", err)
		return nil, err
	}

	return out, nil
}

// DeleteOlderThan prunes records created before cutoff and reports how
// many rows were removed. Used by the retention sweeper.
func (r *UsageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM api_usage WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		r.logger.Error("usage retention delete failed", "cutoff", cutoff, "error", err)
		return 0, err
	}

	deleted := cmd.RowsAffected()
	if deleted > 0 {
		r.logger.Info("usage records pruned", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
