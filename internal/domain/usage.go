// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one immutable fact per completed real proxied call.
// Draft test calls never produce one.
type UsageRecord struct {
	ID             uuid.UUID `json:"id"`
	APIID          uuid.UUID `json:"api_id"`
	EndpointID     uuid.UUID `json:"endpoint_id"`
	UserID         uuid.UUID `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	StatusCode     int       `json:"status_code"`
	Success        bool      `json:"is_success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RequestMethod  string    `json:"request_method"`
	RequestPath    string    `json:"request_path"`
}

// UsageSummary aggregates records for one API over a trailing window.
type UsageSummary struct {
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	TotalRequests     int64   `json:"total_requests"`
}

// EndpointUsage is the per-endpoint slice of a usage summary.
type EndpointUsage struct {
	EndpointID        uuid.UUID `json:"endpoint_id"`
	Path              string    `json:"path"`
	Method            string    `json:"method"`
	TotalRequests     int64     `json:"total_requests"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	SuccessRate       float64   `json:"success_rate"`
}
