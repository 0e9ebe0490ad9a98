// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mavrk/apihub/internal/domain"
	"github.com/mavrk/apihub/internal/metrics"
)

const defaultUpstreamTimeout = 30 * time.Second

// Envelope is the normalized result of one proxied call. Status mirrors
// the upstream outcome and is also used as the transport status code.
type Envelope struct {
	Status         int    `json:"status"`
	Data           any    `json:"data,omitempty"`
	Error          string `json:"error,omitempty"`
	Response       any    `json:"response,omitempty"`
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`
}

// UsageRecorder receives one record per completed real (non-draft) call.
type UsageRecorder interface {
	Record(ctx context.Context, rec domain.UsageRecord) error
}

// CallInput is everything the dispatcher needs for one call. Values may
// contain FileSource entries for file parameters; the transport boundary
// resolves raw upload shapes before dispatch.
type CallInput struct {
	Endpoint   domain.Endpoint
	BaseURL    string
	Values     map[string]any
	APIID      uuid.UUID
	UserID     uuid.UUID
	TrackUsage bool
}

type Deps struct {
	Recorder UsageRecorder
	Logger   *slog.Logger
	Timeout  time.Duration
}

// Dispatcher executes proxied endpoint calls. It is stateless per call:
// every dispatch owns its own stream list, so concurrent calls never
// share mutable state.
type Dispatcher struct {
	client         *http.Client
	insecureClient *http.Client
	recorder       UsageRecorder
	logger         *slog.Logger
}

func NewDispatcher(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}

	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &Dispatcher{
		client:         &http.Client{Timeout: timeout},
		insecureClient: &http.Client{Timeout: timeout, Transport: insecureTransport},
		recorder:       deps.Recorder,
		logger:         logger,
	}
}

// Dispatch resolves, builds, and executes one endpoint call and shapes
// the response envelope. Every stream opened while assembling the body is
// closed before Dispatch returns, on success, failure, and panic alike.
func (d *Dispatcher) Dispatch(ctx context.Context, in CallInput) (env Envelope) {
	path, remaining, err := ResolvePath(in.Endpoint.Path, in.Endpoint.Parameters, in.Values)
	if err != nil {
		var missing *MissingParameterError
		if errors.As(err, &missing) {
			d.logger.Warn("missing path parameter", "endpoint_id", in.Endpoint.ID, "parameter", missing.Name)
			return Envelope{Status: http.StatusUnprocessableEntity, Error: missing.Error()}
		}
		return Envelope{Status: http.StatusUnprocessableEntity, Error: err.Error()}
	}

	targetURL := joinURL(in.BaseURL, path)

	var closers []io.Closer
	defer func() {
		closeStreams(closers, d.logger)

		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked", "endpoint_id", in.Endpoint.ID, "panic", r)
			env = Envelope{Status: http.StatusInternalServerError, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	req, reqClosers, err := d.buildRequest(ctx, in.Endpoint, targetURL, remaining)
	closers = reqClosers
	if err != nil {
		d.logger.Error("build outbound request failed", "endpoint_id", in.Endpoint.ID, "error", err)
		return Envelope{Status: http.StatusInternalServerError, Error: err.Error()}
	}

	client := d.client
	if req.URL.Scheme == "http" {
		// Deliberate compatibility accommodation for legacy origins,
		// not a security feature.
		d.logger.Warn("making insecure http request", "url", targetURL)
		client = d.insecureClient
	}

	started := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(started).Milliseconds()
	metrics.ObserveUpstreamDuration(time.Since(started))

	if err != nil {
		// No HTTP response at all: connection failure or timeout.
		d.recordUsage(ctx, in, elapsed, http.StatusInternalServerError, err.Error())
		metrics.IncProxiedCall("error")
		return Envelope{
			Status:         http.StatusInternalServerError,
			Error:          err.Error(),
			ResponseTimeMs: &elapsed,
		}
	}
	defer resp.Body.Close()

	decoded := decodeBody(resp.Body)
	statusCode := resp.StatusCode
	metrics.IncProxiedCall(statusClass(statusCode))

	if statusCode >= http.StatusBadRequest {
		d.recordUsage(ctx, in, elapsed, statusCode, fmt.Sprintf("HTTP %d", statusCode))
		return Envelope{
			Status:         statusCode,
			Error:          "Request failed",
			Response:       decoded,
			ResponseTimeMs: &elapsed,
		}
	}

	d.recordUsage(ctx, in, elapsed, statusCode, "")
	return Envelope{
		Status:         statusCode,
		Data:           decoded,
		ResponseTimeMs: &elapsed,
	}
}

func (d *Dispatcher) buildRequest(
	ctx context.Context,
	endpoint domain.Endpoint,
	targetURL string,
	values map[string]any,
) (*http.Request, []io.Closer, error) {
	switch PlanRequest(endpoint, values) {
	case BodyQuery:
		req, err := http.NewRequestWithContext(ctx, endpoint.Method, targetURL, nil)
		if err != nil {
			return nil, nil, err
		}
		req.URL.RawQuery = buildQuery(values).Encode()
		req.Header.Set("Accept", "application/json")
		return req, nil, nil

	case BodyMultipart:
		parts, closers := buildMultipart(endpoint, values, d.logger)
		body, contentType, err := encodeMultipart(parts)
		if err != nil {
			return nil, closers, err
		}
		req, err := http.NewRequestWithContext(ctx, endpoint.Method, targetURL, body)
		if err != nil {
			return nil, closers, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, closers, nil

	default:
		encoded, err := json.Marshal(values)
		if err != nil {
			return nil, nil, fmt.Errorf("encode json body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, endpoint.Method, targetURL, bytes.NewReader(encoded))
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil, nil
	}
}

func (d *Dispatcher) recordUsage(ctx context.Context, in CallInput, elapsedMs int64, statusCode int, errMsg string) {
	if !in.TrackUsage || d.recorder == nil {
		return
	}

	rec := domain.UsageRecord{
		ID:             uuid.New(),
		APIID:          in.APIID,
		EndpointID:     in.Endpoint.ID,
		UserID:         in.UserID,
		Timestamp:      time.Now().UTC(),
		ResponseTimeMs: elapsedMs,
		StatusCode:     statusCode,
		Success:        statusCode >= 200 && statusCode < 300,
		ErrorMessage:   errMsg,
		RequestMethod:  in.Endpoint.Method,
		RequestPath:    in.Endpoint.Path,
	}

	if err := d.recorder.Record(ctx, rec); err != nil {
		d.logger.Error("usage record write failed",
			"api_id", in.APIID,
			"endpoint_id", in.Endpoint.ID,
			"error", err,
		)
	}
}

// joinURL joins a base origin and a resolved path with exactly one slash,
// whatever trailing or leading slashes either side carries.
func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// decodeBody returns parsed JSON when the body is JSON, the raw text
// otherwise, and nil for an empty body.
func decodeBody(r io.Reader) any {
	raw, err := io.ReadAll(r)
	if err != nil || len(raw) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}
	return string(raw)
}

func closeStreams(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("stream close failed", "error", err)
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
