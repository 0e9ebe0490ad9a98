// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxRateLimit caps any configured per-department rate ceiling.
const MaxRateLimit = 1_000_000

// DefaultRateLimit applies to an API when no department override exists.
const DefaultRateLimit = 1000

// RateLimitWindow is the trailing window over which call counts are enforced.
const RateLimitWindow = time.Hour

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
	ParamFile    ParamType = "file"
)

type ParamLocation string

const (
	LocationQuery  ParamLocation = "query"
	LocationPath   ParamLocation = "path"
	LocationBody   ParamLocation = "body"
	LocationHeader ParamLocation = "header"
)

// API is a registered third-party REST API that calls can be proxied to.
type API struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	Active    bool      `json:"active"`
	RateLimit int       `json:"rate_limit"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Endpoint describes one HTTP operation of an API. The path may contain
// {name} placeholders resolved from path-location parameter values.
type Endpoint struct {
	ID          uuid.UUID   `json:"id"`
	APIID       uuid.UUID   `json:"api_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Method      string      `json:"method"`
	Path        string      `json:"path"`
	Parameters  []Parameter `json:"parameters"`
}

// FileConfig is present only on parameters of type "file".
type FileConfig struct {
	AllowedTypes []string `json:"allowed_types,omitempty"`
	MaxSizeBytes int64    `json:"max_size_bytes,omitempty"`
	Multiple     bool     `json:"multiple"`
}

type Parameter struct {
	ID         uuid.UUID     `json:"id"`
	EndpointID uuid.UUID     `json:"endpoint_id"`
	Name       string        `json:"name"`
	Type       ParamType     `json:"type"`
	Location   ParamLocation `json:"location"`
	Required   bool          `json:"required"`
	Default    any           `json:"default,omitempty"`
	FileConfig *FileConfig   `json:"file_config,omitempty"`
}

var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"PATCH":  true,
}

var allowedParamTypes = map[ParamType]bool{
	ParamString:  true,
	ParamNumber:  true,
	ParamBoolean: true,
	ParamObject:  true,
	ParamArray:   true,
	ParamFile:    true,
}

var allowedLocations = map[ParamLocation]bool{
	LocationQuery:  true,
	LocationPath:   true,
	LocationBody:   true,
	LocationHeader: true,
}

// ValidateBaseURL requires an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidBaseURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidBaseURL
	}
	return nil
}

// ValidateEndpoint enforces definition-time invariants: known method,
// known parameter types and locations, and the file-parameter rules.
// File parameters must live in the body, and an endpoint whose method
// carries no body (GET, DELETE) may not declare file parameters at all.
func (e Endpoint) Validate() error {
	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if !allowedMethods[method] {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, e.Method)
	}
	if strings.TrimSpace(e.Path) == "" {
		return errors.New("endpoint path is required")
	}

	seen := make(map[string]bool, len(e.Parameters))
	for _, p := range e.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("parameter name is required")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true

		if !allowedParamTypes[p.Type] {
			return fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type)
		}
		if !allowedLocations[p.Location] {
			return fmt.Errorf("parameter %q: unknown location %q", p.Name, p.Location)
		}

		if p.Type == ParamFile {
			if p.Location != LocationBody {
				return fmt.Errorf("parameter %q: %w", p.Name, ErrFileParamLocation)
			}
			if method == "GET" || method == "DELETE" {
				return fmt.Errorf("parameter %q: %w", p.Name, ErrFileParamMethod)
			}
			if p.FileConfig == nil {
				return fmt.Errorf("parameter %q: file parameter requires a file config", p.Name)
			}
		} else if p.FileConfig != nil {
			return fmt.Errorf("parameter %q: file config is only valid for file parameters", p.Name)
		}
	}

	return nil
}
