// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"testing"
)

func TestValidateBaseURL(t *testing.T) {
	valid := []string{
		"https://billing.internal/api",
		"http://10.0.3.4:8081",
		"https://x.test/api/",
	}
	for _, raw := range valid {
		if err := ValidateBaseURL(raw); err != nil {
			t.Fatalf("expected %q to be valid, got %v", raw, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"/relative/path",
		"billing.internal/api",
		"ftp://files.internal",
	}
	for _, raw := range invalid {
		if err := ValidateBaseURL(raw); !errors.Is(err, ErrInvalidBaseURL) {
			t.Fatalf("expected %q to be rejected, got %v", raw, err)
		}
	}
}

func TestEndpointValidate(t *testing.T) {
	base := Endpoint{
		Name:   "get user",
		Method: "GET",
		Path:   "/users/{id}",
		Parameters: []Parameter{
			{Name: "id", Type: ParamString, Location: LocationPath, Required: true},
		},
	}

	t.Run("accepts a plain endpoint", func(t *testing.T) {
		if err := base.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		e := base
		e.Method = "TRACE"
		if err := e.Validate(); !errors.Is(err, ErrInvalidMethod) {
			t.Fatalf("expected ErrInvalidMethod, got %v", err)
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		e := base
		e.Path = " "
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for empty path")
		}
	})

	t.Run("rejects duplicate parameter names", func(t *testing.T) {
		e := base
		e.Parameters = []Parameter{
			{Name: "id", Type: ParamString, Location: LocationPath},
			{Name: "id", Type: ParamString, Location: LocationQuery},
		}
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for duplicate parameter names")
		}
	})

	t.Run("rejects file parameter outside the body", func(t *testing.T) {
		e := base
		e.Method = "POST"
		e.Parameters = []Parameter{
			{
				Name:       "upload",
				Type:       ParamFile,
				Location:   LocationQuery,
				FileConfig: &FileConfig{},
			},
		}
		if err := e.Validate(); !errors.Is(err, ErrFileParamLocation) {
			t.Fatalf("expected ErrFileParamLocation, got %v", err)
		}
	})

	t.Run("rejects file parameter on a bodyless method", func(t *testing.T) {
		e := base
		e.Method = "GET"
		e.Parameters = []Parameter{
			{
				Name:       "upload",
				Type:       ParamFile,
				Location:   LocationBody,
				FileConfig: &FileConfig{},
			},
		}
		if err := e.Validate(); !errors.Is(err, ErrFileParamMethod) {
			t.Fatalf("expected ErrFileParamMethod, got %v", err)
		}
	})

	t.Run("requires a file config on file parameters", func(t *testing.T) {
		e := base
		e.Method = "POST"
		e.Parameters = []Parameter{
			{Name: "upload", Type: ParamFile, Location: LocationBody},
		}
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for missing file config")
		}
	})

	t.Run("rejects file config on non-file parameters", func(t *testing.T) {
		e := base
		e.Parameters = []Parameter{
			{
				Name:       "id",
				Type:       ParamString,
				Location:   LocationPath,
				FileConfig: &FileConfig{},
			},
		}
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for stray file config")
		}
	})
}

func TestValidateRateLimit(t *testing.T) {
	for _, limit := range []int{1, 50, MaxRateLimit} {
		if err := ValidateRateLimit(limit); err != nil {
			t.Fatalf("expected limit %d to be valid, got %v", limit, err)
		}
	}
	for _, limit := range []int{0, -1, MaxRateLimit + 1} {
		if err := ValidateRateLimit(limit); !errors.Is(err, ErrInvalidRateLimit) {
			t.Fatalf("expected limit %d to be rejected, got %v", limit, err)
		}
	}
}
