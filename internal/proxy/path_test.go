// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"errors"
	"testing"

	"github.com/mavrk/apihub/internal/domain"
)

func pathParam(name string) domain.Parameter {
	return domain.Parameter{Name: name, Type: domain.ParamString, Location: domain.LocationPath, Required: true}
}

func TestResolvePathSubstitutesAndConsumes(t *testing.T) {
	params := []domain.Parameter{
		pathParam("id"),
		{Name: "verbose", Type: domain.ParamBoolean, Location: domain.LocationQuery},
	}
	values := map[string]any{"id": "42", "verbose": true}

	path, remaining, err := ResolvePath("/users/{id}", params, values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/users/42" {
		t.Fatalf("expected /users/42, got %s", path)
	}
	if _, ok := remaining["id"]; ok {
		t.Fatal("consumed path value must be removed from remaining data")
	}
	if remaining["verbose"] != true {
		t.Fatal("non-path values must be preserved")
	}
	if values["id"] != "42" {
		t.Fatal("caller's map must not be mutated")
	}
}

func TestResolvePathNumericValue(t *testing.T) {
	// JSON decoding hands numbers over as float64.
	path, _, err := ResolvePath("/items/{id}", []domain.Parameter{pathParam("id")}, map[string]any{"id": float64(42)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/items/42" {
		t.Fatalf("expected /items/42, got %s", path)
	}
}

func TestResolvePathRepeatedPlaceholder(t *testing.T) {
	path, _, err := ResolvePath("/tenants/{id}/mirrors/{id}", []domain.Parameter{pathParam("id")}, map[string]any{"id": "7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/tenants/7/mirrors/7" {
		t.Fatalf("every occurrence must be replaced, got %s", path)
	}
}

func TestResolvePathMissingParameter(t *testing.T) {
	_, _, err := ResolvePath("/users/{id}", []domain.Parameter{pathParam("id")}, map[string]any{})
	var missing *MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
	if missing.Name != "id" {
		t.Fatalf("expected parameter name id, got %s", missing.Name)
	}
	if missing.Error() != "Missing path parameter: id" {
		t.Fatalf("unexpected message: %s", missing.Error())
	}
}

func TestResolvePathIgnoresNonPathParameters(t *testing.T) {
	params := []domain.Parameter{
		{Name: "q", Type: domain.ParamString, Location: domain.LocationQuery},
	}
	path, remaining, err := ResolvePath("/search", params, map[string]any{"q": "golang"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/search" {
		t.Fatalf("unexpected path: %s", path)
	}
	if remaining["q"] != "golang" {
		t.Fatal("query values must pass through untouched")
	}
}
