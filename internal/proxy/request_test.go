// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"testing"

	"github.com/mavrk/apihub/internal/domain"
)

func TestPlanRequest(t *testing.T) {
	fileParam := domain.Parameter{
		Name:       "upload",
		Type:       domain.ParamFile,
		Location:   domain.LocationBody,
		FileConfig: &domain.FileConfig{},
	}

	t.Run("get uses query string", func(t *testing.T) {
		e := domain.Endpoint{Method: "GET"}
		if kind := PlanRequest(e, map[string]any{"a": "b"}); kind != BodyQuery {
			t.Fatalf("expected BodyQuery, got %d", kind)
		}
	})

	t.Run("delete has no body semantics", func(t *testing.T) {
		e := domain.Endpoint{Method: "DELETE"}
		if kind := PlanRequest(e, nil); kind != BodyQuery {
			t.Fatalf("expected BodyQuery, got %d", kind)
		}
	})

	t.Run("post without file params uses json", func(t *testing.T) {
		e := domain.Endpoint{Method: "POST", Parameters: []domain.Parameter{
			{Name: "name", Type: domain.ParamString, Location: domain.LocationBody},
		}}
		if kind := PlanRequest(e, map[string]any{"name": "x"}); kind != BodyJSON {
			t.Fatalf("expected BodyJSON, got %d", kind)
		}
	})

	t.Run("file param forces multipart even without a file value", func(t *testing.T) {
		e := domain.Endpoint{Method: "POST", Parameters: []domain.Parameter{fileParam}}
		if kind := PlanRequest(e, map[string]any{"note": "no file here"}); kind != BodyMultipart {
			t.Fatalf("expected BodyMultipart, got %d", kind)
		}
	})

	t.Run("put and patch behave like post", func(t *testing.T) {
		for _, method := range []string{"PUT", "PATCH"} {
			e := domain.Endpoint{Method: method, Parameters: []domain.Parameter{fileParam}}
			if kind := PlanRequest(e, nil); kind != BodyMultipart {
				t.Fatalf("%s: expected BodyMultipart, got %d", method, kind)
			}
		}
	})
}

func TestBuildQuery(t *testing.T) {
	q := buildQuery(map[string]any{
		"page":    float64(2),
		"active":  true,
		"tags":    []any{"a", "b"},
		"comment": "hello world",
	})

	if got := q.Get("page"); got != "2" {
		t.Fatalf("expected page=2, got %q", got)
	}
	if got := q.Get("active"); got != "true" {
		t.Fatalf("expected active=true, got %q", got)
	}
	if tags := q["tags"]; len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Fatalf("expected repeated tags values, got %v", tags)
	}
	if got := q.Get("comment"); got != "hello world" {
		t.Fatalf("unexpected comment value: %q", got)
	}
}

func TestTextPartValue(t *testing.T) {
	if got := textPartValue("plain"); got != "plain" {
		t.Fatalf("unexpected text value: %q", got)
	}
	if got := textPartValue(map[string]any{"a": float64(1)}); got != `{"a":1}` {
		t.Fatalf("objects must be json-encoded, got %q", got)
	}
	if got := textPartValue([]any{"x", "y"}); got != `["x","y"]` {
		t.Fatalf("arrays must be json-encoded, got %q", got)
	}
}
