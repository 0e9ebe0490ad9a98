// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"encoding/json"
	"net/url"

	"github.com/mavrk/apihub/internal/domain"
)

type BodyKind int

const (
	// BodyQuery encodes remaining values on the query string (GET).
	BodyQuery BodyKind = iota
	// BodyJSON sends remaining values as a JSON object body.
	BodyJSON
	// BodyMultipart sends a multipart form carrying text and file parts.
	BodyMultipart
)

// RequestSpec is the fully-decided shape of the outbound request body.
// Exactly one of Query, JSON, or Parts is populated, per Kind.
type RequestSpec struct {
	Kind  BodyKind
	Query url.Values
	JSON  map[string]any
	Parts []Part
}

// PlanRequest picks the outbound encoding for an endpoint call. GET (and
// DELETE, which has no body semantics here) encodes values as a query
// string. Writes use multipart whenever the endpoint declares any file
// parameter, even if no file value was supplied for this call; otherwise
// a JSON body.
func PlanRequest(endpoint domain.Endpoint, values map[string]any) BodyKind {
	switch endpoint.Method {
	case "GET", "DELETE":
		return BodyQuery
	}
	for _, p := range endpoint.Parameters {
		if p.Type == domain.ParamFile {
			return BodyMultipart
		}
	}
	return BodyJSON
}

func buildQuery(values map[string]any) url.Values {
	q := make(url.Values, len(values))
	for k, v := range values {
		switch items := v.(type) {
		case []any:
			for _, item := range items {
				q.Add(k, stringify(item))
			}
		default:
			q.Set(k, stringify(v))
		}
	}
	return q
}

// textPartValue renders a non-file multipart field. Objects and arrays
// are JSON-serialized into a single text part.
func textPartValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return stringify(v)
		}
		return string(encoded)
	default:
		return stringify(v)
	}
}
