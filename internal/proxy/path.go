// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mavrk/apihub/internal/domain"
)

// MissingParameterError reports a path-location parameter that has no
// matching value in the call payload. It is a validation failure, not a
// generic bad request, so callers can surface the parameter name.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return "Missing path parameter: " + e.Name
}

// ResolvePath substitutes {name} placeholders in the endpoint's path
// template using values for parameters whose location is "path". Consumed
// keys are removed from the returned value map so they are not also sent
// as query or body data. The input map is never mutated.
func ResolvePath(template string, params []domain.Parameter, values map[string]any) (string, map[string]any, error) {
	remaining := make(map[string]any, len(values))
	for k, v := range values {
		remaining[k] = v
	}

	path := template
	for _, p := range params {
		if p.Location != domain.LocationPath {
			continue
		}
		v, ok := remaining[p.Name]
		if !ok {
			return "", nil, &MissingParameterError{Name: p.Name}
		}
		// Replace every occurrence; a template may repeat a placeholder.
		path = strings.ReplaceAll(path, "{"+p.Name+"}", stringify(v))
		delete(remaining, p.Name)
	}

	return path, remaining, nil
}

// stringify renders a parameter value the way it should appear in a URL
// path or query string. JSON numbers decode as float64, so integral
// values must not pick up an exponent or trailing zeros.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
