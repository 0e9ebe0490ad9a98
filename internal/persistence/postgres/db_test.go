// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"testing"
)

func TestNewPoolRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"://not-valid", "postgres://host:notaport/db"} {
		pool, err := NewPool(context.Background(), raw)
		if err == nil {
			t.Fatalf("expected parse error for %q", raw)
		}
		if pool != nil {
			t.Fatalf("expected nil pool for %q", raw)
		}
	}
}
