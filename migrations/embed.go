// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var schemaFS embed.FS

// Migration is one embedded schema file. Files apply in lexical order,
// so names carry a zero-padded numeric prefix (0001_init.sql).
type Migration struct {
	Name string
	SQL  string
}

// Ordered returns every embedded .sql migration sorted by file name.
func Ordered() ([]Migration, error) {
	entries, err := fs.ReadDir(schemaFS, ".")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(body)})
	}

	return migrations, nil
}
