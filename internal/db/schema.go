package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// EnsureSchema executes every .sql file found under dir in schemaFS, in name
// order. The files only contain CREATE ... IF NOT EXISTS statements so the call
// is safe on every startup; existing tables are never altered.
func EnsureSchema(ctx context.Context, d *DB, schemaFS fs.FS, dir string) error {
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		b, err := fs.ReadFile(schemaFS, path.Join(dir, fname))
		if err != nil {
			return fmt.Errorf("read schema %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec schema %s: %w", fname, err)
		}
		d.logger.Debug("schema applied", "file", fname)
	}

	return nil
}
