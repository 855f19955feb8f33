package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// step is one numbered schema file, e.g. 0002_alerts.sql is version 2.
type step struct {
	version int
	file    string
	body    string
}

// Migrate brings the plategate schema up to date.
func Migrate(ctx context.Context, db *sql.DB) error {
	return migrateFrom(ctx, db, schemaFS, "migrations")
}

// migrateFrom applies the pending steps found in dir of fsys. Each step and
// its bookkeeping row commit together. A database stamped with a version the
// files do not know about was written by a newer build and is refused.
func migrateFrom(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version       INTEGER PRIMARY KEY,
  file          TEXT NOT NULL DEFAULT '',
  applied_at_ms INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	steps, err := readSteps(fsys, dir)
	if err != nil {
		return err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	known := make(map[int]bool, len(steps))
	for _, st := range steps {
		known[st.version] = true
	}
	for v := range done {
		if !known[v] {
			return fmt.Errorf("migrate: database has schema version %d, unknown to this build", v)
		}
	}

	for _, st := range steps {
		if done[st.version] {
			continue
		}
		if err := runStep(ctx, db, st); err != nil {
			return err
		}
	}
	return nil
}

func readSteps(fsys fs.FS, dir string) ([]step, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: list %s: %w", dir, err)
	}

	var steps []step
	byVersion := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		v, err := parseVersion(e.Name())
		if err != nil {
			return nil, err
		}
		if other, ok := byVersion[v]; ok {
			return nil, fmt.Errorf("migrate: %s and %s share version %d", other, e.Name(), v)
		}
		byVersion[v] = e.Name()

		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", e.Name(), err)
		}
		steps = append(steps, step{version: v, file: e.Name(), body: string(b)})
	}

	slices.SortFunc(steps, func(a, b step) int { return a.version - b.version })
	return steps, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations;`)
	if err != nil {
		return nil, fmt.Errorf("migrate: read applied versions: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("migrate: scan applied version: %w", err)
		}
		done[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("migrate: read applied versions: %w", err)
	}
	return done, nil
}

func runStep(ctx context.Context, db *sql.DB, st step) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", st.file, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, st.body); err != nil {
		return fmt.Errorf("migrate: apply %s: %w", st.file, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations(version, file, applied_at_ms) VALUES (?, ?, ?);`,
		st.version, st.file, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("migrate: stamp %s: %w", st.file, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit %s: %w", st.file, err)
	}
	return nil
}

// parseVersion reads the numeric prefix before the first underscore.
func parseVersion(file string) (int, error) {
	prefix, _, ok := strings.Cut(file, "_")
	if !ok || prefix == "" {
		return 0, fmt.Errorf("migrate: %s is not named NNNN_description.sql", file)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migrate: %s has no positive version prefix", file)
	}
	return v, nil
}
