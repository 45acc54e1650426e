package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the schema files, named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
// The migrations package sets it from an embedded filesystem.
var MigrationsFS fs.FS

// MigrationsDir is the directory inside MigrationsFS holding the files.
var MigrationsDir = "migrations"

// Migration is one versioned schema change.
type Migration struct {
	Version string // YYYYMMDD_HHMMSS
	Name    string
	Up      string
	Down    string
}

// SchemaStatus describes how far the database schema has been migrated.
type SchemaStatus struct {
	// Current is the most recently applied version, empty on a fresh database.
	Current string `json:"current"`

	Applied int      `json:"applied"`
	Pending []string `json:"pending,omitempty"`
}

// UpToDate reports whether every known migration has been applied.
func (s SchemaStatus) UpToDate() bool {
	return len(s.Pending) == 0
}

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`

// Migrate applies pending migrations oldest first.
//
// Each migration commits on its own. When one fails, the ones before it
// stay applied and the run stops there.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, createSchemaMigrations); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	all, err := readMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	done, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range all {
		if done[m.Version] {
			continue
		}
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration and returns its
// version. It returns "" when nothing is applied.
func (db *DB) Rollback(ctx context.Context) (string, error) {
	if _, err := db.ExecContext(ctx, createSchemaMigrations); err != nil {
		return "", fmt.Errorf("creating migrations table: %w", err)
	}

	var latest string
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), '') FROM schema_migrations",
	).Scan(&latest)
	if err != nil {
		return "", fmt.Errorf("reading latest migration: %w", err)
	}
	if latest == "" {
		return "", nil
	}

	all, err := readMigrations()
	if err != nil {
		return "", fmt.Errorf("loading migrations: %w", err)
	}
	idx := sort.Search(len(all), func(i int) bool { return all[i].Version >= latest })
	if idx == len(all) || all[idx].Version != latest {
		return "", fmt.Errorf("migration %s not found in filesystem", latest)
	}
	m := all[idx]
	if m.Down == "" {
		return "", fmt.Errorf("migration %s has no down SQL", latest)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("rolling back %s (%s): %w", m.Version, m.Name, err)
	}
	return m.Version, nil
}

// SchemaStatus compares the applied versions with the known migrations.
func (db *DB) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	var st SchemaStatus

	if _, err := db.ExecContext(ctx, createSchemaMigrations); err != nil {
		return st, fmt.Errorf("creating migrations table: %w", err)
	}
	done, err := db.appliedVersions(ctx)
	if err != nil {
		return st, err
	}
	all, err := readMigrations()
	if err != nil {
		return st, fmt.Errorf("loading migrations: %w", err)
	}

	st.Applied = len(done)
	for v := range done {
		if v > st.Current {
			st.Current = v
		}
	}
	for _, m := range all {
		if !done[m.Version] {
			st.Pending = append(st.Pending, m.Version)
		}
	}
	return st, nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// readMigrations returns the migrations in MigrationsFS sorted by version.
// A missing directory means there is nothing to apply.
func readMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil //nolint:nilerr // no migrations directory
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, up, ok := splitMigrationName(e.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			continue // orphan .down.sql
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// splitMigrationName parses "20260301_120000_initial_schema.up.sql" into
// its version, description and direction.
func splitMigrationName(file string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(file, ".up.sql")
	up = found
	if !found {
		if base, found = strings.CutSuffix(file, ".down.sql"); !found {
			return "", "", false, false
		}
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", "", false, false
	}
	version = parts[0] + "_" + parts[1]
	name = version
	if len(parts) == 3 {
		name = parts[2]
	}
	return version, name, up, true
}
