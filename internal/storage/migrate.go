package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations
var migrationFiles embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type migration struct {
	version string
	up      string
	down    string
}

func loadMigrations(dialect Dialect) ([]migration, error) {
	dir := path.Join("migrations", string(dialect))
	entries, err := fs.Glob(migrationFiles, dir+"/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("storage: no migrations for dialect %q", dialect)
	}
	sort.Strings(entries)

	out := make([]migration, 0, len(entries))
	for _, name := range entries {
		version := strings.TrimSuffix(path.Base(name), ".up.sql")
		up, readErr := migrationFiles.ReadFile(name)
		if readErr != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, readErr)
		}
		down, readErr := migrationFiles.ReadFile(path.Join(dir, version+".down.sql"))
		if readErr != nil {
			return nil, fmt.Errorf("read migration %s down: %w", version, readErr)
		}
		out = append(out, migration{version: version, up: string(up), down: string(down)})
	}
	return out, nil
}

// migrationStore is the dialect-specific half of the migrator: it tracks
// applied versions in schema_migrations and runs one migration per
// transaction.
type migrationStore interface {
	ensureTable(ctx context.Context) error
	appliedVersions(ctx context.Context) (map[string]bool, error)
	apply(ctx context.Context, version, stmt string, up bool) error
}

func runUp(ctx context.Context, store migrationStore, migrations []migration) error {
	if err := store.ensureTable(ctx); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := store.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := store.apply(ctx, m.version, m.up, true); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
	}
	return nil
}

func runDown(ctx context.Context, store migrationStore, migrations []migration) error {
	if err := store.ensureTable(ctx); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := store.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if !applied[m.version] {
			continue
		}
		if err := store.apply(ctx, m.version, m.down, false); err != nil {
			return fmt.Errorf("revert migration %s: %w", m.version, err)
		}
	}
	return nil
}

// MigrateUp applies pending SQLite migrations. Already applied versions are
// skipped, so it is safe to call on every start.
func MigrateUp(db *sql.DB) error {
	migrations, err := loadMigrations(DialectSQLite)
	if err != nil {
		return err
	}
	return runUp(context.Background(), sqliteMigrations{db: db}, migrations)
}

func MigrateDown(db *sql.DB) error {
	migrations, err := loadMigrations(DialectSQLite)
	if err != nil {
		return err
	}
	return runDown(context.Background(), sqliteMigrations{db: db}, migrations)
}

func MigratePostgresUp(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := loadMigrations(DialectPostgres)
	if err != nil {
		return err
	}
	return runUp(ctx, pgMigrations{pool: pool}, migrations)
}

func MigratePostgresDown(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := loadMigrations(DialectPostgres)
	if err != nil {
		return err
	}
	return runDown(ctx, pgMigrations{pool: pool}, migrations)
}

type sqliteMigrations struct {
	db *sql.DB
}

func (m sqliteMigrations) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`)
	return err
}

func (m sqliteMigrations) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (m sqliteMigrations) apply(ctx context.Context, version, stmt string, up bool) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, version, mustTime(time.Now()))
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, version)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

type pgMigrations struct {
	pool *pgxpool.Pool
}

func (m pgMigrations) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (m pgMigrations) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (m pgMigrations) apply(ctx context.Context, version, stmt string, up bool) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, stmt); err != nil {
		return err
	}
	if up {
		_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
