package storage

import (
	"context"
	"fmt"
	"strings"
)

type Options struct {
	// Driver is "sqlite" or "postgres". Empty infers it from DSN.
	Driver string
	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string
}

// Open returns a migrated repository for the configured driver.
func Open(ctx context.Context, opts Options) (Repository, error) {
	dialect, err := ResolveDialect(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("storage: empty dsn for %s", dialect)
	}
	if dialect == DialectPostgres {
		repo, err := OpenPostgres(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	repo, err := OpenSQLite(opts.DSN)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func ResolveDialect(driver, dsn string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "":
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return DialectPostgres, nil
		}
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("storage: unsupported driver %q", driver)
	}
}
