// Package database holds the event log schema and applies it with pgx.
package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const versionTable = "gw_release_schema_version"

// Conn is satisfied by *pgx.Conn and *pgxpool.Pool
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migration is one numbered schema change
type Migration struct {
	Version uint
	Name    string
	Up      string
	Down    string
}

// Migrations returns the embedded migrations in version order
func Migrations() ([]Migration, error) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(ups))
	for _, up := range ups {
		base := strings.TrimSuffix(path.Base(up), ".up.sql")
		num, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("malformed migration file name %q", up)
		}
		version, err := strconv.ParseUint(num, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed migration version in %q: %w", up, err)
		}
		upSQL, err := migrationsFS.ReadFile(up)
		if err != nil {
			return nil, err
		}
		downSQL, err := migrationsFS.ReadFile(strings.TrimSuffix(up, ".up.sql") + ".down.sql")
		if err != nil {
			return nil, fmt.Errorf("missing down migration for %q: %w", up, err)
		}
		out = append(out, Migration{
			Version: uint(version),
			Name:    name,
			Up:      string(upSQL),
			Down:    string(downSQL),
		})
	}
	slices.SortFunc(out, func(a, b Migration) int {
		return int(a.Version) - int(b.Version)
	})
	return out, nil
}

// Version returns the currently applied schema version, 0 when none
func Version(ctx context.Context, db Conn) (uint, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	var v int64
	if err := db.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM "+versionTable).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return uint(v), nil
}

// MigrateUp applies every migration newer than the current version
func MigrateUp(ctx context.Context, db Conn) error {
	logger := logr.FromContextOrDiscard(ctx)

	migrations, err := Migrations()
	if err != nil {
		return err
	}
	current, err := Version(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.Info("Applying migration", "version", m.Version, "name", m.Name)
		err := inTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO "+versionTable+" (version) VALUES ($1)", int64(m.Version))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the given number of applied migrations, newest first
func MigrateDown(ctx context.Context, db Conn, steps int) error {
	logger := logr.FromContextOrDiscard(ctx)

	migrations, err := Migrations()
	if err != nil {
		return err
	}
	current, err := Version(ctx, db)
	if err != nil {
		return err
	}

	slices.Reverse(migrations)
	for _, m := range migrations {
		if steps <= 0 {
			break
		}
		if m.Version > current {
			continue
		}
		logger.Info("Reverting migration", "version", m.Version, "name", m.Name)
		err := inTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "DELETE FROM "+versionTable+" WHERE version = $1", int64(m.Version))
			return err
		})
		if err != nil {
			return fmt.Errorf("revert of migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		steps--
	}
	return nil
}

func ensureVersionTable(ctx context.Context, db Conn) error {
	_, err := db.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+versionTable+
		" (version BIGINT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())")
	if err != nil {
		return fmt.Errorf("failed to create schema version table: %w", err)
	}
	return nil
}

func inTx(ctx context.Context, db Conn, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
