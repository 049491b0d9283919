package db

import (
	"cmp"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed psql_schema/*.sql
var migrationFiles embed.FS

// Files named NNN.description.sql run once, in id order. Ids from
// viewsMigrationID up hold views and functions: they are idempotent and rerun
// after every batch of regular migrations.
const viewsMigrationID = 900

// Arbitrary key shared by every instance, so only one migrates at a time.
const migrationLockKey = 0x6769766d

type migration struct {
	id   int
	name string
	file string
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "psql_schema")
	if err != nil {
		return nil, err
	}
	var migs []migration
	for _, entry := range entries {
		rawID, rest, ok := strings.Cut(entry.Name(), ".")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid migration file name %q", entry.Name())
		}
		migs = append(migs, migration{id: id, name: strings.TrimSuffix(rest, ".sql"), file: entry.Name()})
	}
	slices.SortFunc(migs, func(a, b migration) int { return cmp.Compare(a.id, b.id) })
	return migs, nil
}

// RunMigrations applies every migration not recorded in gm_migrations. All of
// them run in one transaction, so a failure leaves the schema untouched.
func (s *DB) RunMigrations(ctx context.Context) error {
	migs, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("couldn't list migrations: %w", err)
	}

	return pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("couldn't acquire migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS gm_migrations (
			id 			integer 	PRIMARY KEY,
			name 		text 		NOT NULL,
			applied_at 	timestamptz NOT NULL DEFAULT NOW()
		)`); err != nil {
			return fmt.Errorf("couldn't create migrations table: %w", err)
		}

		rows, _ := tx.Query(ctx, "SELECT id FROM gm_migrations")
		applied, err := pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return fmt.Errorf("couldn't read applied migrations: %w", err)
		}

		var ran int
		for _, mig := range migs {
			if mig.id >= viewsMigrationID || slices.Contains(applied, mig.id) {
				continue
			}
			slog.InfoContext(ctx, "Executing migration", slog.Int("id", mig.id), slog.String("name", mig.name))
			if err := runMigration(ctx, tx, mig); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, "INSERT INTO gm_migrations (id, name) VALUES ($1, $2)", mig.id, mig.name); err != nil {
				return fmt.Errorf("couldn't record migration %d: %w", mig.id, err)
			}
			ran++
		}
		if ran == 0 {
			slog.DebugContext(ctx, "Database schema is up to date", slog.Int("migrations", len(applied)))
			return nil
		}

		for _, mig := range migs {
			if mig.id < viewsMigrationID {
				continue
			}
			if err := runMigration(ctx, tx, mig); err != nil {
				return err
			}
		}
		return nil
	})
}

func runMigration(ctx context.Context, tx pgx.Tx, mig migration) error {
	contents, err := migrationFiles.ReadFile(path.Join("psql_schema", mig.file))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", mig.id, mig.name, err)
	}
	return nil
}
