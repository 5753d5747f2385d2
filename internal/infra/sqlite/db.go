// Package sqlite stores the ledger in a local SQLite database. It is the
// default backend for the CLI and for single-user deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/dvloznov/finance-ledger/migrations"
	_ "github.com/mattn/go-sqlite3"
)

const createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    checksum   TEXT
);`

var _ pipeline.Repository = (*Repository)(nil)

// Repository is the SQLite implementation of pipeline.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens the database at dsn and applies pending migrations. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite3", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// migrate applies the embedded SQLite migrations that are not recorded in
// schema_migrations yet.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return fmt.Errorf("migrate: creating schema_migrations: %w", err)
	}

	all, err := migrations.Load(migrations.SQLite, migrations.SQLiteDir, nil)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version, COALESCE(checksum, '') FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("migrate: reading applied migrations: %w", err)
	}
	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			rows.Close()
			return fmt.Errorf("migrate: scanning applied migration: %w", err)
		}
		applied[version] = checksum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pending, drifted := migrations.Pending(all, applied)
	if len(drifted) > 0 {
		log := logger.FromContext(ctx)
		for _, d := range drifted {
			log.Warn().Str("migration", d.Label()).Msg("Applied migration was modified since it ran")
		}
	}
	for _, m := range pending {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate: %s: %w", m.Label(), err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: %s: %w", m.Label(), err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Checksum); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: recording %s: %w", m.Label(), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate: %s: %w", m.Label(), err)
		}
	}
	return nil
}
