// Package store persists the bridge credential in SQLite, optionally
// sealed with age.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/cordbridge/internal/logging"
)

// memoryPath selects a private in-memory database.
const memoryPath = ":memory:"

// DB is the bridge's SQLite file. Its schema version lives in the
// database header (PRAGMA user_version).
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens the database at path, creating the file and its directory
// when missing, and brings the schema up to date.
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection, so an in-memory database is the same database on
	// every query.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB, log: log.Sub("store")}
	if err := db.init(context.Background(), path != memoryPath); err != nil {
		sqlDB.Close()
		return nil, err
	}
	db.log.Info().Str("path", path).Int("schema", len(schema)).Msg("database opened")
	return db, nil
}

func (db *DB) init(ctx context.Context, onDisk bool) error {
	if onDisk {
		if _, err := db.sql.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("setting WAL mode: %w", err)
		}
	}
	if err := db.upgrade(ctx); err != nil {
		return fmt.Errorf("upgrading schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.log.Info().Msg("closing database")
	return db.sql.Close()
}

// SQL exposes the connection for tests and ad-hoc queries.
func (db *DB) SQL() *sql.DB { return db.sql }

// Version returns the schema version recorded in the database.
func (db *DB) Version(ctx context.Context) (int, error) {
	var v int
	if err := db.sql.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// upgrade applies every schema step past the recorded version, each in
// its own transaction together with the version bump.
func (db *DB) upgrade(ctx context.Context) error {
	current, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if current > len(schema) {
		return fmt.Errorf("database schema %d is newer than this build (%d)", current, len(schema))
	}

	for i := current; i < len(schema); i++ {
		step := schema[i]
		version := i + 1
		db.log.Info().Int("version", version).Str("step", step.name).Msg("upgrading schema")

		tx, err := db.sql.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, step.ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("step %d (%s): %w", version, step.name, err)
		}
		// PRAGMA does not take bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording version %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing version %d: %w", version, err)
		}
	}
	return nil
}
