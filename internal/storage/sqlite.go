// Package storage opens the local SQLite database and keeps its schema
// current. Record and schedule stores share one database file.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Schema versions:
// v1: consumption_records
// v2: report_schedules
// v3: report_deliveries
const CurrentSchemaVersion = 3

var migrations = []string{
	1: `CREATE TABLE IF NOT EXISTS consumption_records (
		id           TEXT PRIMARY KEY,
		entity_id    TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end   TEXT NOT NULL,
		electricity  REAL NOT NULL DEFAULT 0,
		fuel         REAL NOT NULL DEFAULT 0,
		waste        REAL NOT NULL DEFAULT 0,
		water        REAL NOT NULL DEFAULT 0,
		activities   TEXT NOT NULL DEFAULT '[]',
		notes        TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_consumption_entity_period
		ON consumption_records(entity_id, period_start);`,
	2: `CREATE TABLE IF NOT EXISTS report_schedules (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		entity_id   TEXT NOT NULL DEFAULT '',
		frequency   TEXT NOT NULL,
		format      TEXT NOT NULL,
		recipients  TEXT NOT NULL DEFAULT '[]',
		enabled     INTEGER NOT NULL DEFAULT 1,
		last_run_at TEXT NOT NULL DEFAULT '',
		next_run_at TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_report_schedules_due
		ON report_schedules(enabled, next_run_at);`,
	3: `CREATE TABLE IF NOT EXISTS report_deliveries (
		id          TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		sent_at     TEXT NOT NULL,
		recipients  INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	);`,
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug().Err(err).Str("pragma", pragma).Msg("sqlite pragma not applied")
		}
	}

	if err := Migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate brings the schema up to CurrentSchemaVersion, tracking progress in
// PRAGMA user_version.
func Migrate(db *sql.DB, logger zerolog.Logger) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", version, CurrentSchemaVersion)
	}

	for v := version + 1; v <= CurrentSchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", v, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", v, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", v, err)
		}
		logger.Info().Int("version", v).Msg("applied schema migration")
	}
	return nil
}

// SchemaVersion returns the database's current schema version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}
