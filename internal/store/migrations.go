// Package store provides SQLite-based persistence for realcv.
package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Writing sessions",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "Question sets and questions",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
	{
		Version:     3,
		Description: "Candidate submissions",
		Up:          migrationV3Up,
		Down:        migrationV3Down,
	},
	{
		Version:     4,
		Description: "Signed certificates",
		Up:          migrationV4Up,
		Down:        migrationV4Down,
	},
}

// Migration SQL statements

const migrationV1Up = `
-- One row per writing context; body is the session JSON
CREATE TABLE IF NOT EXISTS writing_sessions (
    id          TEXT PRIMARY KEY,
    start_time  INTEGER NOT NULL,
    end_time    INTEGER,
    updated_at  INTEGER NOT NULL,
    body        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated ON writing_sessions(updated_at);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_sessions_updated;
DROP TABLE IF EXISTS writing_sessions;
`

const migrationV2Up = `
CREATE TABLE IF NOT EXISTS question_sets (
    id          TEXT PRIMARY KEY,
    token       TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    created_by  TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    expires_at  INTEGER,
    is_active   INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_question_sets_creator ON question_sets(created_by, created_at);

CREATE TABLE IF NOT EXISTS questions (
    question_set_id TEXT NOT NULL REFERENCES question_sets(id) ON DELETE CASCADE,
    id              TEXT NOT NULL,
    text            TEXT NOT NULL,
    ordinal         INTEGER NOT NULL,
    PRIMARY KEY (question_set_id, id)
);
`

const migrationV2Down = `
DROP TABLE IF EXISTS questions;
DROP INDEX IF EXISTS idx_question_sets_creator;
DROP TABLE IF EXISTS question_sets;
`

const migrationV3Up = `
-- Responses and flags are stored as JSON; the scores inside them are
-- always server-computed.
CREATE TABLE IF NOT EXISTS submissions (
    id                   TEXT PRIMARY KEY,
    question_set_id      TEXT NOT NULL REFERENCES question_sets(id),
    token                TEXT NOT NULL,
    candidate_email      TEXT,
    candidate_first_name TEXT,
    candidate_last_name  TEXT,
    submitted_at         INTEGER NOT NULL,
    ip_address           TEXT,
    user_agent           TEXT,
    overall_score        REAL NOT NULL,
    flags                TEXT NOT NULL,
    responses            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_set ON submissions(question_set_id, submitted_at);
`

const migrationV3Down = `
DROP INDEX IF EXISTS idx_submissions_set;
DROP TABLE IF EXISTS submissions;
`

const migrationV4Up = `
CREATE TABLE IF NOT EXISTS certificates (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    tier        INTEGER NOT NULL,
    issued_at   INTEGER NOT NULL,
    body        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certificates_session ON certificates(session_id);
`

const migrationV4Down = `
DROP INDEX IF EXISTS idx_certificates_session;
DROP TABLE IF EXISTS certificates;
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(db *sql.DB) error {
	// Ensure migrations table exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	currentVersion, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}

// RollbackMigration rolls back the last applied migration.
func RollbackMigration(db *sql.DB) error {
	currentVersion, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range migrations {
		if migrations[i].Version == currentVersion {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.Exec(migration.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("rollback migration %d: %w", currentVersion, err)
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", currentVersion); err != nil {
		tx.Rollback()
		return fmt.Errorf("remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollback: %w", err)
	}

	return nil
}

// MigrationStatus describes which migrations have been applied.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
	Applied        []AppliedMigration
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// GetMigrationStatus returns the current migration status.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{
		LatestVersion: migrations[len(migrations)-1].Version,
	}

	rows, err := db.Query("SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		// Table might not exist yet
		status.Pending = migrations
		return status, nil
	}
	defer rows.Close()

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var am AppliedMigration
		var appliedAt int64
		if err := rows.Scan(&am.Version, &appliedAt, &am.Description); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, appliedAt)
		status.Applied = append(status.Applied, am)
		appliedVersions[am.Version] = true

		if am.Version > status.CurrentVersion {
			status.CurrentVersion = am.Version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if !appliedVersions[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}

	return status, nil
}

// ValidateSchema checks that all expected tables exist.
func ValidateSchema(db *sql.DB) error {
	requiredTables := []string{
		"writing_sessions",
		"question_sets",
		"questions",
		"submissions",
		"certificates",
		"schema_migrations",
	}

	for _, table := range requiredTables {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}

	return nil
}
