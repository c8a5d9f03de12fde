// Package sqlite is the persistent store for issues, their append-only
// history logs and routing reference data.
package sqlite

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

// ErrConcurrencyConflict reports that an optimistic status precondition
// failed; the caller must re-fetch and retry.
var ErrConcurrencyConflict = errors.New("issue status changed concurrently")

var ErrNotFound = errors.New("not found")

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		reporter_name      TEXT NOT NULL,
		reporter_email     TEXT NOT NULL,
		reporter_phone     TEXT DEFAULT '',
		description        TEXT NOT NULL,
		original_category  TEXT NOT NULL,
		verified_category  TEXT DEFAULT '',
		confidence         REAL DEFAULT 0,
		severity           TEXT DEFAULT 'medium',
		needs_review       INTEGER DEFAULT 0,
		ai_status          TEXT DEFAULT '',
		latitude           REAL DEFAULT 0,
		longitude          REAL DEFAULT 0,
		address            TEXT DEFAULT '',
		ward               TEXT DEFAULT '',
		images             TEXT DEFAULT '[]',
		resolution_images  TEXT DEFAULT '[]',
		department_code    TEXT DEFAULT '',
		assignee_id        TEXT DEFAULT '',
		sla_deadline       DATETIME,
		estimated_at       DATETIME,
		status             TEXT NOT NULL DEFAULT 'submitted',
		is_duplicate       INTEGER DEFAULT 0,
		duplicate_of       INTEGER DEFAULT 0,
		auto_escalated     INTEGER DEFAULT 0,
		escalation_reason  TEXT DEFAULT '',
		submitted_at       DATETIME NOT NULL,
		assigned_at        DATETIME,
		in_progress_at     DATETIME,
		resolved_at        DATETIME,
		closed_at          DATETIME,
		created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
	CREATE INDEX IF NOT EXISTS idx_issues_category ON issues(verified_category);
	CREATE INDEX IF NOT EXISTS idx_issues_department ON issues(department_code);
	CREATE INDEX IF NOT EXISTS idx_issues_deadline ON issues(sla_deadline);

	CREATE TABLE IF NOT EXISTS status_history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_id    INTEGER NOT NULL,
		from_status TEXT NOT NULL,
		to_status   TEXT NOT NULL,
		actor       TEXT DEFAULT '',
		notes       TEXT DEFAULT '',
		changed_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_issue ON status_history(issue_id);

	CREATE TABLE IF NOT EXISTS routing_log (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_id        INTEGER NOT NULL,
		method          TEXT NOT NULL,
		rule            TEXT DEFAULT '',
		department_code TEXT DEFAULT '',
		assignee_id     TEXT DEFAULT '',
		actor           TEXT DEFAULT '',
		routed_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_routing_issue ON routing_log(issue_id);

	CREATE TABLE IF NOT EXISTS departments (
		code             TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		categories       TEXT DEFAULT '[]',
		sla_hours        INTEGER NOT NULL,
		escalation_hours INTEGER DEFAULT 0,
		active           INTEGER DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS authority_users (
		id              TEXT PRIMARY KEY,
		name            TEXT DEFAULT '',
		email           TEXT DEFAULT '',
		department_code TEXT NOT NULL,
		ward            TEXT DEFAULT '',
		role            TEXT DEFAULT 'authority',
		active          INTEGER DEFAULT 1,
		suspended       INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_users_department ON authority_users(department_code, ward);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

// Store wraps the database handle with the query surface the pipeline,
// router and sweep consume.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}
