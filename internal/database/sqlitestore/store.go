// Package sqlitestore provides the SQLite-backed moderation store.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds. Timestamps are stored
// as UTC TEXT, so lexicographic comparison in SQL matches time order only when
// every value has the same width. time.RFC3339Nano trims trailing zeros and
// breaks that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS mod_reports (
	id             TEXT PRIMARY KEY,
	reporter_id    TEXT NOT NULL,
	target_user_id TEXT NOT NULL,
	post_id        TEXT,
	comment_id     TEXT,
	reason         TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	resolved_by    TEXT NOT NULL DEFAULT '',
	resolved_at    TEXT,
	CHECK ((post_id IS NULL) != (comment_id IS NULL))
);

-- One open report per reporter and content item. Resolved or dismissed
-- reports free the slot so the content can be reported again.
CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_open_unique
	ON mod_reports(reporter_id, coalesce(post_id, ''), coalesce(comment_id, ''))
	WHERE status = 'open';

CREATE INDEX IF NOT EXISTS idx_reports_reporter_created ON mod_reports(reporter_id, created_at);
CREATE INDEX IF NOT EXISTS idx_reports_status ON mod_reports(status);

CREATE TABLE IF NOT EXISTS mod_warnings (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	report_id  TEXT NOT NULL DEFAULT '',
	issued_by  TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_warnings_user ON mod_warnings(user_id, created_at);

CREATE TABLE IF NOT EXISTS mod_suspensions (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	report_id    TEXT NOT NULL DEFAULT '',
	issued_by    TEXT NOT NULL,
	reason       TEXT NOT NULL,
	duration_tag TEXT NOT NULL,
	issued_at    TEXT NOT NULL,
	expires_at   TEXT,
	lifted_at    TEXT,
	lift_reason  TEXT NOT NULL DEFAULT ''
);

-- At most one unlifted suspension per user.
CREATE UNIQUE INDEX IF NOT EXISTS idx_suspensions_unlifted_unique
	ON mod_suspensions(user_id)
	WHERE lifted_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_suspensions_user ON mod_suspensions(user_id, issued_at);
CREATE INDEX IF NOT EXISTS idx_suspensions_expiry
	ON mod_suspensions(expires_at)
	WHERE lifted_at IS NULL AND expires_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS mod_appeals (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	message     TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	resolved_by TEXT NOT NULL DEFAULT '',
	resolved_at TEXT,
	granted     INTEGER NOT NULL DEFAULT 0
);

-- At most one open appeal per user.
CREATE UNIQUE INDEX IF NOT EXISTS idx_appeals_open_unique
	ON mod_appeals(user_id)
	WHERE status = 'open';

CREATE TABLE IF NOT EXISTS mod_user_status (
	user_id              TEXT PRIMARY KEY,
	state                TEXT NOT NULL,
	active_suspension_id TEXT NOT NULL DEFAULT '',
	warning_count        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS mod_audit_log (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	actor_id   TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	details    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created ON mod_audit_log(created_at);
`

// Store implements moderation.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the moderation database at path and applies
// the schema. A single connection serializes writes; WAL plus busy_timeout
// keep readers from failing during write bursts.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
