// Package runlog records per-subject failures of a batch run.
//
// Failures go to an append-only SQLite table and are mirrored into a plain
// text log file on Flush. The file is always written: a clean batch gets an
// explicit "no errors" line instead of being silently absent.
package runlog

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS run_errors (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	subject    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	condition  TEXT,
	reason     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// #endregion schema

// #region logger

// Entry is one recorded subject failure.
type Entry struct {
	Subject   string
	Stage     string
	Condition string // condition label in effect for the run
	Reason    string
	CreatedAt time.Time
}

// Logger accumulates failures for one batch run.
type Logger struct {
	db      *sql.DB
	path    string
	entries []Entry
}

// New creates the run_errors table and a logger mirroring into the given
// text file path. db may be shared with the artifact store.
func New(db *sql.DB, path string) (*Logger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate run_errors: %w", err)
	}
	return &Logger{db: db, path: path}, nil
}

// Fail records one subject failure.
func (l *Logger) Fail(subject, stage, condition, reason string) error {
	e := Entry{
		Subject:   subject,
		Stage:     stage,
		Condition: condition,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	l.entries = append(l.entries, e)

	_, err := l.db.Exec(
		`INSERT INTO run_errors (subject, stage, condition, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Subject, e.Stage, nullIfEmpty(e.Condition), e.Reason,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run error: %w", err)
	}
	return nil
}

// Failures returns the number of recorded failures in this run.
func (l *Logger) Failures() int {
	return len(l.entries)
}

// Entries returns the recorded failures in order.
func (l *Logger) Entries() []Entry {
	return l.entries
}

// Flush writes the text mirror. With zero failures the file holds a single
// "no errors" line.
func (l *Logger) Flush() error {
	var b strings.Builder
	if len(l.entries) == 0 {
		b.WriteString("no errors\n")
	}
	for _, e := range l.entries {
		cond := e.Condition
		if cond == "" {
			cond = "-"
		}
		fmt.Fprintf(&b, "%s\t%s\tcondition=%s\tstage=%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Subject, cond, e.Stage, e.Reason)
	}
	if err := os.WriteFile(l.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write error log %s: %w", l.path, err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion logger
