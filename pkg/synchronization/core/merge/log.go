package merge

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// LogEntry is one audit row the executor writes for every action it applies,
// supplementing the spec's history table with a record of *why* an entry was
// appended (spec.md §4.7's "appending" step, grounded on the original
// implementation's separate merge log table).
type LogEntry struct {
	UTime        int64
	PeerID       string
	ActionType   string
	GPath        relpath.GPath
	Details      string
	AuthorPeerID string
}

const logTableName = "merges"

const logSchema = `
CREATE TABLE IF NOT EXISTS merges (
	utime         INTEGER NOT NULL,
	peerid        TEXT    NOT NULL,
	action        TEXT    NOT NULL,
	groupid       TEXT    NOT NULL,
	path          TEXT    NOT NULL,
	details       TEXT    NOT NULL,
	author_peerid TEXT    NOT NULL
);
`

const logInsertSQL = `
INSERT INTO merges (utime, peerid, action, groupid, path, details, author_peerid)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const logSelectSQL = `
SELECT utime, peerid, action, groupid, path, details, author_peerid
FROM merges
ORDER BY utime
`

// Log is the append-only audit trail of merge actions applied to a
// destination, backed by its own SQLite connection onto the destination's
// history database file (SQLite supports multiple connections onto one
// file, so this lives alongside the "files" table without the merge package
// needing access to history.Store's private handle).
type Log struct {
	db *sql.DB
}

// OpenLog opens (creating if necessary) the merges table in the SQLite
// database at path, which should be the same path passed to history.Open for
// this destination.
func OpenLog(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening merge log database")
	}
	if _, err := db.Exec(logSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating merge log schema")
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append records one applied action.
func (l *Log) Append(ctx context.Context, entry LogEntry) error {
	_, err := l.db.ExecContext(ctx, logInsertSQL,
		entry.UTime, entry.PeerID, entry.ActionType, entry.GPath.GroupID, entry.GPath.Path,
		entry.Details, entry.AuthorPeerID)
	if err != nil {
		return errors.Wrap(err, "appending merge log entry")
	}
	return nil
}

// ReadAll returns every recorded merge action, oldest first.
func (l *Log) ReadAll(ctx context.Context) ([]LogEntry, error) {
	rows, err := l.db.QueryContext(ctx, logSelectSQL)
	if err != nil {
		return nil, errors.Wrap(err, "querying merge log")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.UTime, &e.PeerID, &e.ActionType, &e.GPath.GroupID, &e.GPath.Path,
			&e.Details, &e.AuthorPeerID); err != nil {
			return nil, errors.Wrap(err, "scanning merge log row")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating merge log rows")
	}
	return entries, nil
}

// describeDetails renders an action's type-specific payload for the audit
// log: the dest-local source entry for copy/move, nothing for the rest.
func describeDetails(a Action) string {
	if a.HasSource {
		return fmt.Sprintf("source=%s/%s", a.Source.GroupID, a.Source.Path)
	}
	return ""
}
