package history

import (
	"context"
	"database/sql"
	"sync"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/must"
)

// tableName is the single table the store maintains, per spec.md §4.2's
// schema.
const tableName = "files"

// schema creates the files table if it doesn't already exist. All columns
// are non-null; no secondary indexes are required because reads are full
// scans filtered per peer (spec.md §4.2).
const schema = `
CREATE TABLE IF NOT EXISTS files (
	utime          INTEGER NOT NULL,
	peerid         TEXT    NOT NULL,
	groupid        TEXT    NOT NULL,
	path           TEXT    NOT NULL,
	size           INTEGER NOT NULL,
	mtime          INTEGER NOT NULL,
	hash           TEXT    NOT NULL,
	author_peerid  TEXT    NOT NULL,
	author_utime   INTEGER NOT NULL,
	author_action  TEXT    NOT NULL
);
`

const insertSQL = `
INSERT INTO files
	(utime, peerid, groupid, path, size, mtime, hash, author_peerid, author_utime, author_action)
VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectByPeerSQL = `
SELECT utime, peerid, groupid, path, size, mtime, hash, author_peerid, author_utime, author_action
FROM files
WHERE peerid = ?
`

// Store is the append-only persistent history table (C5 in the design). It
// keeps a per-peer in-memory cache so that repeated reads of an unchanging
// peer's history (the common case between scan cycles) don't re-scan the
// table.
//
// Store is safe for concurrent use: reads return a fresh copy of the cache,
// and writes are applied under a single mutex that also guards the cache
// update, so a successful Add is visible to every subsequent Read (spec.md
// §5's cache-coherence requirement).
type Store struct {
	db     *sql.DB
	logger *logging.Logger

	mu          sync.Mutex
	cacheByPeer map[string][]Entry
}

// Open opens (creating if necessary) a history store backed by a SQLite
// database at path.
func Open(path string, logger *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening history database")
	}
	if _, err := db.Exec(schema); err != nil {
		must.Close(db, logger)
		return nil, errors.Wrap(err, "creating history schema")
	}
	return &Store{
		db:          db,
		logger:      logger,
		cacheByPeer: make(map[string][]Entry),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadEntries returns every entry ever recorded for peerID. The first call
// for a given peerID populates the in-memory cache from a full table scan;
// subsequent calls return a freshly copied snapshot of that cache, so
// callers may freely mutate or iterate over the result without racing
// concurrent appends (spec.md §4.2).
func (s *Store) ReadEntries(ctx context.Context, peerID string) ([]Entry, error) {
	s.mu.Lock()
	if cached, ok := s.cacheByPeer[peerID]; ok {
		result := make([]Entry, len(cached))
		copy(result, cached)
		s.mu.Unlock()
		return result, nil
	}
	s.mu.Unlock()

	entries, err := s.selectEntries(ctx, peerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Another goroutine may have populated the cache while we were
	// scanning; the scan result is equally valid (the table is append-only
	// under Add's lock), so just take whichever copy is present now.
	if cached, ok := s.cacheByPeer[peerID]; ok {
		result := make([]Entry, len(cached))
		copy(result, cached)
		s.mu.Unlock()
		return result, nil
	}
	s.cacheByPeer[peerID] = entries
	result := make([]Entry, len(entries))
	copy(result, entries)
	s.mu.Unlock()
	return result, nil
}

func (s *Store) selectEntries(ctx context.Context, peerID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectByPeerSQL, peerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.UTime, &e.PeerID, &e.GroupID, &e.Path, &e.Size, &e.MTime,
			&e.Hash, &e.AuthorPeerID, &e.AuthorUTime, &action); err != nil {
			return nil, errors.Wrap(err, "scanning history row")
		}
		e.AuthorAction = Action(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating history rows")
	}
	return entries, nil
}

// AddEntries appends new entries to persistent storage in a single
// transaction and updates the in-memory caches of every peer referenced, so
// that a subsequent ReadEntries reflects them immediately (spec.md §4.2,
// §5's history-write-atomicity requirement). A transaction failure is
// returned unchanged so the caller can treat it as the fatal "storage append
// failure" error kind from spec.md §7.
func (s *Store) AddEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return errors.Wrap(err, "refusing to append invalid entry")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning history transaction")
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing history insert")
	}
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.UTime, e.PeerID, e.GroupID, e.Path, e.Size, e.MTime,
			e.Hash, e.AuthorPeerID, e.AuthorUTime, string(e.AuthorAction)); err != nil {
			must.Close(stmt, s.logger)
			tx.Rollback()
			return errors.Wrap(err, "inserting history entry")
		}
	}
	must.Close(stmt, s.logger)
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing history transaction")
	}

	s.mu.Lock()
	for peerID, peerEntries := range GroupByPeerID(entries) {
		if cached, ok := s.cacheByPeer[peerID]; ok {
			s.cacheByPeer[peerID] = append(cached, peerEntries...)
		}
	}
	s.mu.Unlock()

	s.logger.Debugf("appended %d history entries", len(entries))
	return nil
}
