// Package sqlite owns the shared SQLite handle: schema migration, the
// monotonic server clock, and the vector blob codec.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	fingerprint  TEXT PRIMARY KEY,
	display_name TEXT UNIQUE NOT NULL,
	admitted     INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id                 TEXT PRIMARY KEY,
	author_fingerprint TEXT NOT NULL REFERENCES identities(fingerprint),
	author_name        TEXT NOT NULL,
	created_at         INTEGER NOT NULL,
	content            TEXT NOT NULL,
	vector             BLOB NOT NULL,
	hashtags           TEXT NOT NULL,
	parent_id          TEXT REFERENCES posts(id),
	appends            TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS likes (
	post_id     TEXT NOT NULL REFERENCES posts(id),
	fingerprint TEXT NOT NULL REFERENCES identities(fingerprint),
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (post_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	recipient  TEXT NOT NULL REFERENCES identities(fingerprint),
	kind       TEXT NOT NULL,
	post_id    TEXT,
	from_name  TEXT,
	message    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS algorithms (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	weights    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_parent ON posts(parent_id);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, read);
`

// Store wraps the SQLite handle shared by all repositories.
type Store struct {
	db    *sql.DB
	clock Clock
}

// Open opens (or creates) the database at path and migrates the schema.
// Pass ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	// Pragmas ride in the DSN so that EVERY pooled connection gets them.
	// Executing them once over the pool would configure only whichever
	// connection happened to run the statement; the rest would hit
	// SQLITE_BUSY with no timeout under concurrent writers.
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		// WAL needs a file; the busy timeout and FK checks still apply.
		dsn = "file::memory:?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the handle to repositories.
func (s *Store) DB() *sql.DB { return s.db }

// Clock exposes the monotonic server clock.
func (s *Store) Clock() *Clock { return &s.clock }

// Ping checks database liveness.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Clock issues server timestamps that are strictly increasing across the
// store, which keeps creation order, append order and pagination
// deterministic even when the wall clock stalls or steps backwards.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

// Now returns the next server timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}
