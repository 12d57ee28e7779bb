// Package store persists price observations and the announcement ledger in
// a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	realm       TEXT    NOT NULL,
	item_id     INTEGER NOT NULL,
	variant     TEXT    NOT NULL DEFAULT '',
	min_buyout  INTEGER NOT NULL,
	observed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_item_variant
	ON price_observations(item_id, variant);

CREATE TABLE IF NOT EXISTS announced_auctions (
	realm        TEXT    NOT NULL,
	auction_id   INTEGER NOT NULL,
	item_id      INTEGER NOT NULL,
	buyout       INTEGER NOT NULL,
	announced_at TIMESTAMP NOT NULL,
	PRIMARY KEY (realm, auction_id)
);
`

// DB wraps the database connection shared by the observation store and the
// announcement ledger.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the database and applies the schema.
// WAL mode keeps the observer writes from blocking ledger reads.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the raw connection for tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}
