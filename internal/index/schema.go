// Package index provides a SQLite-backed secondary index of ledger records
// with optional FTS5 full-text search.
//
// Regions are the source of truth. The index can always be rebuilt from
// them with Sync.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS stores (
	id              TEXT PRIMARY KEY,
	count           INTEGER NOT NULL DEFAULT 0,
	max_records     INTEGER NOT NULL,
	max_data_length INTEGER NOT NULL,
	checksum        TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
	store_id  TEXT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	idx       INTEGER NOT NULL,
	author    TEXT NOT NULL,
	data      TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL,
	PRIMARY KEY (store_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_records_author ON records(author);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
