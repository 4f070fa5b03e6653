//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			store_id UNINDEXED,
			idx UNINDEXED,
			author UNINDEXED,
			data,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, r RecordRow) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE store_id = ? AND idx = ?`, r.StoreID, r.Index)
	_, err := tx.Exec(`INSERT INTO records_fts (store_id, idx, author, data) VALUES (?, ?, ?, ?)`,
		r.StoreID, r.Index, r.Author, r.Data)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteStore(tx *sql.Tx, storeID string) error {
	if _, err := tx.Exec(`DELETE FROM records_fts WHERE store_id = ?`, storeID); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search runs an FTS5 MATCH query over record data, best match first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.Query(`
		SELECT store_id, idx, author,
		       snippet(records_fts, 3, '<b>', '</b>', '...', 32)
		FROM records_fts
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
