package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultLimit applies when a list call passes a non-positive limit.
const DefaultLimit = 50

// defaultSearchLimit applies when a search passes a non-positive limit.
const defaultSearchLimit = 20

// StoreRow represents a row in the stores table.
type StoreRow struct {
	ID            string
	Count         uint64
	MaxRecords    uint64
	MaxDataLength uint32
	Checksum      string
	UpdatedAt     time.Time
}

// RecordRow represents a row in the records table.
type RecordRow struct {
	StoreID   string
	Index     uint64
	Author    string
	Data      string
	Timestamp int64
}

// SearchResult represents one search hit.
type SearchResult struct {
	StoreID string `json:"store_id"`
	Index   uint64 `json:"index"`
	Author  string `json:"author"`
	Snippet string `json:"snippet"`
}

func upsertStore(tx *sql.Tx, s StoreRow) error {
	_, err := tx.Exec(`
		INSERT INTO stores (id, count, max_records, max_data_length, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			count           = excluded.count,
			max_records     = excluded.max_records,
			max_data_length = excluded.max_data_length,
			checksum        = excluded.checksum,
			updated_at      = excluded.updated_at
	`, s.ID, s.Count, s.MaxRecords, s.MaxDataLength, s.Checksum, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert store: %w", err)
	}
	return nil
}

func upsertRecord(tx *sql.Tx, r RecordRow) error {
	_, err := tx.Exec(`
		INSERT INTO records (store_id, idx, author, data, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(store_id, idx) DO UPDATE SET
			author    = excluded.author,
			data      = excluded.data,
			timestamp = excluded.timestamp
	`, r.StoreID, r.Index, r.Author, r.Data, r.Timestamp)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}
	return ftsUpsert(tx, r)
}

// ReplaceStore rewrites a store and all of its records within a transaction.
func (db *DB) ReplaceStore(s StoreRow, records []RecordRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertStore(tx, s); err != nil {
		return err
	}
	if err := ftsDeleteStore(tx, s.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE store_id = ?`, s.ID); err != nil {
		return fmt.Errorf("index: clear records: %w", err)
	}
	for _, r := range records {
		if err := upsertRecord(tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertRecord writes one record and its store's summary row.
func (db *DB) UpsertRecord(s StoreRow, r RecordRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertStore(tx, s); err != nil {
		return err
	}
	if err := upsertRecord(tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteStore removes a store and its records from the index.
func (db *DB) DeleteStore(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDeleteStore(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE store_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete records: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM stores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete store: %w", err)
	}

	return tx.Commit()
}

// GetStore returns the summary row of a store, or nil if it is not indexed.
func (db *DB) GetStore(id string) (*StoreRow, error) {
	var s StoreRow
	err := db.conn.QueryRow(`
		SELECT id, count, max_records, max_data_length, checksum, updated_at
		FROM stores WHERE id = ?
	`, id).Scan(&s.ID, &s.Count, &s.MaxRecords, &s.MaxDataLength, &s.Checksum, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get store: %w", err)
	}
	return &s, nil
}

// StoreChecksum returns the stored region checksum, or empty string if the
// store is not indexed.
func (db *DB) StoreChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM stores WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllStoreChecksums returns the region checksum of every indexed store.
func (db *DB) AllStoreChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM stores`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// ListRecords returns records filtered by store and/or author, ordered by
// store then index, with the total match count. Empty filters match all.
func (db *DB) ListRecords(storeID, author string, limit, offset int) ([]RecordRow, int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	where := `WHERE (? = '' OR store_id = ?) AND (? = '' OR author = ?)`
	args := []any{storeID, storeID, author, author}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT store_id, idx, author, data, timestamp
		FROM records `+where+`
		ORDER BY store_id, idx
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.StoreID, &r.Index, &r.Author, &r.Data, &r.Timestamp); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.StoreID, &r.Index, &r.Author, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
