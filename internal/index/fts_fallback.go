//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the records table is searched directly, so there is no
// shadow table to maintain.
func initFTS(_ *sql.DB) error { return nil }
func ftsUpsert(_ *sql.Tx, _ RecordRow) error { return nil }
func ftsDeleteStore(_ *sql.Tx, _ string) error { return nil }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query as a literal substring of record data, newest first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.Query(`
		SELECT store_id, idx, author, substr(data, 1, 200)
		FROM records
		WHERE data LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, store_id, idx
		LIMIT ?
	`, "%"+likeEscaper.Replace(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
