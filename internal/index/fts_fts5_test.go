//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records_fts`).Scan(&count); err != nil {
		t.Fatalf("records_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	s := StoreRow{ID: "s", Count: 1, MaxRecords: 5, MaxDataLength: 200, UpdatedAt: time.Now()}
	if err := db.UpsertRecord(s, RecordRow{StoreID: "s", Index: 0, Author: "a", Data: "The ledger keeps powerful append-only records."}); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].StoreID != "s" || results[0].Index != 0 {
		t.Errorf("hit = %+v", results[0])
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	s := StoreRow{ID: "s", Count: 1, MaxRecords: 5, MaxDataLength: 200, UpdatedAt: time.Now()}
	_ = db.UpsertRecord(s, RecordRow{StoreID: "s", Index: 0, Author: "a", Data: "alpha"})
	_ = db.UpsertRecord(s, RecordRow{StoreID: "s", Index: 0, Author: "a", Data: "beta"})

	if results, _ := db.Search("alpha", 10); len(results) != 0 {
		t.Errorf("stale content still searchable: %+v", results)
	}
	if results, _ := db.Search("beta", 10); len(results) != 1 {
		t.Errorf("new content not searchable: %+v", results)
	}
}

func TestFTS5_DeleteStoreRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	s := StoreRow{ID: "s", Count: 1, MaxRecords: 5, MaxDataLength: 200, UpdatedAt: time.Now()}
	_ = db.UpsertRecord(s, RecordRow{StoreID: "s", Index: 0, Author: "a", Data: "ephemeral"})
	_ = db.DeleteStore("s")
	if results, _ := db.Search("ephemeral", 10); len(results) != 0 {
		t.Errorf("deleted store still searchable: %+v", results)
	}
}
