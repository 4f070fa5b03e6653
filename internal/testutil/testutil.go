// Package testutil provides shared test helpers for setting up region
// directories and index databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/ledger/internal/index"
	"github.com/starford/ledger/internal/models"
	"github.com/starford/ledger/internal/recordstore"
	"github.com/starford/ledger/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ledger-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRegions creates a temporary region directory with a storage.FS.
func TestRegions(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// FixedClock returns a clock stuck at ts until the returned setter moves it.
func FixedClock(ts int64) (recordstore.Clock, func(int64)) {
	now := ts
	return recordstore.ClockFunc(func() int64 { return now }), func(v int64) { now = v }
}

// Identity returns a deterministic identity whose first byte is b.
func Identity(b byte) models.Identity {
	return models.Identity{b}
}
