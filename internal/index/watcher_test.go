package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/ledger/internal/storage"
)

// watcherTestEnv sets up a region dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatal(msg)
}

func TestWatcher_IndexesExternalRegion(t *testing.T) {
	dir, fs, db := watcherTestEnv(t)

	var mu sync.Mutex
	var events []string
	cb := func(kind, id string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, kind+":"+id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, fs, dir, quietLogger(), cb)
	time.Sleep(100 * time.Millisecond)

	writeRegion(t, fs, "ext", "from outside")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		st, _ := db.GetStore("ext")
		return st != nil && st.Count == 1
	}, "external region not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "changed:ext" {
				return true
			}
		}
		return false
	}, "expected changed:ext callback")
}

func TestWatcher_RemoveDropsStore(t *testing.T) {
	dir, fs, db := watcherTestEnv(t)
	writeRegion(t, fs, "del", "bye")
	_ = Sync(db, fs, quietLogger())
	if st, _ := db.GetStore("del"); st == nil {
		t.Fatal("precondition: store should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, fs, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del"+storage.RegionExt))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		st, _ := db.GetStore("del")
		return st == nil
	}, "removed region still in index")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir, fs, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, fs, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	time.Sleep(200 * time.Millisecond)

	sums, _ := db.AllStoreChecksums()
	if len(sums) != 0 {
		t.Errorf("unexpected stores indexed: %v", sums)
	}
}
