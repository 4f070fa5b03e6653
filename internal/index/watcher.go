package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ledger/internal/checksum"
	"github.com/starford/ledger/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "changed", "removed".
type EventCallback func(kind string, storeID string)

// Watch starts an fsnotify watcher on the region directory and reindexes
// regions changed on disk by anything other than the ledger itself until
// ctx is cancelled. It calls cb (if non-nil) after each index mutation.
//
// Writes made through the ledger leave the index checksum equal to the new
// region checksum, so they are skipped.
func Watch(ctx context.Context, db *DB, store storage.Provider, dir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", dir))

	// reconcileTimer debounces the full reconciliation after removals.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := Sync(db, store, logger); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id := storage.IDFromPath(ev.Name)
			if id == "" {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(id)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("store", id), slog.String("error", readErr.Error()))
					continue
				}
				if cs, _ := db.StoreChecksum(id); cs == checksum.Sum(data) {
					continue
				}
				if idxErr := IndexRegion(db, id, data); idxErr != nil {
					// A freshly allocated region is zero-filled until the
					// ledger writes its header; the follow-up write reindexes it.
					logger.Debug("watcher: index failed", slog.String("store", id), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("store", id))
				if cb != nil {
					cb("changed", id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if delErr := db.DeleteStore(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("store", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("store", id))
				if cb != nil {
					cb("removed", id)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
