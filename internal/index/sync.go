package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ledger/internal/checksum"
	"github.com/starford/ledger/internal/recordstore"
	"github.com/starford/ledger/internal/storage"
)

// Sync walks the region directory and brings the index up to date:
//   - new/changed regions are decoded and reindexed
//   - regions removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllStoreChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}

		data, err := store.Read(m.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("store", m.ID), slog.String("error", err.Error()))
			continue
		}
		if err := IndexRegion(db, m.ID, data); err != nil {
			logger.Warn("sync: index failed", slog.String("store", m.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("store", m.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteStore(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("store", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("store", id))
			}
		}
	}

	return nil
}

// IndexRegion decodes a region and replaces the store's index entries.
func IndexRegion(db RecordIndex, id string, region []byte) error {
	s, err := recordstore.DecodeRegion(region, nil)
	if err != nil {
		return fmt.Errorf("index: decode %s: %w", id, err)
	}
	rows := make([]RecordRow, 0, s.Count())
	for i, rec := range s.Records() {
		rows = append(rows, RecordRow{
			StoreID:   id,
			Index:     uint64(i),
			Author:    rec.Author.String(),
			Data:      rec.Data,
			Timestamp: rec.Timestamp,
		})
	}
	return db.ReplaceStore(StoreSummary(id, s, checksum.Sum(region)), rows)
}

// StoreSummary builds the stores-table row for s.
func StoreSummary(id string, s *recordstore.Store, sum string) StoreRow {
	cfg := s.Config()
	return StoreRow{
		ID:            id,
		Count:         s.Count(),
		MaxRecords:    cfg.MaxRecords,
		MaxDataLength: cfg.MaxDataLength,
		Checksum:      sum,
		UpdatedAt:     time.Now(),
	}
}
