// Package ledger binds record stores to their environment: it locates a
// store's region, serializes access to it, persists every mutation, keeps the
// secondary index current and reports changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/ledger/internal/apperr"
	"github.com/starford/ledger/internal/checksum"
	"github.com/starford/ledger/internal/index"
	"github.com/starford/ledger/internal/models"
	"github.com/starford/ledger/internal/recordstore"
	"github.com/starford/ledger/internal/storage"
)

// StoreInfo describes a store.
type StoreInfo struct {
	ID            string `json:"id"`
	Count         uint64 `json:"count"`
	MaxRecords    uint64 `json:"max_records"`
	MaxDataLength uint32 `json:"max_data_length"`
}

// RecordView is a record together with its location.
type RecordView struct {
	StoreID   string          `json:"store_id"`
	Index     uint64          `json:"index"`
	Author    models.Identity `json:"author"`
	Data      string          `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Checksum  string          `json:"checksum"`
}

// Service coordinates region storage, the record store core and the index.
type Service struct {
	regions  storage.Provider
	db       index.RecordIndex
	clock    recordstore.Clock
	defaults recordstore.Config
	limits   recordstore.Config
	logger   *slog.Logger
	onEvent  EventCallback

	mu    sync.Mutex
	locks map[string]*storeLock
}

// storeLock is dropped from Service.locks once no caller holds or waits on it.
type storeLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a new ledger service.
func NewService(regions storage.Provider, db index.RecordIndex, opts ...Option) *Service {
	s := &Service{
		regions:  regions,
		db:       db,
		clock:    recordstore.SystemClock,
		defaults: recordstore.DefaultConfig(),
		limits:   recordstore.DefaultConfig(),
		logger:   slog.Default(),
		locks:    make(map[string]*storeLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock serializes operations on one store and returns the unlock func.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &storeLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// CreateStore allocates a region for a new store and initializes it. Zero
// fields in cfg take the service defaults.
func (s *Service) CreateStore(_ context.Context, caller models.Identity, cfg recordstore.Config) (*StoreInfo, error) {
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = s.defaults.MaxRecords
	}
	if cfg.MaxDataLength == 0 {
		cfg.MaxDataLength = s.defaults.MaxDataLength
	}
	if cfg.MaxRecords > s.limits.MaxRecords || cfg.MaxDataLength > s.limits.MaxDataLength {
		return nil, fmt.Errorf("%w: capacity %d x %d exceeds limit %d x %d", apperr.ErrInvalidConfig,
			cfg.MaxRecords, cfg.MaxDataLength, s.limits.MaxRecords, s.limits.MaxDataLength)
	}

	st, err := recordstore.New(cfg, s.clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}

	id := uuid.NewString()
	unlock := s.lock(id)
	defer unlock()

	if err := s.regions.Allocate(id, cfg.RegionSize()); err != nil {
		return nil, err
	}
	st.Initialize()
	sum, err := s.persist(id, st)
	if err != nil {
		return nil, err
	}
	if err := s.db.ReplaceStore(index.StoreSummary(id, st, sum), nil); err != nil {
		s.logger.Warn("index store failed", slog.String("store", id), slog.String("error", err.Error()))
	}

	s.logger.Info("store created",
		slog.String("store", id),
		slog.String("caller", caller.String()),
		slog.Uint64("max_records", cfg.MaxRecords),
		slog.Uint64("max_data_length", uint64(cfg.MaxDataLength)))
	s.emit(EventStoreCreated, id, 0)
	return storeInfo(id, st), nil
}

// GetStore returns the current state of a store.
func (s *Service) GetStore(_ context.Context, id string) (*StoreInfo, error) {
	unlock := s.lock(id)
	defer unlock()

	st, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return storeInfo(id, st), nil
}

// AppendRecord appends data as a new record authored by caller.
func (s *Service) AppendRecord(_ context.Context, id string, caller models.Identity, data string) (*RecordView, error) {
	unlock := s.lock(id)
	defer unlock()

	st, err := s.load(id)
	if err != nil {
		return nil, err
	}
	idx, err := st.Append(caller, data)
	if err != nil {
		return nil, err
	}
	sum, err := s.persist(id, st)
	if err != nil {
		return nil, err
	}
	rec, err := st.Record(idx)
	if err != nil {
		return nil, err
	}
	s.indexRecord(id, st, sum, idx, rec)

	s.logger.Info("record appended",
		slog.String("store", id),
		slog.Uint64("index", idx),
		slog.String("author", caller.String()))
	s.emit(EventRecordAppended, id, idx)
	return recordView(id, idx, rec), nil
}

// UpdateRecord replaces the data of a record owned by caller.
func (s *Service) UpdateRecord(_ context.Context, id string, caller models.Identity, idx uint64, data string) (*RecordView, error) {
	unlock := s.lock(id)
	defer unlock()

	st, err := s.load(id)
	if err != nil {
		return nil, err
	}
	rec, err := st.Update(caller, idx, data)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorizedAccess) {
			s.logger.Warn("update rejected",
				slog.String("store", id),
				slog.Uint64("index", idx),
				slog.String("caller", caller.String()))
		}
		return nil, err
	}
	sum, err := s.persist(id, st)
	if err != nil {
		return nil, err
	}
	s.indexRecord(id, st, sum, idx, rec)

	s.logger.Info("record updated",
		slog.String("store", id),
		slog.Uint64("index", idx),
		slog.String("author", caller.String()))
	s.emit(EventRecordUpdated, id, idx)
	return recordView(id, idx, rec), nil
}

// GetRecord reads one record from the store's region.
func (s *Service) GetRecord(_ context.Context, id string, idx uint64) (*RecordView, error) {
	unlock := s.lock(id)
	defer unlock()

	st, err := s.load(id)
	if err != nil {
		return nil, err
	}
	rec, err := st.Record(idx)
	if err != nil {
		return nil, err
	}
	return recordView(id, idx, rec), nil
}

// ListRecords lists a store's records from the index. A zero author lists
// every author.
func (s *Service) ListRecords(_ context.Context, id string, author models.Identity, limit, offset int) ([]RecordView, int, error) {
	st, err := s.db.GetStore(id)
	if err != nil {
		return nil, 0, err
	}
	if st == nil {
		return nil, 0, apperr.ErrNotFound
	}
	return s.list(id, author, limit, offset)
}

// RecordsByAuthor lists every record written by author across all stores.
func (s *Service) RecordsByAuthor(_ context.Context, author models.Identity, limit, offset int) ([]RecordView, int, error) {
	return s.list("", author, limit, offset)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// ReindexStore rebuilds the index entries of one store from its region.
func (s *Service) ReindexStore(id string) error {
	unlock := s.lock(id)
	defer unlock()

	region, err := s.regions.Read(id)
	if err != nil {
		return err
	}
	return index.IndexRegion(s.db, id, region)
}

// ExportRegion returns a consistent copy of a store's region.
func (s *Service) ExportRegion(_ context.Context, id string) ([]byte, error) {
	unlock := s.lock(id)
	defer unlock()

	if _, err := s.load(id); err != nil {
		return nil, err
	}
	return s.regions.Read(id)
}

// ImportRegion installs region as a new store named id. The region must
// decode and fit within the service limits.
func (s *Service) ImportRegion(_ context.Context, id string, region []byte) (*StoreInfo, error) {
	st, err := recordstore.DecodeRegion(region, s.clock)
	if err != nil {
		return nil, err
	}
	cfg := st.Config()
	if cfg.MaxRecords > s.limits.MaxRecords || cfg.MaxDataLength > s.limits.MaxDataLength {
		return nil, fmt.Errorf("%w: capacity %d x %d exceeds limit %d x %d", apperr.ErrInvalidConfig,
			cfg.MaxRecords, cfg.MaxDataLength, s.limits.MaxRecords, s.limits.MaxDataLength)
	}

	unlock := s.lock(id)
	defer unlock()

	if err := s.regions.Allocate(id, len(region)); err != nil {
		return nil, err
	}
	if err := s.regions.Write(id, region); err != nil {
		if rmErr := s.regions.Remove(id); rmErr != nil {
			s.logger.Warn("remove region failed", slog.String("store", id), slog.String("error", rmErr.Error()))
		}
		return nil, fmt.Errorf("ledger: import %s: %w", id, err)
	}
	if err := index.IndexRegion(s.db, id, region); err != nil {
		s.logger.Warn("index store failed", slog.String("store", id), slog.String("error", err.Error()))
	}

	s.logger.Info("store imported", slog.String("store", id), slog.Uint64("count", st.Count()))
	s.emit(EventStoreCreated, id, 0)
	return storeInfo(id, st), nil
}

func (s *Service) list(id string, author models.Identity, limit, offset int) ([]RecordView, int, error) {
	filter := ""
	if !author.IsZero() {
		filter = author.String()
	}
	rows, total, err := s.db.ListRecords(id, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]RecordView, 0, len(rows))
	for _, r := range rows {
		a, err := models.ParseIdentity(r.Author)
		if err != nil {
			return nil, 0, fmt.Errorf("ledger: indexed author: %w", err)
		}
		out = append(out, *recordView(r.StoreID, r.Index, models.Record{
			Author:    a,
			Data:      r.Data,
			Timestamp: r.Timestamp,
		}))
	}
	return out, total, nil
}

// load reads and decodes a region. Callers hold the store lock.
func (s *Service) load(id string) (*recordstore.Store, error) {
	region, err := s.regions.Read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	st, err := recordstore.DecodeRegion(region, s.clock)
	if err != nil {
		return nil, fmt.Errorf("ledger: load %s: %w", id, err)
	}
	return st, nil
}

// persist encodes st into its region and returns the region checksum.
func (s *Service) persist(id string, st *recordstore.Store) (string, error) {
	region, err := recordstore.EncodeRegion(st)
	if err != nil {
		return "", err
	}
	if err := s.regions.Write(id, region); err != nil {
		return "", fmt.Errorf("ledger: persist %s: %w", id, err)
	}
	return checksum.Sum(region), nil
}

// indexRecord updates the index after a persisted mutation. The region is the
// source of truth, so index failures are logged and left to the next Sync.
func (s *Service) indexRecord(id string, st *recordstore.Store, sum string, idx uint64, rec models.Record) {
	err := s.db.UpsertRecord(index.StoreSummary(id, st, sum), index.RecordRow{
		StoreID:   id,
		Index:     idx,
		Author:    rec.Author.String(),
		Data:      rec.Data,
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		s.logger.Warn("index record failed",
			slog.String("store", id),
			slog.Uint64("index", idx),
			slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind, id string, idx uint64) {
	if s.onEvent != nil {
		s.onEvent(kind, id, idx)
	}
}

func storeInfo(id string, st *recordstore.Store) *StoreInfo {
	cfg := st.Config()
	return &StoreInfo{
		ID:            id,
		Count:         st.Count(),
		MaxRecords:    cfg.MaxRecords,
		MaxDataLength: cfg.MaxDataLength,
	}
}

func recordView(id string, idx uint64, rec models.Record) *RecordView {
	return &RecordView{
		StoreID:   id,
		Index:     idx,
		Author:    rec.Author,
		Data:      rec.Data,
		Timestamp: rec.Timestamp,
		Checksum:  checksum.Sum([]byte(rec.Data)),
	}
}
