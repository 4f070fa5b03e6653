// Package recordstore implements a fixed-capacity, append-only collection of
// author-attributed records where only a record's author may change it.
//
// A Store holds no locks. Callers that share a store across goroutines must
// serialize Append and Update themselves.
package recordstore

import (
	"fmt"

	"github.com/starford/ledger/internal/apperr"
	"github.com/starford/ledger/internal/models"
)

// Store is an ordered collection of records with a fixed capacity.
type Store struct {
	cfg     Config
	clock   Clock
	count   uint64
	records []models.Record
}

// New validates cfg and returns an initialized, empty store.
// A nil clock means SystemClock.
func New(cfg Config, clock Clock) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recordstore: invalid config: %w", err)
	}
	if clock == nil {
		clock = SystemClock
	}
	s := &Store{cfg: cfg, clock: clock}
	s.Initialize()
	return s, nil
}

// Initialize empties the store. The environment runs it exactly once per
// storage region.
func (s *Store) Initialize() {
	s.count = 0
	s.records = make([]models.Record, 0)
}

// Config returns the store's capacity configuration.
func (s *Store) Config() Config { return s.cfg }

// Count returns the number of stored records.
func (s *Store) Count() uint64 { return s.count }

// Append stores data as a new record authored by caller and returns its index.
func (s *Store) Append(caller models.Identity, data string) (uint64, error) {
	if uint64(len(s.records)) >= s.cfg.MaxRecords {
		return 0, apperr.ErrCapacityExceeded
	}
	if len(data) > int(s.cfg.MaxDataLength) {
		return 0, apperr.ErrPayloadTooLarge
	}
	index := s.count
	s.records = append(s.records, models.Record{
		Author:    caller,
		Data:      data,
		Timestamp: s.clock.Now(),
	})
	s.count++
	return index, nil
}

// Update replaces the data of the record at index and refreshes its
// timestamp. Checks run in order: bounds, authorship, payload size.
func (s *Store) Update(caller models.Identity, index uint64, data string) (models.Record, error) {
	if index >= s.count {
		return models.Record{}, apperr.ErrInvalidRecordIndex
	}
	rec := &s.records[index]
	if rec.Author != caller {
		return models.Record{}, apperr.ErrUnauthorizedAccess
	}
	if len(data) > int(s.cfg.MaxDataLength) {
		return models.Record{}, apperr.ErrPayloadTooLarge
	}
	rec.Data = data
	rec.Timestamp = s.clock.Now()
	return *rec, nil
}

// Record returns a copy of the record at index.
func (s *Store) Record(index uint64) (models.Record, error) {
	if index >= s.count {
		return models.Record{}, apperr.ErrInvalidRecordIndex
	}
	return s.records[index], nil
}

// Records returns a copy of all records in insertion order.
func (s *Store) Records() []models.Record {
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}
