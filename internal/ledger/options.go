package ledger

import (
	"log/slog"

	"github.com/starford/ledger/internal/recordstore"
)

// EventCallback is called after every successful mutation. kind is one of
// EventStoreCreated, EventRecordAppended, EventRecordUpdated.
type EventCallback func(kind, storeID string, index uint64)

// Event kinds.
const (
	EventStoreCreated   = "store.created"
	EventRecordAppended = "record.appended"
	EventRecordUpdated  = "record.updated"
)

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithClock sets the clock used to timestamp records.
func WithClock(c recordstore.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithDefaults sets the capacity used when a create request leaves a field zero.
func WithDefaults(cfg recordstore.Config) Option {
	return func(s *Service) {
		s.defaults = cfg
	}
}

// WithLimits sets the largest capacity a caller may request.
func WithLimits(cfg recordstore.Config) Option {
	return func(s *Service) {
		s.limits = cfg
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithEvents registers a callback for mutation events.
func WithEvents(cb EventCallback) Option {
	return func(s *Service) {
		s.onEvent = cb
	}
}
