// Package apperr holds the sentinel errors shared across the ledger.
package apperr

import "errors"

// Record store errors. Every one of them is returned before any mutation.
var (
	ErrInvalidRecordIndex = errors.New("invalid record index")
	ErrUnauthorizedAccess = errors.New("unauthorized access")
	ErrCapacityExceeded   = errors.New("store capacity exceeded")
	ErrPayloadTooLarge    = errors.New("payload too large")
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrCorruptRegion = errors.New("corrupt region")
	ErrInvalidConfig = errors.New("invalid store config")
)
