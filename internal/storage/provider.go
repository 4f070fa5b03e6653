// Package storage allocates and persists fixed-size store regions.
package storage

import "time"

// RegionMeta describes one allocated region.
type RegionMeta struct {
	ID        string
	Size      int
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for region storage.
type Provider interface {
	// Allocate creates a zero-filled region of size bytes. It fails with
	// apperr.ErrAlreadyExists if the region is already allocated.
	Allocate(id string, size int) error
	// Read returns the full contents of the region.
	Read(id string) ([]byte, error)
	// Write atomically replaces the region contents. len(data) must equal
	// the allocated size.
	Write(id string, data []byte) error
	// Remove deletes the region. Removing a missing region is not an error.
	Remove(id string) error
	// List returns metadata for every allocated region.
	List() ([]RegionMeta, error)
}
