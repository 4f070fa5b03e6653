package recordstore

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default capacity limits.
const (
	DefaultMaxRecords    = 1000
	DefaultMaxDataLength = 200
)

// Config fixes the capacity of a store. It is validated once, when the store
// is created, and never changes afterwards.
type Config struct {
	MaxRecords    uint64 `yaml:"max_records" json:"max_records"`
	MaxDataLength uint32 `yaml:"max_data_length" json:"max_data_length"`
}

// DefaultConfig returns the default store capacity.
func DefaultConfig() Config {
	return Config{
		MaxRecords:    DefaultMaxRecords,
		MaxDataLength: DefaultMaxDataLength,
	}
}

// Validate validates the store configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxRecords, validation.Required),
		validation.Field(&c.MaxDataLength, validation.Required),
	)
}

// SlotSize returns the encoded size of one record slot.
func (c Config) SlotSize() int {
	return authorSize + lengthSize + int(c.MaxDataLength) + timestampSize
}

// RegionSize returns the exact byte size of a region holding a store with
// this configuration.
func (c Config) RegionSize() int {
	return headerSize + int(c.MaxRecords)*c.SlotSize()
}
