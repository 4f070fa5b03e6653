// Package models defines the domain types for the ledger.
package models

import (
	"encoding/hex"
	"fmt"
)

// IdentitySize is the width of an identity token in bytes.
const IdentitySize = 32

// Identity is an opaque, comparable token naming an authenticated actor.
type Identity [IdentitySize]byte

// ParseIdentity decodes a hex-encoded identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("identity: %w", err)
	}
	if len(b) != IdentitySize {
		return id, fmt.Errorf("identity: want %d bytes, got %d", IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex form.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero identity.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Record is a single author-attributed, timestamped text entry.
type Record struct {
	Author    Identity `json:"author"`
	Data      string   `json:"data"`
	Timestamp int64    `json:"timestamp"`
}
