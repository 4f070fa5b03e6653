// Package snapshot writes and reads compressed copies of store regions.
//
// A snapshot is the 8-byte magic "LDGSNAP1", a uint16 little-endian store ID
// length, the store ID, then one zstd frame holding the raw region.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/starford/ledger/internal/recordstore"
)

var magic = [8]byte{'L', 'D', 'G', 'S', 'N', 'A', 'P', '1'}

// maxRegion bounds the decompressed size Read accepts.
const maxRegion = 1 << 30

// ErrInvalidSnapshot is returned for input that is not a snapshot.
var ErrInvalidSnapshot = errors.New("snapshot: invalid snapshot")

// Both are safe for concurrent use and expensive to build.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxRegion))
)

// Write writes a snapshot of region under storeID to w.
func Write(w io.Writer, storeID string, region []byte) error {
	if storeID == "" || len(storeID) > 0xffff {
		return fmt.Errorf("snapshot: invalid store id length %d", len(storeID))
	}
	bw := bufio.NewWriter(w)
	_, _ = bw.Write(magic[:])
	_ = binary.Write(bw, binary.LittleEndian, uint16(len(storeID)))
	_, _ = bw.WriteString(storeID)
	_, _ = bw.Write(encoder.EncodeAll(region, nil))
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	return nil
}

// Read reads a snapshot from r and returns the store ID and region. The
// region is checked to decode as a record store.
func Read(r io.Reader) (string, []byte, error) {
	br := bufio.NewReader(r)

	var m [8]byte
	if _, err := io.ReadFull(br, m[:]); err != nil || m != magic {
		return "", nil, ErrInvalidSnapshot
	}
	var idLen uint16
	if err := binary.Read(br, binary.LittleEndian, &idLen); err != nil || idLen == 0 {
		return "", nil, ErrInvalidSnapshot
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(br, id); err != nil {
		return "", nil, ErrInvalidSnapshot
	}

	compressed, err := io.ReadAll(br)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot: read: %w", err)
	}
	region, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: zstd: %v", ErrInvalidSnapshot, err)
	}
	if _, err := recordstore.DecodeRegion(region, nil); err != nil {
		return "", nil, err
	}
	return string(id), region, nil
}
