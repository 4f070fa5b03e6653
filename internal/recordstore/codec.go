package recordstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/starford/ledger/internal/apperr"
	"github.com/starford/ledger/internal/models"
)

// Region layout, little-endian:
//
//	[0:8]   magic
//	[8:16]  max records
//	[16:20] max data length
//	[20:24] reserved
//	[24:32] count
//	[32:40] xxh3 of slots [0, count)
//	[40:]   fixed-size record slots
//
// Slot: author (32) | data length (4) | data (max data length, zero padded) | timestamp (8).
const (
	headerSize    = 40
	authorSize    = models.IdentitySize
	lengthSize    = 4
	timestampSize = 8
)

var regionMagic = [8]byte{'L', 'D', 'G', 'R', 'E', 'C', '0', '1'}

// EncodeRecord writes rec into a slot sized for maxData bytes of data.
func EncodeRecord(dst []byte, rec models.Record, maxData uint32) error {
	size := authorSize + lengthSize + int(maxData) + timestampSize
	if len(dst) < size {
		return fmt.Errorf("recordstore: slot buffer %d < %d", len(dst), size)
	}
	if len(rec.Data) > int(maxData) {
		return apperr.ErrPayloadTooLarge
	}
	copy(dst[:authorSize], rec.Author[:])
	binary.LittleEndian.PutUint32(dst[authorSize:], uint32(len(rec.Data)))
	data := dst[authorSize+lengthSize : authorSize+lengthSize+int(maxData)]
	n := copy(data, rec.Data)
	clear(data[n:])
	binary.LittleEndian.PutUint64(dst[size-timestampSize:], uint64(rec.Timestamp))
	return nil
}

// DecodeRecord reads a record from a slot sized for maxData bytes of data.
func DecodeRecord(src []byte, maxData uint32) (models.Record, error) {
	var rec models.Record
	size := authorSize + lengthSize + int(maxData) + timestampSize
	if len(src) < size {
		return rec, fmt.Errorf("%w: short slot", apperr.ErrCorruptRegion)
	}
	copy(rec.Author[:], src[:authorSize])
	n := binary.LittleEndian.Uint32(src[authorSize:])
	if n > maxData {
		return rec, fmt.Errorf("%w: data length %d exceeds %d", apperr.ErrCorruptRegion, n, maxData)
	}
	start := authorSize + lengthSize
	rec.Data = string(src[start : start+int(n)])
	rec.Timestamp = int64(binary.LittleEndian.Uint64(src[size-timestampSize:]))
	return rec, nil
}

// EncodeRegion serializes s into a region of exactly s.Config().RegionSize() bytes.
func EncodeRegion(s *Store) ([]byte, error) {
	cfg := s.cfg
	buf := make([]byte, cfg.RegionSize())
	slot := cfg.SlotSize()
	for i, rec := range s.records {
		off := headerSize + i*slot
		if err := EncodeRecord(buf[off:off+slot], rec, cfg.MaxDataLength); err != nil {
			return nil, fmt.Errorf("recordstore: encode record %d: %w", i, err)
		}
	}
	copy(buf[0:8], regionMagic[:])
	binary.LittleEndian.PutUint64(buf[8:], cfg.MaxRecords)
	binary.LittleEndian.PutUint32(buf[16:], cfg.MaxDataLength)
	binary.LittleEndian.PutUint64(buf[24:], s.count)
	binary.LittleEndian.PutUint64(buf[32:], xxh3.Hash(buf[headerSize:headerSize+int(s.count)*slot]))
	return buf, nil
}

// DecodeRegion parses a region produced by EncodeRegion. A nil clock means
// SystemClock.
func DecodeRegion(region []byte, clock Clock) (*Store, error) {
	if len(region) < headerSize {
		return nil, fmt.Errorf("%w: region shorter than header", apperr.ErrCorruptRegion)
	}
	if !bytes.Equal(region[0:8], regionMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", apperr.ErrCorruptRegion)
	}
	cfg := Config{
		MaxRecords:    binary.LittleEndian.Uint64(region[8:]),
		MaxDataLength: binary.LittleEndian.Uint32(region[16:]),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCorruptRegion, err)
	}
	if cfg.MaxRecords > uint64(len(region)) || len(region) != cfg.RegionSize() {
		return nil, fmt.Errorf("%w: size %d, want %d", apperr.ErrCorruptRegion, len(region), cfg.RegionSize())
	}
	count := binary.LittleEndian.Uint64(region[24:])
	if count > cfg.MaxRecords {
		return nil, fmt.Errorf("%w: count %d exceeds capacity %d", apperr.ErrCorruptRegion, count, cfg.MaxRecords)
	}
	slot := cfg.SlotSize()
	used := region[headerSize : headerSize+int(count)*slot]
	if xxh3.Hash(used) != binary.LittleEndian.Uint64(region[32:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", apperr.ErrCorruptRegion)
	}

	s, err := New(cfg, clock)
	if err != nil {
		return nil, err
	}
	s.records = make([]models.Record, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := DecodeRecord(used[i*slot:(i+1)*slot], cfg.MaxDataLength)
		if err != nil {
			return nil, fmt.Errorf("recordstore: record %d: %w", i, err)
		}
		s.records = append(s.records, rec)
	}
	s.count = count
	return s, nil
}
