package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/ledger/internal/apperr"
	"github.com/starford/ledger/internal/checksum"
)

// RegionExt is the file extension of region files.
const RegionExt = ".region"

// FS implements Provider backed by one file per region in a directory.
type FS struct {
	root string // absolute path to the region directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute region directory.
func (f *FS) Root() string { return f.root }

// IDFromPath returns the region ID for a region file path, or "" if the path
// is not a region file.
func IDFromPath(path string) string {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, RegionExt) || strings.HasPrefix(name, ".") {
		return ""
	}
	return strings.TrimSuffix(name, RegionExt)
}

// regionPath maps an ID to its file. Anything that is not a plain name can
// never exist, so it is reported as not found.
func (f *FS) regionPath(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("storage: region id is required: %w", apperr.ErrNotFound)
	}
	if id != filepath.Base(id) || strings.Contains(id, "..") || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("storage: invalid region id %q: %w", id, apperr.ErrNotFound)
	}
	return filepath.Join(f.root, id+RegionExt), nil
}

// Allocate creates a zero-filled region file. O_EXCL makes allocation
// create-once.
func (f *FS) Allocate(id string, size int) error {
	if size <= 0 {
		return fmt.Errorf("storage: invalid region size %d", size)
	}
	abs, err := f.regionPath(id)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("storage: allocate %s: %w", id, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("storage: allocate %s: %w", id, err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		_ = file.Close()
		_ = os.Remove(abs)
		return fmt.Errorf("storage: size region: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(abs)
		return fmt.Errorf("storage: fsync: %w", err)
	}
	return file.Close()
}

// Read returns the raw bytes of a region.
func (f *FS) Read(id string) ([]byte, error) {
	abs, err := f.regionPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(id string, data []byte) error {
	abs, err := f.regionPath(id)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", id, err)
	}
	if info.Size() != int64(len(data)) {
		return fmt.Errorf("storage: write %s: %d bytes into region of %d", id, len(data), info.Size())
	}

	tmp, err := os.CreateTemp(f.root, ".ledger-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes a region file.
func (f *FS) Remove(id string) error {
	abs, err := f.regionPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", id, err)
	}
	return nil
}

// List returns metadata for every region file in the directory.
func (f *FS) List() ([]RegionMeta, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []RegionMeta
	for _, e := range entries {
		id := IDFromPath(e.Name())
		if e.IsDir() || id == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		sum, size, err := checksum.File(filepath.Join(f.root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, RegionMeta{
			ID:        id,
			Size:      int(size),
			Checksum:  sum,
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}
