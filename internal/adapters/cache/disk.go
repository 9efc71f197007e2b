// Package cache provides the on-disk tile cache adapter.
package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jobrunner/tilevault/internal/domain"
)

const bytesPerMB = 1024.0 * 1024.0

// DiskCache stores tiles as <root>/<regionID>/<z>/<x>/<y>.png, one
// directory namespace per region so whole regions can be removed in a
// single recursive delete.
type DiskCache struct {
	root string
}

// NewDiskCache creates a disk cache adapter and ensures the root exists.
func NewDiskCache(root string) (*DiskCache, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, &domain.CacheError{Operation: "init", Err: err}
	}
	return &DiskCache{root: root}, nil
}

// Root returns the cache root directory.
func (c *DiskCache) Root() string {
	return c.root
}

// TilePath returns the path a tile is stored at within a region namespace.
func (c *DiskCache) TilePath(regionID string, tile domain.TileCoordinate) string {
	return filepath.Join(c.root, regionID,
		strconv.Itoa(tile.Z), strconv.Itoa(tile.X), strconv.Itoa(tile.Y)+".png")
}

// HasTile reports whether a non-empty tile file exists.
func (c *DiskCache) HasTile(regionID string, tile domain.TileCoordinate) bool {
	info, err := os.Stat(c.TilePath(regionID, tile))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Store writes tile data through a temp file in the target directory and
// renames it into place, so a partial write is never observable under the
// final name. Returns the final path.
func (c *DiskCache) Store(ctx context.Context, regionID string, tile domain.TileCoordinate, data []byte) (string, error) {
	dest := c.TilePath(regionID, tile)
	dir := filepath.Dir(dest)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", &domain.CacheError{Operation: "store", RegionID: regionID, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return "", &domain.CacheError{Operation: "store", RegionID: regionID, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", &domain.CacheError{Operation: "store", RegionID: regionID, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", &domain.CacheError{Operation: "store", RegionID: regionID, Err: err}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", &domain.CacheError{Operation: "store", RegionID: regionID, Err: err}
	}

	return dest, nil
}

// TotalSizeMB returns the size of everything under the cache root.
func (c *DiskCache) TotalSizeMB(ctx context.Context) (float64, error) {
	size, err := dirSize(c.root)
	if err != nil {
		return 0, &domain.CacheError{Operation: "size", Err: err}
	}
	return float64(size) / bytesPerMB, nil
}

// RegionSizeMB returns the size of one region namespace. A missing
// namespace counts as zero.
func (c *DiskCache) RegionSizeMB(ctx context.Context, regionID string) (float64, error) {
	size, err := dirSize(filepath.Join(c.root, regionID))
	if err != nil {
		return 0, &domain.CacheError{Operation: "size", RegionID: regionID, Err: err}
	}
	return float64(size) / bytesPerMB, nil
}

// RegionSizes returns the sizes of all region namespaces present on disk.
func (c *DiskCache) RegionSizes(ctx context.Context) (map[string]float64, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, &domain.CacheError{Operation: "size", Err: err}
	}

	sizes := make(map[string]float64, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		size, err := dirSize(filepath.Join(c.root, entry.Name()))
		if err != nil {
			return nil, &domain.CacheError{Operation: "size", RegionID: entry.Name(), Err: err}
		}
		sizes[entry.Name()] = float64(size) / bytesPerMB
	}

	return sizes, nil
}

// RemoveRegion deletes a region namespace recursively. Removing a missing
// namespace is a no-op.
func (c *DiskCache) RemoveRegion(ctx context.Context, regionID string) error {
	// An empty id would resolve to the cache root itself.
	if regionID == "" {
		return &domain.CacheError{Operation: "remove", Err: errors.New("region id is empty")}
	}
	if err := os.RemoveAll(filepath.Join(c.root, regionID)); err != nil {
		return &domain.CacheError{Operation: "remove", RegionID: regionID, Err: err}
	}
	return nil
}

// Clear removes all cache contents but keeps the root directory.
func (c *DiskCache) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return &domain.CacheError{Operation: "clear", Err: err}
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.root, entry.Name())); err != nil {
			return &domain.CacheError{Operation: "clear", Err: err}
		}
	}
	return nil
}

// dirSize sums regular file sizes under dir. A missing directory yields
// zero, not an error.
func dirSize(dir string) (int64, error) {
	var total int64

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}
