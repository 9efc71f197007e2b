package application

import (
	"os"
	"sync"

	"github.com/jobrunner/tilevault/internal/domain"
)

// availabilityIndex is the in-memory offline availability index: one
// record per cached tile, keyed by the "z/x/y" composite key. It is
// populated incrementally during downloads and bulk-loaded at startup.
type availabilityIndex struct {
	mu    sync.RWMutex
	tiles map[string]domain.TileRecord
}

func newAvailabilityIndex() *availabilityIndex {
	return &availabilityIndex{
		tiles: make(map[string]domain.TileRecord),
	}
}

// register adds or replaces the record for a tile.
func (i *availabilityIndex) register(rec domain.TileRecord) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tiles[rec.Coordinate.Key()] = rec
}

// lookup returns the record for a tile coordinate.
func (i *availabilityIndex) lookup(tile domain.TileCoordinate) (domain.TileRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.tiles[tile.Key()]
	return rec, ok
}

// removeRegion drops all records belonging to a region and returns how
// many were removed.
func (i *availabilityIndex) removeRegion(regionID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for key, rec := range i.tiles {
		if rec.RegionID == regionID {
			delete(i.tiles, key)
			removed++
		}
	}
	return removed
}

// removePath drops the record whose file path matches, if any. Used when
// a tile file disappears from disk out of band.
func (i *availabilityIndex) removePath(path string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for key, rec := range i.tiles {
		if rec.FilePath == path {
			delete(i.tiles, key)
			return true
		}
	}
	return false
}

// replaceAll swaps the full index content, dropping records whose file no
// longer exists on disk. Returns the number of records pruned.
func (i *availabilityIndex) replaceAll(records []domain.TileRecord) int {
	tiles := make(map[string]domain.TileRecord, len(records))
	pruned := 0
	for _, rec := range records {
		if _, err := os.Stat(rec.FilePath); err != nil {
			pruned++
			continue
		}
		tiles[rec.Coordinate.Key()] = rec
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.tiles = tiles
	return pruned
}

// snapshot returns a copy of all records for persistence.
func (i *availabilityIndex) snapshot() []domain.TileRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()

	records := make([]domain.TileRecord, 0, len(i.tiles))
	for _, rec := range i.tiles {
		records = append(records, rec)
	}
	return records
}

// size returns the number of indexed tiles.
func (i *availabilityIndex) size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.tiles)
}

// clear drops every record.
func (i *availabilityIndex) clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tiles = make(map[string]domain.TileRecord)
}
