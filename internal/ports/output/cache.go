package output

import (
	"context"

	"github.com/jobrunner/tilevault/internal/domain"
)

// TileCache defines the secondary port for the physical tile store: one
// directory namespace per region, deterministic per-tile file paths.
// Implementations must write atomically so a partially written tile is
// never observable under its final name.
type TileCache interface {
	// Store writes the tile bytes into the region's namespace and returns
	// the final file path.
	Store(ctx context.Context, regionID string, tile domain.TileCoordinate, data []byte) (string, error)

	// TilePath returns the deterministic file path for a tile without
	// checking existence.
	TilePath(regionID string, tile domain.TileCoordinate) string

	// HasTile checks if the tile file exists on disk.
	HasTile(regionID string, tile domain.TileCoordinate) bool

	// TotalSizeMB returns the recursive size of the cache root in MB.
	TotalSizeMB(ctx context.Context) (float64, error)

	// RegionSizeMB returns the on-disk size of one region's namespace.
	RegionSizeMB(ctx context.Context, regionID string) (float64, error)

	// RegionSizes returns the on-disk size of every region namespace.
	RegionSizes(ctx context.Context) (map[string]float64, error)

	// RemoveRegion recursively deletes a region's namespace. Removing an
	// absent namespace is a no-op.
	RemoveRegion(ctx context.Context, regionID string) error

	// Clear removes the entire cache root contents.
	Clear(ctx context.Context) error

	// Root returns the cache root directory.
	Root() string
}
