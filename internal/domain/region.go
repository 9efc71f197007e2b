package domain

import "time"

// Region represents a named geographic area selected for offline download:
// a bounding box plus a zoom-level range. Regions are the unit of download
// and eviction.
type Region struct {
	ID              string       `json:"id"`   // Unique identifier (UUID)
	Name            string       `json:"name"` // Display name
	Bounds          GeoBounds    `json:"bounds"`
	MinZoom         int          `json:"min_zoom"`
	MaxZoom         int          `json:"max_zoom"`
	Status          RegionStatus `json:"status"`
	Progress        float64      `json:"progress"` // Download progress in [0, 1]
	TileCount       int          `json:"tile_count"`
	DownloadedTiles int          `json:"downloaded_tiles"`
	FailedTiles     int          `json:"failed_tiles"`
	SizeOnDiskMB    float64      `json:"size_on_disk_mb"`
	CreatedAt       time.Time    `json:"created_at"`
	CompletedAt     time.Time    `json:"completed_at,omitempty"` // Zero until first completed download
}

// Validate checks the region's bounds and zoom range.
func (r *Region) Validate() error {
	if err := r.Bounds.Validate(); err != nil {
		return err
	}
	return ValidateZoomRange(r.MinZoom, r.MaxZoom)
}

// IsDownloaded returns true if the region completed a download with every
// tile present.
func (r *Region) IsDownloaded() bool {
	return r.Status == RegionComplete
}

// Contains checks if a point lies within the region's bounds.
func (r *Region) Contains(p GeoPoint) bool {
	return r.Bounds.Contains(p)
}

// TileRanges returns the per-zoom tile rectangles covering the region's
// bounds, ordered from the lowest zoom level to the highest.
func (r *Region) TileRanges() []TileRange {
	ranges := make([]TileRange, 0, r.MaxZoom-r.MinZoom+1)
	for z := r.MinZoom; z <= r.MaxZoom; z++ {
		ranges = append(ranges, TileRangeForBounds(r.Bounds, z))
	}
	return ranges
}

// TotalTileCount returns the number of tiles the region spans across its
// zoom range.
func (r *Region) TotalTileCount() int {
	return TileCountForBounds(r.Bounds, r.MinZoom, r.MaxZoom)
}

// RegionStatus represents the download state of a region.
type RegionStatus string

const (
	// RegionPending means no download has run yet.
	RegionPending RegionStatus = "pending"
	// RegionDownloading means a download is currently active.
	RegionDownloading RegionStatus = "downloading"
	// RegionPartial means the last download finished with failed or
	// missing tiles, or was canceled partway.
	RegionPartial RegionStatus = "partial"
	// RegionComplete means every tile of the region is on disk.
	RegionComplete RegionStatus = "complete"
)
