package domain

import "time"

// DefaultMaxCacheSizeMB is the cache budget applied when no setting has
// been persisted yet.
const DefaultMaxCacheSizeMB = 500.0

// AverageTileSizeMB is the calibrated average size of a raster tile on
// disk, used for pre-download size estimates.
const AverageTileSizeMB = 0.035

// Settings holds the user-adjustable offline map preferences. They are
// persisted across restarts and mutated only through the tile service.
type Settings struct {
	OfflineMode    bool    `json:"offline_mode"`     // Serve tiles from cache only; refuse downloads
	AutoDownload   bool    `json:"auto_download"`    // Start downloading newly added regions immediately
	MaxCacheSizeMB float64 `json:"max_cache_size_mb"`
}

// DefaultSettings returns the settings applied on first start or when the
// persisted record is unreadable.
func DefaultSettings() Settings {
	return Settings{
		OfflineMode:    false,
		AutoDownload:   false,
		MaxCacheSizeMB: DefaultMaxCacheSizeMB,
	}
}

// DownloadProgress is a snapshot of an active region download, emitted on
// the progress channel at a throttled cadence. Fraction values within one
// download are monotonically non-decreasing.
type DownloadProgress struct {
	RegionID   string       `json:"region_id"`
	Downloaded int          `json:"downloaded"`
	Failed     int          `json:"failed"`
	Total      int          `json:"total"`
	Fraction   float64      `json:"fraction"`
	Status     RegionStatus `json:"status"`
}

// DownloadResult summarizes a finished (or canceled) region download.
type DownloadResult struct {
	RegionID   string        `json:"region_id"`
	Downloaded int           `json:"downloaded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"` // Tiles already on disk
	Total      int           `json:"total"`
	Status     RegionStatus  `json:"status"`
	Canceled   bool          `json:"canceled"`
	Duration   time.Duration `json:"duration"`
}

// CleanupResult summarizes a cache cleanup run.
type CleanupResult struct {
	EvictedRegions []string `json:"evicted_regions"`
	FreedMB        float64  `json:"freed_mb"`
	SizeBeforeMB   float64  `json:"size_before_mb"`
	SizeAfterMB    float64  `json:"size_after_mb"`
}

// Evicted returns true if the cleanup removed at least one region.
func (r CleanupResult) Evicted() bool {
	return len(r.EvictedRegions) > 0
}
