// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/tilevault/internal/domain"
)

// TileService defines the primary port for the offline tile subsystem.
type TileService interface {
	// Initialize loads persisted settings, regions and the tile index.
	Initialize(ctx context.Context) error

	// GetSettings returns the current offline map settings.
	GetSettings() domain.Settings

	// SetOfflineMode toggles offline mode and persists the setting.
	SetOfflineMode(ctx context.Context, enabled bool) error

	// SetAutoDownload toggles auto download and persists the setting.
	SetAutoDownload(ctx context.Context, enabled bool) error

	// SetMaxCacheSizeMB updates the cache budget and persists the setting.
	SetMaxCacheSizeMB(ctx context.Context, sizeMB float64) error

	// AddRegion creates and persists a new download region.
	AddRegion(ctx context.Context, name string, bounds domain.GeoBounds, minZoom, maxZoom int) (*domain.Region, error)

	// ListRegions returns all regions in the catalog.
	ListRegions() []domain.Region

	// GetRegion returns a region by id.
	GetRegion(id string) (*domain.Region, error)

	// RemoveRegion deletes a region's tiles and metadata. Removing an
	// unknown id is a no-op.
	RemoveRegion(ctx context.Context, id string) error

	// DownloadRegion starts an asynchronous download of a region's tile
	// set. The returned channel emits throttled progress snapshots and is
	// closed when the download finishes.
	DownloadRegion(ctx context.Context, id string) (<-chan domain.DownloadProgress, error)

	// CancelDownload cancels an active download. It reports whether a
	// download was running.
	CancelDownload(id string) bool

	// EstimateTileCount returns the number of tiles needed to cover the
	// bounds across the zoom range.
	EstimateTileCount(bounds domain.GeoBounds, minZoom, maxZoom int) (int, error)

	// EstimateSizeMB returns the estimated download size in MB.
	EstimateSizeMB(bounds domain.GeoBounds, minZoom, maxZoom int) (float64, error)

	// TotalCacheSizeMB returns the current cache size on disk.
	TotalCacheSizeMB(ctx context.Context) (float64, error)

	// CleanupCache evicts whole regions until the cache fits the budget.
	CleanupCache(ctx context.Context) (domain.CleanupResult, error)

	// ClearCache removes all cached tiles and the tile index and resets
	// every region to pending.
	ClearCache(ctx context.Context) error

	// IsPositionAvailableOffline checks if a point lies within a fully
	// downloaded region.
	IsPositionAvailableOffline(p domain.GeoPoint) bool

	// CachedTilePath returns the stored file path for a tile, if present.
	CachedTilePath(tile domain.TileCoordinate) (string, bool)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy         bool              // Overall health status
	Ready           bool              // Ready to accept requests
	Regions         int               // Number of regions in the catalog
	TilesIndexed    int               // Number of tiles in the offline index
	ActiveDownloads int               // Number of running downloads
	CacheSizeMB     float64           // Current cache size
	Components      map[string]string // Component statuses
}
