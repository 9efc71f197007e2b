// Package application contains the application services.
package application

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/tilevault/internal/domain"
	"github.com/jobrunner/tilevault/internal/ports/output"
)

// TileService is the central application service. It owns the region
// catalog, the user settings, the offline availability index, and the
// active download tasks. All shared state is mutated through its guarded
// methods.
type TileService struct {
	mu       sync.RWMutex
	regions  map[string]*domain.Region
	settings domain.Settings
	ready    bool

	downloadsMu sync.Mutex
	downloads   map[string]*downloadTask
	lastResults map[string]domain.DownloadResult

	index   *availabilityIndex
	state   *statePersistence
	source  output.TileSource
	cache   output.TileCache
	metrics output.MetricsCollector
	logger  *slog.Logger

	concurrency      int
	progressInterval int
}

// ServiceConfig holds tuning knobs for the tile service.
type ServiceConfig struct {
	Concurrency      int // download workers per region, default: 4
	ProgressInterval int // tiles between progress emissions, default: 10
}

// NewTileService creates the tile service. Call Initialize before use.
func NewTileService(
	source output.TileSource,
	cache output.TileCache,
	store output.StateStore,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg ServiceConfig,
) *TileService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 10
	}

	return &TileService{
		regions:          make(map[string]*domain.Region),
		settings:         domain.DefaultSettings(),
		downloads:        make(map[string]*downloadTask),
		lastResults:      make(map[string]domain.DownloadResult),
		index:            newAvailabilityIndex(),
		state:            newStatePersistence(store, metrics, logger),
		source:           source,
		cache:            cache,
		metrics:          metrics,
		logger:           logger,
		concurrency:      cfg.Concurrency,
		progressInterval: cfg.ProgressInterval,
	}
}

// Initialize loads persisted settings, regions and the tile index, and
// prunes index entries whose tile files vanished between runs. Corrupt
// records fall back to empty defaults.
func (s *TileService) Initialize(ctx context.Context) error {
	s.logger.Info("initializing tile service", "cache_root", s.cache.Root())

	settings := s.state.loadSettings(ctx)
	regions := s.state.loadRegions(ctx)
	tiles := s.state.loadTiles(ctx)

	s.mu.Lock()
	s.settings = settings
	s.regions = make(map[string]*domain.Region, len(regions))
	for i := range regions {
		region := regions[i]
		// A download interrupted by a restart can never resume as running.
		if region.Status == domain.RegionDownloading {
			if region.DownloadedTiles > 0 {
				region.Status = domain.RegionPartial
			} else {
				region.Status = domain.RegionPending
			}
		}
		s.regions[region.ID] = &region
	}
	s.mu.Unlock()

	pruned := s.index.replaceAll(tiles)
	if pruned > 0 {
		s.logger.Info("pruned stale tile index entries", "pruned", pruned, "indexed", s.index.size())
		if err := s.state.saveTiles(ctx, s.index.snapshot()); err != nil {
			s.logger.Error("failed to persist pruned tile index", "error", err)
		}
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	s.updateMetrics(ctx)
	s.logger.Info("tile service initialized",
		"regions", len(regions),
		"tiles_indexed", s.index.size(),
		"offline_mode", settings.OfflineMode,
	)

	return nil
}

// IsReady reports whether Initialize has completed.
func (s *TileService) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// GetSettings returns the current settings.
func (s *TileService) GetSettings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetOfflineMode toggles offline mode and persists the change.
func (s *TileService) SetOfflineMode(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.settings.OfflineMode = enabled
	settings := s.settings
	s.mu.Unlock()

	s.logger.Info("offline mode changed", "enabled", enabled)
	return s.state.saveSettings(ctx, settings)
}

// SetAutoDownload toggles auto download and persists the change.
func (s *TileService) SetAutoDownload(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.settings.AutoDownload = enabled
	settings := s.settings
	s.mu.Unlock()

	s.logger.Info("auto download changed", "enabled", enabled)
	return s.state.saveSettings(ctx, settings)
}

// SetMaxCacheSizeMB updates the cache budget and persists the change.
func (s *TileService) SetMaxCacheSizeMB(ctx context.Context, sizeMB float64) error {
	if sizeMB <= 0 {
		return &domain.ValidationError{
			Field:      "max_cache_size_mb",
			Value:      sizeMB,
			Constraint: "> 0",
			Message:    "cache budget must be positive",
		}
	}

	s.mu.Lock()
	s.settings.MaxCacheSizeMB = sizeMB
	settings := s.settings
	s.mu.Unlock()

	s.logger.Info("cache budget changed", "max_cache_size_mb", sizeMB)
	return s.state.saveSettings(ctx, settings)
}

// AddRegion validates, registers and persists a new region. When the
// auto-download setting is on the download starts immediately.
func (s *TileService) AddRegion(ctx context.Context, name string, bounds domain.GeoBounds, minZoom, maxZoom int) (*domain.Region, error) {
	if name == "" {
		return nil, &domain.ValidationError{
			Field:      "name",
			Value:      name,
			Constraint: "non-empty",
			Message:    "region name is required",
		}
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateZoomRange(minZoom, maxZoom); err != nil {
		return nil, err
	}

	region := &domain.Region{
		ID:        uuid.NewString(),
		Name:      name,
		Bounds:    bounds,
		MinZoom:   minZoom,
		MaxZoom:   maxZoom,
		Status:    domain.RegionPending,
		CreatedAt: time.Now().UTC(),
	}
	region.TileCount = region.TotalTileCount()

	s.mu.Lock()
	s.regions[region.ID] = region
	s.mu.Unlock()

	if err := s.persistRegions(ctx); err != nil {
		s.mu.Lock()
		delete(s.regions, region.ID)
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Info("region added",
		"id", region.ID,
		"name", name,
		"tiles", region.TileCount,
	)
	s.updateMetrics(ctx)

	if s.GetSettings().AutoDownload {
		if _, err := s.DownloadRegion(ctx, region.ID); err != nil {
			s.logger.Warn("auto download did not start", "id", region.ID, "error", err)
		}
	}

	result, _ := s.GetRegion(region.ID)
	return result, nil
}

// ListRegions returns all regions sorted by creation time.
func (s *TileService) ListRegions() []domain.Region {
	s.mu.RLock()
	regions := make([]domain.Region, 0, len(s.regions))
	for _, region := range s.regions {
		regions = append(regions, *region)
	}
	s.mu.RUnlock()

	sort.Slice(regions, func(a, b int) bool {
		return regions[a].CreatedAt.Before(regions[b].CreatedAt)
	})
	return regions
}

// GetRegion returns a copy of one region.
func (s *TileService) GetRegion(id string) (*domain.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	region, ok := s.regions[id]
	if !ok {
		return nil, domain.ErrRegionNotFound
	}

	result := *region
	return &result, nil
}

// RegionCount returns the catalog size.
func (s *TileService) RegionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions)
}

// TilesIndexed returns the number of tiles in the availability index.
func (s *TileService) TilesIndexed() int {
	return s.index.size()
}

// RemoveRegion cancels any active download and deletes the region's
// tiles, index records and catalog entry. Removing an unknown id is a
// no-op.
func (s *TileService) RemoveRegion(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.regions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if s.CancelDownload(id) {
		s.waitForDownload(id)
	}

	if err := s.cache.RemoveRegion(ctx, id); err != nil {
		return err
	}
	dropped := s.index.removeRegion(id)

	s.mu.Lock()
	delete(s.regions, id)
	s.mu.Unlock()

	s.downloadsMu.Lock()
	delete(s.lastResults, id)
	s.downloadsMu.Unlock()

	if err := s.persistRegions(ctx); err != nil {
		return err
	}
	if err := s.state.saveTiles(ctx, s.index.snapshot()); err != nil {
		return err
	}

	s.logger.Info("region removed", "id", id, "tiles_dropped", dropped)
	s.updateMetrics(ctx)
	return nil
}

// EstimateTileCount returns the number of tiles covering bounds across
// the zoom range.
func (s *TileService) EstimateTileCount(bounds domain.GeoBounds, minZoom, maxZoom int) (int, error) {
	if err := bounds.Validate(); err != nil {
		return 0, err
	}
	if err := domain.ValidateZoomRange(minZoom, maxZoom); err != nil {
		return 0, err
	}
	return domain.TileCountForBounds(bounds, minZoom, maxZoom), nil
}

// EstimateSizeMB returns the estimated download size for bounds across
// the zoom range.
func (s *TileService) EstimateSizeMB(bounds domain.GeoBounds, minZoom, maxZoom int) (float64, error) {
	count, err := s.EstimateTileCount(bounds, minZoom, maxZoom)
	if err != nil {
		return 0, err
	}
	return float64(count) * domain.AverageTileSizeMB, nil
}

// TotalCacheSizeMB returns the current cache size on disk.
func (s *TileService) TotalCacheSizeMB(ctx context.Context) (float64, error) {
	size, err := s.cache.TotalSizeMB(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.SetCacheSizeMB(size)
	return size, nil
}

// CleanupCache evicts least-recently-completed regions until the cache
// fits the configured budget. Whole regions are the only eviction unit;
// regions with an active download are never evicted.
func (s *TileService) CleanupCache(ctx context.Context) (domain.CleanupResult, error) {
	budget := s.GetSettings().MaxCacheSizeMB

	sizeBefore, err := s.cache.TotalSizeMB(ctx)
	if err != nil {
		return domain.CleanupResult{}, err
	}

	result := domain.CleanupResult{
		SizeBeforeMB: sizeBefore,
		SizeAfterMB:  sizeBefore,
	}
	if sizeBefore <= budget {
		return result, nil
	}

	s.logger.Info("cache over budget, starting cleanup",
		"size_mb", sizeBefore,
		"budget_mb", budget,
	)

	sizes, err := s.cache.RegionSizes(ctx)
	if err != nil {
		return result, err
	}

	remaining := sizeBefore
	for _, id := range s.evictionOrder() {
		if remaining <= budget {
			break
		}
		if s.isDownloadActive(id) {
			continue
		}

		if err := s.evictRegion(ctx, id); err != nil {
			s.logger.Error("failed to evict region", "id", id, "error", err)
			continue
		}

		freed := sizes[id]
		remaining -= freed
		result.EvictedRegions = append(result.EvictedRegions, id)
		result.FreedMB += freed
		s.metrics.IncRegionEvictions()
		s.logger.Info("evicted region from cache", "id", id, "freed_mb", freed)
	}

	if sizeAfter, err := s.cache.TotalSizeMB(ctx); err == nil {
		result.SizeAfterMB = sizeAfter
	} else {
		result.SizeAfterMB = remaining
	}

	if result.Evicted() {
		if err := s.persistRegions(ctx); err != nil {
			s.logger.Error("failed to persist region catalog after cleanup", "error", err)
		}
		if err := s.state.saveTiles(ctx, s.index.snapshot()); err != nil {
			s.logger.Error("failed to persist tile index after cleanup", "error", err)
		}
	}

	s.updateMetrics(ctx)
	return result, nil
}

// ClearCache removes every cached tile, clears the index, and resets all
// regions to pending. Active downloads are canceled first.
func (s *TileService) ClearCache(ctx context.Context) error {
	s.downloadsMu.Lock()
	tasks := make([]*downloadTask, 0, len(s.downloads))
	for _, task := range s.downloads {
		tasks = append(tasks, task)
	}
	s.downloadsMu.Unlock()
	for _, task := range tasks {
		task.cancel()
		<-task.done
	}

	if err := s.cache.Clear(ctx); err != nil {
		return err
	}
	s.index.clear()

	s.mu.Lock()
	for _, region := range s.regions {
		region.Status = domain.RegionPending
		region.Progress = 0
		region.DownloadedTiles = 0
		region.FailedTiles = 0
		region.SizeOnDiskMB = 0
		region.CompletedAt = time.Time{}
	}
	s.mu.Unlock()

	if err := s.persistRegions(ctx); err != nil {
		return err
	}
	if err := s.state.saveTiles(ctx, nil); err != nil {
		return err
	}

	s.logger.Info("cache cleared")
	s.updateMetrics(ctx)
	return nil
}

// IsPositionAvailableOffline reports whether the point lies inside at
// least one fully downloaded region. Partial regions do not count.
func (s *TileService) IsPositionAvailableOffline(p domain.GeoPoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, region := range s.regions {
		if region.IsDownloaded() && region.Contains(p) {
			return true
		}
	}
	return false
}

// CachedTilePath returns the on-disk path of a cached tile.
func (s *TileService) CachedTilePath(tile domain.TileCoordinate) (string, bool) {
	rec, ok := s.index.lookup(tile)
	if !ok {
		return "", false
	}
	return rec.FilePath, true
}

// InvalidateCachedPath drops the index record pointing at path. The
// cache watcher calls this when a tile file disappears out of band.
func (s *TileService) InvalidateCachedPath(path string) {
	if s.index.removePath(path) {
		s.logger.Debug("invalidated tile index entry", "path", path)
	}
}

// evictRegion removes a region's tiles and index records but keeps its
// catalog entry so it can be re-downloaded later.
func (s *TileService) evictRegion(ctx context.Context, id string) error {
	if err := s.cache.RemoveRegion(ctx, id); err != nil {
		return err
	}
	s.index.removeRegion(id)

	s.mu.Lock()
	if region, ok := s.regions[id]; ok {
		region.Status = domain.RegionPending
		region.Progress = 0
		region.DownloadedTiles = 0
		region.FailedTiles = 0
		region.SizeOnDiskMB = 0
		region.CompletedAt = time.Time{}
	}
	s.mu.Unlock()
	return nil
}

// evictionOrder returns region ids in eviction order: regions that never
// completed first (oldest created leading), then by completion time,
// least recently completed first.
func (s *TileService) evictionOrder() []string {
	s.mu.RLock()
	regions := make([]domain.Region, 0, len(s.regions))
	for _, region := range s.regions {
		regions = append(regions, *region)
	}
	s.mu.RUnlock()

	sort.Slice(regions, func(a, b int) bool {
		ca, cb := regions[a].CompletedAt, regions[b].CompletedAt
		if ca.IsZero() != cb.IsZero() {
			return ca.IsZero()
		}
		if ca.IsZero() {
			return regions[a].CreatedAt.Before(regions[b].CreatedAt)
		}
		return ca.Before(cb)
	})

	ids := make([]string, len(regions))
	for i, region := range regions {
		ids[i] = region.ID
	}
	return ids
}

// persistRegions writes the catalog snapshot, ordered by creation time
// for stable on-disk records. Callers must not hold s.mu.
func (s *TileService) persistRegions(ctx context.Context) error {
	regions := s.ListRegions()
	return s.state.saveRegions(ctx, regions)
}

// updateMetrics refreshes the catalog and cache gauges.
func (s *TileService) updateMetrics(ctx context.Context) {
	s.mu.RLock()
	counts := make(map[domain.RegionStatus]int, 4)
	for _, region := range s.regions {
		counts[region.Status]++
	}
	s.mu.RUnlock()

	for _, status := range []domain.RegionStatus{
		domain.RegionPending,
		domain.RegionDownloading,
		domain.RegionPartial,
		domain.RegionComplete,
	} {
		s.metrics.SetRegionCount(string(status), counts[status])
	}

	if size, err := s.cache.TotalSizeMB(ctx); err == nil {
		s.metrics.SetCacheSizeMB(size)
	}
}
