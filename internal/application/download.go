package application

import (
	"context"
	"sync"
	"time"

	"github.com/jobrunner/tilevault/internal/domain"
)

// progressBuffer is the capacity of the progress channel handed to
// DownloadRegion callers. Emissions never block: when the buffer is full
// the snapshot is dropped, so an abandoned channel cannot stall a
// download.
const progressBuffer = 16

// downloadTask tracks one running region download.
type downloadTask struct {
	regionID string
	cancel   context.CancelFunc
	progress chan domain.DownloadProgress
	done     chan struct{}
}

// downloadTally is the guarded progress accounting of one download.
// Snapshots are taken and emitted under its lock so emissions stay
// ordered and monotonic across workers.
type downloadTally struct {
	mu         sync.Mutex
	total      int
	downloaded int
	failed     int
	skipped    int
}

func (t *downloadTally) counts() (downloaded, failed, skipped int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.downloaded, t.failed, t.skipped
}

// tileOutcome classifies how one tile was handled.
type tileOutcome int

const (
	tileDownloaded tileOutcome = iota
	tileSkipped
	tileFailed
)

// DownloadRegion starts an asynchronous download of every tile in the
// region's pyramid. The returned channel emits throttled progress
// snapshots and is closed when the download finishes. A second call for
// the same region while one is running fails with ErrDownloadActive;
// downloads for different regions may run concurrently.
func (s *TileService) DownloadRegion(ctx context.Context, id string) (<-chan domain.DownloadProgress, error) {
	if s.GetSettings().OfflineMode {
		return nil, domain.ErrOfflineMode
	}

	region, err := s.GetRegion(id)
	if err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &downloadTask{
		regionID: id,
		cancel:   cancel,
		progress: make(chan domain.DownloadProgress, progressBuffer),
		done:     make(chan struct{}),
	}

	s.downloadsMu.Lock()
	if _, active := s.downloads[id]; active {
		s.downloadsMu.Unlock()
		cancel()
		return nil, domain.ErrDownloadActive
	}
	s.downloads[id] = task
	active := len(s.downloads)
	s.downloadsMu.Unlock()

	s.metrics.SetActiveDownloads(active)

	s.mu.Lock()
	if r, ok := s.regions[id]; ok {
		r.Status = domain.RegionDownloading
	}
	s.mu.Unlock()

	s.logger.Info("starting region download",
		"id", id,
		"name", region.Name,
		"min_zoom", region.MinZoom,
		"max_zoom", region.MaxZoom,
		"tiles", region.TotalTileCount(),
		"workers", s.concurrency,
	)

	go s.runDownload(taskCtx, task, *region)

	return task.progress, nil
}

// CancelDownload cancels an active download, reporting whether one was
// running. The task shuts down asynchronously and leaves the region in
// partial state.
func (s *TileService) CancelDownload(id string) bool {
	s.downloadsMu.Lock()
	task, ok := s.downloads[id]
	s.downloadsMu.Unlock()

	if !ok {
		return false
	}

	task.cancel()
	s.logger.Info("download cancellation requested", "id", id)
	return true
}

// ActiveDownloads returns the number of running download tasks.
func (s *TileService) ActiveDownloads() int {
	s.downloadsMu.Lock()
	defer s.downloadsMu.Unlock()
	return len(s.downloads)
}

// isDownloadActive reports whether a download is running for the region.
func (s *TileService) isDownloadActive(id string) bool {
	s.downloadsMu.Lock()
	defer s.downloadsMu.Unlock()
	_, active := s.downloads[id]
	return active
}

// LastDownloadResult returns the summary of the most recent finished
// download for a region.
func (s *TileService) LastDownloadResult(id string) (domain.DownloadResult, bool) {
	s.downloadsMu.Lock()
	defer s.downloadsMu.Unlock()
	result, ok := s.lastResults[id]
	return result, ok
}

// waitForDownload blocks until the active download for a region, if any,
// has fully stopped.
func (s *TileService) waitForDownload(id string) {
	s.downloadsMu.Lock()
	task, ok := s.downloads[id]
	s.downloadsMu.Unlock()

	if ok {
		<-task.done
	}
}

// Shutdown cancels all active downloads and waits until their final
// partial state has been persisted.
func (s *TileService) Shutdown() {
	s.downloadsMu.Lock()
	tasks := make([]*downloadTask, 0, len(s.downloads))
	for _, task := range s.downloads {
		tasks = append(tasks, task)
	}
	s.downloadsMu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	for _, task := range tasks {
		<-task.done
	}
}

// runDownload is the download task body. It feeds the region's tile set
// through a bounded worker pool, then computes and persists the final
// region state. The progress channel is always closed and the task
// always deregistered, whatever path leads out.
func (s *TileService) runDownload(ctx context.Context, task *downloadTask, region domain.Region) {
	start := time.Now()

	defer func() {
		task.cancel()
		close(task.progress)

		s.downloadsMu.Lock()
		delete(s.downloads, task.regionID)
		active := len(s.downloads)
		s.downloadsMu.Unlock()
		s.metrics.SetActiveDownloads(active)

		close(task.done)
	}()

	// Enumerate the tile set: zoom low to high, x then y within a zoom.
	var tiles []domain.TileCoordinate
	for _, rng := range region.TileRanges() {
		tiles = append(tiles, rng.Tiles()...)
	}

	tally := &downloadTally{total: len(tiles)}

	jobs := make(chan domain.TileCoordinate)
	var wg sync.WaitGroup
	for w := 0; w < s.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range jobs {
				if ctx.Err() != nil {
					continue
				}
				s.processTile(ctx, task, tally, region.ID, tile)
			}
		}()
	}

feed:
	for _, tile := range tiles {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- tile:
		}
	}
	close(jobs)
	wg.Wait()

	s.finishDownload(task, tally, region.ID, ctx.Err() != nil, time.Since(start))
}

// processTile handles one tile: skip when already cached, otherwise
// fetch and store. Per-tile failures are counted, never escalated.
func (s *TileService) processTile(ctx context.Context, task *downloadTask, tally *downloadTally, regionID string, tile domain.TileCoordinate) {
	if s.cache.HasTile(regionID, tile) {
		s.recordTile(ctx, task, tally, regionID, tileSkipped)
		return
	}

	fetchStart := time.Now()
	data, err := s.source.Fetch(ctx, tile)
	s.metrics.ObserveFetchDuration(time.Since(fetchStart))
	if err != nil {
		if ctx.Err() != nil {
			// Canceled mid-fetch: the tile stays unprocessed.
			return
		}
		s.metrics.IncTileDownloads(regionID, false)
		s.logger.Debug("tile fetch failed", "tile", tile.Key(), "error", err)
		s.recordTile(ctx, task, tally, regionID, tileFailed)
		return
	}

	path, err := s.cache.Store(ctx, regionID, tile, data)
	if err != nil {
		s.metrics.IncTileDownloads(regionID, false)
		s.logger.Warn("tile store failed", "tile", tile.Key(), "error", err)
		s.recordTile(ctx, task, tally, regionID, tileFailed)
		return
	}

	s.index.register(domain.TileRecord{
		Coordinate:   tile,
		RegionID:     regionID,
		SourceURL:    s.source.URL(tile),
		FilePath:     path,
		DownloadedAt: time.Now().UTC(),
	})
	s.metrics.IncTileDownloads(regionID, true)
	s.recordTile(ctx, task, tally, regionID, tileDownloaded)
}

// recordTile updates the tally and, at the throttled cadence, emits a
// progress snapshot and persists the catalog. Emission happens under the
// tally lock to keep snapshots monotonic across workers.
func (s *TileService) recordTile(ctx context.Context, task *downloadTask, tally *downloadTally, regionID string, outcome tileOutcome) {
	tally.mu.Lock()

	switch outcome {
	case tileDownloaded:
		tally.downloaded++
	case tileSkipped:
		tally.downloaded++
		tally.skipped++
	case tileFailed:
		tally.failed++
	}

	processed := tally.downloaded + tally.failed
	emit := processed%s.progressInterval == 0 || processed == tally.total
	if emit {
		s.publishProgress(task, regionID, tally.downloaded, tally.failed, tally.total, domain.RegionDownloading)
	}
	tally.mu.Unlock()

	if emit && ctx.Err() == nil {
		if err := s.persistRegions(ctx); err != nil {
			s.logger.Debug("throttled catalog persist failed", "id", regionID, "error", err)
		}
	}
}

// publishProgress mirrors the counts into the catalog entry and pushes
// one snapshot without blocking.
func (s *TileService) publishProgress(task *downloadTask, regionID string, downloaded, failed, total int, status domain.RegionStatus) {
	fraction := 0.0
	if total > 0 {
		fraction = float64(downloaded+failed) / float64(total)
	}

	s.mu.Lock()
	if region, ok := s.regions[regionID]; ok {
		region.Progress = fraction
		region.DownloadedTiles = downloaded
		region.FailedTiles = failed
		region.TileCount = total
	}
	s.mu.Unlock()

	select {
	case task.progress <- domain.DownloadProgress{
		RegionID:   regionID,
		Downloaded: downloaded,
		Failed:     failed,
		Total:      total,
		Fraction:   fraction,
		Status:     status,
	}:
	default:
	}
}

// finishDownload computes the final region state, persists catalog and
// tile index, records the download summary, and emits the terminal
// progress snapshot. Completion requires every tile downloaded; failures
// or cancellation leave the region partial.
func (s *TileService) finishDownload(task *downloadTask, tally *downloadTally, regionID string, canceled bool, elapsed time.Duration) {
	downloaded, failed, skipped := tally.counts()
	total := tally.total

	status := domain.RegionComplete
	if canceled || failed > 0 || downloaded < total {
		status = domain.RegionPartial
	}

	// The task context may already be canceled; the final persistence
	// still has to run.
	ctx := context.Background()

	sizeMB, err := s.cache.RegionSizeMB(ctx, regionID)
	if err != nil {
		s.logger.Warn("failed to size region after download", "id", regionID, "error", err)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	if region, ok := s.regions[regionID]; ok {
		region.Status = status
		region.DownloadedTiles = downloaded
		region.FailedTiles = failed
		region.TileCount = total
		region.SizeOnDiskMB = sizeMB
		if total > 0 {
			region.Progress = float64(downloaded+failed) / float64(total)
		} else {
			region.Progress = 1.0
		}
		if status == domain.RegionComplete {
			region.CompletedAt = now
		}
	}
	s.mu.Unlock()

	result := domain.DownloadResult{
		RegionID:   regionID,
		Downloaded: downloaded,
		Failed:     failed,
		Skipped:    skipped,
		Total:      total,
		Status:     status,
		Canceled:   canceled,
		Duration:   elapsed,
	}
	s.downloadsMu.Lock()
	s.lastResults[regionID] = result
	s.downloadsMu.Unlock()

	if err := s.persistRegions(ctx); err != nil {
		s.logger.Error("failed to persist region catalog after download", "id", regionID, "error", err)
	}
	if err := s.state.saveTiles(ctx, s.index.snapshot()); err != nil {
		s.logger.Error("failed to persist tile index after download", "id", regionID, "error", err)
	}

	s.publishProgress(task, regionID, downloaded, failed, total, status)
	s.updateMetrics(ctx)

	s.logger.Info("region download finished",
		"id", regionID,
		"status", string(status),
		"downloaded", downloaded,
		"failed", failed,
		"skipped", skipped,
		"total", total,
		"size_mb", sizeMB,
		"duration", elapsed.Round(time.Millisecond),
		"canceled", canceled,
	)
}
