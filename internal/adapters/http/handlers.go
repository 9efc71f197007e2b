package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/tilevault/internal/application"
	"github.com/jobrunner/tilevault/internal/domain"
)

// EstimateParams represents the query parameters for a download estimate.
type EstimateParams struct {
	Bounds  domain.GeoBounds `json:"bounds"`
	MinZoom int              `json:"min_zoom"`
	MaxZoom int              `json:"max_zoom"`
}

// addRegionRequest is the POST body for creating a region.
type addRegionRequest struct {
	Name    string  `json:"name"`
	North   float64 `json:"north"`
	South   float64 `json:"south"`
	East    float64 `json:"east"`
	West    float64 `json:"west"`
	MinZoom int     `json:"min_zoom"`
	MaxZoom int     `json:"max_zoom"`
}

// updateSettingsRequest is the PUT body for settings. Absent fields keep
// their current value.
type updateSettingsRequest struct {
	OfflineMode    *bool    `json:"offline_mode"`
	AutoDownload   *bool    `json:"auto_download"`
	MaxCacheSizeMB *float64 `json:"max_cache_size_mb"`
}

// regionDetail is a region with its most recent download summary attached.
type regionDetail struct {
	domain.Region
	LastDownload *domain.DownloadResult `json:"last_download,omitempty"`
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":           boolToStatus(details.Healthy),
		"ready":            details.Ready,
		"regions":          details.Regions,
		"tiles_indexed":    details.TilesIndexed,
		"active_downloads": details.ActiveDownloads,
		"cache_size_mb":    details.CacheSizeMB,
		"components":       details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListRegions returns all regions in the catalog.
func (s *Server) handleListRegions(w http.ResponseWriter, _ *http.Request) {
	regions := s.tiles.ListRegions()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"regions": regions,
		"count":   len(regions),
	})
}

// handleAddRegion creates a new download region.
func (s *Server) handleAddRegion(w http.ResponseWriter, r *http.Request) {
	var req addRegionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	bounds := domain.NewGeoBounds(req.North, req.South, req.East, req.West)
	region, err := s.tiles.AddRegion(r.Context(), req.Name, bounds, req.MinZoom, req.MaxZoom)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, region)
}

// handleGetRegion returns a specific region with its last download summary.
func (s *Server) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	regionID := vars["regionId"]

	region, err := s.tiles.GetRegion(regionID)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	detail := regionDetail{Region: *region}
	if result, ok := s.tiles.LastDownloadResult(regionID); ok {
		detail.LastDownload = &result
	}

	s.writeJSON(w, http.StatusOK, detail)
}

// handleRemoveRegion deletes a region and its cached tiles. Removing an
// unknown region is a no-op and also succeeds.
func (s *Server) handleRemoveRegion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	regionID := vars["regionId"]

	if err := s.tiles.RemoveRegion(r.Context(), regionID); err != nil {
		s.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadRegion starts an asynchronous download of a region's tile
// set. The download outlives the request; clients poll the region for
// progress.
func (s *Server) handleDownloadRegion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	regionID := vars["regionId"]

	// The download must keep running after this request returns.
	_, err := s.tiles.DownloadRegion(context.WithoutCancel(r.Context()), regionID)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"region_id": regionID,
		"status":    string(domain.RegionDownloading),
	})
}

// handleCancelDownload cancels an active region download.
func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	regionID := vars["regionId"]

	if _, err := s.tiles.GetRegion(regionID); err != nil {
		s.handleServiceError(w, err)
		return
	}

	if !s.tiles.CancelDownload(regionID) {
		s.writeError(w, http.StatusConflict, "No active download for this region")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"region_id": regionID,
		"canceled":  true,
	})
}

// handleEstimate returns the tile count and size estimate for a bounding
// box and zoom range without creating a region.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseEstimateParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := s.tiles.EstimateTileCount(params.Bounds, params.MinZoom, params.MaxZoom)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	sizeMB, err := s.tiles.EstimateSizeMB(params.Bounds, params.MinZoom, params.MaxZoom)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"bounds":            params.Bounds,
		"min_zoom":          params.MinZoom,
		"max_zoom":          params.MaxZoom,
		"tile_count":        count,
		"estimated_size_mb": sizeMB,
	})
}

// handleAvailability reports whether a position is covered by a fully
// downloaded region.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid lat parameter")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid lon parameter")
		return
	}

	point := domain.NewGeoPoint(lat, lon)
	if err := point.Validate(); err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"lat":       lat,
		"lon":       lon,
		"available": s.tiles.IsPositionAvailableOffline(point),
	})
}

// handleGetTile serves a cached tile file. Tiles are only served from the
// local cache; a miss is never forwarded to the source.
func (s *Server) handleGetTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	z, errZ := strconv.Atoi(vars["z"])
	x, errX := strconv.Atoi(vars["x"])
	y, errY := strconv.Atoi(vars["y"])
	if errZ != nil || errX != nil || errY != nil {
		s.writeError(w, http.StatusBadRequest, "tile coordinates must be integers")
		return
	}

	tile := domain.NewTileCoordinate(x, y, z)
	if !tile.Valid() {
		s.writeError(w, http.StatusBadRequest, "tile coordinate outside the supported pyramid")
		return
	}

	path, ok := s.tiles.CachedTilePath(tile)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Tile not cached")
		return
	}

	http.ServeFile(w, r, path)
}

// handleCacheStats returns cache usage against the configured budget.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	sizeMB, err := s.tiles.TotalCacheSizeMB(r.Context())
	if err != nil {
		s.logger.Error("failed to size cache", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to determine cache size")
		return
	}

	settings := s.tiles.GetSettings()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"size_mb":       sizeMB,
		"max_size_mb":   settings.MaxCacheSizeMB,
		"tiles_indexed": s.tiles.TilesIndexed(),
		"regions":       s.tiles.RegionCount(),
	})
}

// handleCleanup triggers a budget cleanup pass.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.maintenance == nil {
		s.writeError(w, http.StatusNotFound, "Maintenance service not available")
		return
	}

	result, err := s.maintenance.TriggerCleanup(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("cleanup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleClearCache removes every cached tile and region.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.tiles.ClearCache(r.Context()); err != nil {
		s.logger.Error("clear cache failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetSettings returns the current offline map settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tiles.GetSettings())
}

// handleUpdateSettings applies a partial settings update.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.OfflineMode != nil {
		if err := s.tiles.SetOfflineMode(r.Context(), *req.OfflineMode); err != nil {
			s.handleServiceError(w, err)
			return
		}
	}
	if req.AutoDownload != nil {
		if err := s.tiles.SetAutoDownload(r.Context(), *req.AutoDownload); err != nil {
			s.handleServiceError(w, err)
			return
		}
	}
	if req.MaxCacheSizeMB != nil {
		if err := s.tiles.SetMaxCacheSizeMB(r.Context(), *req.MaxCacheSizeMB); err != nil {
			s.handleServiceError(w, err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, s.tiles.GetSettings())
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// parseEstimateParams parses the estimate query parameters.
func (s *Server) parseEstimateParams(r *http.Request) (*EstimateParams, error) {
	q := r.URL.Query()

	edges := make(map[string]float64, 4)
	for _, name := range []string{"north", "south", "east", "west"} {
		raw := q.Get(name)
		if raw == "" {
			return nil, errors.New("north, south, east and west parameters are required")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("invalid " + name + " parameter")
		}
		edges[name] = v
	}

	params := &EstimateParams{
		Bounds: domain.NewGeoBounds(edges["north"], edges["south"], edges["east"], edges["west"]),
	}

	minZoom, err := strconv.Atoi(q.Get("min_zoom"))
	if err != nil {
		return nil, errors.New("invalid min_zoom parameter")
	}
	maxZoom, err := strconv.Atoi(q.Get("max_zoom"))
	if err != nil {
		return nil, errors.New("invalid max_zoom parameter")
	}
	params.MinZoom = minZoom
	params.MaxZoom = maxZoom

	return params, nil
}

// handleServiceError maps application errors to HTTP status codes.
func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	if errors.Is(err, domain.ErrDownloadActive) {
		s.writeError(w, http.StatusConflict, "Download already active for this region")
		return
	}

	if errors.Is(err, domain.ErrOfflineMode) {
		s.writeError(w, http.StatusConflict, "Offline mode is enabled")
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Region not found")
		return
	}

	if errors.Is(err, domain.ErrInvalidInput) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Error("request failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error")
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
