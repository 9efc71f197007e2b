package application

import (
	"context"

	"github.com/jobrunner/tilevault/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	service *TileService
}

// NewHealthService creates a new health service.
func NewHealthService(service *TileService) *HealthService {
	return &HealthService{
		service: service,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(ctx context.Context) bool {
	return true // Basic health check
}

// IsReady returns true if the service has loaded its persisted state.
func (s *HealthService) IsReady(ctx context.Context) bool {
	return s.service.IsReady()
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	cacheSize, err := s.service.TotalCacheSizeMB(ctx)

	components := map[string]string{
		"cache": "ok",
		"state": "ok",
	}
	if err != nil {
		components["cache"] = "error"
	}

	return input.HealthDetails{
		Healthy:         s.IsHealthy(ctx),
		Ready:           s.IsReady(ctx),
		Regions:         s.service.RegionCount(),
		TilesIndexed:    s.service.TilesIndexed(),
		ActiveDownloads: s.service.ActiveDownloads(),
		CacheSizeMB:     cacheSize,
		Components:      components,
	}
}
