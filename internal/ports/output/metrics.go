package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncTileDownloads increments the tile download counter.
	IncTileDownloads(regionID string, success bool)

	// ObserveFetchDuration records a single tile fetch duration.
	ObserveFetchDuration(duration time.Duration)

	// SetCacheSizeMB sets the current cache size gauge.
	SetCacheSizeMB(sizeMB float64)

	// SetRegionCount sets the number of regions in a given status.
	SetRegionCount(status string, count int)

	// SetActiveDownloads sets the number of running region downloads.
	SetActiveDownloads(count int)

	// IncRegionEvictions increments the eviction counter.
	IncRegionEvictions()

	// IncStateOperations increments the persistence operation counter.
	IncStateOperations(operation string, success bool)

	// ObserveStateDuration records a persistence operation duration.
	ObserveStateDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncTileDownloads implements MetricsCollector.
func (n *NoOpMetrics) IncTileDownloads(_ string, _ bool) {}

// ObserveFetchDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveFetchDuration(_ time.Duration) {}

// SetCacheSizeMB implements MetricsCollector.
func (n *NoOpMetrics) SetCacheSizeMB(_ float64) {}

// SetRegionCount implements MetricsCollector.
func (n *NoOpMetrics) SetRegionCount(_ string, _ int) {}

// SetActiveDownloads implements MetricsCollector.
func (n *NoOpMetrics) SetActiveDownloads(_ int) {}

// IncRegionEvictions implements MetricsCollector.
func (n *NoOpMetrics) IncRegionEvictions() {}

// IncStateOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStateOperations(_ string, _ bool) {}

// ObserveStateDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStateDuration(_ string, _ time.Duration) {}
