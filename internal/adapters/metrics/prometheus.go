// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	tileDownloads       *prometheus.CounterVec
	fetchDuration       prometheus.Histogram
	cacheSize           prometheus.Gauge
	regionCount         *prometheus.GaugeVec
	activeDownloads     prometheus.Gauge
	regionEvictions     prometheus.Counter
	stateOperations     *prometheus.CounterVec
	stateDuration       *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tilevault"
	}

	return &Collector{
		tileDownloads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tile_downloads_total",
				Help:      "Total number of tile downloads",
			},
			[]string{"region_id", "status"},
		),

		fetchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tile_fetch_duration_seconds",
				Help:      "Tile fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		cacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size_mb",
				Help:      "Total size of the tile cache in megabytes",
			},
		),

		regionCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regions",
				Help:      "Number of regions by status",
			},
			[]string{"status"},
		),

		activeDownloads: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_downloads",
				Help:      "Number of running region downloads",
			},
		),

		regionEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "region_evictions_total",
				Help:      "Total number of regions evicted from the cache",
			},
		),

		stateOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_operations_total",
				Help:      "Total number of state store operations",
			},
			[]string{"operation", "status"},
		),

		stateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "state_operation_duration_seconds",
				Help:      "State store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncTileDownloads increments the tile download counter.
func (c *Collector) IncTileDownloads(regionID string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.tileDownloads.WithLabelValues(regionID, status).Inc()
}

// ObserveFetchDuration records a single tile fetch duration.
func (c *Collector) ObserveFetchDuration(duration time.Duration) {
	c.fetchDuration.Observe(duration.Seconds())
}

// SetCacheSizeMB sets the current cache size gauge.
func (c *Collector) SetCacheSizeMB(sizeMB float64) {
	c.cacheSize.Set(sizeMB)
}

// SetRegionCount sets the number of regions in a given status.
func (c *Collector) SetRegionCount(status string, count int) {
	c.regionCount.WithLabelValues(status).Set(float64(count))
}

// SetActiveDownloads sets the number of running region downloads.
func (c *Collector) SetActiveDownloads(count int) {
	c.activeDownloads.Set(float64(count))
}

// IncRegionEvictions increments the eviction counter.
func (c *Collector) IncRegionEvictions() {
	c.regionEvictions.Inc()
}

// IncStateOperations increments the persistence operation counter.
func (c *Collector) IncStateOperations(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.stateOperations.WithLabelValues(operation, status).Inc()
}

// ObserveStateDuration records a persistence operation duration.
func (c *Collector) ObserveStateDuration(operation string, duration time.Duration) {
	c.stateDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and durations. Paths are labeled by
// their route template so tile requests do not mint a label per coordinate.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := routeLabel(r)
		status := statusClass(wrapped.statusCode)

		c.IncHTTPRequests(r.Method, path, status)
		c.ObserveHTTPDuration(r.Method, path, time.Since(start))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the matched route template, e.g.
// "/api/v1/tiles/{z}/{x}/{y}". Label cardinality stays bounded by the
// route table.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusClass buckets an HTTP status code into its class ("2xx", "4xx").
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
