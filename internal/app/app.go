// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobrunner/tilevault/internal/adapters/cache"
	httpAdapter "github.com/jobrunner/tilevault/internal/adapters/http"
	"github.com/jobrunner/tilevault/internal/adapters/metrics"
	"github.com/jobrunner/tilevault/internal/adapters/source"
	"github.com/jobrunner/tilevault/internal/adapters/state"
	tlsAdapter "github.com/jobrunner/tilevault/internal/adapters/tls"
	"github.com/jobrunner/tilevault/internal/adapters/watcher"
	"github.com/jobrunner/tilevault/internal/application"
	"github.com/jobrunner/tilevault/internal/config"
	"github.com/jobrunner/tilevault/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Source        output.TileSource
	Cache         *cache.DiskCache
	StateStore    output.StateStore
	TileService   *application.TileService
	Maintenance   *application.MaintenanceService
	HealthService *application.HealthService
	HTTPServer    *httpAdapter.Server
	TLSManager    *tlsAdapter.Manager
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("tilevault")
		app.MetricsServer = metrics.NewServer(
			cfg.Metrics.Port,
			cfg.Metrics.Path,
			logger,
		)
	}

	var metricsCollector output.MetricsCollector
	if app.Metrics != nil {
		metricsCollector = app.Metrics
	} else {
		metricsCollector = &output.NoOpMetrics{}
	}

	// Initialize tile source adapter
	src, err := initSource(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("initializing tile source: %w", err)
	}
	app.Source = src

	// Initialize disk cache
	diskCache, err := cache.NewDiskCache(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing tile cache: %w", err)
	}
	app.Cache = diskCache

	// Initialize persisted state store
	store, err := state.NewSQLiteStore(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing state store: %w", err)
	}
	app.StateStore = store

	// Initialize tile service
	app.TileService = application.NewTileService(
		app.Source,
		app.Cache,
		app.StateStore,
		metricsCollector,
		logger,
		application.ServiceConfig{
			Concurrency:      cfg.Download.Concurrency,
			ProgressInterval: cfg.Download.ProgressInterval,
		},
	)

	// Initialize cache maintenance service
	app.Maintenance = application.NewMaintenanceService(
		app.TileService,
		cfg.Cache.CleanupInterval,
		logger,
	)

	// Initialize health service
	app.HealthService = application.NewHealthService(app.TileService)

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.TileService,
		app.HealthService,
		app.Maintenance,
		app.Metrics,
		logger,
	)

	// Initialize certificate manager if TLS is enabled
	if cfg.TLS.Enabled {
		manager, err := tlsAdapter.NewManager(
			tlsAdapter.Config{
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSManager = manager
	}

	// Initialize cache watcher to track out-of-band tile deletions
	w, err := watcher.New(
		watcher.Config{
			Root: cfg.Cache.Path,
		},
		app.handleFileEvent,
		logger,
	)
	if err != nil {
		logger.Warn("failed to initialize cache watcher", "error", err)
	} else {
		app.Watcher = w
	}

	return app, nil
}

// Start starts all application components and blocks serving HTTP.
func (a *App) Start(ctx context.Context) error {
	// Load persisted settings, regions and tile index
	if err := a.TileService.Initialize(ctx); err != nil {
		return fmt.Errorf("loading persisted state: %w", err)
	}

	// Start periodic cache cleanup
	a.Maintenance.Start(ctx)

	// Start cache watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start cache watcher", "error", err)
		}
	}

	// Start metrics server in background
	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil && err.Error() != "http: Server closed" {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start server
	if a.Config.TLS.Enabled && a.TLSManager != nil {
		return a.HTTPServer.StartTLS(a.TLSManager.TLSConfig())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	// Stop periodic cleanup
	a.Maintenance.Stop()

	// Shutdown metrics server
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	// Cancel active downloads and wait for their state to be persisted
	a.TileService.Shutdown()

	// Close the state store
	if err := a.StateStore.Close(); err != nil {
		a.Logger.Error("state store close error", "error", err)
	}

	return nil
}

// handleFileEvent handles cache file system events. Only deletions
// matter: a tile removed behind the service's back must leave the
// availability index, or offline checks would report tiles that are
// gone. Created files are ignored because tiles enter the index through
// downloads, where their region is known.
func (a *App) handleFileEvent(_ context.Context, event watcher.Event) error {
	if event.Op == watcher.OpDelete {
		a.TileService.InvalidateCachedPath(event.Path)
	}
	return nil
}

// initSource initializes the appropriate tile source adapter.
func initSource(ctx context.Context, cfg config.SourceConfig) (output.TileSource, error) {
	switch output.SourceType(cfg.Type) {
	case output.SourceTypeHTTP:
		return source.NewHTTPSource(source.HTTPConfig{
			URLTemplate:   cfg.HTTP.URLTemplate,
			UserAgent:     cfg.HTTP.UserAgent,
			Timeout:       cfg.HTTP.Timeout,
			RetryAttempts: cfg.HTTP.RetryAttempts,
			RetryBackoff:  cfg.HTTP.RetryBackoff,
		}), nil

	case output.SourceTypeS3:
		return source.NewS3Source(ctx, source.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.SourceTypeAzure:
		return source.NewAzureSource(source.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.SourceTypeLocal:
		return source.NewLocalSource(cfg.Local.Path), nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
