package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/tilevault/internal/domain"
)

// ErrRateLimited is returned when the manual cleanup API rate limit is
// exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// MaintenanceService periodically checks the cache against its budget
// and runs a cleanup when it is exceeded.
type MaintenanceService struct {
	service  *TileService
	interval time.Duration
	logger   *slog.Logger

	// Lifecycle management
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for API triggers
	lastAPIRun time.Time
	apiMutex   sync.Mutex

	// Prevents concurrent cleanup operations
	cleanupOpMutex sync.Mutex

	// Track next scheduled check for reporting
	nextCheck time.Time
	checkMu   sync.RWMutex
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(service *TileService, interval time.Duration, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		service:  service,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		// Initialize to past time to allow an immediate first API call
		lastAPIRun: time.Now().Add(-31 * time.Second),
	}
}

// Start begins the periodic budget check scheduler.
func (s *MaintenanceService) Start(ctx context.Context) {
	s.logger.Info("starting cache maintenance service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main maintenance loop.
func (s *MaintenanceService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextCheck(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("maintenance service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled cache check triggered")
			s.doCleanup(ctx)
			s.setNextCheck(time.Now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the maintenance service.
func (s *MaintenanceService) Stop() {
	s.logger.Info("stopping maintenance service")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerCleanup manually triggers a cache cleanup with rate limiting.
// Returns ErrRateLimited when called again within the cooldown window.
func (s *MaintenanceService) TriggerCleanup(ctx context.Context) (domain.CleanupResult, error) {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	// Rate limit: 30 seconds cooldown (allows ~2 requests per minute)
	if time.Since(s.lastAPIRun) < 30*time.Second {
		return domain.CleanupResult{}, ErrRateLimited
	}
	s.lastAPIRun = time.Now()

	s.cleanupOpMutex.Lock()
	defer s.cleanupOpMutex.Unlock()

	return s.service.CleanupCache(ctx)
}

// doCleanup runs one budget check and cleanup pass.
func (s *MaintenanceService) doCleanup(ctx context.Context) {
	s.cleanupOpMutex.Lock()
	defer s.cleanupOpMutex.Unlock()

	result, err := s.service.CleanupCache(ctx)
	if err != nil {
		s.logger.Error("scheduled cache cleanup failed", "error", err)
		return
	}
	if result.Evicted() {
		s.logger.Info("scheduled cache cleanup completed",
			"evicted", len(result.EvictedRegions),
			"freed_mb", result.FreedMB,
			"size_mb", result.SizeAfterMB,
		)
	}
}

// setNextCheck updates the next scheduled check time.
func (s *MaintenanceService) setNextCheck(t time.Time) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()
	s.nextCheck = t
}

// NextCheck returns the next scheduled check time.
func (s *MaintenanceService) NextCheck() time.Time {
	s.checkMu.RLock()
	defer s.checkMu.RUnlock()
	return s.nextCheck
}

// Interval returns the check interval.
func (s *MaintenanceService) Interval() time.Duration {
	return s.interval
}
