package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMaintenance(t *testing.T, interval time.Duration) (*MaintenanceService, *TileService, *mockTileCache) {
	t.Helper()

	svc, _, cache, _ := newTestService(t)
	return NewMaintenanceService(svc, interval, newTestLogger()), svc, cache
}

func TestMaintenanceService_RateLimiting(t *testing.T) {
	maint, _, _ := newTestMaintenance(t, time.Hour)
	ctx := context.Background()

	if _, err := maint.TriggerCleanup(ctx); err != nil {
		t.Fatalf("First trigger failed: %v", err)
	}

	_, err := maint.TriggerCleanup(ctx)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited on the second trigger, got %v", err)
	}
}

func TestMaintenanceService_StartStop(t *testing.T) {
	maint, _, _ := newTestMaintenance(t, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maint.Start(ctx)
	time.Sleep(75 * time.Millisecond)

	// Stop must not hang.
	maint.Stop()
}

func TestMaintenanceService_Interval(t *testing.T) {
	maint, _, _ := newTestMaintenance(t, 5*time.Minute)

	if maint.Interval() != 5*time.Minute {
		t.Errorf("Expected a 5m interval, got %v", maint.Interval())
	}
}

func TestMaintenanceService_NextCheck(t *testing.T) {
	maint, _, _ := newTestMaintenance(t, 50*time.Millisecond)

	if !maint.NextCheck().IsZero() {
		t.Error("Expected no scheduled check before start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	maint.Start(ctx)
	defer maint.Stop()

	time.Sleep(20 * time.Millisecond)
	if maint.NextCheck().IsZero() {
		t.Error("Expected a scheduled next check after start")
	}
}

func TestMaintenanceService_PeriodicCleanup(t *testing.T) {
	maint, svc, cache := newTestMaintenance(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := svc.SetMaxCacheSizeMB(ctx, 10); err != nil {
		t.Fatalf("SetMaxCacheSizeMB failed: %v", err)
	}
	seedCompletedRegions(svc, cache, []string{"old", "mid", "new"})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	maint.Start(runCtx)
	defer maint.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		size, err := svc.TotalCacheSizeMB(ctx)
		if err != nil {
			t.Fatalf("TotalCacheSizeMB failed: %v", err)
		}
		if size <= 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for the periodic cleanup, size %.1f MB", size)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
