package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/tilevault/internal/domain"
	"github.com/jobrunner/tilevault/internal/ports/output"
)

// recordVersion is the schema version written into every persisted blob.
const recordVersion = 1

// settingsRecord is the persisted settings blob.
type settingsRecord struct {
	Version  int             `json:"version"`
	Settings domain.Settings `json:"settings"`
}

// regionsRecord is the persisted region catalog blob.
type regionsRecord struct {
	Version int             `json:"version"`
	Regions []domain.Region `json:"regions"`
}

// tilesRecord is the persisted tile index blob.
type tilesRecord struct {
	Version int                 `json:"version"`
	Tiles   []domain.TileRecord `json:"tiles"`
}

// statePersistence reads and writes the versioned records kept in the
// state store. Absent, unreadable, or unknown-version records degrade to
// empty defaults instead of failing the load.
type statePersistence struct {
	store   output.StateStore
	metrics output.MetricsCollector
	logger  *slog.Logger
}

func newStatePersistence(store output.StateStore, metrics output.MetricsCollector, logger *slog.Logger) *statePersistence {
	return &statePersistence{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// loadSettings returns the persisted settings, or defaults.
func (p *statePersistence) loadSettings(ctx context.Context) domain.Settings {
	var rec settingsRecord
	if !p.load(ctx, output.StateKeySettings, &rec) {
		return domain.DefaultSettings()
	}
	if rec.Version != recordVersion {
		p.logger.Warn("discarding settings record with unknown version", "version", rec.Version)
		return domain.DefaultSettings()
	}
	return rec.Settings
}

// saveSettings persists the settings record.
func (p *statePersistence) saveSettings(ctx context.Context, settings domain.Settings) error {
	return p.save(ctx, output.StateKeySettings, settingsRecord{
		Version:  recordVersion,
		Settings: settings,
	})
}

// loadRegions returns the persisted region catalog, or an empty one.
func (p *statePersistence) loadRegions(ctx context.Context) []domain.Region {
	var rec regionsRecord
	if !p.load(ctx, output.StateKeyRegions, &rec) {
		return nil
	}
	if rec.Version != recordVersion {
		p.logger.Warn("discarding region catalog record with unknown version", "version", rec.Version)
		return nil
	}
	return rec.Regions
}

// saveRegions persists the region catalog record.
func (p *statePersistence) saveRegions(ctx context.Context, regions []domain.Region) error {
	return p.save(ctx, output.StateKeyRegions, regionsRecord{
		Version: recordVersion,
		Regions: regions,
	})
}

// loadTiles returns the persisted tile index, or an empty one.
func (p *statePersistence) loadTiles(ctx context.Context) []domain.TileRecord {
	var rec tilesRecord
	if !p.load(ctx, output.StateKeyTiles, &rec) {
		return nil
	}
	if rec.Version != recordVersion {
		p.logger.Warn("discarding tile index record with unknown version", "version", rec.Version)
		return nil
	}
	return rec.Tiles
}

// saveTiles persists the tile index record.
func (p *statePersistence) saveTiles(ctx context.Context, tiles []domain.TileRecord) error {
	return p.save(ctx, output.StateKeyTiles, tilesRecord{
		Version: recordVersion,
		Tiles:   tiles,
	})
}

// load unmarshals one record, reporting whether a usable payload was
// found. A corrupt payload is logged and treated as absent.
func (p *statePersistence) load(ctx context.Context, key string, dest interface{}) bool {
	start := time.Now()
	raw, found, err := p.store.Get(ctx, key)
	p.metrics.ObserveStateDuration("load", time.Since(start))

	if err != nil {
		p.metrics.IncStateOperations("load", false)
		p.logger.Error("failed to load state record", "record", key, "error", err)
		return false
	}
	if !found {
		p.metrics.IncStateOperations("load", true)
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		p.metrics.IncStateOperations("load", false)
		perr := &domain.PersistError{Record: key, Op: "load", Err: err}
		p.logger.Warn("corrupt state record, falling back to defaults", "record", key, "error", perr)
		return false
	}

	p.metrics.IncStateOperations("load", true)
	return true
}

// save marshals and stores one record.
func (p *statePersistence) save(ctx context.Context, key string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		p.metrics.IncStateOperations("save", false)
		return &domain.PersistError{Record: key, Op: "save", Err: err}
	}

	start := time.Now()
	err = p.store.Set(ctx, key, string(data))
	p.metrics.ObserveStateDuration("save", time.Since(start))

	if err != nil {
		p.metrics.IncStateOperations("save", false)
		return fmt.Errorf("saving %s record: %w", key, err)
	}

	p.metrics.IncStateOperations("save", true)
	return nil
}
