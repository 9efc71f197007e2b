package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrRegionNotFound    = fmt.Errorf("region: %w", ErrNotFound)
	ErrTileNotCached     = fmt.Errorf("tile: %w", ErrNotFound)
	ErrInvalidBounds     = fmt.Errorf("bounds: %w", ErrInvalidInput)
	ErrInvalidZoomRange  = fmt.Errorf("zoom range: %w", ErrInvalidInput)
	ErrInvalidTile       = fmt.Errorf("tile coordinate: %w", ErrInvalidInput)
	ErrDownloadActive    = fmt.Errorf("download already active: %w", ErrUnavailable)
	ErrOfflineMode       = fmt.Errorf("offline mode enabled: %w", ErrUnavailable)
	ErrNotReady          = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrSourceUnavailable = fmt.Errorf("tile source: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// FetchError represents a failed tile fetch from the configured source.
// Individual fetch failures are counted and skipped, never escalated to a
// region-level failure.
type FetchError struct {
	Coordinate TileCoordinate // Tile that failed
	URL        string         // Resolved source URL
	StatusCode int            // HTTP status, 0 for transport errors
	Err        error          // Underlying error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch error for tile %s: status %d (%s)",
			e.Coordinate.Key(), e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch error for tile %s: %v", e.Coordinate.Key(), e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// CacheError represents a failed filesystem operation on the tile cache.
// The affected operation aborts but the service remains usable.
type CacheError struct {
	Operation string // Operation that failed (store, remove, size, etc.)
	RegionID  string // Region namespace, if any
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.RegionID != "" {
		return fmt.Sprintf("cache error during %s for region %s: %v",
			e.Operation, e.RegionID, e.Err)
	}
	return fmt.Sprintf("cache error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}

// PersistError represents a failed load or save of a persisted record.
// Corrupt records at load time are reported with this type and then
// treated as absent, falling back to empty defaults.
type PersistError struct {
	Record string // Logical record name (settings, regions, tiles)
	Op     string // load or save
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("persistence error during %s of %s: %v", e.Op, e.Record, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
