// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"

	"github.com/jobrunner/tilevault/internal/domain"
)

// TileSource defines the secondary port for fetching raw tile bytes from a
// tile server or mirror. Success is a non-empty body; any other outcome is
// an error the caller counts and skips.
type TileSource interface {
	// Fetch retrieves the raw bytes of a single tile.
	Fetch(ctx context.Context, tile domain.TileCoordinate) ([]byte, error)

	// URL returns the resolved source location for a tile, used for tile
	// records and logging.
	URL(tile domain.TileCoordinate) string
}

// SourceType represents the type of tile source backend.
type SourceType string

const (
	SourceTypeHTTP  SourceType = "http"
	SourceTypeS3    SourceType = "s3"
	SourceTypeAzure SourceType = "azure"
	SourceTypeLocal SourceType = "local"
)
