package source

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jobrunner/tilevault/internal/domain"
)

// LocalSource implements TileSource for a local tile directory laid out
// as <base>/<z>/<x>/<y>.png. Useful for pre-seeded mirrors and tests.
type LocalSource struct {
	basePath string
}

// NewLocalSource creates a new local directory tile source adapter.
func NewLocalSource(basePath string) *LocalSource {
	return &LocalSource{basePath: basePath}
}

// URL returns a file URL for the tile.
func (s *LocalSource) URL(tile domain.TileCoordinate) string {
	return "file://" + s.tilePath(tile)
}

// Fetch reads a tile from the local directory.
func (s *LocalSource) Fetch(ctx context.Context, tile domain.TileCoordinate) ([]byte, error) {
	data, err := os.ReadFile(s.tilePath(tile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.FetchError{Coordinate: tile, URL: s.URL(tile), Err: domain.ErrNotFound}
		}
		return nil, &domain.FetchError{Coordinate: tile, URL: s.URL(tile), Err: err}
	}

	return data, nil
}

// tilePath returns the full path for a tile.
func (s *LocalSource) tilePath(tile domain.TileCoordinate) string {
	return filepath.Join(s.basePath,
		strconv.Itoa(tile.Z), strconv.Itoa(tile.X), strconv.Itoa(tile.Y)+".png")
}
