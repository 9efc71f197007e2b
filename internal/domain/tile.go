package domain

import (
	"fmt"
	"time"
)

// TileCoordinate identifies a tile in the XYZ slippy-map scheme.
type TileCoordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// NewTileCoordinate creates a tile coordinate.
func NewTileCoordinate(x, y, z int) TileCoordinate {
	return TileCoordinate{X: x, Y: y, Z: z}
}

// Valid reports whether the coordinate lies inside the tile pyramid:
// 0 <= x,y < 2^z for a zoom level within the supported range.
func (t TileCoordinate) Valid() bool {
	if t.Z < MinZoom || t.Z > MaxZoom {
		return false
	}
	n := 1 << t.Z
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Key returns the composite "z/x/y" key used for index lookups and
// persisted tile records.
func (t TileCoordinate) Key() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// String returns a string representation of the tile coordinate.
func (t TileCoordinate) String() string {
	return t.Key()
}

// TileRecord describes a single successfully downloaded tile. Records are
// created once per download and replaced wholesale on re-download.
type TileRecord struct {
	Coordinate   TileCoordinate `json:"coordinate"`
	RegionID     string         `json:"region_id"`
	SourceURL    string         `json:"source_url"`
	FilePath     string         `json:"file_path"`
	DownloadedAt time.Time      `json:"downloaded_at"`
}

// TileRange describes the rectangle of tiles covering a bounding box at a
// single zoom level. Min/Max are inclusive.
type TileRange struct {
	Zoom int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles enumerates the range in deterministic x-then-y order.
func (r TileRange) Tiles() []TileCoordinate {
	tiles := make([]TileCoordinate, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			tiles = append(tiles, TileCoordinate{X: x, Y: y, Z: r.Zoom})
		}
	}
	return tiles
}

// Contains checks if a tile coordinate lies within the range.
func (r TileRange) Contains(t TileCoordinate) bool {
	return t.Z == r.Zoom &&
		t.X >= r.MinX && t.X <= r.MaxX &&
		t.Y >= r.MinY && t.Y <= r.MaxY
}
