package domain

import "math"

// Zoom level limits of the tile pyramid.
const (
	MinZoom = 0
	MaxZoom = 20
)

// MaxMercatorLatitude is the highest latitude representable in the Web
// Mercator projection; tan/asinh diverge beyond it. Latitudes are clamped
// to this range before conversion so polar inputs never produce tile
// coordinates outside the pyramid.
const MaxMercatorLatitude = 85.0511287798

// ClampLatitude restricts a latitude to the Web Mercator-valid range.
func ClampLatitude(lat float64) float64 {
	if lat > MaxMercatorLatitude {
		return MaxMercatorLatitude
	}
	if lat < -MaxMercatorLatitude {
		return -MaxMercatorLatitude
	}
	return lat
}

// LonToTileX converts a longitude to the tile column at the given zoom
// level using the standard slippy-map formula.
func LonToTileX(lon float64, zoom int) int {
	n := float64(int(1) << zoom)
	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	return clampTileIndex(x, zoom)
}

// LatToTileY converts a latitude to the tile row at the given zoom level.
// Rows grow southward: y decreases as latitude increases.
func LatToTileY(lat float64, zoom int) int {
	latRad := ClampLatitude(lat) * math.Pi / 180.0
	n := float64(int(1) << zoom)
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))
	return clampTileIndex(y, zoom)
}

// clampTileIndex restricts a tile index to [0, 2^zoom-1]. Longitude 180
// and the clamped polar latitudes land exactly on the pyramid edge.
func clampTileIndex(i, zoom int) int {
	if i < 0 {
		return 0
	}
	if max := (1 << zoom) - 1; i > max {
		return max
	}
	return i
}

// TileRangeForBounds computes the tile rectangle covering a bounding box
// at one zoom level. The y axis inverts relative to latitude, so the range
// is taken as min/max over the projected corners rather than assuming a
// fixed corner ordering.
func TileRangeForBounds(bounds GeoBounds, zoom int) TileRange {
	x1 := LonToTileX(bounds.West, zoom)
	x2 := LonToTileX(bounds.East, zoom)
	y1 := LatToTileY(bounds.North, zoom)
	y2 := LatToTileY(bounds.South, zoom)

	return TileRange{
		Zoom: zoom,
		MinX: min(x1, x2),
		MaxX: max(x1, x2),
		MinY: min(y1, y2),
		MaxY: max(y1, y2),
	}
}

// TileCountForBounds sums the tile rectangle sizes over a zoom range.
func TileCountForBounds(bounds GeoBounds, minZoom, maxZoom int) int {
	count := 0
	for z := minZoom; z <= maxZoom; z++ {
		count += TileRangeForBounds(bounds, z).Count()
	}
	return count
}

// TileToBounds returns the geographic bounding box of a single tile, the
// inverse of the forward conversion.
func TileToBounds(t TileCoordinate) GeoBounds {
	n := float64(int(1) << t.Z)

	west := float64(t.X)/n*360.0 - 180.0
	east := float64(t.X+1)/n*360.0 - 180.0
	north := tileYToLat(float64(t.Y), n)
	south := tileYToLat(float64(t.Y+1), n)

	return GeoBounds{North: north, South: south, East: east, West: west}
}

// tileYToLat converts a fractional tile row back to latitude in degrees.
func tileYToLat(y, n float64) float64 {
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return latRad * 180.0 / math.Pi
}

// ValidateZoomRange checks that a zoom range is ordered and within the
// supported pyramid depth.
func ValidateZoomRange(minZoom, maxZoom int) error {
	if minZoom < MinZoom || maxZoom > MaxZoom {
		return &ValidationError{
			Field:      "zoom",
			Value:      [2]int{minZoom, maxZoom},
			Constraint: "[0, 20]",
			Message:    "zoom levels must be between 0 and 20",
		}
	}
	if minZoom > maxZoom {
		return &ValidationError{
			Field:      "zoom",
			Value:      [2]int{minZoom, maxZoom},
			Constraint: "minZoom <= maxZoom",
			Message:    "minimum zoom must not exceed maximum zoom",
		}
	}
	return nil
}
