// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic position in WGS84 degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"` // Latitude in degrees
	Lon float64 `json:"lon"` // Longitude in degrees
}

// NewGeoPoint creates a geographic point from latitude and longitude.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon}
}

// Validate checks if the point is within valid geographic ranges.
func (p GeoPoint) Validate() error {
	if p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{
			Field:      "longitude",
			Value:      p.Lon,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{
			Field:      "latitude",
			Value:      p.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	return nil
}

// String returns a string representation of the point.
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%f, %f)", p.Lat, p.Lon)
}

// GeoBounds represents a geographic bounding box in WGS84 degrees.
// North/South are latitudes, East/West are longitudes.
type GeoBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// NewGeoBounds creates a bounding box from its four edges.
func NewGeoBounds(north, south, east, west float64) GeoBounds {
	return GeoBounds{North: north, South: south, East: east, West: west}
}

// Validate checks the bounding box invariants: edges within geographic
// ranges, north above south, east beyond west. Boxes crossing the
// antimeridian (east <= west) are rejected rather than silently producing
// wrapped tile ranges.
func (b GeoBounds) Validate() error {
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return &ValidationError{
			Field:      "longitude",
			Value:      fmt.Sprintf("west=%f east=%f", b.West, b.East),
			Constraint: "[-180, 180]",
			Message:    "longitudes must be between -180 and 180",
		}
	}
	if b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return &ValidationError{
			Field:      "latitude",
			Value:      fmt.Sprintf("south=%f north=%f", b.South, b.North),
			Constraint: "[-90, 90]",
			Message:    "latitudes must be between -90 and 90",
		}
	}
	if b.North <= b.South {
		return &ValidationError{
			Field:      "bounds",
			Value:      fmt.Sprintf("north=%f south=%f", b.North, b.South),
			Constraint: "north > south",
			Message:    "north edge must be above south edge",
		}
	}
	if b.East <= b.West {
		return &ValidationError{
			Field:      "bounds",
			Value:      fmt.Sprintf("east=%f west=%f", b.East, b.West),
			Constraint: "east > west",
			Message:    "east edge must be beyond west edge; antimeridian-crossing bounds are not supported",
		}
	}
	return nil
}

// Contains checks if a point lies within the bounding box (edges inclusive).
func (b GeoBounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.South && p.Lat <= b.North &&
		p.Lon >= b.West && p.Lon <= b.East
}

// Width returns the longitudinal extent in degrees.
func (b GeoBounds) Width() float64 {
	return math.Abs(b.East - b.West)
}

// Height returns the latitudinal extent in degrees.
func (b GeoBounds) Height() float64 {
	return math.Abs(b.North - b.South)
}

// Center returns the center point of the bounding box.
func (b GeoBounds) Center() GeoPoint {
	return GeoPoint{
		Lat: (b.North + b.South) / 2,
		Lon: (b.East + b.West) / 2,
	}
}

// String returns a string representation of the bounds.
func (b GeoBounds) String() string {
	return fmt.Sprintf("N%f S%f E%f W%f", b.North, b.South, b.East, b.West)
}
