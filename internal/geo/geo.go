// Package geo holds the small coordinate vocabulary shared by the map,
// geocoding and storage layers.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// LatLng is a WGS84 coordinate in latitude/longitude order.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsFinite reports whether f is neither NaN nor an infinity.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Valid reports whether both components are finite and inside the WGS84 range.
func (p LatLng) Valid() bool {
	if !IsFinite(p.Lat) || !IsFinite(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Equal compares by value.
func (p LatLng) Equal(o LatLng) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

// Point converts to an orb point, which is [lng, lat].
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// String renders the pair with six decimals, the precision used for user
// markers and copied coordinates.
func (p LatLng) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}

// FromPoint converts an orb point back to LatLng.
func FromPoint(pt orb.Point) LatLng {
	return LatLng{Lat: pt.Lat(), Lng: pt.Lon()}
}

// PtrEqual compares two optional coordinates by value.
func PtrEqual(a, b *LatLng) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Bounds accumulates the bounding box of a set of coordinates.
// The zero value is an empty box.
type Bounds struct {
	bound orb.Bound
	n     int
}

// Extend grows the box to include p.
func (b *Bounds) Extend(p LatLng) {
	if b.n == 0 {
		b.bound = p.Point().Bound()
	} else {
		b.bound = b.bound.Extend(p.Point())
	}
	b.n++
}

// Empty reports whether no coordinate was added.
func (b Bounds) Empty() bool { return b.n == 0 }

// Len is the number of coordinates folded into the box.
func (b Bounds) Len() int { return b.n }

// SouthWest is the minimum corner.
func (b Bounds) SouthWest() LatLng { return FromPoint(b.bound.Min) }

// NorthEast is the maximum corner.
func (b Bounds) NorthEast() LatLng { return FromPoint(b.bound.Max) }

// Center is the midpoint of the box.
func (b Bounds) Center() LatLng { return FromPoint(b.bound.Center()) }

// Contains reports whether p lies inside the box (edges included).
func (b Bounds) Contains(p LatLng) bool {
	if b.n == 0 {
		return false
	}
	return b.bound.Contains(p.Point())
}

// Orb exposes the underlying bound for GeoJSON export.
func (b Bounds) Orb() orb.Bound { return b.bound }
