// Package coords resolves a property's position from the coordinate shapes
// the backend emits. Resolution is an ordered chain of extractors; the first
// one that yields a valid pair wins.
package coords

import (
	"bytes"
	"encoding/json"
	"strings"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
)

// Extractor reads one coordinate shape from a property.
type Extractor interface {
	Name() string
	Extract(p listing.Property) (geo.LatLng, bool)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc struct {
	Label string
	Fn    func(p listing.Property) (geo.LatLng, bool)
}

func (f ExtractorFunc) Name() string { return f.Label }

func (f ExtractorFunc) Extract(p listing.Property) (geo.LatLng, bool) {
	return f.Fn(p)
}

// Chain is an ordered fallback list of extractors.
type Chain []Extractor

// DefaultChain is flat fields, then nested coordinates, then GeoJSON.
func DefaultChain() Chain {
	return Chain{
		ExtractorFunc{Label: "flat", Fn: Flat},
		ExtractorFunc{Label: "nested", Fn: Nested},
		ExtractorFunc{Label: "geojson", Fn: GeoJSON},
	}
}

// Resolve returns the first valid pair, and the name of the extractor that
// produced it. Finite pairs outside lat [-90,90] or lng [-180,180] are not
// valid; the next extractor is tried.
func (c Chain) Resolve(p listing.Property) (geo.LatLng, string, bool) {
	for _, ex := range c {
		if ll, ok := ex.Extract(p); ok && ll.Valid() {
			return ll, ex.Name(), true
		}
	}
	return geo.LatLng{}, "", false
}

var defaultChain = DefaultChain()

// Resolve runs the default chain.
func Resolve(p listing.Property) (geo.LatLng, bool) {
	ll, _, ok := defaultChain.Resolve(p)
	return ll, ok
}

// Flat reads top-level latitude/longitude.
func Flat(p listing.Property) (geo.LatLng, bool) {
	return pair(p.Latitude, p.Longitude)
}

type nestedWire struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
	Lat       json.RawMessage `json:"lat"`
	Lng       json.RawMessage `json:"lng"`
}

// Nested reads coordinates.latitude/longitude (lat/lng also accepted).
func Nested(p listing.Property) (geo.LatLng, bool) {
	raw := bytes.TrimSpace(p.Coordinates)
	if len(raw) == 0 || raw[0] != '{' {
		return geo.LatLng{}, false
	}
	var w nestedWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return geo.LatLng{}, false
	}
	if ll, ok := pair(w.Latitude, w.Longitude); ok {
		return ll, true
	}
	return pair(w.Lat, w.Lng)
}

// GeoJSON reads location.coordinates as [lng, lat]. The pair may be an array
// of numbers or numeric strings, or a string holding "[lng, lat]" or
// "lng,lat".
func GeoJSON(p listing.Property) (geo.LatLng, bool) {
	if p.Location == nil {
		return geo.LatLng{}, false
	}
	return lngLatPair(p.Location.Coordinates)
}

func lngLatPair(raw json.RawMessage) (geo.LatLng, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return geo.LatLng{}, false
	}
	switch raw[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil || len(elems) < 2 {
			return geo.LatLng{}, false
		}
		return pair(elems[1], elems[0])
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return geo.LatLng{}, false
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			return lngLatPair(json.RawMessage(s))
		}
		parts := strings.Split(s, ",")
		if len(parts) != 2 {
			return geo.LatLng{}, false
		}
		lng, ok1 := geo.ParseNumberString(parts[0])
		lat, ok2 := geo.ParseNumberString(parts[1])
		if !ok1 || !ok2 {
			return geo.LatLng{}, false
		}
		return geo.LatLng{Lat: lat, Lng: lng}, true
	}
	return geo.LatLng{}, false
}

func pair(latRaw, lngRaw json.RawMessage) (geo.LatLng, bool) {
	lat, ok := geo.ParseNumber(latRaw)
	if !ok {
		return geo.LatLng{}, false
	}
	lng, ok := geo.ParseNumber(lngRaw)
	if !ok {
		return geo.LatLng{}, false
	}
	return geo.LatLng{Lat: lat, Lng: lng}, true
}
