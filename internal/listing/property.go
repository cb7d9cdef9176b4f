// Package listing defines the read-only property projection the map
// consumes, the availability status taxonomy and the marker presentation
// (icon and popup) derived from it.
package listing

import (
	"bytes"
	"encoding/json"
	"strings"

	"propmap/core-go/internal/geo"
)

// Property is the property-for-map projection. Coordinate fields are kept
// raw so a malformed record never fails decoding of the surrounding list;
// they are interpreted by the coords extractor chain.
type Property struct {
	ID                 string
	Title              string
	Price              json.RawMessage
	AvailabilityStatus string
	Address            string

	Latitude    json.RawMessage
	Longitude   json.RawMessage
	Coordinates json.RawMessage
	Location    *Location
}

// Location is the GeoJSON-ish location object some records carry.
type Location struct {
	Type        string
	Address     string
	Coordinates json.RawMessage
}

type propertyWire struct {
	MongoID            json.RawMessage `json:"_id,omitempty"`
	ID                 json.RawMessage `json:"id,omitempty"`
	Title              string          `json:"title,omitempty"`
	Price              json.RawMessage `json:"price,omitempty"`
	AvailabilityStatus string          `json:"availabilityStatus,omitempty"`
	Address            json.RawMessage `json:"address,omitempty"`
	Latitude           json.RawMessage `json:"latitude,omitempty"`
	Longitude          json.RawMessage `json:"longitude,omitempty"`
	Coordinates        json.RawMessage `json:"coordinates,omitempty"`
	Location           json.RawMessage `json:"location,omitempty"`
}

type locationWire struct {
	Type        string          `json:"type,omitempty"`
	Address     string          `json:"address,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// UnmarshalJSON accepts the backend's record shapes: `_id` or `id`, address
// as a string or missing, location as an object or a plain address string.
func (p *Property) UnmarshalJSON(b []byte) error {
	var w propertyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Property{
		ID:                 firstNonEmpty(rawIdentifier(w.MongoID), rawIdentifier(w.ID)),
		Title:              w.Title,
		Price:              nonNull(w.Price),
		AvailabilityStatus: w.AvailabilityStatus,
		Address:            rawString(w.Address),
		Latitude:           nonNull(w.Latitude),
		Longitude:          nonNull(w.Longitude),
		Coordinates:        nonNull(w.Coordinates),
	}

	loc := bytes.TrimSpace(w.Location)
	switch {
	case len(loc) == 0 || bytes.Equal(loc, []byte("null")):
	case loc[0] == '{':
		var lw locationWire
		if err := json.Unmarshal(loc, &lw); err == nil {
			p.Location = &Location{Type: lw.Type, Address: lw.Address, Coordinates: nonNull(lw.Coordinates)}
		}
	case loc[0] == '"':
		if s := rawString(loc); s != "" {
			p.Location = &Location{Address: s}
		}
	}
	return nil
}

// MarshalJSON writes the record back in the backend's shape.
func (p Property) MarshalJSON() ([]byte, error) {
	w := propertyWire{
		Title:              p.Title,
		Price:              p.Price,
		AvailabilityStatus: p.AvailabilityStatus,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		Coordinates:        p.Coordinates,
	}
	if p.ID != "" {
		b, err := json.Marshal(p.ID)
		if err != nil {
			return nil, err
		}
		w.MongoID = b
	}
	if p.Address != "" {
		b, err := json.Marshal(p.Address)
		if err != nil {
			return nil, err
		}
		w.Address = b
	}
	if p.Location != nil {
		b, err := json.Marshal(locationWire{Type: p.Location.Type, Address: p.Location.Address, Coordinates: p.Location.Coordinates})
		if err != nil {
			return nil, err
		}
		w.Location = b
	}
	return json.Marshal(w)
}

// PriceValue returns the numeric price, if the record carries one.
func (p Property) PriceValue() (float64, bool) {
	return geo.ParseNumber(p.Price)
}

// DisplayAddress prefers the top-level address and falls back to the
// location's address.
func (p Property) DisplayAddress() string {
	if s := strings.TrimSpace(p.Address); s != "" {
		return s
	}
	if p.Location != nil {
		return strings.TrimSpace(p.Location.Address)
	}
	return ""
}

// Status is the normalized availability status.
func (p Property) Status() Status {
	return NormalizeStatus(p.AvailabilityStatus)
}

// Equal compares two records field by field, raw coordinate bytes included.
func (p Property) Equal(o Property) bool {
	if p.ID != o.ID || p.Title != o.Title || p.AvailabilityStatus != o.AvailabilityStatus || p.Address != o.Address {
		return false
	}
	if !bytes.Equal(p.Price, o.Price) || !bytes.Equal(p.Latitude, o.Latitude) || !bytes.Equal(p.Longitude, o.Longitude) || !bytes.Equal(p.Coordinates, o.Coordinates) {
		return false
	}
	if p.Location == nil || o.Location == nil {
		return p.Location == nil && o.Location == nil
	}
	return p.Location.Type == o.Location.Type &&
		p.Location.Address == o.Location.Address &&
		bytes.Equal(p.Location.Coordinates, o.Location.Coordinates)
}

// EqualLists reports whether two property lists are identical in order and
// content.
func EqualLists(a, b []Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func nonNull(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// rawIdentifier accepts string or numeric ids.
func rawIdentifier(raw json.RawMessage) string {
	if s := rawString(raw); s != "" {
		return s
	}
	raw = bytes.TrimSpace(raw)
	var n json.Number
	if len(raw) > 0 && json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
