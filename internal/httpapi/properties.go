package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/mmcloughlin/geohash"

	"propmap/core-go/internal/coords"
	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/sqlcgen"
)

const (
	sourceStore   = "store"
	sourceBackend = "backend"

	defaultPropertyLimit = 500
	maxPropertyLimit     = 5000
	nearPrecision        = 5
)

var errNoPropertySource = errors.New("no property source configured")

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// propertyFilter narrows the listing the map receives. Cells are geohash
// prefixes; an empty set means no spatial filter.
type propertyFilter struct {
	Status string   `json:"status,omitempty"`
	Cell   string   `json:"cell,omitempty"`
	Near   string   `json:"near,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	cells  []string
}

func (f *propertyFilter) normalize() error {
	f.Status = strings.TrimSpace(f.Status)
	if f.Status != "" {
		if !listing.IsValidStatus(f.Status) {
			return fmt.Errorf("unknown status %q", f.Status)
		}
		f.Status = listing.NormalizeStatus(f.Status).Label()
	}

	f.cells = nil
	f.Cell = strings.ToLower(strings.TrimSpace(f.Cell))
	if f.Cell != "" {
		if !validCell(f.Cell) {
			return fmt.Errorf("invalid geohash cell %q", f.Cell)
		}
		f.cells = append(f.cells, f.Cell)
	}

	f.Near = strings.TrimSpace(f.Near)
	if f.Near != "" {
		ll, ok := parseLatLng(f.Near)
		if !ok {
			return fmt.Errorf("invalid near %q", f.Near)
		}
		cell := geohash.EncodeWithPrecision(ll.Lat, ll.Lng, nearPrecision)
		f.cells = append(f.cells, cell)
		f.cells = append(f.cells, geohash.Neighbors(cell)...)
	}

	switch {
	case f.Limit < 0:
		return fmt.Errorf("invalid limit %d", f.Limit)
	case f.Limit == 0:
		f.Limit = defaultPropertyLimit
	case f.Limit > maxPropertyLimit:
		f.Limit = maxPropertyLimit
	}
	return nil
}

func (f propertyFilter) match(p listing.Property) bool {
	if f.Status != "" && p.Status().Label() != f.Status {
		return false
	}
	if len(f.cells) == 0 {
		return true
	}
	ll, ok := coords.Resolve(p)
	if !ok {
		return false
	}
	hash := geohash.Encode(ll.Lat, ll.Lng)
	for _, c := range f.cells {
		if strings.HasPrefix(hash, c) {
			return true
		}
	}
	return false
}

func validCell(cell string) bool {
	if len(cell) == 0 || len(cell) > 12 {
		return false
	}
	for _, r := range cell {
		if !strings.ContainsRune(geohashAlphabet, r) {
			return false
		}
	}
	return true
}

// parseLatLng reads "lat,lng".
func parseLatLng(s string) (geo.LatLng, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.LatLng{}, false
	}
	lat, ok := geo.ParseNumberString(parts[0])
	if !ok {
		return geo.LatLng{}, false
	}
	lng, ok := geo.ParseNumberString(parts[1])
	if !ok {
		return geo.LatLng{}, false
	}
	ll := geo.LatLng{Lat: lat, Lng: lng}
	return ll, ll.Valid()
}

// loadProperties reads from the store when one is configured and falls back
// to the live backend otherwise.
func (h *Handler) loadProperties(ctx context.Context, f propertyFilter) ([]listing.Property, string, error) {
	if h.queries != nil {
		arg := sqlcgen.ListMapPropertiesParams{Cells: f.cells, Limit: int32(f.Limit)}
		if f.Status != "" {
			status := f.Status
			arg.Status = &status
		}
		rows, err := h.queries.ListMapProperties(ctx, arg)
		if err != nil {
			return nil, sourceStore, err
		}
		out := make([]listing.Property, 0, len(rows))
		for _, row := range rows {
			out = append(out, propertyFromRow(row))
		}
		return out, sourceStore, nil
	}

	if h.backend == nil {
		return nil, "", errNoPropertySource
	}
	all, err := h.backend.ListProperties(ctx)
	if err != nil {
		return nil, sourceBackend, err
	}
	out := make([]listing.Property, 0, len(all))
	for _, p := range all {
		if !f.match(p) {
			continue
		}
		out = append(out, p)
		if len(out) == f.Limit {
			break
		}
	}
	return out, sourceBackend, nil
}

// propertyFromRow prefers the stored backend record and rebuilds one from
// the projected columns when it is missing or unreadable.
func propertyFromRow(row sqlcgen.MapProperty) listing.Property {
	if len(row.Raw) > 0 {
		var p listing.Property
		if err := json.Unmarshal(row.Raw, &p); err == nil && p.ID != "" {
			return p
		}
	}
	p := listing.Property{
		ID:                 row.ID,
		Title:              row.Title,
		AvailabilityStatus: row.AvailabilityStatus,
	}
	if row.Address != nil {
		p.Address = *row.Address
	}
	if row.Price != nil {
		p.Price = json.RawMessage(strconv.FormatFloat(*row.Price, 'f', -1, 64))
	}
	if row.Latitude != nil && row.Longitude != nil {
		p.Latitude = json.RawMessage(strconv.FormatFloat(*row.Latitude, 'f', -1, 64))
		p.Longitude = json.RawMessage(strconv.FormatFloat(*row.Longitude, 'f', -1, 64))
	}
	return p
}

func (h *Handler) writeLoadError(w http.ResponseWriter, source string, err error) {
	h.writeRequestError(w, h.loadError(source, err))
}

type propertiesResponse struct {
	Properties []listing.Property `json:"properties"`
	Count      int                `json:"count"`
	Mappable   int                `json:"mappable"`
	Source     string             `json:"source"`
}

func (h *Handler) handleListProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := propertyFilter{
		Status: q.Get("status"),
		Cell:   q.Get("cell"),
		Near:   q.Get("near"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid limit", map[string]any{"limit": raw})
			return
		}
		f.Limit = n
	}
	if err := f.normalize(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid property filter", map[string]any{"error": err.Error()})
		return
	}

	props, source, err := h.loadProperties(r.Context(), f)
	if err != nil {
		h.writeLoadError(w, source, err)
		return
	}

	mappable := 0
	for _, p := range props {
		if _, ok := coords.Resolve(p); ok {
			mappable++
		}
	}
	h.writeJSON(w, http.StatusOK, propertiesResponse{
		Properties: props,
		Count:      len(props),
		Mappable:   mappable,
		Source:     source,
	})
}

func (h *Handler) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.queries != nil {
		row, err := h.queries.GetMapProperty(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				h.writeError(w, http.StatusNotFound, "not_found", "property not found", map[string]any{"id": id})
			default:
				h.log.Error().Err(err).Str("id", id).Msg("get property failed")
				h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch property", nil)
			}
			return
		}
		h.writeJSON(w, http.StatusOK, propertyFromRow(row))
		return
	}

	if h.backend == nil {
		h.writeLoadError(w, "", errNoPropertySource)
		return
	}
	all, err := h.backend.ListProperties(r.Context())
	if err != nil {
		h.writeLoadError(w, sourceBackend, err)
		return
	}
	for _, p := range all {
		if p.ID == id {
			h.writeJSON(w, http.StatusOK, p)
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "not_found", "property not found", map[string]any{"id": id})
}
