package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"propmap/core-go/internal/geocode"
)

type geocodeResponse struct {
	Query   string          `json:"query"`
	Results []geocode.Place `json:"results"`
}

// handleGeocode is the stateless lookup the picker modals use. A failing
// upstream yields an empty result list rather than an error.
func (h *Handler) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "query is required", map[string]any{"field": "q"})
		return
	}
	if h.geocoder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "upstream_error", "geocoding not configured", nil)
		return
	}

	opts := h.opts.Search
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid limit", map[string]any{"limit": raw})
			return
		}
		opts.Limit = n
	}
	if raw := q.Get("countrycodes"); raw != "" {
		opts.CountryCodes = splitList(raw)
	}

	places, err := h.geocoder.Search(r.Context(), query, opts)
	if err != nil {
		if errors.Is(err, geocode.ErrEmptyQuery) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "query is required", map[string]any{"field": "q"})
			return
		}
		h.log.Warn().Err(err).Str("query", query).Msg("geocode failed")
		places = nil
	}
	if places == nil {
		places = []geocode.Place{}
	}
	h.writeJSON(w, http.StatusOK, geocodeResponse{Query: query, Results: places})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
