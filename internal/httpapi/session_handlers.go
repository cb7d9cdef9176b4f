package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/mapview"
)

// propsRequest replaces the host props. Properties are either inline or
// loaded through filter; center is a [lat, lng] pair.
type propsRequest struct {
	Properties         *[]listing.Property `json:"properties,omitempty"`
	Filter             *propertyFilter     `json:"filter,omitempty"`
	FocusedPropertyID  string              `json:"focused_property_id,omitempty"`
	SelectedPropertyID string              `json:"selected_property_id,omitempty"`
	Center             *[2]float64         `json:"center,omitempty"`
	UserMarker         *geo.LatLng         `json:"user_marker,omitempty"`
	ClassName          string              `json:"class_name,omitempty"`
}

type selectRequest struct {
	PropertyID string `json:"property_id"`
}

type clickRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Ctrl bool    `json:"ctrl"`
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchSelectRequest struct {
	Index int `json:"index"`
}

// decodeJSONOptional is decodeJSONStrict that accepts an empty body.
func decodeJSONOptional(r *http.Request, dst any) error {
	if err := decodeJSONStrict(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type requestError struct {
	status  int
	code    string
	msg     string
	details map[string]any
}

func (h *Handler) resolveHostState(ctx context.Context, req propsRequest) (hostState, *requestError) {
	st := hostState{
		FocusedPropertyID:  strings.TrimSpace(req.FocusedPropertyID),
		SelectedPropertyID: strings.TrimSpace(req.SelectedPropertyID),
		ClassName:          strings.TrimSpace(req.ClassName),
	}
	if req.Center != nil {
		c := geo.LatLng{Lat: req.Center[0], Lng: req.Center[1]}
		if !c.Valid() {
			return st, &requestError{http.StatusBadRequest, "validation_failed", "invalid center", map[string]any{"field": "center"}}
		}
		st.Center = &c
	}
	if req.UserMarker != nil {
		if !req.UserMarker.Valid() {
			return st, &requestError{http.StatusBadRequest, "validation_failed", "invalid user marker", map[string]any{"field": "user_marker"}}
		}
		um := *req.UserMarker
		st.UserMarker = &um
	}

	switch {
	case req.Properties != nil:
		st.Properties = *req.Properties
	case req.Filter != nil:
		f := *req.Filter
		if err := f.normalize(); err != nil {
			return st, &requestError{http.StatusBadRequest, "validation_failed", "invalid property filter", map[string]any{"error": err.Error()}}
		}
		props, source, err := h.loadProperties(ctx, f)
		if err != nil {
			return st, h.loadError(source, err)
		}
		st.Filter = &f
		st.Properties = props
	}
	return st, nil
}

func (h *Handler) loadError(source string, err error) *requestError {
	switch {
	case errors.Is(err, errNoPropertySource):
		return &requestError{http.StatusServiceUnavailable, "db_unavailable", "no property source configured", nil}
	case source == sourceStore:
		h.log.Error().Err(err).Msg("list properties failed")
		return &requestError{http.StatusInternalServerError, "db_error", "failed to list properties", nil}
	default:
		h.log.Warn().Err(err).Msg("backend list properties failed")
		return &requestError{http.StatusBadGateway, "upstream_error", "property backend unavailable", nil}
	}
}

func (h *Handler) writeRequestError(w http.ResponseWriter, e *requestError) {
	h.writeError(w, e.status, e.code, e.msg, e.details)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*hostSession, bool) {
	id := chi.URLParam(r, "id")
	hs, ok := h.sessions.get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "map session not found", map[string]any{"id": id})
		return nil, false
	}
	return hs, true
}

// writeSessionResult maps a session error to a response, or writes the
// session's current view.
func (h *Handler) writeSessionResult(w http.ResponseWriter, hs *hostSession, err error) {
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, hs.snapshot())
	case errors.Is(err, mapview.ErrUnmounted):
		h.writeError(w, http.StatusNotFound, "not_found", "map session not found", map[string]any{"id": hs.id})
	case errors.Is(err, mapview.ErrUnknownMarker):
		h.writeError(w, http.StatusNotFound, "not_found", "marker not found", nil)
	default:
		h.log.Error().Err(err).Str("session_id", hs.id).Msg("map session update failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "map session update failed", nil)
	}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req propsRequest
	if err := decodeJSONOptional(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	st, rerr := h.resolveHostState(r.Context(), req)
	if rerr != nil {
		h.writeRequestError(w, rerr)
		return
	}

	hs, err := h.mountSession(r.Context(), st)
	if errors.Is(err, errSessionLimit) {
		w.Header().Set("Retry-After", "60")
		h.writeError(w, http.StatusServiceUnavailable, "session_limit", "too many map sessions", map[string]any{"max_sessions": h.opts.MaxSessions})
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to mount map session", nil)
		return
	}
	h.log.Info().Str("session_id", hs.id).Int("properties", len(st.Properties)).Msg("map session mounted")
	h.writeJSON(w, http.StatusCreated, hs.snapshot())
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": h.sessions.ids()})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, hs.snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hs, ok := h.sessions.remove(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "map session not found", map[string]any{"id": id})
		return
	}
	hs.close()
	h.log.Info().Str("session_id", id).Msg("map session unmounted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePutProps(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	var req propsRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	next, rerr := h.resolveHostState(r.Context(), req)
	if rerr != nil {
		h.writeRequestError(w, rerr)
		return
	}

	err := hs.update(func(s *hostState) {
		next.LastMarkerClick = s.LastMarkerClick
		*s = next
	})
	h.writeSessionResult(w, hs, err)
}

// handleSelect selects a property. Selecting the current selection again
// clears it first so the map flies to it once more.
func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	id := strings.TrimSpace(req.PropertyID)

	if id != "" && hs.hostState().SelectedPropertyID == id {
		if err := hs.update(func(s *hostState) { s.SelectedPropertyID = "" }); err != nil {
			h.writeSessionResult(w, hs, err)
			return
		}
	}
	err := hs.update(func(s *hostState) { s.SelectedPropertyID = id })
	h.writeSessionResult(w, hs, err)
}

func (h *Handler) handleMapClick(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	_, err := hs.view.Click(mapview.ClickEvent{
		LatLng: geo.LatLng{Lat: req.Lat, Lng: req.Lng},
		Ctrl:   req.Ctrl,
	})
	h.writeSessionResult(w, hs, err)
}

func (h *Handler) handleMarkerClick(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	err := hs.view.ClickMarker(chi.URLParam(r, "propertyId"))
	h.writeSessionResult(w, hs, err)
}

func (h *Handler) handleMarkerHover(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	err := hs.view.HoverMarker(chi.URLParam(r, "propertyId"))
	h.writeSessionResult(w, hs, err)
}

func (h *Handler) handleResize(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	var req resizeRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "width and height must be positive", map[string]any{"width": req.Width, "height": req.Height})
		return
	}
	h.writeSessionResult(w, hs, hs.view.Resize(req.Width, req.Height))
}

// handleKey implements the page's keyboard shortcuts: "r" clears the user
// marker.
func (h *Handler) handleKey(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	var req keyRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	var err error
	if strings.EqualFold(req.Key, "r") {
		err = hs.update(func(s *hostState) { s.UserMarker = nil })
	}
	h.writeSessionResult(w, hs, err)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	if hs.search == nil {
		h.writeError(w, http.StatusServiceUnavailable, "upstream_error", "geocoding not configured", nil)
		return
	}
	var req searchRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	gen := hs.search.Submit(req.Query)
	h.writeJSON(w, http.StatusAccepted, map[string]any{"generation": gen})
}

// handleSearchSelect recenters the map on one of the current results.
func (h *Handler) handleSearchSelect(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.session(w, r)
	if !ok {
		return
	}
	if hs.search == nil {
		h.writeError(w, http.StatusServiceUnavailable, "upstream_error", "geocoding not configured", nil)
		return
	}
	var req searchSelectRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	res := hs.search.Results()
	if req.Index < 0 || req.Index >= len(res.Places) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "no such search result", map[string]any{"index": req.Index, "results": len(res.Places)})
		return
	}
	ll := res.Places[req.Index].LatLng()
	err := hs.update(func(s *hostState) { s.Center = &ll })
	h.writeSessionResult(w, hs, err)
}
