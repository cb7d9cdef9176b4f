// Package mapview drives one interactive map per mounted session: it owns the
// viewport lifecycle, rebuilds the property marker layer, applies the camera
// policies (one-shot focus, auto-fit, selection, explicit center) and keeps
// the user reference marker in sync with host props.
//
// Rendering goes through the Engine boundary, resolved asynchronously at
// mount. When the engine cannot be resolved the session stays mounted with
// no viewport and every map operation is skipped.
package mapview

import (
	"context"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
)

// Engine creates viewports.
type Engine interface {
	NewViewport(opts ViewportOptions) (Viewport, error)
}

// Loader resolves an Engine. It is called once per mount, off the caller's
// goroutine.
type Loader func(ctx context.Context) (Engine, error)

// ViewportOptions configures a new viewport.
type ViewportOptions struct {
	Center    geo.LatLng
	Zoom      float64
	ClassName string
}

// TileLayer is an XYZ raster tile source.
type TileLayer struct {
	URLTemplate string `json:"url_template"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"max_zoom"`
}

// ClickEvent is a click on the map surface.
type ClickEvent struct {
	LatLng geo.LatLng `json:"latlng"`
	Ctrl   bool       `json:"ctrl"`
}

// MarkerSpec describes a marker to place.
type MarkerSpec struct {
	ID        string
	Position  geo.LatLng
	Icon      listing.Icon
	PopupHTML string
	Status    listing.Status

	OnClick func()
	OnHover func()
}

// Viewport is a single map surface.
type Viewport interface {
	AddTileLayer(layer TileLayer)
	NewLayerGroup() LayerGroup
	AddUserMarker(spec MarkerSpec) Marker

	SetView(center geo.LatLng, zoom float64)
	FlyTo(center geo.LatLng, zoom float64)
	FitBounds(bounds geo.Bounds, paddingPx int)
	Center() geo.LatLng
	Zoom() float64

	// InvalidateSize makes the viewport recompute its pixel dimensions.
	InvalidateSize(width, height int)
	OnClick(fn func(ClickEvent))
}

// LayerGroup holds markers that are removed together.
type LayerGroup interface {
	AddMarker(spec MarkerSpec) Marker
	Remove()
}

// Marker is a placed marker.
type Marker interface {
	Position() geo.LatLng
	OpenPopup()
	Remove()
}
