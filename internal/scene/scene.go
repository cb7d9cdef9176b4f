// Package scene is a headless map engine. It records what a browser map
// would show (camera, tile layers, markers, open popup) and exports it as a
// renderable scene with the markers as GeoJSON.
package scene

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/paulmach/orb/geojson"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/mapview"
)

const (
	tileSize      = 256
	maxZoom       = 18
	defaultWidth  = 800
	defaultHeight = 600
	maxOps        = 64
)

// ErrUnavailable is returned by FailingLoader when no error is given.
var ErrUnavailable = errors.New("map engine unavailable")

// OpKind names a recorded camera or layer operation.
type OpKind string

const (
	OpSetView        OpKind = "set_view"
	OpFlyTo          OpKind = "fly_to"
	OpFitBounds      OpKind = "fit_bounds"
	OpInvalidateSize OpKind = "invalidate_size"
	OpAddLayerGroup  OpKind = "add_layer_group"
	OpRemoveLayer    OpKind = "remove_layer_group"
	OpAddUserMarker  OpKind = "add_user_marker"
	OpRemoveUser     OpKind = "remove_user_marker"
	OpOpenPopup      OpKind = "open_popup"
)

// Op is one recorded operation.
type Op struct {
	Kind    OpKind      `json:"kind"`
	Center  *geo.LatLng `json:"center,omitempty"`
	Zoom    float64     `json:"zoom,omitempty"`
	Padding int         `json:"padding,omitempty"`
	Target  string      `json:"target,omitempty"`
	Width   int         `json:"width,omitempty"`
	Height  int         `json:"height,omitempty"`
}

// Engine creates recording viewports.
type Engine struct {
	mu        sync.Mutex
	viewports []*Viewport
}

func New() *Engine {
	return &Engine{}
}

// Loader resolves to e.
func (e *Engine) Loader() mapview.Loader {
	return func(ctx context.Context) (mapview.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return e, nil
	}
}

// FailingLoader never resolves an engine.
func FailingLoader(err error) mapview.Loader {
	if err == nil {
		err = ErrUnavailable
	}
	return func(context.Context) (mapview.Engine, error) {
		return nil, err
	}
}

func (e *Engine) NewViewport(opts mapview.ViewportOptions) (mapview.Viewport, error) {
	v := &Viewport{
		center:    opts.Center,
		zoom:      opts.Zoom,
		className: opts.ClassName,
		counts:    make(map[OpKind]int),
	}
	e.mu.Lock()
	e.viewports = append(e.viewports, v)
	e.mu.Unlock()
	return v, nil
}

// ViewportCount is the number of viewports created so far.
func (e *Engine) ViewportCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.viewports)
}

// Viewport returns the most recently created viewport, or nil.
func (e *Engine) Viewport() *Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.viewports) == 0 {
		return nil
	}
	return e.viewports[len(e.viewports)-1]
}

// Viewport records camera state and layers.
type Viewport struct {
	mu        sync.Mutex
	center    geo.LatLng
	zoom      float64
	className string
	width     int
	height    int
	tiles     []mapview.TileLayer
	groups    []*LayerGroup
	users     []*Marker
	onClick   []func(mapview.ClickEvent)
	popup     string
	ops       []Op
	counts    map[OpKind]int
}

func (v *Viewport) record(op Op) {
	v.counts[op.Kind]++
	v.ops = append(v.ops, op)
	if len(v.ops) > maxOps {
		v.ops = append([]Op(nil), v.ops[len(v.ops)-maxOps:]...)
	}
}

func (v *Viewport) AddTileLayer(layer mapview.TileLayer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tiles = append(v.tiles, layer)
}

func (v *Viewport) NewLayerGroup() mapview.LayerGroup {
	v.mu.Lock()
	defer v.mu.Unlock()
	g := &LayerGroup{v: v}
	v.groups = append(v.groups, g)
	v.record(Op{Kind: OpAddLayerGroup})
	return g
}

func (v *Viewport) AddUserMarker(spec mapview.MarkerSpec) mapview.Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	m := &Marker{v: v, spec: spec, user: true}
	v.users = append(v.users, m)
	pos := spec.Position
	v.record(Op{Kind: OpAddUserMarker, Center: &pos})
	return m
}

func (v *Viewport) SetView(center geo.LatLng, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center, v.zoom = center, zoom
	v.record(Op{Kind: OpSetView, Center: &center, Zoom: zoom})
}

func (v *Viewport) FlyTo(center geo.LatLng, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center, v.zoom = center, zoom
	v.record(Op{Kind: OpFlyTo, Center: &center, Zoom: zoom})
}

func (v *Viewport) FitBounds(bounds geo.Bounds, paddingPx int) {
	if bounds.Empty() {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	w, h := v.sizeLocked()
	v.center = bounds.Center()
	v.zoom = fitZoom(bounds, w-2*paddingPx, h-2*paddingPx)
	c := v.center
	v.record(Op{Kind: OpFitBounds, Center: &c, Zoom: v.zoom, Padding: paddingPx})
}

func (v *Viewport) Center() geo.LatLng {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

func (v *Viewport) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

func (v *Viewport) InvalidateSize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if width > 0 && height > 0 {
		v.width, v.height = width, height
	}
	v.record(Op{Kind: OpInvalidateSize, Width: width, Height: height})
}

func (v *Viewport) OnClick(fn func(mapview.ClickEvent)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onClick = append(v.onClick, fn)
}

// Click delivers a map click to the registered handlers.
func (v *Viewport) Click(ev mapview.ClickEvent) {
	v.mu.Lock()
	handlers := append([]func(mapview.ClickEvent){}, v.onClick...)
	v.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (v *Viewport) sizeLocked() (int, int) {
	w, h := v.width, v.height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}
	return w, h
}

// Markers returns the live property markers, in insertion order.
func (v *Viewport) Markers() []*Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*Marker
	for _, g := range v.groups {
		if g.removed {
			continue
		}
		for _, m := range g.markers {
			if !m.removed {
				out = append(out, m)
			}
		}
	}
	return out
}

// Marker finds a live property marker by id.
func (v *Viewport) Marker(id string) *Marker {
	for _, m := range v.Markers() {
		if m.spec.ID == id {
			return m
		}
	}
	return nil
}

// UserMarkers returns the live user markers.
func (v *Viewport) UserMarkers() []*Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []*Marker
	for _, m := range v.users {
		if !m.removed {
			out = append(out, m)
		}
	}
	return out
}

// Ops returns the most recent operations, oldest first.
func (v *Viewport) Ops() []Op {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Op(nil), v.ops...)
}

// Count is the number of operations of kind recorded since creation.
func (v *Viewport) Count(kind OpKind) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counts[kind]
}

// OpenPopup is the id of the marker whose popup is open, if any.
func (v *Viewport) OpenPopup() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.popup
}

// Tiles returns the attached tile layers.
func (v *Viewport) Tiles() []mapview.TileLayer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]mapview.TileLayer(nil), v.tiles...)
}

// LayerGroup is a recorded marker group.
type LayerGroup struct {
	v       *Viewport
	markers []*Marker
	removed bool
}

func (g *LayerGroup) AddMarker(spec mapview.MarkerSpec) mapview.Marker {
	g.v.mu.Lock()
	defer g.v.mu.Unlock()
	m := &Marker{v: g.v, spec: spec}
	g.markers = append(g.markers, m)
	return m
}

func (g *LayerGroup) Remove() {
	g.v.mu.Lock()
	defer g.v.mu.Unlock()
	if g.removed {
		return
	}
	g.removed = true
	for _, m := range g.markers {
		m.removed = true
		if g.v.popup == m.spec.ID {
			g.v.popup = ""
		}
	}
	g.v.record(Op{Kind: OpRemoveLayer})
}

// Marker is a recorded marker.
type Marker struct {
	v       *Viewport
	spec    mapview.MarkerSpec
	user    bool
	removed bool
}

func (m *Marker) ID() string { return m.spec.ID }

func (m *Marker) Spec() mapview.MarkerSpec { return m.spec }

func (m *Marker) Position() geo.LatLng { return m.spec.Position }

func (m *Marker) OpenPopup() {
	m.v.mu.Lock()
	defer m.v.mu.Unlock()
	if m.removed {
		return
	}
	m.v.popup = m.spec.ID
	m.v.record(Op{Kind: OpOpenPopup, Target: m.spec.ID})
}

func (m *Marker) Remove() {
	m.v.mu.Lock()
	defer m.v.mu.Unlock()
	if m.removed {
		return
	}
	m.removed = true
	if m.v.popup == m.spec.ID {
		m.v.popup = ""
	}
	if m.user {
		m.v.record(Op{Kind: OpRemoveUser})
	}
}

// Click simulates a user click on the marker.
func (m *Marker) Click() {
	if m.spec.OnClick != nil {
		m.spec.OnClick()
	}
}

// Hover simulates the pointer entering the marker.
func (m *Marker) Hover() {
	if m.spec.OnHover != nil {
		m.spec.OnHover()
	}
}

// fitZoom is the largest integer web-mercator zoom at which b fits inside a
// w x h pixel box.
func fitZoom(b geo.Bounds, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	sw, ne := b.SouthWest(), b.NorthEast()
	lngSpan := (ne.Lng - sw.Lng) / 360
	latSpan := math.Abs(mercatorY(ne.Lat)-mercatorY(sw.Lat)) / (2 * math.Pi)
	zoom := float64(maxZoom)
	if lngSpan > 0 {
		zoom = math.Min(zoom, math.Log2(float64(w)/(tileSize*lngSpan)))
	}
	if latSpan > 0 {
		zoom = math.Min(zoom, math.Log2(float64(h)/(tileSize*latSpan)))
	}
	return math.Max(0, math.Floor(zoom))
}

func mercatorY(lat float64) float64 {
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}

// Snapshot is the renderable state of a viewport.
type Snapshot struct {
	Center      geo.LatLng                 `json:"center"`
	Zoom        float64                    `json:"zoom"`
	ClassName   string                     `json:"class_name,omitempty"`
	Width       int                        `json:"width,omitempty"`
	Height      int                        `json:"height,omitempty"`
	Tiles       []mapview.TileLayer        `json:"tiles"`
	Markers     *geojson.FeatureCollection `json:"markers"`
	OpenPopup   string                     `json:"open_popup,omitempty"`
	RecentOps   []Op                       `json:"recent_ops"`
	Stylesheets []mapview.Stylesheet       `json:"stylesheets,omitempty"`
}

// Snapshot exports the viewport. Property and user markers are Point
// features; the collection's bbox covers the property markers.
func (v *Viewport) Snapshot() Snapshot {
	props := v.Markers()
	users := v.UserMarkers()

	fc := geojson.NewFeatureCollection()
	var bounds geo.Bounds
	for _, m := range props {
		bounds.Extend(m.spec.Position)
		fc.Append(markerFeature(m, "property"))
	}
	for _, m := range users {
		fc.Append(markerFeature(m, "user"))
	}
	if !bounds.Empty() {
		fc.BBox = geojson.NewBBox(bounds.Orb())
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		Center:    v.center,
		Zoom:      v.zoom,
		ClassName: v.className,
		Width:     v.width,
		Height:    v.height,
		Tiles:     append([]mapview.TileLayer(nil), v.tiles...),
		Markers:   fc,
		OpenPopup: v.popup,
		RecentOps: append([]Op(nil), v.ops...),
	}
}

func markerFeature(m *Marker, kind string) *geojson.Feature {
	f := geojson.NewFeature(m.spec.Position.Point())
	f.ID = m.spec.ID
	f.Properties["kind"] = kind
	f.Properties["id"] = m.spec.ID
	f.Properties["popup_html"] = m.spec.PopupHTML
	f.Properties["icon"] = m.spec.Icon
	if kind == "property" {
		f.Properties["status"] = m.spec.Status.Label()
		f.Properties["color"] = m.spec.Status.Color()
	}
	return f
}
