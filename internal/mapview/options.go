package mapview

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"propmap/core-go/internal/clock"
	"propmap/core-go/internal/coords"
	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/metrics"
)

const (
	DefaultZoom      = 12
	FocusZoom        = 16
	MinSelectionZoom = 3
	MaxSelectionZoom = 15
	FitPaddingPx     = 50

	SizeCheckDelay = 100 * time.Millisecond
	SelectionDelay = 500 * time.Millisecond

	DefaultCurrencySymbol = "৳"
)

// DefaultCenter is Dhaka.
var DefaultCenter = geo.LatLng{Lat: 23.8103, Lng: 90.4125}

// DefaultTiles is the public OpenStreetMap tile service.
var DefaultTiles = TileLayer{
	URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	Attribution: "&copy; OpenStreetMap contributors",
	MaxZoom:     19,
}

// Props is what the host passes in. The session never mutates it.
type Props struct {
	Properties         []listing.Property
	OnMarkerClick      func(id string)
	FocusedPropertyID  string
	SelectedPropertyID string
	Center             *geo.LatLng
	OnDoubleClick      func(geo.LatLng)
	UserMarker         *geo.LatLng
	ClassName          string
}

type Options struct {
	DefaultCenter  *geo.LatLng
	DefaultZoom    float64
	FocusZoom      float64
	FitPaddingPx   int
	SizeCheckDelay time.Duration
	SelectionDelay time.Duration
	Tiles          TileLayer
	Stylesheet     Stylesheet
	CurrencySymbol string

	// Styles is shared between sessions rendered into the same page.
	Styles    *StyleRegistry
	Coords    coords.Chain
	Scheduler clock.Scheduler
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.DefaultCenter == nil || !o.DefaultCenter.Valid() {
		c := DefaultCenter
		o.DefaultCenter = &c
	}
	if o.DefaultZoom <= 0 {
		o.DefaultZoom = DefaultZoom
	}
	if o.FocusZoom <= 0 {
		o.FocusZoom = FocusZoom
	}
	if o.FitPaddingPx <= 0 {
		o.FitPaddingPx = FitPaddingPx
	}
	if o.SizeCheckDelay <= 0 {
		o.SizeCheckDelay = SizeCheckDelay
	}
	if o.SelectionDelay <= 0 {
		o.SelectionDelay = SelectionDelay
	}
	if strings.TrimSpace(o.Tiles.URLTemplate) == "" {
		o.Tiles.URLTemplate = DefaultTiles.URLTemplate
	}
	if strings.TrimSpace(o.Tiles.Attribution) == "" {
		o.Tiles.Attribution = DefaultTiles.Attribution
	}
	if o.Tiles.MaxZoom <= 0 {
		o.Tiles.MaxZoom = DefaultTiles.MaxZoom
	}
	if o.Stylesheet.ID == "" {
		o.Stylesheet = DefaultStylesheet
	}
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = DefaultCurrencySymbol
	}
	if len(o.Coords) == 0 {
		o.Coords = coords.DefaultChain()
	}
	if o.Styles == nil {
		o.Styles = NewStyleRegistry()
	}
	if o.Scheduler == nil {
		o.Scheduler = clock.Real{}
	}
	return o
}

func clampZoom(z, lo, hi float64) float64 {
	if z < lo {
		return lo
	}
	if z > hi {
		return hi
	}
	return z
}
