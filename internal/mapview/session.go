package mapview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"propmap/core-go/internal/clock"
	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
)

var (
	ErrUnmounted     = errors.New("map session unmounted")
	ErrUnknownMarker = errors.New("no marker for property")
)

// Session is one mounted map. All state is guarded by mu; host callbacks are
// always invoked after mu is released.
type Session struct {
	opts   Options
	log    zerolog.Logger
	prices listing.PriceFormatter

	ready  chan struct{}
	cancel context.CancelFunc

	mu      sync.Mutex
	props   Props
	mounted bool
	vp      Viewport

	layer    LayerGroup
	markers  map[string]Marker
	bounds   geo.Bounds
	rendered []listing.Property
	built    bool

	// last props the camera policies were evaluated against
	seenFocus  string
	seenCenter *geo.LatLng
	seenUser   *geo.LatLng

	focusApplied     bool
	lastCenter       *geo.LatLng
	appliedSelection string
	selectionGen     uint64
	selectionTimer   clock.Timer
	sizeTimer        clock.Timer

	userMarker    Marker
	userMarkerPos *geo.LatLng

	width  int
	height int
}

// Mount renders the session immediately and resolves the engine in the
// background. Ready is closed once resolution has finished either way.
func Mount(ctx context.Context, load Loader, props Props, opts Options) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		opts:    opts,
		log:     opts.Logger.With().Str("component", "mapview").Logger(),
		prices:  listing.NewPriceFormatter(opts.CurrencySymbol),
		ready:   make(chan struct{}),
		cancel:  cancel,
		props:   cloneProps(props),
		mounted: true,
		markers: map[string]Marker{},
	}
	go s.init(ctx, load)
	return s
}

func (s *Session) init(ctx context.Context, load Loader) {
	defer close(s.ready)

	eng, err := resolveEngine(ctx, load)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("map engine unavailable")
		return
	}

	s.opts.Styles.Ensure(s.opts.Stylesheet)
	vp, err := eng.NewViewport(ViewportOptions{
		Center:    *s.opts.DefaultCenter,
		Zoom:      s.opts.DefaultZoom,
		ClassName: s.props.ClassName,
	})
	if err != nil || vp == nil {
		s.log.Warn().Err(err).Msg("map viewport init failed")
		return
	}
	vp.AddTileLayer(s.opts.Tiles)
	vp.OnClick(func(ev ClickEvent) { _, _ = s.Click(ev) })
	s.vp = vp

	s.sizeTimer = s.opts.Scheduler.AfterFunc(s.opts.SizeCheckDelay, s.checkSize)
	s.reconcileLocked(true)
}

func resolveEngine(ctx context.Context, load Loader) (eng Engine, err error) {
	if load == nil {
		return nil, errors.New("no engine loader")
	}
	defer func() {
		if r := recover(); r != nil {
			eng, err = nil, fmt.Errorf("engine loader panic: %v", r)
		}
	}()
	eng, err = load(ctx)
	if err == nil && eng == nil {
		err = errors.New("engine loader returned nil")
	}
	return eng, err
}

// Ready is closed once engine resolution finished, successfully or not.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Interactive reports whether a viewport exists.
func (s *Session) Interactive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp != nil
}

// Mounted reports whether Unmount has not been called yet.
func (s *Session) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Update replaces the props and reconciles the existing viewport.
func (s *Session) Update(props Props) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	s.props = cloneProps(props)
	s.reconcileLocked(false)
	return nil
}

// Resize reports the container's current size. The viewport is told to
// recompute its dimensions when they changed.
func (s *Session) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	if width == s.width && height == s.height {
		return nil
	}
	s.width, s.height = width, height
	if s.vp != nil {
		s.vp.InvalidateSize(width, height)
	}
	return nil
}

func (s *Session) checkSize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizeTimer = nil
	if !s.mounted || s.vp == nil {
		return
	}
	s.vp.InvalidateSize(s.width, s.height)
}

// Unmount stops resize observation, cancels pending delayed work and removes
// the user marker.
func (s *Session) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	s.mounted = false
	s.cancel()
	if s.sizeTimer != nil {
		s.sizeTimer.Stop()
		s.sizeTimer = nil
	}
	if s.selectionTimer != nil {
		s.selectionTimer.Stop()
		s.selectionTimer = nil
	}
	if s.userMarker != nil {
		s.userMarker.Remove()
		s.userMarker, s.userMarkerPos = nil, nil
	}
	return nil
}

// ClickMarker is a click on a property marker. It invokes OnMarkerClick.
func (s *Session) ClickMarker(id string) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return ErrUnmounted
	}
	_, ok := s.markers[id]
	cb := s.props.OnMarkerClick
	s.mu.Unlock()

	if !ok {
		return ErrUnknownMarker
	}
	if cb != nil {
		cb(id)
	}
	return nil
}

// HoverMarker opens the marker's popup as a preview.
func (s *Session) HoverMarker(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	m, ok := s.markers[id]
	if !ok {
		return ErrUnknownMarker
	}
	m.OpenPopup()
	return nil
}

// State is a read-only view of the session for hosts and tests.
type State struct {
	Mounted            bool         `json:"mounted"`
	Interactive        bool         `json:"interactive"`
	ClassName          string       `json:"class_name,omitempty"`
	MarkerIDs          []string     `json:"marker_ids"`
	FocusApplied       bool         `json:"focus_applied"`
	LastAppliedCenter  *geo.LatLng  `json:"last_applied_center,omitempty"`
	SelectedPropertyID string       `json:"selected_property_id,omitempty"`
	UserMarker         *geo.LatLng  `json:"user_marker,omitempty"`
	Width              int          `json:"width,omitempty"`
	Height             int          `json:"height,omitempty"`
	Stylesheets        []Stylesheet `json:"stylesheets,omitempty"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	st := State{
		Mounted:            s.mounted,
		Interactive:        s.vp != nil,
		ClassName:          s.props.ClassName,
		MarkerIDs:          ids,
		FocusApplied:       s.focusApplied,
		SelectedPropertyID: s.appliedSelection,
		Width:              s.width,
		Height:             s.height,
		Stylesheets:        s.opts.Styles.List(),
	}
	if s.lastCenter != nil {
		c := *s.lastCenter
		st.LastAppliedCenter = &c
	}
	if s.userMarkerPos != nil {
		c := *s.userMarkerPos
		st.UserMarker = &c
	}
	return st
}

// reconcileLocked applies props to the viewport in a fixed order: markers,
// camera policies, selection, center, user marker. A later step that moves
// the camera wins over an earlier one in the same pass.
func (s *Session) reconcileLocked(force bool) {
	if s.vp == nil {
		return
	}
	p := s.props

	listChanged := force || !s.built || !listing.EqualLists(p.Properties, s.rendered)
	if listChanged {
		s.renderMarkersLocked()
	}

	focusChanged := p.FocusedPropertyID != s.seenFocus
	centerChanged := !geo.PtrEqual(p.Center, s.seenCenter)
	userChanged := !geo.PtrEqual(p.UserMarker, s.seenUser)
	if force || listChanged || focusChanged || centerChanged || userChanged {
		s.applyCameraPoliciesLocked()
	}

	s.applySelectionLocked()
	s.applyCenterLocked(force || centerChanged)
	s.syncUserMarkerLocked()

	s.seenFocus = p.FocusedPropertyID
	s.seenCenter = copyLatLng(p.Center)
	s.seenUser = copyLatLng(p.UserMarker)
}

func cloneProps(p Props) Props {
	p.Properties = append([]listing.Property(nil), p.Properties...)
	p.Center = copyLatLng(p.Center)
	p.UserMarker = copyLatLng(p.UserMarker)
	return p
}

func copyLatLng(p *geo.LatLng) *geo.LatLng {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
