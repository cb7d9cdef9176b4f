package httpapi

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"propmap/core-go/internal/clock"
	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/geocode"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/mapview"
	"propmap/core-go/internal/metrics"
	"propmap/core-go/internal/scene"
)

// hostState is what the page owns: the property list, selection and the
// picked coordinate. The map session only ever sees it through props.
type hostState struct {
	Filter             *propertyFilter    `json:"filter,omitempty"`
	Properties         []listing.Property `json:"-"`
	PropertyCount      int                `json:"property_count"`
	FocusedPropertyID  string             `json:"focused_property_id,omitempty"`
	SelectedPropertyID string             `json:"selected_property_id,omitempty"`
	Center             *geo.LatLng        `json:"center,omitempty"`
	UserMarker         *geo.LatLng        `json:"user_marker,omitempty"`
	ClassName          string             `json:"class_name,omitempty"`
	LastMarkerClick    *markerClick       `json:"last_marker_click,omitempty"`
}

// markerClick records the navigation a marker click asks for.
type markerClick struct {
	PropertyID string    `json:"property_id"`
	Path       string    `json:"path"`
	At         time.Time `json:"at"`
}

type hostSession struct {
	id      string
	created time.Time
	engine  *scene.Engine
	view    *mapview.Session
	search  *geocode.Debouncer
	log     zerolog.Logger

	mu    sync.Mutex
	state hostState
}

// propsLocked maps host state onto component props. Callbacks re-enter the
// host through its own lock; the map session invokes them outside of its.
func (hs *hostSession) propsLocked() mapview.Props {
	return mapview.Props{
		Properties:         hs.state.Properties,
		OnMarkerClick:      hs.markerClicked,
		FocusedPropertyID:  hs.state.FocusedPropertyID,
		SelectedPropertyID: hs.state.SelectedPropertyID,
		Center:             hs.state.Center,
		OnDoubleClick:      hs.picked,
		UserMarker:         hs.state.UserMarker,
		ClassName:          hs.state.ClassName,
	}
}

// update mutates host state and pushes the result into the map session.
func (hs *hostSession) update(fn func(*hostState)) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	fn(&hs.state)
	hs.state.PropertyCount = len(hs.state.Properties)
	return hs.view.Update(hs.propsLocked())
}

func (hs *hostSession) markerClicked(id string) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.state.LastMarkerClick = &markerClick{PropertyID: id, Path: "/properties/" + id, At: time.Now().UTC()}
	hs.log.Debug().Str("property_id", id).Msg("marker clicked")
}

func (hs *hostSession) picked(ll geo.LatLng) {
	err := hs.update(func(s *hostState) {
		p := ll
		s.UserMarker = &p
	})
	if err != nil {
		hs.log.Debug().Err(err).Msg("pick after unmount")
	}
}

func (hs *hostSession) hostState() hostState {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.state
}

func (hs *hostSession) close() {
	_ = hs.view.Unmount()
	if hs.search != nil {
		hs.search.Close()
	}
}

// sessionView is the JSON shape returned for a session.
type sessionView struct {
	ID      string           `json:"id"`
	Created time.Time        `json:"created_at"`
	Host    hostState        `json:"host"`
	Map     mapview.State    `json:"map"`
	Scene   *scene.Snapshot  `json:"scene,omitempty"`
	Search  *geocode.Results `json:"search,omitempty"`
}

func (hs *hostSession) snapshot() sessionView {
	st := hs.view.State()
	out := sessionView{
		ID:      hs.id,
		Created: hs.created,
		Host:    hs.hostState(),
		Map:     st,
	}
	if vp := hs.engine.Viewport(); vp != nil {
		snap := vp.Snapshot()
		snap.Stylesheets = st.Stylesheets
		out.Scene = &snap
	}
	if hs.search != nil {
		res := hs.search.Results()
		out.Search = &res
	}
	return out
}

var errSessionLimit = errors.New("map session limit reached")

// sessionStore owns mounted sessions. Each session carries an idle timer on
// the handler's scheduler; any lookup through get restarts it.
type sessionStore struct {
	limit   int
	idle    time.Duration
	sched   clock.Scheduler
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*storedSession
}

type storedSession struct {
	hs    *hostSession
	timer clock.Timer
	gen   uint64
}

func newSessionStore(log zerolog.Logger, sched clock.Scheduler, limit int, idle time.Duration, m *metrics.Metrics) *sessionStore {
	return &sessionStore{
		limit:    limit,
		idle:     idle,
		sched:    sched,
		metrics:  m,
		log:      log,
		sessions: map[string]*storedSession{},
	}
}

func (s *sessionStore) full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit > 0 && len(s.sessions) >= s.limit
}

func (s *sessionStore) add(hs *hostSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.sessions) >= s.limit {
		return errSessionLimit
	}
	e := &storedSession{hs: hs}
	s.sessions[hs.id] = e
	s.touchLocked(e)
	s.metrics.SetMapSessions(len(s.sessions))
	return nil
}

// touchLocked restarts the idle timer of e.
func (s *sessionStore) touchLocked(e *storedSession) {
	if s.idle <= 0 {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	id, gen := e.hs.id, e.gen
	e.timer = s.sched.AfterFunc(s.idle, func() { s.expire(id, gen) })
}

func (s *sessionStore) expire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	s.metrics.SetMapSessions(len(s.sessions))
	s.mu.Unlock()

	e.hs.close()
	s.metrics.IncSessionEvicted("idle")
	s.log.Info().Str("session_id", id).Dur("idle", s.idle).Msg("map session expired")
}

func (s *sessionStore) get(id string) (*hostSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	s.touchLocked(e)
	return e.hs, true
}

func (s *sessionStore) remove(id string) (*hostSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	delete(s.sessions, id)
	if e.timer != nil {
		e.timer.Stop()
	}
	s.metrics.SetMapSessions(len(s.sessions))
	return e.hs, true
}

func (s *sessionStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *sessionStore) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = map[string]*storedSession{}
	s.metrics.SetMapSessions(0)
	s.mu.Unlock()
	for _, e := range all {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.hs.close()
		s.metrics.IncSessionEvicted("shutdown")
	}
}

// mountSession creates a host session around a fresh engine and waits,
// bounded by MountWait, for the engine to resolve. It fails with
// errSessionLimit once MaxSessions are mounted.
func (h *Handler) mountSession(ctx context.Context, state hostState) (*hostSession, error) {
	if h.sessions.full() {
		return nil, errSessionLimit
	}
	id := uuid.NewString()
	log := h.log.With().Str("session_id", id).Logger()

	hs := &hostSession{
		id:      id,
		created: time.Now().UTC(),
		engine:  scene.New(),
		log:     log,
		state:   state,
	}
	hs.state.PropertyCount = len(state.Properties)

	opts := h.opts.Map
	opts.Logger = log
	hs.mu.Lock()
	hs.view = mapview.Mount(context.Background(), hs.engine.Loader(), hs.propsLocked(), opts)
	hs.mu.Unlock()

	if h.geocoder != nil {
		hs.search = geocode.NewDebouncer(h.geocoder, geocode.DebouncerOptions{
			Search:    h.opts.Search,
			Delay:     h.opts.SearchDebounce,
			Scheduler: h.opts.Scheduler,
			Logger:    log,
			OnResults: func(res geocode.Results) {
				log.Debug().Str("query", res.Query).Int("results", len(res.Places)).Msg("search results")
			},
		})
	}

	wait, cancel := context.WithTimeout(ctx, h.opts.MountWait)
	defer cancel()
	select {
	case <-hs.view.Ready():
	case <-wait.Done():
	}

	if err := h.sessions.add(hs); err != nil {
		hs.close()
		return nil, err
	}
	return hs, nil
}
