package mapview

// cameraPolicy moves the camera and reports true, or declines.
type cameraPolicy struct {
	name  string
	apply func(*Session) bool
}

// Evaluated in order; the first policy that moves the camera ends the pass.
// When none applies the camera is left where it is.
var cameraPolicies = []cameraPolicy{
	{name: "focus", apply: (*Session).applyFocusLocked},
	{name: "fit", apply: (*Session).applyAutoFitLocked},
}

func (s *Session) applyCameraPoliciesLocked() {
	for _, pol := range cameraPolicies {
		if pol.apply(s) {
			s.log.Debug().Str("policy", pol.name).Msg("camera moved")
			return
		}
	}
}

func (s *Session) focusPendingLocked() bool {
	return s.props.FocusedPropertyID != "" && !s.focusApplied
}

// applyFocusLocked flies to the focused property once per mount.
func (s *Session) applyFocusLocked() bool {
	if !s.focusPendingLocked() {
		return false
	}
	m, ok := s.markers[s.props.FocusedPropertyID]
	if !ok {
		return false
	}
	pos := m.Position()
	s.vp.FlyTo(pos, s.opts.FocusZoom)
	m.OpenPopup()
	s.focusApplied = true
	s.lastCenter = &pos
	return true
}

// focusHeldLocked reports whether an applied focus still owns the camera.
// Clearing the focused id releases it.
func (s *Session) focusHeldLocked() bool {
	return s.props.FocusedPropertyID != "" && s.focusApplied
}

// applyAutoFitLocked fits all markers when no center, user marker or focus
// places the camera.
func (s *Session) applyAutoFitLocked() bool {
	p := s.props
	if p.Center != nil || p.UserMarker != nil {
		return false
	}
	if s.bounds.Empty() || s.focusPendingLocked() || s.focusHeldLocked() {
		return false
	}
	s.vp.FitBounds(s.bounds, s.opts.FitPaddingPx)
	return true
}

// applySelectionLocked starts the two-stage animation when the selected
// property changed and has a marker. A selection without a marker stays
// pending until one is rendered.
func (s *Session) applySelectionLocked() {
	id := s.props.SelectedPropertyID
	if id == "" {
		s.appliedSelection = ""
		return
	}
	if id == s.appliedSelection {
		return
	}
	if _, ok := s.markers[id]; !ok {
		return
	}
	s.appliedSelection = id

	s.selectionGen++
	gen := s.selectionGen
	if s.selectionTimer != nil {
		s.selectionTimer.Stop()
	}
	s.vp.SetView(s.vp.Center(), clampZoom(s.vp.Zoom()-1, MinSelectionZoom, MaxSelectionZoom))
	s.selectionTimer = s.opts.Scheduler.AfterFunc(s.opts.SelectionDelay, func() {
		s.finishSelection(id, gen)
	})
}

func (s *Session) finishSelection(id string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || s.vp == nil || gen != s.selectionGen {
		return
	}
	s.selectionTimer = nil
	m, ok := s.markers[id]
	if !ok {
		return
	}
	s.vp.FlyTo(m.Position(), s.opts.FocusZoom)
	m.OpenPopup()
}

// applyCenterLocked recenters when the center prop changed and differs by
// value from the last applied center. An unchanged prop never pulls the
// camera back from a focus or selection.
func (s *Session) applyCenterLocked(changed bool) {
	c := s.props.Center
	if !changed || c == nil || !c.Valid() {
		return
	}
	if s.lastCenter != nil && s.lastCenter.Equal(*c) {
		return
	}
	zoom := s.vp.Zoom()
	if zoom <= 0 {
		zoom = s.opts.DefaultZoom
	}
	s.vp.SetView(*c, zoom)
	s.lastCenter = copyLatLng(c)
}
