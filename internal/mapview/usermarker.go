package mapview

import (
	"html"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
)

// UserMarkerID identifies the user reference marker.
const UserMarkerID = "user-marker"

// Click handles a click on the map surface. Only ctrl-clicks are reported
// to OnDoubleClick; it returns whether the click was consumed.
func (s *Session) Click(ev ClickEvent) (bool, error) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return false, ErrUnmounted
	}
	interactive := s.vp != nil
	cb := s.props.OnDoubleClick
	s.mu.Unlock()

	if !interactive || !ev.Ctrl || !ev.LatLng.Valid() {
		return false, nil
	}
	if cb != nil {
		cb(ev.LatLng)
	}
	return true, nil
}

// syncUserMarkerLocked makes the rendered user marker match the prop:
// replaced when the value changes, removed when cleared.
func (s *Session) syncUserMarkerLocked() {
	want := s.props.UserMarker
	if want != nil && !want.Valid() {
		want = nil
	}
	if geo.PtrEqual(want, s.userMarkerPos) {
		return
	}
	if s.userMarker != nil {
		s.userMarker.Remove()
		s.userMarker, s.userMarkerPos = nil, nil
	}
	if want == nil {
		return
	}
	pos := *want
	s.userMarker = s.vp.AddUserMarker(MarkerSpec{
		ID:        UserMarkerID,
		Position:  pos,
		Icon:      listing.PinIcon(),
		PopupHTML: `<div class="user-marker-popup">` + html.EscapeString(pos.String()) + `</div>`,
	})
	s.userMarkerPos = &pos
}
