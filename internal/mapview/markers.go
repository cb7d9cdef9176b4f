package mapview

import (
	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
)

// renderMarkersLocked replaces the marker layer with one built from the
// current property list. Properties without a resolvable coordinate are
// skipped.
func (s *Session) renderMarkersLocked() {
	if s.layer != nil {
		s.layer.Remove()
	}
	s.layer = s.vp.NewLayerGroup()
	s.markers = make(map[string]Marker, len(s.props.Properties))
	s.bounds = geo.Bounds{}

	skipped := 0
	for _, p := range s.props.Properties {
		pos, _, ok := s.opts.Coords.Resolve(p)
		if !ok {
			skipped++
			continue
		}
		id := p.ID
		status := p.Status()
		s.markers[id] = s.layer.AddMarker(MarkerSpec{
			ID:        id,
			Position:  pos,
			Icon:      listing.HouseIcon(status),
			PopupHTML: listing.NewPopupContent(p, s.prices).HTML(),
			Status:    status,
			OnClick:   func() { _ = s.ClickMarker(id) },
			OnHover:   func() { _ = s.HoverMarker(id) },
		})
		s.bounds.Extend(pos)
	}

	s.rendered = append([]listing.Property(nil), s.props.Properties...)
	s.built = true

	n := s.bounds.Len()
	s.opts.Metrics.ObserveMarkerRebuild(n)
	s.log.Debug().Int("markers", n).Int("skipped", skipped).Msg("marker layer rebuilt")
}
