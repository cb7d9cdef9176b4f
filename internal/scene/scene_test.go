package scene

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/mapview"
)

func newViewport(t *testing.T) *Viewport {
	t.Helper()
	e := New()
	vp, err := e.NewViewport(mapview.ViewportOptions{Center: geo.LatLng{Lat: 23.8, Lng: 90.4}, Zoom: 12})
	if err != nil {
		t.Fatalf("new viewport: %v", err)
	}
	return vp.(*Viewport)
}

func TestFailingLoader(t *testing.T) {
	_, err := FailingLoader(nil)(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Loader()(ctx); err == nil {
		t.Fatalf("expected cancelled context to fail loading")
	}
}

func TestLayerGroupRemoveClearsMarkers(t *testing.T) {
	vp := newViewport(t)
	g := vp.NewLayerGroup()
	m := g.AddMarker(mapview.MarkerSpec{ID: "p1", Position: geo.LatLng{Lat: 1, Lng: 2}})
	m.OpenPopup()
	if vp.OpenPopup() != "p1" || len(vp.Markers()) != 1 {
		t.Fatalf("expected a live marker with open popup")
	}
	g.Remove()
	g.Remove()
	if len(vp.Markers()) != 0 || vp.OpenPopup() != "" {
		t.Fatalf("expected group removal to clear markers and popup")
	}
	if vp.Count(OpRemoveLayer) != 1 {
		t.Fatalf("expected a single removal op, got %d", vp.Count(OpRemoveLayer))
	}
}

func TestFitBoundsZoom(t *testing.T) {
	vp := newViewport(t)
	var b geo.Bounds
	b.Extend(geo.LatLng{Lat: 23.81, Lng: 90.41})
	b.Extend(geo.LatLng{Lat: 23.90, Lng: 90.50})
	vp.FitBounds(b, 50)
	if z := vp.Zoom(); z < 10 || z > 15 {
		t.Fatalf("expected a city-level zoom, got %v", z)
	}

	var single geo.Bounds
	single.Extend(geo.LatLng{Lat: 1, Lng: 1})
	vp.FitBounds(single, 50)
	if vp.Zoom() != maxZoom {
		t.Fatalf("expected max zoom for a single point, got %v", vp.Zoom())
	}

	vp.FitBounds(geo.Bounds{}, 50)
	if vp.Count(OpFitBounds) != 2 {
		t.Fatalf("expected empty bounds to be ignored")
	}
}

func TestSnapshotGeoJSON(t *testing.T) {
	vp := newViewport(t)
	vp.AddTileLayer(mapview.DefaultTiles)
	g := vp.NewLayerGroup()
	g.AddMarker(mapview.MarkerSpec{
		ID:       "p1",
		Position: geo.LatLng{Lat: 23.81, Lng: 90.41},
		Icon:     listing.HouseIcon(listing.StatusAvailable),
		Status:   listing.StatusAvailable,
	})
	vp.AddUserMarker(mapview.MarkerSpec{ID: mapview.UserMarkerID, Position: geo.LatLng{Lat: 23.7, Lng: 90.3}})

	snap := vp.Snapshot()
	if len(snap.Markers.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(snap.Markers.Features))
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	if !strings.Contains(body, `"coordinates":[90.41,23.81]`) {
		t.Fatalf("expected GeoJSON lng,lat order: %s", body)
	}
	if !strings.Contains(body, `"color":"#16a34a"`) || !strings.Contains(body, `"kind":"user"`) {
		t.Fatalf("expected marker properties in snapshot: %s", body)
	}
	if !strings.Contains(body, `"bbox":[90.41,23.81,90.41,23.81]`) {
		t.Fatalf("expected bbox over property markers: %s", body)
	}
}

func TestViewportClickDispatch(t *testing.T) {
	vp := newViewport(t)
	var got []mapview.ClickEvent
	vp.OnClick(func(ev mapview.ClickEvent) { got = append(got, ev) })
	vp.Click(mapview.ClickEvent{LatLng: geo.LatLng{Lat: 1, Lng: 2}, Ctrl: true})
	if len(got) != 1 || !got[0].Ctrl {
		t.Fatalf("expected click dispatched, got %+v", got)
	}
}
