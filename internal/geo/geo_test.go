package geo

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`23.81`, 23.81, true},
		{`"90.50"`, 90.5, true},
		{`" 12 "`, 12, true},
		{`"not-a-number"`, 0, false},
		{`null`, 0, false},
		{``, 0, false},
		{`"NaN"`, 0, false},
		{`"Inf"`, 0, false},
		{`{"a":1}`, 0, false},
		{`[1,2]`, 0, false},
		{`true`, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(json.RawMessage(tc.raw))
		if ok != tc.ok {
			t.Fatalf("ParseNumber(%s): expected ok=%v, got %v", tc.raw, tc.ok, ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseNumber(%s): expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestLatLngValid(t *testing.T) {
	if !(LatLng{Lat: 23.81, Lng: 90.41}).Valid() {
		t.Fatalf("expected dhaka to be valid")
	}
	if (LatLng{Lat: math.NaN(), Lng: 1}).Valid() {
		t.Fatalf("expected NaN lat to be invalid")
	}
	if (LatLng{Lat: 91, Lng: 1}).Valid() {
		t.Fatalf("expected out of range lat to be invalid")
	}
	if (LatLng{Lat: 1, Lng: math.Inf(1)}).Valid() {
		t.Fatalf("expected infinite lng to be invalid")
	}
}

func TestLatLngString(t *testing.T) {
	got := LatLng{Lat: 23.8103, Lng: 90.4125}.String()
	if got != "23.810300, 90.412500" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestBounds(t *testing.T) {
	var b Bounds
	if !b.Empty() {
		t.Fatalf("expected zero bounds to be empty")
	}
	b.Extend(LatLng{Lat: 23.81, Lng: 90.41})
	b.Extend(LatLng{Lat: 23.90, Lng: 90.50})
	b.Extend(LatLng{Lat: 23.70, Lng: 90.45})

	if b.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", b.Len())
	}
	sw, ne := b.SouthWest(), b.NorthEast()
	if sw.Lat != 23.70 || sw.Lng != 90.41 {
		t.Fatalf("unexpected south west %+v", sw)
	}
	if ne.Lat != 23.90 || ne.Lng != 90.50 {
		t.Fatalf("unexpected north east %+v", ne)
	}
	if !b.Contains(LatLng{Lat: 23.81, Lng: 90.41}) {
		t.Fatalf("expected bounds to contain an added point")
	}
}

func TestPtrEqual(t *testing.T) {
	a := &LatLng{Lat: 1, Lng: 2}
	b := &LatLng{Lat: 1, Lng: 2}
	if !PtrEqual(a, b) {
		t.Fatalf("expected value equality")
	}
	if PtrEqual(a, nil) || !PtrEqual(nil, nil) {
		t.Fatalf("unexpected nil handling")
	}
}
