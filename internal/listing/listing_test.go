package listing

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"Available":             StatusAvailable,
		"  available ":          StatusAvailable,
		"BOOKED":                StatusBooked,
		"under-construction":    StatusUnderConstruction,
		"Under_Construction":    StatusUnderConstruction,
		"pre booking available": StatusPreBookingAvailable,
		"PRE-BOOKING-AVAILABLE": StatusPreBookingAvailable,
		"":                      StatusUnknown,
		"sold":                  StatusUnknown,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Fatalf("NormalizeStatus(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestStatusColors(t *testing.T) {
	if StatusAvailable.Color() != "#16a34a" {
		t.Fatalf("unexpected available color %s", StatusAvailable.Color())
	}
	if StatusBooked.Color() != "#dc2626" {
		t.Fatalf("unexpected booked color %s", StatusBooked.Color())
	}
	if StatusUnknown.Color() != DefaultColor || Status("").Color() != DefaultColor {
		t.Fatalf("expected unknown statuses to use the default color")
	}
	if len(AllStatuses()) != 4 {
		t.Fatalf("expected 4 known statuses, got %d", len(AllStatuses()))
	}
	if StatusPreBookingAvailable.Slug() != "pre-booking-available" {
		t.Fatalf("unexpected slug %q", StatusPreBookingAvailable.Slug())
	}
}

func TestPropertyUnmarshalShapes(t *testing.T) {
	raw := `[
		{"_id":"p1","title":"Lake view","price":1250000,"latitude":23.81,"longitude":90.41,"availabilityStatus":"Available","address":"Road 5, Gulshan"},
		{"id":42,"location":{"type":"Point","coordinates":["90.50","23.90"],"address":"Banani"},"availabilityStatus":"Booked"},
		{"_id":"p3","latitude":"not-a-number","location":"Uttara"},
		{"_id":"p4","coordinates":{"latitude":"23.7","longitude":"90.3"},"price":"abc","address":null}
	]`
	var props []Property
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(props) != 4 {
		t.Fatalf("expected 4 properties, got %d", len(props))
	}
	if props[0].ID != "p1" || props[1].ID != "42" {
		t.Fatalf("unexpected ids %q %q", props[0].ID, props[1].ID)
	}
	if v, ok := props[0].PriceValue(); !ok || v != 1250000 {
		t.Fatalf("expected numeric price, got %v %v", v, ok)
	}
	if _, ok := props[3].PriceValue(); ok {
		t.Fatalf("expected non-numeric price to be rejected")
	}
	if props[1].Location == nil || props[1].DisplayAddress() != "Banani" {
		t.Fatalf("expected location address, got %+v", props[1].Location)
	}
	if props[2].DisplayAddress() != "Uttara" {
		t.Fatalf("expected string location to become the address, got %q", props[2].DisplayAddress())
	}
	if props[1].Status() != StatusBooked || props[2].Status() != StatusUnknown {
		t.Fatalf("unexpected statuses %q %q", props[1].Status(), props[2].Status())
	}
}

func TestPropertyMarshalRoundTripKeepsEquality(t *testing.T) {
	in := `{"_id":"p2","title":"Duplex","location":{"coordinates":[90.5,23.9]},"availabilityStatus":"Booked"}`
	var p Property
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Property
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if !p.Equal(back) {
		t.Fatalf("expected %s to decode to the same record", b)
	}
}

func TestEqualLists(t *testing.T) {
	a := []Property{{ID: "p1", Latitude: json.RawMessage(`1`)}}
	b := []Property{{ID: "p1", Latitude: json.RawMessage(`1`)}}
	if !EqualLists(a, b) {
		t.Fatalf("expected equal lists")
	}
	b[0].Latitude = json.RawMessage(`2`)
	if EqualLists(a, b) {
		t.Fatalf("expected coordinate change to be detected")
	}
	if EqualLists(a, nil) {
		t.Fatalf("expected length change to be detected")
	}
}

func TestPopupContent(t *testing.T) {
	p := Property{
		ID:                 "p1",
		Title:              `<b>Lake</b> view`,
		Price:              json.RawMessage(`"1250000"`),
		AvailabilityStatus: "available",
		Address:            "Road 5 & 6",
	}
	c := NewPopupContent(p, NewPriceFormatter("৳"))
	if c.Price != "৳1,250,000" {
		t.Fatalf("expected formatted price, got %q", c.Price)
	}
	if c.Status != "Available" || c.Color != "#16a34a" {
		t.Fatalf("unexpected status fields %+v", c)
	}
	html := c.HTML()
	if strings.Contains(html, "<b>") {
		t.Fatalf("expected title to be escaped: %s", html)
	}
	if !strings.Contains(html, "Road 5 &amp; 6") {
		t.Fatalf("expected escaped address: %s", html)
	}
	if !strings.Contains(html, "background-color: #16a34a") {
		t.Fatalf("expected status dot color: %s", html)
	}
}

func TestPopupOmitsMissingFields(t *testing.T) {
	c := NewPopupContent(Property{ID: "p1", Title: "Plot"}, NewPriceFormatter("৳"))
	html := c.HTML()
	if strings.Contains(html, "property-popup__price") || strings.Contains(html, "property-popup__address") {
		t.Fatalf("expected price and address to be omitted: %s", html)
	}
	if c.Status != "Unknown" || c.Color != DefaultColor {
		t.Fatalf("unexpected status fields %+v", c)
	}
}

func TestHouseIcon(t *testing.T) {
	icon := HouseIcon(StatusBooked)
	if !strings.Contains(icon.SVG, "#dc2626") {
		t.Fatalf("expected icon to carry the status color")
	}
	if icon.Size != [2]int{32, 32} || icon.Anchor != [2]int{16, 32} {
		t.Fatalf("unexpected icon geometry %+v", icon)
	}
}
