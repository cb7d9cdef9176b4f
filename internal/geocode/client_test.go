package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"propmap/core-go/internal/upstream"
)

func TestClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("q") != "Gulshan" || q.Get("limit") != "3" || q.Get("countrycodes") != "bd" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "propmap-test" {
			t.Errorf("expected user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"display_name":"Gulshan, Dhaka","lat":"23.7925","lon":"90.4078","importance":0.6},
			{"display_name":"broken","lat":"n/a","lon":"90.1"},
			{"display_name":"numeric","lat":23.5,"lon":90.2}
		]`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop(), ClientOptions{BaseURL: srv.URL + "/", UserAgent: "propmap-test", RPS: 100})
	places, err := c.Search(context.Background(), "  Gulshan ", SearchOptions{Limit: 3, CountryCodes: []string{" BD "}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 usable places, got %+v", places)
	}
	if places[0].DisplayName != "Gulshan, Dhaka" || places[0].Lat != 23.7925 || places[0].Lon != 90.4078 {
		t.Fatalf("unexpected first place %+v", places[0])
	}
	if places[1].Lat != 23.5 {
		t.Fatalf("expected numeric lat to be accepted, got %+v", places[1])
	}
}

func TestClientSearch_emptyQuery(t *testing.T) {
	c := NewClient(zerolog.Nop(), ClientOptions{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Search(context.Background(), "   ", SearchOptions{}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestClientSearch_upstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop(), ClientOptions{BaseURL: srv.URL, RPS: 100})
	_, err := c.Search(context.Background(), "x", SearchOptions{})
	var se *upstream.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
}

func TestSearchOptionsNormalized(t *testing.T) {
	o := SearchOptions{Limit: 500, CountryCodes: []string{"", " BD", "in "}}.normalized()
	if o.Limit != maxLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxLimit, o.Limit)
	}
	if len(o.CountryCodes) != 2 || o.CountryCodes[0] != "bd" || o.CountryCodes[1] != "in" {
		t.Fatalf("unexpected codes %v", o.CountryCodes)
	}
	if (SearchOptions{}).normalized().Limit != DefaultLimit {
		t.Fatalf("expected default limit")
	}
}
