package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestListProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/properties" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[{"_id":"p1","title":"A","latitude":23.8,"longitude":90.4}]}`))
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop(), Options{BaseURL: srv.URL + "/", Token: "secret"})
	props, err := c.ListProperties(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(props) != 1 || props[0].ID != "p1" {
		t.Fatalf("unexpected properties %+v", props)
	}
}

func TestListProperties_notConfigured(t *testing.T) {
	c := NewClient(zerolog.Nop(), Options{})
	if _, err := c.ListProperties(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDecodeProperties(t *testing.T) {
	cases := map[string]int{
		`[{"_id":"a"},{"_id":"b"}]`:           2,
		`{"properties":[{"_id":"a"}]}`:         1,
		`{"data":[]}`:                          0,
		`  [ ]  `:                              0,
	}
	for body, want := range cases {
		got, err := DecodeProperties([]byte(body))
		if err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
		if len(got) != want {
			t.Fatalf("decode %s: expected %d, got %d", body, want, len(got))
		}
	}
	for _, bad := range []string{``, `{"message":"nope"}`, `"x"`, `[{"_id":`} {
		if _, err := DecodeProperties([]byte(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
