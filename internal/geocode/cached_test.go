package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSearcher struct {
	search func(ctx context.Context, query string, opts SearchOptions) ([]Place, error)
	calls  int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts SearchOptions) ([]Place, error) {
	f.calls++
	return f.search(ctx, query, opts)
}

type fakeStore struct {
	data map[string]string
	get  func(key string) (string, bool, error)
	set  func(key, val string, ttl time.Duration) error
}

func newFakeStore() *fakeStore {
	s := &fakeStore{data: map[string]string{}}
	s.get = func(key string) (string, bool, error) {
		v, ok := s.data[key]
		return v, ok, nil
	}
	s.set = func(key, val string, ttl time.Duration) error {
		s.data[key] = val
		return nil
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) { return s.get(key) }

func (s *fakeStore) Set(_ context.Context, key, val string, ttl time.Duration) error {
	return s.set(key, val, ttl)
}

func TestCached_hitAvoidsUpstream(t *testing.T) {
	next := &fakeSearcher{search: func(context.Context, string, SearchOptions) ([]Place, error) {
		return []Place{{DisplayName: "Banani", Lat: 23.79, Lon: 90.40}}, nil
	}}
	store := newFakeStore()
	c := NewCached(next, store, time.Hour, zerolog.Nop(), nil)

	for _, q := range []string{"Banani", "  banani ", "BANANI"} {
		places, err := c.Search(context.Background(), q, SearchOptions{})
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(places) != 1 || places[0].DisplayName != "Banani" {
			t.Fatalf("unexpected places %+v", places)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls)
	}
}

func TestCached_storeFailureFallsThrough(t *testing.T) {
	next := &fakeSearcher{search: func(context.Context, string, SearchOptions) ([]Place, error) {
		return []Place{{DisplayName: "x", Lat: 1, Lon: 1}}, nil
	}}
	store := newFakeStore()
	store.get = func(string) (string, bool, error) { return "", false, errors.New("redis down") }
	store.set = func(string, string, time.Duration) error { return errors.New("redis down") }

	c := NewCached(next, store, 0, zerolog.Nop(), nil)
	places, err := c.Search(context.Background(), "x", SearchOptions{})
	if err != nil || len(places) != 1 {
		t.Fatalf("expected upstream result, got %v %v", places, err)
	}
}

func TestCached_errorsAreNotCached(t *testing.T) {
	next := &fakeSearcher{search: func(context.Context, string, SearchOptions) ([]Place, error) {
		return nil, errors.New("boom")
	}}
	store := newFakeStore()
	c := NewCached(next, store, time.Hour, zerolog.Nop(), nil)
	if _, err := c.Search(context.Background(), "x", SearchOptions{}); err == nil {
		t.Fatalf("expected error")
	}
	if len(store.data) != 0 {
		t.Fatalf("expected nothing cached, got %v", store.data)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("  Dhaka   University ", SearchOptions{CountryCodes: []string{"BD"}})
	b := CacheKey("dhaka university", SearchOptions{Limit: DefaultLimit, CountryCodes: []string{"bd"}})
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
	if a == CacheKey("dhaka university", SearchOptions{Limit: 2}) {
		t.Fatalf("expected options to be part of the key")
	}
}
