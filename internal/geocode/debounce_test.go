package geocode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"propmap/core-go/internal/clock"
)

// gatedSearcher blocks each query until its gate is released.
type gatedSearcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	queries []string
	fail    map[string]bool
}

func newGatedSearcher() *gatedSearcher {
	return &gatedSearcher{gates: map[string]chan struct{}{}, fail: map[string]bool{}}
}

func (g *gatedSearcher) gate(q string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[q]
	if !ok {
		ch = make(chan struct{})
		g.gates[q] = ch
	}
	return ch
}

func (g *gatedSearcher) Search(ctx context.Context, query string, _ SearchOptions) ([]Place, error) {
	g.mu.Lock()
	g.queries = append(g.queries, query)
	fail := g.fail[query]
	g.mu.Unlock()
	<-g.gate(query)
	if fail {
		return nil, errors.New("upstream down")
	}
	return []Place{{DisplayName: query, Lat: 1, Lon: 2}}, nil
}

func (g *gatedSearcher) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.queries...)
}

func TestDebouncer_coalescesTyping(t *testing.T) {
	s := newGatedSearcher()
	clk := clock.NewManual()
	d := NewDebouncer(s, DebouncerOptions{Scheduler: clk})

	for _, q := range []string{"d", "dh", "dha", "dhak", "dhaka"} {
		d.Submit(q)
		clk.Advance(100 * time.Millisecond)
	}
	close(s.gate("dhaka"))
	clk.Advance(DefaultDebounce)
	d.Wait()

	if got := s.seen(); len(got) != 1 || got[0] != "dhaka" {
		t.Fatalf("expected a single search for the final query, got %v", got)
	}
	res := d.Results()
	if res.Query != "dhaka" || len(res.Places) != 1 || res.Pending {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestDebouncer_staleResponseDiscarded(t *testing.T) {
	s := newGatedSearcher()
	clk := clock.NewManual()
	applied := make(chan Results, 4)
	d := NewDebouncer(s, DebouncerOptions{Scheduler: clk, OnResults: func(r Results) { applied <- r }})

	d.Submit("old")
	clk.Advance(DefaultDebounce)
	newGen := d.Submit("new")
	clk.Advance(DefaultDebounce)

	close(s.gate("new"))
	select {
	case r := <-applied:
		if r.Query != "new" || r.Generation != newGen {
			t.Fatalf("expected new results first, got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("new results never applied")
	}

	close(s.gate("old"))
	d.Wait()
	if res := d.Results(); res.Query != "new" {
		t.Fatalf("expected stale response to be discarded, got %+v", res)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no further result callbacks")
	}
}

func TestDebouncer_failureClearsResults(t *testing.T) {
	s := newGatedSearcher()
	s.fail["bad"] = true
	clk := clock.NewManual()
	d := NewDebouncer(s, DebouncerOptions{Scheduler: clk})

	close(s.gate("good"))
	d.Submit("good")
	clk.Advance(DefaultDebounce)
	d.Wait()
	if len(d.Results().Places) != 1 {
		t.Fatalf("expected results for good query")
	}

	close(s.gate("bad"))
	d.Submit("bad")
	clk.Advance(DefaultDebounce)
	d.Wait()
	res := d.Results()
	if res.Query != "bad" || len(res.Places) != 0 {
		t.Fatalf("expected cleared results after failure, got %+v", res)
	}
}

func TestDebouncer_blankQueryClears(t *testing.T) {
	s := newGatedSearcher()
	clk := clock.NewManual()
	d := NewDebouncer(s, DebouncerOptions{Scheduler: clk})

	close(s.gate("x"))
	d.Submit("x")
	clk.Advance(DefaultDebounce)
	d.Wait()
	d.Submit("   ")
	if res := d.Results(); len(res.Places) != 0 || res.Query != "" {
		t.Fatalf("expected blank query to clear results, got %+v", res)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no search scheduled for a blank query")
	}
}

func TestDebouncer_closeDiscardsInFlight(t *testing.T) {
	s := newGatedSearcher()
	clk := clock.NewManual()
	called := false
	d := NewDebouncer(s, DebouncerOptions{Scheduler: clk, OnResults: func(Results) { called = true }})

	d.Submit("late")
	clk.Advance(DefaultDebounce)
	d.Close()
	close(s.gate("late"))
	d.Wait()

	if called {
		t.Fatalf("expected results after close to be discarded")
	}
	if res := d.Results(); res.Query != "" {
		t.Fatalf("expected no applied results, got %+v", res)
	}

	d.Submit("ignored")
	if clk.Pending() != 0 {
		t.Fatalf("expected submit after close to be a no-op")
	}
}

func TestDebouncer_closeCancelsPendingTimer(t *testing.T) {
	s := newGatedSearcher()
	clk := clock.NewManual()
	d := NewDebouncer(s, DebouncerOptions{Scheduler: clk})
	d.Submit("x")
	d.Close()
	clk.Advance(time.Second)
	if len(s.seen()) != 0 {
		t.Fatalf("expected no search after close")
	}
}
