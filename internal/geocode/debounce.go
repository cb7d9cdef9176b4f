package geocode

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"propmap/core-go/internal/clock"
)

const (
	DefaultDebounce      = 300 * time.Millisecond
	DefaultSearchTimeout = 10 * time.Second
)

// Results is the outcome of the latest applied search.
type Results struct {
	Query      string  `json:"query"`
	Places     []Place `json:"places"`
	Generation uint64  `json:"generation"`
	Pending    bool    `json:"pending"`
}

type DebouncerOptions struct {
	Search    SearchOptions
	Delay     time.Duration
	Timeout   time.Duration
	Scheduler clock.Scheduler
	Logger    zerolog.Logger
	// OnResults is called, outside the debouncer lock, whenever results are
	// applied.
	OnResults func(Results)
}

// Debouncer turns type-ahead input into at most one search per quiet
// period. Every submitted query takes a new generation; a response is only
// applied when its generation is still the latest and the debouncer is open.
// In-flight requests are not cancelled, only their results discarded.
type Debouncer struct {
	searcher Searcher
	opts     DebouncerOptions

	mu      sync.Mutex
	gen     uint64
	timer   clock.Timer
	closed  bool
	results Results

	inflight sync.WaitGroup
}

func NewDebouncer(s Searcher, opts DebouncerOptions) *Debouncer {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSearchTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real{}
	}
	return &Debouncer{searcher: s, opts: opts, results: Results{Places: []Place{}}}
}

// Submit schedules a search for query and returns its generation. A blank
// query clears the results immediately.
func (d *Debouncer) Submit(query string) uint64 {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	if d.closed {
		gen := d.gen
		d.mu.Unlock()
		return gen
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if query == "" {
		d.results = Results{Query: "", Places: []Place{}, Generation: gen}
		res := d.results
		cb := d.opts.OnResults
		d.mu.Unlock()
		if cb != nil {
			cb(res)
		}
		return gen
	}
	d.results.Pending = true
	d.timer = d.opts.Scheduler.AfterFunc(d.opts.Delay, func() { d.fire(gen, query) })
	d.mu.Unlock()
	return gen
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.inflight.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		defer cancel()
		places, err := d.searcher.Search(ctx, query, d.opts.Search)
		d.apply(gen, query, places, err)
	}()
}

func (d *Debouncer) apply(gen uint64, query string, places []Place, err error) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		d.opts.Logger.Debug().Uint64("generation", gen).Str("query", query).Msg("stale geocode result discarded")
		return
	}
	if err != nil {
		d.opts.Logger.Debug().Err(err).Str("query", query).Msg("geocode search failed")
		places = nil
	}
	if places == nil {
		places = []Place{}
	}
	d.results = Results{Query: query, Places: places, Generation: gen}
	res := d.results
	cb := d.opts.OnResults
	d.mu.Unlock()

	if cb != nil {
		cb(res)
	}
}

// Results returns the latest applied results.
func (d *Debouncer) Results() Results {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.results
	r.Places = append([]Place{}, r.Places...)
	return r
}

// Generation is the latest submitted generation.
func (d *Debouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

// Close stops the pending timer; results of requests still in flight are
// dropped.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Wait blocks until every started request has returned.
func (d *Debouncer) Wait() {
	d.inflight.Wait()
}
