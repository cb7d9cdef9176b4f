// Package syncworker mirrors the backend's property list into postgres so
// the map can be served from the local store.
package syncworker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog"

	"propmap/core-go/internal/coords"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/metrics"
	"propmap/core-go/internal/sqlcgen"
)

// GeohashPrecision is the stored cell precision (about 150m).
const GeohashPrecision = 7

// Queries is the minimal DB interface the sync worker needs.
//
// *sqlcgen.Queries satisfies this.
type Queries interface {
	UpsertMapProperty(ctx context.Context, arg sqlcgen.UpsertMapPropertyParams) (int64, error)
	TouchMapProperties(ctx context.Context, ids []string, at time.Time) error
	DeleteStaleMapProperties(ctx context.Context, before time.Time) (int64, error)
}

// Source lists the backend's properties. *backend.Client satisfies this.
type Source interface {
	ListProperties(ctx context.Context) ([]listing.Property, error)
}

type Worker struct {
	log        zerolog.Logger
	q          Queries
	src        Source
	interval   time.Duration
	retryBase  time.Duration
	maxRuntime time.Duration
	prune      bool
	chain      coords.Chain
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Options struct {
	Interval   time.Duration
	RetryBase  time.Duration
	MaxRuntime time.Duration
	// Prune deletes rows the backend no longer lists.
	Prune bool
}

func New(log zerolog.Logger, q Queries, src Source, opts Options, m *metrics.Metrics) *Worker {
	iv := opts.Interval
	if iv <= 0 {
		iv = 5 * time.Minute
	}
	rb := opts.RetryBase
	if rb <= 0 {
		rb = 5 * time.Second
	}
	mr := opts.MaxRuntime
	if mr <= 0 {
		mr = 2 * time.Minute
	}
	return &Worker{
		log:        log.With().Str("component", "syncworker").Logger(),
		q:          q,
		src:        src,
		interval:   iv,
		retryBase:  rb,
		maxRuntime: mr,
		prune:      opts.Prune,
		chain:      coords.DefaultChain(),
		metrics:    m,
		now:        time.Now,
	}
}

// Stats summarizes one sync run.
type Stats struct {
	Fetched int
	Changed int
	Skipped int
	Pruned  int64
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.q == nil || w.src == nil {
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		stats, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			w.log.Warn().Err(err).Int("failures", consecutiveFailures).Msg("property sync failed")
			timer.Reset(backoffDuration(w.retryBase, consecutiveFailures, w.interval))
			continue
		}
		consecutiveFailures = 0
		w.log.Info().
			Int("fetched", stats.Fetched).
			Int("changed", stats.Changed).
			Int("skipped", stats.Skipped).
			Int64("pruned", stats.Pruned).
			Msg("property sync complete")
		timer.Reset(w.interval)
	}
}

// backoffDuration is base * 2^failures, capped at ceiling.
func backoffDuration(base time.Duration, failures int, ceiling time.Duration) time.Duration {
	if base <= 0 {
		base = 5 * time.Second
	}
	if failures <= 0 {
		return base
	}
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

// RunOnce pulls the backend list and upserts every record with an id.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	start := w.now()
	w.metrics.IncSyncRun()
	defer func() { w.metrics.ObserveSyncRunDuration(w.now().Sub(start)) }()

	ctx, cancel := context.WithTimeout(ctx, w.maxRuntime)
	defer cancel()

	props, err := w.src.ListProperties(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list backend properties: %w", err)
	}

	stats := Stats{Fetched: len(props)}
	seen := make([]string, 0, len(props))
	for _, p := range props {
		arg, err := w.params(p, start)
		if err != nil {
			stats.Skipped++
			continue
		}
		n, err := w.q.UpsertMapProperty(ctx, arg)
		if err != nil {
			return stats, fmt.Errorf("upsert property %s: %w", p.ID, err)
		}
		stats.Changed += int(n)
		seen = append(seen, arg.ID)
	}

	// Nothing is pruned when the backend returned no usable records.
	if len(seen) > 0 {
		if err := w.q.TouchMapProperties(ctx, seen, start); err != nil {
			return stats, fmt.Errorf("touch properties: %w", err)
		}
		if w.prune {
			n, err := w.q.DeleteStaleMapProperties(ctx, start)
			if err != nil {
				return stats, fmt.Errorf("prune properties: %w", err)
			}
			stats.Pruned = n
		}
	}
	return stats, nil
}

var errNoID = errors.New("property has no id")

func (w *Worker) params(p listing.Property, at time.Time) (sqlcgen.UpsertMapPropertyParams, error) {
	if p.ID == "" {
		return sqlcgen.UpsertMapPropertyParams{}, errNoID
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return sqlcgen.UpsertMapPropertyParams{}, err
	}
	sum := sha256.Sum256(raw)

	arg := sqlcgen.UpsertMapPropertyParams{
		ID:                 p.ID,
		Title:              p.Title,
		AvailabilityStatus: p.Status().Label(),
		ContentHash:        hex.EncodeToString(sum[:]),
		Raw:                raw,
		SyncedAt:           at,
	}
	if v, ok := p.PriceValue(); ok {
		arg.Price = &v
	}
	if a := p.DisplayAddress(); a != "" {
		arg.Address = &a
	}
	if ll, _, ok := w.chain.Resolve(p); ok {
		lat, lng := ll.Lat, ll.Lng
		cell := geohash.EncodeWithPrecision(lat, lng, GeohashPrecision)
		arg.Latitude, arg.Longitude, arg.Geohash = &lat, &lng, &cell
	}
	return arg, nil
}
