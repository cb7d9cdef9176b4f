package geocode

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"propmap/core-go/internal/cache"
	"propmap/core-go/internal/metrics"
)

const DefaultCacheTTL = 24 * time.Hour

// Cached serves repeated queries from a cache.Store. Cache failures are
// logged and fall through to the wrapped searcher.
type Cached struct {
	next    Searcher
	store   cache.Store
	ttl     time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewCached(next Searcher, store cache.Store, ttl time.Duration, log zerolog.Logger, m *metrics.Metrics) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, store: store, ttl: ttl, log: log, metrics: m}
}

func (c *Cached) Search(ctx context.Context, query string, opts SearchOptions) ([]Place, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	key := CacheKey(query, opts)

	if c.store != nil {
		raw, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Msg("geocode cache read failed")
		case ok:
			var places []Place
			if err := json.Unmarshal([]byte(raw), &places); err == nil {
				c.metrics.IncGeocode("hit")
				return places, nil
			}
		}
	}

	places, err := c.next.Search(ctx, query, opts)
	if err != nil {
		c.metrics.IncGeocode("error")
		return nil, err
	}
	if len(places) == 0 {
		c.metrics.IncGeocode("empty")
	} else {
		c.metrics.IncGeocode("miss")
	}
	if c.store != nil {
		if b, err := json.Marshal(places); err == nil {
			if err := c.store.Set(ctx, key, string(b), c.ttl); err != nil {
				c.log.Warn().Err(err).Msg("geocode cache write failed")
			}
		}
	}
	return places, nil
}

// CacheKey normalizes the query (unicode NFC, case folded, collapsed
// whitespace) together with the options.
func CacheKey(query string, opts SearchOptions) string {
	opts = opts.normalized()
	q := strings.Join(strings.Fields(cases.Fold().String(norm.NFC.String(query))), " ")
	return "geocode:" + q + "|" + strconv.Itoa(opts.Limit) + "|" + strings.Join(opts.CountryCodes, ",")
}
