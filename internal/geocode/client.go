// Package geocode resolves free-text place queries to coordinates through a
// Nominatim-compatible service, with an optional cache and a debounced
// searcher for type-ahead input.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/upstream"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultLimit     = 5
	DefaultUserAgent = "propmap-core-go/1.0"
	maxLimit         = 50
)

var ErrEmptyQuery = errors.New("empty geocode query")

// Place is one geocoding match.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

func (p Place) LatLng() geo.LatLng {
	return geo.LatLng{Lat: p.Lat, Lng: p.Lon}
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Limit        int
	CountryCodes []string
}

func (o SearchOptions) normalized() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	var codes []string
	for _, c := range o.CountryCodes {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			codes = append(codes, c)
		}
	}
	o.CountryCodes = codes
	return o
}

// Searcher resolves a query to places.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Place, error)
}

type ClientOptions struct {
	BaseURL   string
	UserAgent string
	// RPS caps upstream requests per second; zero means 1.
	RPS     float64
	Timeout time.Duration
}

// Client talks to the /search endpoint.
type Client struct {
	baseURL   string
	userAgent string
	http      *retryablehttp.Client
	limiter   *rate.Limiter
}

func NewClient(log zerolog.Logger, opts ClientOptions) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:   base,
		userAgent: ua,
		http:      upstream.NewClient(log.With().Str("upstream", "geocode").Logger(), opts.Timeout),
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type placeWire struct {
	DisplayName string          `json:"display_name"`
	Lat         json.RawMessage `json:"lat"`
	Lon         json.RawMessage `json:"lon"`
}

// Search queries the service. Matches without a usable coordinate are
// dropped.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	opts = opts.normalized()

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(opts.Limit))
	if len(opts.CountryCodes) > 0 {
		q.Set("countrycodes", strings.Join(opts.CountryCodes, ","))
	}
	u := fmt.Sprintf("%s/search?%s", c.baseURL, q.Encode())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := upstream.CheckStatus("geocode", resp); err != nil {
		return nil, err
	}
	body, err := upstream.ReadAllLimit(resp.Body, upstream.MaxBody)
	if err != nil {
		return nil, err
	}

	var wire []placeWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	out := make([]Place, 0, len(wire))
	for _, w := range wire {
		lat, ok1 := geo.ParseNumber(w.Lat)
		lon, ok2 := geo.ParseNumber(w.Lon)
		if !ok1 || !ok2 {
			continue
		}
		p := Place{DisplayName: w.DisplayName, Lat: lat, Lon: lon}
		if !p.LatLng().Valid() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
