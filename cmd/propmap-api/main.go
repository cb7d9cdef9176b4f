package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"propmap/core-go/internal/backend"
	"propmap/core-go/internal/cache"
	"propmap/core-go/internal/db"
	"propmap/core-go/internal/geo"
	"propmap/core-go/internal/geocode"
	"propmap/core-go/internal/httpapi"
	"propmap/core-go/internal/mapview"
	"propmap/core-go/internal/metrics"
	"propmap/core-go/internal/syncworker"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	addr := envOr("HTTP_ADDR", ":8082")
	logLevel := envOr("LOG_LEVEL", "info")
	databaseURL := envOr("DATABASE_URL", "")
	backendURL := envOr("BACKEND_URL", "")

	logger := httpapi.NewLoggerWithFormat(logLevel, envOr("LOG_FORMAT", "json"))
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	if databaseURL != "" {
		p, err := db.Open(ctx, databaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	opts := httpapi.Options{
		Metrics: m,
		Search: geocode.SearchOptions{
			Limit:        envInt(logger, "GEOCODE_LIMIT", geocode.DefaultLimit),
			CountryCodes: splitList(envOr("GEOCODE_COUNTRY_CODES", "")),
		},
		Map:            mapOptions(logger),
		MaxSessions:    envInt(logger, "MAP_MAX_SESSIONS", httpapi.DefaultMaxSessions),
		SessionIdleTTL: envDuration(logger, "MAP_SESSION_IDLE_TTL", httpapi.DefaultSessionIdleTTL),
	}

	var backendClient *backend.Client
	if backendURL != "" {
		backendClient = backend.NewClient(logger, backend.Options{
			BaseURL: backendURL,
			Token:   envOr("BACKEND_TOKEN", ""),
		})
		opts.Backend = backendClient
	}

	var geocoder geocode.Searcher = geocode.NewClient(logger, geocode.ClientOptions{
		BaseURL: envOr("GEOCODE_URL", geocode.DefaultBaseURL),
		RPS:     envFloat(logger, "GEOCODE_RPS", 1),
	})
	if redisAddr := envOr("REDIS_ADDR", ""); redisAddr != "" {
		rc := cache.New(redisAddr, envOr("REDIS_PASSWORD", ""), envInt(logger, "REDIS_DB", 0))
		defer rc.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Str("addr", redisAddr).Msg("redis unavailable; geocode cache disabled")
		} else {
			geocoder = geocode.NewCached(geocoder, rc, envDuration(logger, "GEOCODE_CACHE_TTL", geocode.DefaultCacheTTL), logger, m)
		}
		cancel()
	}
	opts.Geocoder = geocoder

	if pool != nil && backendClient != nil {
		worker := syncworker.New(logger, pool.Queries(), backendClient, syncworker.Options{
			Interval: envDuration(logger, "SYNC_INTERVAL", 5*time.Minute),
			Prune:    envBool(logger, "SYNC_PRUNE", false),
		}, m)
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, pool, opts)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("propmap-api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	h.Close()
	logger.Info().Msg("shutdown complete")
}

func mapOptions(logger zerolog.Logger) mapview.Options {
	o := mapview.Options{
		DefaultZoom:    envFloat(logger, "MAP_DEFAULT_ZOOM", mapview.DefaultZoom),
		CurrencySymbol: envOr("CURRENCY_SYMBOL", mapview.DefaultCurrencySymbol),
		Tiles: mapview.TileLayer{
			URLTemplate: envOr("TILE_URL", mapview.DefaultTiles.URLTemplate),
			Attribution: envOr("TILE_ATTRIBUTION", mapview.DefaultTiles.Attribution),
			MaxZoom:     mapview.DefaultTiles.MaxZoom,
		},
	}
	if raw := envOr("MAP_DEFAULT_CENTER", ""); raw != "" {
		c, ok := parseCenter(raw)
		if !ok {
			logger.Warn().Str("value", raw).Msg("invalid MAP_DEFAULT_CENTER; using default")
		} else {
			o.DefaultCenter = &c
		}
	}
	return o
}

func parseCenter(raw string) (geo.LatLng, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.LatLng{}, false
	}
	lat, ok := geo.ParseNumberString(parts[0])
	if !ok {
		return geo.LatLng{}, false
	}
	lng, ok := geo.ParseNumberString(parts[1])
	if !ok {
		return geo.LatLng{}, false
	}
	c := geo.LatLng{Lat: lat, Lng: lng}
	return c, c.Valid()
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(logger zerolog.Logger, key string, fallback int) int {
	raw := envOr(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", raw).Msg("invalid integer; using default")
		return fallback
	}
	return n
}

func envFloat(logger zerolog.Logger, key string, fallback float64) float64 {
	raw := envOr(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", raw).Msg("invalid number; using default")
		return fallback
	}
	return f
}

func envBool(logger zerolog.Logger, key string, fallback bool) bool {
	raw := envOr(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", raw).Msg("invalid boolean; using default")
		return fallback
	}
	return b
}

func envDuration(logger zerolog.Logger, key string, fallback time.Duration) time.Duration {
	raw := envOr(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", raw).Msg("invalid duration; using default")
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
