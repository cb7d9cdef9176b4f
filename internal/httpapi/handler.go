package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"propmap/core-go/internal/clock"
	"propmap/core-go/internal/db"
	"propmap/core-go/internal/geocode"
	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/mapview"
	"propmap/core-go/internal/metrics"
	"propmap/core-go/internal/sqlcgen"
)

const (
	// DefaultGeocodeRateLimit is the per-IP request budget per minute for
	// the geocoding routes.
	DefaultGeocodeRateLimit = 60
	DefaultMaxSessions      = 200
	DefaultSessionIdleTTL   = 30 * time.Minute
)

// PropertyQueries is the store surface the handler reads from.
type PropertyQueries interface {
	ListMapProperties(ctx context.Context, arg sqlcgen.ListMapPropertiesParams) ([]sqlcgen.MapProperty, error)
	GetMapProperty(ctx context.Context, id string) (sqlcgen.MapProperty, error)
}

// PropertySource is the live backend used when no store is configured.
type PropertySource interface {
	ListProperties(ctx context.Context) ([]listing.Property, error)
}

type Options struct {
	Backend  PropertySource
	Geocoder geocode.Searcher
	Search   geocode.SearchOptions
	Metrics  *metrics.Metrics

	// Map is the base configuration for every mounted session.
	Map mapview.Options
	// Scheduler drives session timers and search debouncing.
	Scheduler        clock.Scheduler
	SearchDebounce   time.Duration
	GeocodeRateLimit int
	// MountWait bounds how long session creation waits for the engine.
	MountWait time.Duration
	// MaxSessions caps mounted sessions; negative disables the cap.
	MaxSessions int
	// SessionIdleTTL unmounts sessions not touched for this long; negative
	// disables expiry.
	SessionIdleTTL time.Duration
}

type Handler struct {
	log      zerolog.Logger
	pool     *db.Pool
	queries  PropertyQueries
	backend  PropertySource
	geocoder geocode.Searcher
	metrics  *metrics.Metrics
	opts     Options
	sessions *sessionStore
}

func NewHandler(log zerolog.Logger, pool *db.Pool, opts Options) *Handler {
	var q PropertyQueries
	if pool != nil {
		q = pool.Queries()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real{}
	}
	if opts.GeocodeRateLimit <= 0 {
		opts.GeocodeRateLimit = DefaultGeocodeRateLimit
	}
	if opts.MountWait <= 0 {
		opts.MountWait = 2 * time.Second
	}
	if opts.MaxSessions == 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.SessionIdleTTL == 0 {
		opts.SessionIdleTTL = DefaultSessionIdleTTL
	}
	opts.Map.Scheduler = opts.Scheduler
	opts.Map.Logger = log
	opts.Map.Metrics = opts.Metrics
	if opts.Map.Styles == nil {
		opts.Map.Styles = mapview.NewStyleRegistry()
	}
	return &Handler{
		log:      log,
		pool:     pool,
		queries:  q,
		backend:  opts.Backend,
		geocoder: opts.Geocoder,
		metrics:  opts.Metrics,
		opts:     opts,
		sessions: newSessionStore(log, opts.Scheduler, opts.MaxSessions, opts.SessionIdleTTL, opts.Metrics),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Handle("/metrics", h.metrics.Handler())

	limit := httprate.LimitByIP(h.opts.GeocodeRateLimit, time.Minute)

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Get("/properties", h.handleListProperties)
			r.Get("/properties/{id}", h.handleGetProperty)
			r.With(limit).Get("/geocode", h.handleGeocode)

			r.Route("/map/sessions", func(r chi.Router) {
				r.Get("/", h.handleListSessions)
				r.Post("/", h.handleCreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetSession)
					r.Delete("/", h.handleDeleteSession)
					r.Put("/props", h.handlePutProps)
					r.Post("/select", h.handleSelect)
					r.Post("/click", h.handleMapClick)
					r.Post("/markers/{propertyId}/click", h.handleMarkerClick)
					r.Post("/markers/{propertyId}/hover", h.handleMarkerHover)
					r.Post("/resize", h.handleResize)
					r.Post("/keys", h.handleKey)
					r.With(limit).Post("/search", h.handleSearch)
					r.Post("/search/select", h.handleSearchSelect)
				})
			})
		})
	})

	return r
}

// Close unmounts every live session.
func (h *Handler) Close() {
	h.sessions.closeAll()
}

// echoRequestID returns the request id so clients can quote it.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		if h.backend != nil {
			h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "source": sourceBackend})
			return
		}
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "source": sourceStore})
}
