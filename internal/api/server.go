// Package api serves spelling and favourites over a local JSON HTTP API.
//
// Routes:
//
//	GET    /api/spell?text=…[&format=text|markdown]
//	GET    /api/favourites[?content=true]
//	POST   /api/favourites                 {"text": …, "name": …}
//	DELETE /api/favourites?confirm=true
//	GET    /api/favourites/exists?text=…
//	GET    /api/favourites/{key}
//	GET    /api/favourites/{key}/spell[?format=…]
//	DELETE /api/favourites/{key}
//	GET    /healthz, /readyz, /metrics
//
// Errors are JSON objects of the form {"error": "…"}.
package api

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/spellin/internal/config"
	"github.com/MrWong99/spellin/internal/favourites"
	"github.com/MrWong99/spellin/internal/health"
	"github.com/MrWong99/spellin/internal/observe"
	"github.com/MrWong99/spellin/internal/spell"
)

// Table labels reported with spelling metrics.
const (
	TableDefault  = "default"
	TableExtended = "extended"
)

// spelling is the hot-swappable engine selection.
type spelling struct {
	engine *spell.Engine
	table  string
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics records request and spelling metrics on m. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth serves /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithExtendedNumbers starts the server with the extended digit table.
func WithExtendedNumbers(on bool) Option {
	return func(s *Server) {
		s.SetExtendedNumbers(on)
	}
}

// WithDisplay sets the initial text rendering options.
func WithDisplay(d config.DisplayConfig) Option {
	return func(s *Server) {
		s.SetDisplay(d)
	}
}

// Server holds the API's dependencies. Spelling and display settings can be
// changed while requests are in flight.
type Server struct {
	store          *favourites.Store
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler

	spelling atomic.Pointer[spelling]
	display  atomic.Pointer[config.DisplayConfig]
}

// New returns a [Server] for store.
func New(store *favourites.Store, opts ...Option) *Server {
	s := &Server{store: store}
	s.SetExtendedNumbers(false)
	s.SetDisplay(config.DisplayConfig{Orientation: config.OrientationHorizontal})
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetExtendedNumbers switches between the default and extended digit tables.
func (s *Server) SetExtendedNumbers(on bool) {
	sp := &spelling{engine: spell.New(), table: TableDefault}
	if on {
		sp = &spelling{engine: spell.New(spell.WithExtendedNumbers()), table: TableExtended}
	}
	s.spelling.Store(sp)
}

// SetDisplay replaces the text rendering options.
func (s *Server) SetDisplay(d config.DisplayConfig) {
	s.display.Store(&d)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Get("/api/spell", s.getSpell)

	r.Route("/api/favourites", func(r chi.Router) {
		r.Get("/", s.listFavourites)
		r.Post("/", s.addFavourite)
		r.Delete("/", s.clearFavourites)
		r.Get("/exists", s.favouriteExists)
		r.Get("/{key}", s.getFavourite)
		r.Get("/{key}/spell", s.spellFavourite)
		r.Delete("/{key}", s.deleteFavourite)
	})

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}
	return r
}
