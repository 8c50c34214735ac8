// Package api provides the HTTP API a rendering client uses to drive the clip
// editor.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/ratelimit"
	"github.com/listenupapp/clipdeck/internal/search"
	"github.com/listenupapp/clipdeck/internal/sse"
	"github.com/listenupapp/clipdeck/internal/store/sqlite"
	"github.com/listenupapp/clipdeck/internal/validation"
)

// SnapshotStore reads persisted timelines.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, timelineID string) (clips.Snapshot, error)
	ListTimelines(ctx context.Context) ([]sqlite.SavedTimeline, error)
	Ping(ctx context.Context) error
}

// Flusher writes a timeline's pending changes to storage.
type Flusher interface {
	Flush(ctx context.Context, timelineID string) error
}

// Searcher runs flashcard text queries.
type Searcher interface {
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
	DocumentCount() (uint64, error)
}

// SubscriberCounter reports live event subscribers.
type SubscriberCounter interface {
	SubscriberCount() int
}

// Services groups what the handlers call. Only Editor is required; the rest
// degrade to 503 or a no-op when nil.
type Services struct {
	Editor    *editor.Editor
	Snapshots SnapshotStore
	Autosave  Flusher
	Search    Searcher
	Events    *sse.Handler
	Bus       SubscriberCounter
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	editor    *editor.Editor
	snapshots SnapshotStore
	autosave  Flusher
	search    Searcher
	events    *sse.Handler
	bus       SubscriberCounter
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	opts      Options
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services Services, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		editor:    services.Editor,
		snapshots: services.Snapshots,
		autosave:  services.Autosave,
		search:    services.Search,
		events:    services.Events,
		bus:       services.Bus,
		validator: validation.New(),
		opts:      opts,
		router:    chi.NewRouter(),
		logger:    logger,
	}
	if opts.RateLimit > 0 {
		s.limiter = ratelimit.New(opts.RateLimit, max(opts.RateBurst, 1))
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)

		r.Route("/timelines", func(r chi.Router) {
			r.Get("/", s.handleListTimelines)
			r.Post("/", s.handleOpenTimeline)
			r.Get("/saved", s.handleListSavedTimelines)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTimeline)
				r.Delete("/", s.handleCloseTimeline)
				r.Get("/snapshot", s.handleGetSnapshot)

				r.Get("/clips", s.handleListClips)
				r.Get("/clips/at", s.handleClipAt)
				r.Post("/import", s.handleImport)

				r.Post("/pointer/down", s.handlePointerDown)
				r.Post("/pointer/move", s.handlePointerMove)
				r.Post("/pointer/up", s.handlePointerUp)
				r.Post("/pointer/cancel", s.handlePointerCancel)
				r.Get("/preview", s.handlePreview)

				r.Get("/session", s.handleGetSession)
				r.Get("/selection", s.handleGetSelection)
				r.Put("/selection", s.handlePutSelection)
				r.Post("/playback", s.handlePlayback)
				r.Put("/loop", s.handleSetLoop)
				r.Put("/viewport", s.handleSetViewport)
			})
		})

		r.Route("/clips/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetClip)
			r.Delete("/", s.handleDeleteClip)
			r.Get("/previous", s.handlePreviousClip)
			r.Get("/next", s.handleNextClip)
			r.Put("/flashcard", s.handleUpdateFlashcard)
		})

		r.Get("/search", s.handleSearch)

		if s.events != nil {
			r.Get("/events", s.events.ServeHTTP)
		}
	})
}
