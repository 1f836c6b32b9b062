// Package api is the HTTP façade over the provider registry and the audio cache.
package api

import (
	"context"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/audiocache"
	"github.com/book-expert/tts-gateway/internal/core"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// DefaultProvider is used when a /tts request names none.
const DefaultProvider = "pollinations"

// Registry is the provider registry as seen by the façade.
type Registry interface {
	core.Catalog
	Names() []string
	Validate(provider, voice string) error
}

// AudioCache is the content cache as seen by the façade.
type AudioCache interface {
	Resolve(ctx context.Context, text, provider, voice string) (string, error)
	Path(filename string) (string, error)
	List() ([]audiocache.Entry, error)
}

// Options tunes the façade.
type Options struct {
	MaxTextLength int
	CORSOrigins   []string
}

// Router wires the handlers onto a chi mux.
type Router struct {
	mux      *chi.Mux
	registry Registry
	cache    AudioCache
	opts     Options
	log      *logger.Logger
}

// NewRouter creates a Router.
func NewRouter(registry Registry, cache AudioCache, opts Options, log *logger.Logger) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		registry: registry,
		cache:    cache,
		opts:     opts,
		log:      log,
	}
}

// Setup registers middleware and routes and returns the handler.
func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logging(rt.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(rt.opts.CORSOrigins))

	h := &handler{
		registry:      rt.registry,
		cache:         rt.cache,
		maxTextLength: rt.opts.MaxTextLength,
		log:           rt.log,
	}

	r.Get("/", h.root)
	r.Get("/providers", h.providers)
	r.Get("/tts", h.textToSpeech)
	r.Get("/play/{filename}", h.play)
	r.Get("/files", h.files)
	r.Get("/health", h.health)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}
