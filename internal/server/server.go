/*
PURPOSE:
  Exposes classification over HTTP for hosts that cannot link the library.

REQUIREMENTS:
  User-specified:
  - The boundary call (prompt, model) -> encoded result, unchanged.
  - A convenience endpoint that builds the allergen prompt from ingredients.

  Implementation-discovered:
  - Greedy decoding is deterministic, so identical (model, prompt) pairs are
    served from a TTL cache. Error results are never cached.
  - Model names resolve inside the model dir only.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (serve)
  - Uses: internal/engine (Driver, Catalog), internal/result, internal/store

ERROR HANDLING:
  - Bad requests -> 400, unknown models -> 404, all as {"error": "..."}.
  - A classification failure is still 200: the result string carries it.

IMPLEMENTATION RULES:
  - gorilla/mux routes, JSON in and out.
  - Every request runs its own session; only backend init is shared.

USAGE:
  s := server.New(driver, server.Options{Addr: ":8080", ModelDir: "./models"}, st)
  go s.Start()
  defer s.Stop()

RELATED FILES:
  - internal/server/handlers.go
  - internal/engine/driver.go
*/

package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/store"
)

// Options configure a Server.
type Options struct {
	Addr         string
	ModelDir     string
	DefaultModel string
	CacheTTL     time.Duration
	CacheSize    uint64
}

// Server holds the HTTP surface.
type Server struct {
	opts       Options
	driver     *engine.Driver
	catalog    engine.Catalog
	store      store.Store
	cache      *ttlcache.Cache[string, string]
	router     *mux.Router
	httpServer *http.Server
	stopOnce   sync.Once
	stopErr    error
}

// New creates a Server. st may be nil.
func New(d *engine.Driver, opts Options, st store.Store) *Server {
	cacheOpts := []ttlcache.Option[string, string]{
		ttlcache.WithTTL[string, string](opts.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	}
	if opts.CacheSize > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, string](opts.CacheSize))
	}

	s := &Server{
		opts:    opts,
		driver:  d,
		catalog: engine.Catalog{Dir: opts.ModelDir},
		store:   st,
		cache:   ttlcache.New[string, string](cacheOpts...),
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	go s.cache.Start()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	s.router.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	s.router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	s.router.HandleFunc("/predictions/{model}", s.handlePredictions).Methods(http.MethodGet)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on Options.Addr and blocks. After Stop it returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	output.Logger.Info("Server listening", "addr", s.opts.Addr, "model_dir", s.opts.ModelDir)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down and stops the cache. It may be called before
// or concurrently with Start, and more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.cache.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.stopErr = s.httpServer.Shutdown(ctx)
	})
	return s.stopErr
}
