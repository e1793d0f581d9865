package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sundayezeilo/linksnap/internal/blob"
	"github.com/sundayezeilo/linksnap/internal/config"
	"github.com/sundayezeilo/linksnap/internal/httpx"
	"github.com/sundayezeilo/linksnap/internal/metrics"
	"github.com/sundayezeilo/linksnap/internal/shortener"
	"github.com/sundayezeilo/linksnap/internal/users"
)

// Action handles one action of the /api endpoint.
type Action func(w http.ResponseWriter, r *http.Request, p url.Values)

// Counter reports how many records a store holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Deps are the handlers and services the server routes to.
type Deps struct {
	Links   *shortener.Handler
	Users   *users.Handler
	Blobs   *blob.Handler
	Metrics *metrics.Metrics

	// LinkStore and UserStore answer the setup action.
	LinkStore Counter
	UserStore Counter

	// Background waits for work that outlives a request, such as click
	// accounting, during shutdown.
	Background interface{ Wait() }
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	deps    Deps
	actions map[string]Action
	server  *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	s.actions = map[string]Action{
		"register":     deps.Users.Register,
		"login":        deps.Users.Login,
		"create":       deps.Links.Create,
		"delete":       deps.Links.Delete,
		"get":          deps.Links.Get,
		"getUserLinks": deps.Links.UserLinks,
		"setup":        s.setup,
	}
	return s
}

// Start starts the HTTP server and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			zap.String("addr", s.server.Addr),
			zap.String("env", s.config.App.Environment),
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,
		httpx.Logger(s.logger),
		httpx.CORS(s.config.Server.AllowedOrigins),
		s.deps.Metrics.Middleware,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteFailure(w, http.StatusNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteFailure(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	s.routes(r)
	if base := s.config.Server.BasePath; base != "" {
		r.Route("/"+base, s.routes)
	}
	return r
}

// routes registers every endpoint on r. Static routes win over the short
// code parameter, and reserved codes are refused by the resolve handler.
func (s *Server) routes(r chi.Router) {
	r.Get("/x/health", s.healthCheckHandler)
	if s.config.Observability.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Get("/api", s.api)
	r.Post("/api", s.api)

	r.Get("/upload", s.deps.Blobs.Status)
	r.Post("/upload", s.deps.Blobs.Upload)
	r.Get("/files/{blobID}", s.deps.Blobs.Serve)

	r.Get("/{shortCode}", s.deps.Links.Resolve)
}

// api dispatches /api?action=... to the matching action handler.
func (s *Server) api(w http.ResponseWriter, r *http.Request) {
	// create may carry an inline file, so bodies are sized for the blob limit
	limit := int64(httpx.MaxRequestBodySize)
	if s.deps.Blobs != nil {
		limit = max(limit, s.deps.Blobs.BodyLimit())
	}
	params, err := httpx.ParseParamsLimit(r, limit)
	if err != nil {
		httpx.WriteFailure(w, http.StatusOK, err.Error(), nil)
		return
	}

	action, ok := s.actions[params.Get("action")]
	if !ok {
		httpx.WriteFailure(w, http.StatusOK, "Invalid request", nil)
		return
	}
	action(w, r, params)
}

// setup reports that storage is ready. Stores create their schema when
// they are opened, so this only counts what they hold.
func (s *Server) setup(w http.ResponseWriter, r *http.Request, _ url.Values) {
	links, err := s.deps.LinkStore.Count(r.Context())
	if err == nil {
		var n int
		n, err = s.deps.UserStore.Count(r.Context())
		if err == nil {
			httpx.WriteSuccess(w, "Storage initialized", httpx.Envelope{"links": links, "users": n})
			return
		}
	}
	s.logger.Error("setup failed", zap.Error(err))
	httpx.WriteFailure(w, http.StatusServiceUnavailable, "Storage is not available", nil)
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	})
}

// Shutdown stops accepting requests, waits for in-flight ones and then for
// background work.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		s.logger.Info("shutting down server")

		err = s.server.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			err = s.server.Close()
		}
	}

	if s.deps.Background != nil {
		s.deps.Background.Wait()
	}
	return err
}
