// Package api implements the Query Surface (C8): a request/response HTTP
// API over current device state, weather/freezer history, alerts, and the
// device registry, plus the upgrade endpoint for the Client Fan-Out
// streaming channel.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/command"
	"github.com/nerrad567/iris-core/internal/fanout"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/ota"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
)

const gracefulShutdownTimeout = 10 * time.Second

// Read handlers get a shorter deadline than write handlers (commands, OTA
// triggers) since the latter may have to enumerate a filesystem tree.
const (
	readDeadline  = 2 * time.Second
	writeDeadline = 5 * time.Second
)

// Deps holds the dependencies required by the Query Surface.
type Deps struct {
	Config       config.APIConfig
	WebSocket    config.WebSocketConfig
	Store        *state.Store
	Repo         persistence.Repository
	Bus          *bus.Adapter
	Evaluator    *alerts.Evaluator
	Dispatcher   *command.Dispatcher
	Orchestrator *ota.Orchestrator
	Fanout       *fanout.Hub
	Logger       *logging.Logger
	Version      string
}

// Server is the HTTP API server for the Query Surface.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	store        *state.Store
	repo         persistence.Repository
	bus          *bus.Adapter
	evaluator    *alerts.Evaluator
	dispatcher   *command.Dispatcher
	orchestrator *ota.Orchestrator
	fanout       *fanout.Hub
	log          *logging.Logger
	version      string

	server *http.Server
}

// New creates a new API server with the given dependencies. The server is
// not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("persistence repository is required")
	}
	if deps.Fanout == nil {
		return nil, fmt.Errorf("fanout hub is required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WebSocket,
		store:        deps.Store,
		repo:         deps.Repo,
		bus:          deps.Bus,
		evaluator:    deps.Evaluator,
		dispatcher:   deps.Dispatcher,
		orchestrator: deps.Orchestrator,
		fanout:       deps.Fanout,
		log:          deps.Logger,
		version:      deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.log.Info("API server starting with TLS", "address", s.server.Addr)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.log.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to
// gracefulShutdownTimeout for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.log.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
