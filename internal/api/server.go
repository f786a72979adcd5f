package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soniclink/soniclink-core/internal/control"
	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/infrastructure/config"
	"github.com/soniclink/soniclink-core/internal/infrastructure/logging"
	"github.com/soniclink/soniclink-core/internal/poller"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Registry   *fleet.Registry
	Repo       fleet.Repository
	Manager    *poller.Manager
	Dispatcher *control.Dispatcher
	Version    string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *fleet.Registry
	repo       fleet.Repository
	manager    *poller.Manager
	dispatcher *control.Dispatcher
	version    string
	server     *http.Server
	hub        *Hub
	runCtx     context.Context
	cancel     context.CancelFunc
	unsub      func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("fleet registry is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("poll manager is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		repo:       deps.Repo,
		manager:    deps.Manager,
		dispatcher: deps.Dispatcher,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes it to registry snapshot
// publishes for real-time broadcast, and launches the HTTP listener in a
// background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.runCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(s.runCtx)
	s.unsub = s.registry.Subscribe(func(snap *fleet.Snapshot) {
		s.hub.BroadcastSnapshot(snap)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting up to ten seconds
// for in-flight requests to complete.
func (s *Server) Close() error {
	if s.unsub != nil {
		s.unsub()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}
