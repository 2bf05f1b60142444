// Package api provides the HTTP REST API and WebSocket server for
// Facility Core.
//
// It exposes the signup/authenticate flow, the company hierarchy
// operations (zones, subzones, sites), report updates with realtime
// fan-out, and system management endpoints.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mvidaller/facility-core/internal/audit"
	"github.com/mvidaller/facility-core/internal/auth"
	"github.com/mvidaller/facility-core/internal/infrastructure/config"
	"github.com/mvidaller/facility-core/internal/infrastructure/influxdb"
	"github.com/mvidaller/facility-core/internal/infrastructure/logging"
	"github.com/mvidaller/facility-core/internal/infrastructure/mqtt"
	"github.com/mvidaller/facility-core/internal/monitor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Notifier pushes report events to realtime subscribers. The websocket
// Hub is the default implementation; tests inject their own.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Users    auth.UserRepository
	Guests   auth.GuestRepository
	Verifier auth.Verifier
	Monitor  monitor.Repository
	Audit    audit.Repository       // optional: skips the audit trail when nil
	MQTT     *mqtt.Client           // optional: report fan-out to the broker
	Influx   *influxdb.Client       // optional: sensor telemetry sink
	DB       *sql.DB                // optional: pool stats for /metrics
	Notifier Notifier               // optional: overrides the built-in websocket hub
	Version  string
}

// Server is the HTTP API server for Facility Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	users    auth.UserRepository
	guests   auth.GuestRepository
	verifier auth.Verifier
	monitor  monitor.Repository
	audit    audit.Repository
	mqtt     *mqtt.Client
	influx   *influxdb.Client
	db       *sql.DB
	version  string

	server    *http.Server
	hub       *Hub
	notifier  Notifier
	tickets   *ticketStore
	startTime time.Time
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil || deps.Guests == nil {
		return nil, fmt.Errorf("user and guest repositories are required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("password verifier is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("monitor repository is required")
	}
	// MQTT, Influx and Audit are optional; report flow degrades gracefully.

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		users:     deps.Users,
		guests:    deps.Guests,
		verifier:  deps.Verifier,
		monitor:   deps.Monitor,
		audit:     deps.Audit,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		db:        deps.DB,
		version:   deps.Version,
		notifier:  deps.Notifier,
		tickets:   newTicketStore(),
		startTime: time.Now(),
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if s.notifier == nil {
		s.notifier = s.hub
	}

	// Periodic ticket cleanup so abandoned tickets don't accumulate.
	go s.cleanTicketsLoop(srvCtx)

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
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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
