package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/yolink-bridge/internal/device"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/yolink-bridge/internal/ingest"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// HealthChecker is implemented by every sink client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SubscriberStatus exposes the vendor subscription state. *ingest.Subscriber implements it.
type SubscriberStatus interface {
	State() ingest.State
	Received() uint64
	Malformed() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Registry   *device.Registry
	Queue      *ingest.Queue
	Consumer   *ingest.Consumer
	Subscriber SubscriberStatus

	// Components are health-checked by /health, keyed by name ("influxdb", "mqtt").
	Components map[string]HealthChecker

	HomeID  string
	Version string
}

// Server is the HTTP status server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	registry   *device.Registry
	queue      *ingest.Queue
	consumer   *ingest.Consumer
	subscriber SubscriberStatus
	components map[string]HealthChecker
	homeID     string
	version    string
	startTime  time.Time
	now        func() time.Time
	server     *http.Server
	listener   net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Queue == nil || deps.Consumer == nil || deps.Subscriber == nil {
		return nil, fmt.Errorf("ingest pipeline is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		registry:   deps.Registry,
		queue:      deps.Queue,
		consumer:   deps.Consumer,
		subscriber: deps.Subscriber,
		components: deps.Components,
		homeID:     deps.HomeID,
		version:    deps.Version,
		startTime:  time.Now(),
		now:        time.Now,
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// The server can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 5 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
