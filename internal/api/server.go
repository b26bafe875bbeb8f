package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
	"github.com/nerrad567/otg-controller/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Controller is the automation engine surface the API drives.
// It is satisfied by *automation.Engine.
type Controller interface {
	Start(ctx context.Context) automation.StartResult
	Stop(ctx context.Context) automation.Result
	EmergencyStop(ctx context.Context)
	Stats() automation.Stats
	OnCycleComplete(fn func(automation.CycleResult))
	OnStatusChange(fn func(automation.Status))
}

// DeviceLister lists the devices the actuation bridge currently sees.
// It is satisfied by *imouse.Client.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]device.Discovered, error)
}

// ScreenCapturer captures a device's current screen.
// It is satisfied by *imouse.Client.
type ScreenCapturer interface {
	Screenshot(ctx context.Context, deviceID string) ([]byte, error)
}

// ConnectionReporter reports whether an optional connection is up.
// It is satisfied by *mqtt.Client.
type ConnectionReporter interface {
	IsConnected() bool
}

// DeviceCountWriter records online/offline device counts after a sync.
// It is satisfied by *influxdb.Client.
type DeviceCountWriter interface {
	WriteDeviceCount(online, offline int)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Engine     Controller
	Automation *automation.Registry
	Devices    *device.Registry
	Discovery  DeviceLister       // optional: enables POST /devices/sync
	Screens    ScreenCapturer     // optional: enables GET /devices/{id}/screenshot
	MQTT       ConnectionReporter // optional: reported in /metrics
	DB         *sql.DB            // optional: pool stats in /metrics
	Metrics    DeviceCountWriter  // optional: device counts after sync
	Audit      AuditLog           // optional: records operator actions
	Version    string
}

// Server is the HTTP API server for the OTG controller.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	engine     Controller
	automation *automation.Registry
	devices    *device.Registry
	discovery  DeviceLister
	screens    ScreenCapturer
	mqtt       ConnectionReporter
	db         *sql.DB
	metrics    DeviceCountWriter
	audit      AuditLog
	version    string
	startTime  time.Time
	server     *http.Server
	hub        *Hub
	tickets    *ticketStore
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, engine, registries)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("automation engine is required")
	}
	if deps.Automation == nil {
		return nil, fmt.Errorf("automation registry is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		engine:     deps.Engine,
		automation: deps.Automation,
		devices:    deps.Devices,
		discovery:  deps.Discovery,
		screens:    deps.Screens,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		metrics:    deps.Metrics,
		audit:      deps.Audit,
		version:    deps.Version,
		startTime:  time.Now(),
		tickets:    newTicketStore(),
	}
	s.hub = NewHub(s.wsCfg, s.logger, s.channelSnapshot)

	// Engine events feed the WebSocket hub for the server's lifetime.
	s.engine.OnCycleComplete(func(res automation.CycleResult) {
		s.hub.Broadcast(ChannelCycleCompleted, res)
	})
	s.engine.OnStatusChange(func(status automation.Status) {
		s.hub.Broadcast(ChannelEngineStatus, statusEvent(status, s.engine.Stats().CycleCount))
	})

	return s, nil
}

// statusEvent is the payload of an engine.status event.
func statusEvent(status automation.Status, cycleCount int) map[string]any {
	return map[string]any{"status": status, "cycle_count": cycleCount}
}

// channelSnapshot gives new engine.status subscribers the current state.
func (s *Server) channelSnapshot(channel string) (any, bool) {
	if channel != ChannelEngineStatus {
		return nil, false
	}
	stats := s.engine.Stats()
	return statusEvent(stats.Status, stats.CycleCount), true
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the ticket cleanup loop, builds the
// router and launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines (not the listener)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr, "auth", s.authEnabled())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
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

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
