package wsserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/codecollab/modules/relay"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	nanoid "github.com/jaevor/go-nanoid"
)

// Config holds transport settings.
type Config struct {
	Addr              string
	AllowedOrigins    string
	PublicBaseURL     string
	MaxUploadSize     int64
	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int
}

// Module serves the WebSocket relay endpoint and the HTTP surface with Fiber.
type Module struct {
	cfg      Config
	app      *fiber.App
	hub      *relay.Hub
	relay    relay.RelayPort
	uploader Uploader
	feed     ActivityFeed
	checks   map[string]HealthChecker
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module          = (*Module)(nil)
	_ mono.DependentModule = (*Module)(nil)
)

// NewModule creates a new WebSocket server module.
func NewModule(cfg Config, moduleLogger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		checks: make(map[string]HealthChecker),
		logger: moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ws-server"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"relay"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "relay":
		m.relay = relay.NewRelayAdapter(container)
	}
}

// SetHub injects the relay hub that socket connections feed.
// The hub is not exposed via ServiceContainer.
func (m *Module) SetHub(hub *relay.Hub) {
	m.hub = hub
}

// SetUploader injects the file store behind POST /upload.
func (m *Module) SetUploader(u Uploader) {
	m.uploader = u
}

// SetActivityFeed injects the feed behind GET /api/v1/activity.
func (m *Module) SetActivityFeed(f ActivityFeed) {
	m.feed = f
}

// AddHealthCheck includes a module in GET /health.
func (m *Module) AddHealthCheck(name string, c HealthChecker) {
	m.checks[name] = c
}

// Start initializes and starts the server.
func (m *Module) Start(_ context.Context) error {
	app, err := m.newApp()
	if err != nil {
		return err
	}
	m.app = app

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.cfg.Addr); err != nil {
			errCh <- err
		}
	}()

	// Wait briefly to catch immediate startup errors
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("WebSocket server started", "addr", m.cfg.Addr, "publicURL", m.cfg.PublicBaseURL)
	if m.cfg.AllowedOrigins == "*" {
		m.logger.Warn("CORS allows every origin; set CORS_ALLOWED_ORIGINS to restrict it")
	}
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("WebSocket server stopped")
	return nil
}

// newApp builds the Fiber application with every route registered.
func (m *Module) newApp() (*fiber.App, error) {
	switch {
	case m.hub == nil:
		return nil, fmt.Errorf("relay hub not set")
	case m.relay == nil:
		return nil, fmt.Errorf("relay dependency not set")
	case m.uploader == nil:
		return nil, fmt.Errorf("uploader not set")
	}

	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection id generator: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Code Collab Relay",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		BodyLimit:             bodyLimit(m.cfg.MaxUploadSize),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	allowedOrigins := m.cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	handlers := NewHandlers(m.relay, m.uploader, m.feed, m.checks, m.logger)
	sockets := NewSocketServer(m.hub, SocketConfig{
		MessagesPerSecond: m.cfg.MessagesPerSecond,
		MessageBurst:      m.cfg.MessageBurst,
		SendBuffer:        m.cfg.SendBuffer,
	}, newID, m.logger)

	// Health check
	app.Get("/health", handlers.HealthCheck)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(sockets.Serve, websocket.Config{
		Origins: splitOrigins(allowedOrigins),
	}))

	// File sharing
	app.Post("/upload", handlers.Upload)
	app.Static("/uploads", m.uploader.Dir(), fiber.Static{
		Browse: false,
	})

	// REST API routes
	api := app.Group("/api/v1")
	api.Get("/stats", handlers.Stats)
	api.Get("/rooms/:id", handlers.RoomRoster)
	api.Get("/activity", handlers.Activity)

	return app, nil
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "message", message, "error", err)
	} else {
		m.logger.Debug("HTTP error", "code", code, "message", message)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(maxUpload int64) int {
	const overhead = 1 << 20
	if maxUpload <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int(maxUpload) + overhead
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
