package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/codecollab/modules/activity"
	"github.com/example/codecollab/modules/relay"
	"github.com/example/codecollab/modules/upload"
	"github.com/example/codecollab/modules/wsserver"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

type config struct {
	port              int
	allowedOrigins    string
	publicBaseURL     string
	uploadDir         string
	maxUploadSize     int64
	messagesPerSecond int
	messageBurst      int
	activityCapacity  int
}

func loadConfig() config {
	port := getEnvInt("PORT", 5000)
	return config{
		port:              port,
		allowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "*"),
		publicBaseURL:     getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		uploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		maxUploadSize:     getEnvInt64("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB default
		messagesPerSecond: getEnvInt("WS_MESSAGES_PER_SECOND", 100),
		messageBurst:      getEnvInt("WS_MESSAGE_BURST", 200),
		activityCapacity:  getEnvInt("ACTIVITY_CAPACITY", activity.DefaultCapacity),
	}
}

func main() {
	cfg := loadConfig()

	log.Println("=== Code Collab Relay ===")
	log.Printf("Port: %d", cfg.port)
	log.Printf("Upload Dir: %s", cfg.uploadDir)
	log.Printf("Max Upload Size: %d bytes", cfg.maxUploadSize)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	relayModule := relay.NewModule(app.Logger())
	uploadModule := upload.NewModule(upload.Config{
		Dir:     cfg.uploadDir,
		MaxSize: cfg.maxUploadSize,
	}, app.Logger())
	activityModule := activity.NewModule(cfg.activityCapacity, app.Logger())
	wsModule := wsserver.NewModule(wsserver.Config{
		Addr:              fmt.Sprintf(":%d", cfg.port),
		AllowedOrigins:    cfg.allowedOrigins,
		PublicBaseURL:     cfg.publicBaseURL,
		MaxUploadSize:     cfg.maxUploadSize,
		MessagesPerSecond: float64(cfg.messagesPerSecond),
		MessageBurst:      cfg.messageBurst,
	}, app.Logger())

	// Wire up dependencies that are not exposed via ServiceContainer
	wsModule.SetHub(relayModule.Hub())
	wsModule.SetUploader(uploadModule)
	wsModule.SetActivityFeed(activityModule)
	wsModule.AddHealthCheck(relayModule.Name(), relayModule)
	wsModule.AddHealthCheck(uploadModule.Name(), uploadModule)
	wsModule.AddHealthCheck(activityModule.Name(), activityModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - relay: room relay hub (ServiceProviderModule + EventEmitterModule)
	// - upload: disk store (EventEmitterModule)
	// - activity: event consumer feeding GET /api/v1/activity
	// - ws-server: Fiber HTTP/WebSocket server, depends on relay
	app.Register(relayModule)
	app.Register(uploadModule)
	app.Register(activityModule)
	app.Register(wsModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("HTTP Endpoints (%s):", cfg.publicBaseURL)
	log.Println("  GET    /health                 - Module health")
	log.Println("  POST   /upload                 - Upload a file (multipart field \"file\")")
	log.Println("  GET    /uploads/:filename      - Download an uploaded file")
	log.Println("  GET    /api/v1/stats           - Relay counters")
	log.Println("  GET    /api/v1/rooms/:id       - Room participants")
	log.Println("  GET    /api/v1/activity        - Recent joins, leaves and uploads")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws):", cfg.port)
	log.Println("  Frames: {\"event\": \"<name>\", \"data\": {...}}")
	log.Println("  Events: join, leave, code-change, sync-code, cursor-change, chat-message,")
	log.Println("          chat-file, language-change, typing, stop-typing")
	log.Println("")
	if cfg.allowedOrigins == "*" {
		log.Println("WARNING: CORS_ALLOWED_ORIGINS is \"*\"; any origin may connect")
		log.Println("")
	}
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}
