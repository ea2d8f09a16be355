package wsserver

import (
	"context"
	"errors"
	"io"
	"sort"

	domain "github.com/example/codecollab/domain/room"
	"github.com/example/codecollab/modules/activity"
	"github.com/example/codecollab/modules/relay"
	"github.com/example/codecollab/modules/upload"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// Uploader stores shared files.
type Uploader interface {
	Upload(ctx context.Context, originalName string, r io.Reader) (domain.ChatFile, error)
	Dir() string
}

// ActivityFeed lists recent room and upload activity.
type ActivityFeed interface {
	Recent(limit int) []activity.Entry
}

// HealthChecker reports the health of one module.
type HealthChecker interface {
	Health(ctx context.Context) mono.HealthStatus
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	relay    relay.RelayPort
	uploader Uploader
	feed     ActivityFeed
	checks   map[string]HealthChecker
	logger   types.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(relayPort relay.RelayPort, uploader Uploader, feed ActivityFeed, checks map[string]HealthChecker, logger types.Logger) *Handlers {
	return &Handlers{
		relay:    relayPort,
		uploader: uploader,
		feed:     feed,
		checks:   checks,
		logger:   logger,
	}
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	modules := make(fiber.Map, len(names))
	for _, name := range names {
		status := h.checks[name].Health(c.UserContext())
		healthy = healthy && status.Healthy
		modules[name] = fiber.Map{
			"healthy": status.Healthy,
			"message": status.Message,
			"details": status.Details,
		}
	}

	code := fiber.StatusOK
	state := "healthy"
	if !healthy {
		code = fiber.StatusServiceUnavailable
		state = "unhealthy"
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  state,
		"service": "codecollab",
		"modules": modules,
	})
}

// Upload handles shared file uploads (POST /upload).
func (h *Handlers) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read uploaded file")
	}
	defer src.Close()

	file, err := h.uploader.Upload(c.UserContext(), fileHeader.Filename, src)
	if err != nil {
		if errors.Is(err, upload.ErrFileTooLarge) {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "File too large")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to store file")
	}

	return c.JSON(file)
}

// Stats handles relay statistics requests (GET /api/v1/stats).
func (h *Handlers) Stats(c *fiber.Ctx) error {
	resp, err := h.relay.Stats(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to fetch relay stats", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Relay unavailable")
	}
	return c.JSON(resp)
}

// RoomRoster handles room roster requests (GET /api/v1/rooms/:id).
func (h *Handlers) RoomRoster(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Room ID is required",
		})
	}

	resp, err := h.relay.RoomRoster(c.UserContext(), roomID)
	if err != nil {
		h.logger.Error("Failed to fetch room roster", "roomID", roomID, "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Relay unavailable")
	}
	if resp.Total == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Room not found",
		})
	}
	return c.JSON(resp)
}

// Activity handles activity feed requests (GET /api/v1/activity).
func (h *Handlers) Activity(c *fiber.Ctx) error {
	if h.feed == nil {
		return fiber.NewError(fiber.StatusNotFound, "Activity feed disabled")
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	entries := h.feed.Recent(limit)
	return c.JSON(fiber.Map{
		"entries": entries,
		"total":   len(entries),
	})
}
