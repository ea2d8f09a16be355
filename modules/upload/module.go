package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	domain "github.com/example/codecollab/domain/room"
	"github.com/example/codecollab/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Config holds upload settings.
type Config struct {
	Dir     string
	MaxSize int64
}

// Module stores shared chat files on local disk.
type Module struct {
	store    *DiskStore
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new upload module.
func NewModule(cfg Config, logger types.Logger, opts ...StoreOption) *Module {
	opts = append([]StoreOption{WithMaxSize(cfg.MaxSize)}, opts...)
	return &Module{
		store:  NewDiskStore(cfg.Dir, opts...),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "upload"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.FileUploadedV1.ToBase(),
	}
}

// Start creates the upload directory.
func (m *Module) Start(_ context.Context) error {
	if err := m.store.Init(); err != nil {
		return fmt.Errorf("failed to initialize upload directory: %w", err)
	}
	m.logger.Info("Upload module started", "dir", m.store.Dir(), "maxSize", m.store.maxSize)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Upload module stopped")
	return nil
}

// Health reports whether the upload directory is usable.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	info, err := os.Stat(m.store.Dir())
	if err != nil || !info.IsDir() {
		return mono.HealthStatus{
			Healthy: false,
			Message: "upload directory unavailable",
			Details: map[string]any{"dir": m.store.Dir()},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"dir": m.store.Dir()},
	}
}

// Dir returns the directory uploads are served from.
func (m *Module) Dir() string {
	return m.store.Dir()
}

// Upload stores a file and announces it on the event bus.
func (m *Module) Upload(ctx context.Context, originalName string, r io.Reader) (domain.ChatFile, error) {
	file, err := m.store.Save(ctx, originalName, r)
	if err != nil {
		m.logger.Error("Upload failed", "originalName", originalName, "error", err)
		return domain.ChatFile{}, err
	}

	m.logger.Info("File uploaded",
		"filename", file.Filename, "originalName", file.OriginalName, "size", file.Size)

	if m.eventBus != nil {
		event := events.FileUploadedEvent{
			EventID:      uuid.New().String(),
			Filename:     file.Filename,
			OriginalName: file.OriginalName,
			Size:         file.Size,
			Timestamp:    time.Now(),
		}
		if err := events.FileUploadedV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish FileUploaded event", "error", err)
		}
	}
	return file, nil
}
