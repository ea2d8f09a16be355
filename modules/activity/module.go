package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/codecollab/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 100

// Entry types.
const (
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeFileUploaded      = "file_uploaded"
)

// Entry is one line of the activity feed.
type Entry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id,omitempty"`
	SocketID  string    `json:"socket_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Module keeps a bounded, in-memory feed of relay and upload events.
type Module struct {
	entries  []Entry // ring buffer
	next     int
	full     bool
	received int
	mu       sync.RWMutex
	logger   types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates an activity module holding at most capacity entries.
func NewModule(capacity int, logger types.Logger) *Module {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Module{
		entries: make([]Entry, capacity),
		logger:  logger,
	}
}

func (m *Module) Name() string {
	return "activity"
}

func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.ParticipantJoinedV1, m.handleParticipantJoined, m); err != nil {
		return fmt.Errorf("failed to register ParticipantJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.ParticipantLeftV1, m.handleParticipantLeft, m); err != nil {
		return fmt.Errorf("failed to register ParticipantLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.FileUploadedV1, m.handleFileUploaded, m); err != nil {
		return fmt.Errorf("failed to register FileUploaded consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"ParticipantJoined", "ParticipantLeft", "FileUploaded"})
	return nil
}

func (m *Module) handleParticipantJoined(_ context.Context, event events.ParticipantJoinedEvent, _ *mono.Msg) error {
	m.record(Entry{
		ID:        event.EventID,
		Type:      TypeParticipantJoined,
		RoomID:    event.RoomID,
		SocketID:  event.SocketID,
		Username:  event.Username,
		Message:   fmt.Sprintf("%s joined room %s (%d online)", displayName(event.Username), event.RoomID, event.Members),
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) handleParticipantLeft(_ context.Context, event events.ParticipantLeftEvent, _ *mono.Msg) error {
	verb := "left"
	if event.Reason == "disconnect" {
		verb = "disconnected from"
	}
	m.record(Entry{
		ID:        event.EventID,
		Type:      TypeParticipantLeft,
		RoomID:    event.RoomID,
		SocketID:  event.SocketID,
		Username:  event.Username,
		Message:   fmt.Sprintf("%s %s room %s", displayName(event.Username), verb, event.RoomID),
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) handleFileUploaded(_ context.Context, event events.FileUploadedEvent, _ *mono.Msg) error {
	m.record(Entry{
		ID:        event.EventID,
		Type:      TypeFileUploaded,
		Message:   fmt.Sprintf("%s uploaded as %s (%d bytes)", event.OriginalName, event.Filename, event.Size),
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	m.received++
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything held.
func (m *Module) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	held := m.next
	if m.full {
		held = len(m.entries)
	}
	if limit <= 0 || limit > held {
		limit = held
	}

	result := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		result = append(result, m.entries[idx])
	}
	return result
}

func (m *Module) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"received": m.received,
			"capacity": len(m.entries),
		},
	}
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started", "capacity", len(m.entries))
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}

func displayName(username string) string {
	if username == "" {
		return "someone"
	}
	return username
}
