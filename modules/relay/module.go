package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/codecollab/domain/room"
	"github.com/example/codecollab/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Module owns the room relay hub and exposes its read side as services.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
	eventBus  mono.EventBus
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Observer                   = (*Module)(nil)
)

// NewModule creates a new relay module.
func NewModule(logger types.Logger, opts ...HubOption) *Module {
	m := &Module{logger: logger}
	m.hub = NewHub(logger, append([]HubOption{WithObserver(m)}, opts...)...)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ParticipantJoinedV1.ToBase(),
		events.ParticipantLeftV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomRoster, json.Unmarshal, json.Marshal, m.roomRoster,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomRoster, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRelayStats, json.Unmarshal, json.Marshal, m.stats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRelayStats, err)
	}

	m.logger.Info("Registered relay services",
		"services", []string{ServiceRoomRoster, ServiceRelayStats})
	return nil
}

// Start runs the hub.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Relay module started")
	return nil
}

// Stop shuts the hub down and closes every connection queue.
func (m *Module) Stop(_ context.Context) error {
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Relay module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats, err := m.hub.Stats(ctx)
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":  stats.Connections,
			"participants": stats.Participants,
			"rooms":        stats.Rooms,
		},
	}
}

// Hub returns the relay hub for the transport module.
func (m *Module) Hub() *Hub {
	return m.hub
}

// ParticipantJoined publishes a ParticipantJoined event.
func (m *Module) ParticipantJoined(p domain.Participant, roomID string, members int) {
	m.logger.Info("Participant joined room",
		"socketID", p.SocketID, "username", p.Username, "roomID", roomID, "members", members)
	if m.eventBus == nil {
		return
	}

	event := events.ParticipantJoinedEvent{
		EventID:   uuid.New().String(),
		RoomID:    roomID,
		SocketID:  p.SocketID,
		Username:  p.Username,
		Color:     string(p.Color),
		Members:   members,
		Timestamp: time.Now(),
	}
	if err := events.ParticipantJoinedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish ParticipantJoined event", "error", err)
	}
}

// ParticipantLeft publishes a ParticipantLeft event.
func (m *Module) ParticipantLeft(p domain.Participant, roomID string, remaining int, reason string) {
	m.logger.Info("Participant left room",
		"socketID", p.SocketID, "username", p.Username, "roomID", roomID, "reason", reason)
	if m.eventBus == nil {
		return
	}

	event := events.ParticipantLeftEvent{
		EventID:   uuid.New().String(),
		RoomID:    roomID,
		SocketID:  p.SocketID,
		Username:  p.Username,
		Remaining: remaining,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if err := events.ParticipantLeftV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish ParticipantLeft event", "error", err)
	}
}

func (m *Module) roomRoster(ctx context.Context, req RoomRosterRequest, _ *mono.Msg) (RoomRosterResponse, error) {
	participants, err := m.hub.Roster(ctx, req.RoomID)
	if err != nil {
		return RoomRosterResponse{}, err
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	return RoomRosterResponse{
		RoomID:       req.RoomID,
		Participants: participants,
		Total:        len(participants),
	}, nil
}

func (m *Module) stats(ctx context.Context, _ StatsRequest, _ *mono.Msg) (StatsResponse, error) {
	stats, err := m.hub.Stats(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	return StatsResponse{Stats: stats}, nil
}
