package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RelayPort is the read side of the relay, for modules that depend on it.
type RelayPort interface {
	RoomRoster(ctx context.Context, roomID string) (*RoomRosterResponse, error)
	Stats(ctx context.Context) (*StatsResponse, error)
}

// RelayAdapter implements RelayPort using the service container.
type RelayAdapter struct {
	container mono.ServiceContainer
}

// NewRelayAdapter creates a new RelayAdapter.
func NewRelayAdapter(container mono.ServiceContainer) RelayPort {
	if container == nil {
		panic("relay: ServiceContainer is nil")
	}
	return &RelayAdapter{container: container}
}

// RoomRoster returns the participants of a room.
func (a *RelayAdapter) RoomRoster(ctx context.Context, roomID string) (*RoomRosterResponse, error) {
	req := RoomRosterRequest{RoomID: roomID}
	var resp RoomRosterResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRoomRoster,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceRoomRoster, err)
	}
	return &resp, nil
}

// Stats returns relay counters.
func (a *RelayAdapter) Stats(ctx context.Context) (*StatsResponse, error) {
	req := StatsRequest{}
	var resp StatsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRelayStats,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceRelayStats, err)
	}
	return &resp, nil
}
