package relay

import domain "github.com/example/codecollab/domain/room"

// Service names registered by the relay module.
const (
	ServiceRoomRoster = "room-roster"
	ServiceRelayStats = "relay-stats"
)

// RoomRosterRequest asks for the participants of one room.
type RoomRosterRequest struct {
	RoomID string `json:"room_id"`
}

// RoomRosterResponse lists a room's participants in join order.
type RoomRosterResponse struct {
	RoomID       string               `json:"room_id"`
	Participants []domain.Participant `json:"participants"`
	Total        int                  `json:"total"`
}

// StatsRequest asks for relay counters.
type StatsRequest struct{}

// StatsResponse carries relay counters.
type StatsResponse struct {
	Stats
}
