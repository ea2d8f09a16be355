package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ParticipantJoinedEvent is emitted when a connection joins a room.
type ParticipantJoinedEvent struct {
	EventID   string    `json:"event_id"`
	RoomID    string    `json:"room_id"`
	SocketID  string    `json:"socket_id"`
	Username  string    `json:"username"`
	Color     string    `json:"color"`
	Members   int       `json:"members"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantLeftEvent is emitted when a connection leaves a room, either
// explicitly or by disconnecting.
type ParticipantLeftEvent struct {
	EventID   string    `json:"event_id"`
	RoomID    string    `json:"room_id"`
	SocketID  string    `json:"socket_id"`
	Username  string    `json:"username"`
	Remaining int       `json:"remaining"`
	Reason    string    `json:"reason"` // "leave" or "disconnect"
	Timestamp time.Time `json:"timestamp"`
}

// FileUploadedEvent is emitted after an upload has been stored.
type FileUploadedEvent struct {
	EventID      string    `json:"event_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	Timestamp    time.Time `json:"timestamp"`
}

// Event definitions for the collaboration domain.
var (
	ParticipantJoinedV1 = helper.EventDefinition[ParticipantJoinedEvent](
		"relay",
		"ParticipantJoined",
		"v1",
	)

	ParticipantLeftV1 = helper.EventDefinition[ParticipantLeftEvent](
		"relay",
		"ParticipantLeft",
		"v1",
	)

	FileUploadedV1 = helper.EventDefinition[FileUploadedEvent](
		"upload",
		"FileUploaded",
		"v1",
	)
)
