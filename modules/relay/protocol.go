package relay

import (
	"encoding/json"

	domain "github.com/example/codecollab/domain/room"
)

// Event names carried in the envelope.
const (
	EventJoin           = "join"
	EventJoined         = "joined"
	EventLeave          = "leave"
	EventDisconnected   = "disconnected"
	EventCodeChange     = "code-change"
	EventSyncCode       = "sync-code"
	EventCursorChange   = "cursor-change"
	EventChatMessage    = "chat-message"
	EventChatFile       = "chat-file"
	EventLanguageChange = "language-change"
	EventTyping         = "typing"
	EventStopTyping     = "stop-typing"
)

// TimeLayout formats the server timestamp attached to chat events.
const TimeLayout = "3:04:05 PM"

// Envelope is a single frame on the socket in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is an event ready to be sent to one or more connections.
type Outbound struct {
	Event   string
	Payload any
}

// Encode renders the outbound event as an envelope frame.
func (o *Outbound) Encode() ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{o.Event, o.Payload})
}

// Inbound payloads. Fields the relay does not interpret stay raw so they are
// forwarded byte for byte, and absent fields stay absent.

// JoinRequest is sent by a client to enter a room.
type JoinRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// RoomRequest carries only a room id (leave, typing, stop-typing).
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// CodeChangeRequest carries a full buffer for the room.
type CodeChangeRequest struct {
	RoomID string          `json:"roomId"`
	Code   json.RawMessage `json:"code"`
}

// SyncCodeRequest carries a buffer for a single late joiner.
type SyncCodeRequest struct {
	SocketID string          `json:"socketId"`
	Code     json.RawMessage `json:"code"`
}

// CursorChangeRequest carries an opaque cursor position.
type CursorChangeRequest struct {
	RoomID string          `json:"roomId"`
	Cursor json.RawMessage `json:"cursor"`
}

// ChatMessageRequest carries a chat line.
type ChatMessageRequest struct {
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

// ChatFileRequest carries an upload descriptor.
type ChatFileRequest struct {
	RoomID string          `json:"roomId"`
	File   json.RawMessage `json:"file"`
}

// LanguageChangeRequest carries the editor mode.
type LanguageChangeRequest struct {
	RoomID   string          `json:"roomId"`
	Language json.RawMessage `json:"language"`
}

// Outbound payloads.

// JoinedPayload is sent to every room member after a join.
type JoinedPayload struct {
	Clients  []domain.Participant `json:"clients"`
	Username string               `json:"username"`
	SocketID string               `json:"socketId"`
}

// DisconnectedPayload tells remaining members that a connection left.
type DisconnectedPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username,omitempty"`
}

// CodePayload is the body of an outbound code-change.
type CodePayload struct {
	Code json.RawMessage `json:"code,omitempty"`
}

// CursorPayload is a cursor move enriched with the sender's identity.
type CursorPayload struct {
	SocketID string          `json:"socketId"`
	Cursor   json.RawMessage `json:"cursor,omitempty"`
	Username string          `json:"username,omitempty"`
	Color    domain.Color    `json:"color,omitempty"`
}

// ChatMessagePayload is a chat line enriched with identity and time.
type ChatMessagePayload struct {
	Message  string       `json:"message"`
	Username string       `json:"username,omitempty"`
	Color    domain.Color `json:"color,omitempty"`
	SocketID string       `json:"socketId"`
	Time     string       `json:"time"`
}

// ChatFilePayload is a shared file enriched with identity and time.
type ChatFilePayload struct {
	File     json.RawMessage `json:"file,omitempty"`
	Username string          `json:"username,omitempty"`
	Color    domain.Color    `json:"color,omitempty"`
	SocketID string          `json:"socketId"`
	Time     string          `json:"time"`
}

// LanguagePayload is the body of an outbound language-change.
type LanguagePayload struct {
	Language json.RawMessage `json:"language,omitempty"`
}

// TypingPayload is the body of typing and stop-typing.
type TypingPayload struct {
	SocketID string `json:"socketId"`
	Username string `json:"username,omitempty"`
}
