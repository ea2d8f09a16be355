package relay

import (
	"encoding/json"
	"strings"
	"time"

	domain "github.com/example/codecollab/domain/room"
	"github.com/example/codecollab/modules/identity"
)

// Left reasons reported to the Observer.
const (
	ReasonLeave      = "leave"
	ReasonDisconnect = "disconnect"
)

// Context identifies the connection an event came from.
type Context struct {
	SocketID string
	Now      time.Time
}

// Observer is told about membership transitions. Calls happen on the hub
// goroutine and must not block.
type Observer interface {
	ParticipantJoined(p domain.Participant, roomID string, members int)
	ParticipantLeft(p domain.Participant, roomID string, remaining int, reason string)
}

// State is the shared mutable relay state. Only the hub goroutine touches it.
type State struct {
	Registry *identity.Registry
	Rooms    *Membership
	Observer Observer
}

// NewState creates empty relay state.
func NewState(opts ...identity.Option) *State {
	return &State{
		Registry: identity.NewRegistry(opts...),
		Rooms:    NewMembership(),
	}
}

// Delivery is one outbound event addressed to one connection.
type Delivery struct {
	To  string
	Msg *Outbound
}

// HandlerFunc turns one inbound event into the deliveries it causes.
type HandlerFunc func(c Context, st *State, data json.RawMessage) []Delivery

// Dispatcher maps inbound event names to handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates a dispatcher with the relay's event table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: map[string]HandlerFunc{
			EventJoin:           handleJoin,
			EventLeave:          handleLeave,
			EventCodeChange:     handleCodeChange,
			EventSyncCode:       handleSyncCode,
			EventCursorChange:   handleCursorChange,
			EventChatMessage:    handleChatMessage,
			EventChatFile:       handleChatFile,
			EventLanguageChange: handleLanguageChange,
			EventTyping:         typingHandler(EventTyping),
			EventStopTyping:     typingHandler(EventStopTyping),
		},
	}
}

// Handle runs the handler for env.Event. It reports false for unknown events.
func (d *Dispatcher) Handle(c Context, st *State, env Envelope) ([]Delivery, bool) {
	h, ok := d.handlers[env.Event]
	if !ok {
		return nil, false
	}
	return h(c, st, env.Data), true
}

// Disconnect tears down a connection: remaining members of each of its rooms
// are told, then its identity is dropped.
func (d *Dispatcher) Disconnect(c Context, st *State) []Delivery {
	p, _ := st.Registry.Lookup(c.SocketID)

	var out []Delivery
	for _, roomID := range st.Rooms.RoomsOf(c.SocketID) {
		out = append(out, departure(c, st, p, roomID, ReasonDisconnect)...)
	}
	st.Registry.Remove(c.SocketID)
	return out
}

func handleJoin(c Context, st *State, data json.RawMessage) []Delivery {
	var in JoinRequest
	decode(data, &in)
	if in.RoomID == "" {
		return nil
	}

	p := st.Registry.Register(c.SocketID, in.Username)
	st.Rooms.Join(c.SocketID, in.RoomID)

	members := st.Rooms.MembersOf(in.RoomID)
	msg := &Outbound{Event: EventJoined, Payload: JoinedPayload{
		Clients:  roster(st, members),
		Username: in.Username,
		SocketID: c.SocketID,
	}}

	if st.Observer != nil {
		st.Observer.ParticipantJoined(p, in.RoomID, len(members))
	}
	return fanout(members, "", msg)
}

func handleLeave(c Context, st *State, data json.RawMessage) []Delivery {
	var in RoomRequest
	decode(data, &in)
	if !st.Rooms.IsMember(c.SocketID, in.RoomID) {
		return nil
	}
	p, _ := st.Registry.Lookup(c.SocketID)
	return departure(c, st, p, in.RoomID, ReasonLeave)
}

func handleCodeChange(c Context, st *State, data json.RawMessage) []Delivery {
	var in CodeChangeRequest
	decode(data, &in)
	msg := &Outbound{Event: EventCodeChange, Payload: CodePayload{Code: in.Code}}
	return fanout(st.Rooms.MembersOf(in.RoomID), c.SocketID, msg)
}

func handleSyncCode(_ Context, _ *State, data json.RawMessage) []Delivery {
	var in SyncCodeRequest
	decode(data, &in)
	if in.SocketID == "" {
		return nil
	}
	msg := &Outbound{Event: EventCodeChange, Payload: CodePayload{Code: in.Code}}
	return []Delivery{{To: in.SocketID, Msg: msg}}
}

func handleCursorChange(c Context, st *State, data json.RawMessage) []Delivery {
	var in CursorChangeRequest
	decode(data, &in)
	p, _ := st.Registry.Lookup(c.SocketID)
	msg := &Outbound{Event: EventCursorChange, Payload: CursorPayload{
		SocketID: c.SocketID,
		Cursor:   in.Cursor,
		Username: p.Username,
		Color:    p.Color,
	}}
	return fanout(st.Rooms.MembersOf(in.RoomID), c.SocketID, msg)
}

func handleChatMessage(c Context, st *State, data json.RawMessage) []Delivery {
	var in ChatMessageRequest
	decode(data, &in)

	var text string
	if err := json.Unmarshal(in.Message, &text); err != nil || strings.TrimSpace(text) == "" {
		return nil
	}

	p, _ := st.Registry.Lookup(c.SocketID)
	msg := &Outbound{Event: EventChatMessage, Payload: ChatMessagePayload{
		Message:  text,
		Username: p.Username,
		Color:    p.Color,
		SocketID: c.SocketID,
		Time:     c.Now.Format(TimeLayout),
	}}
	return fanout(st.Rooms.MembersOf(in.RoomID), "", msg)
}

func handleChatFile(c Context, st *State, data json.RawMessage) []Delivery {
	var in ChatFileRequest
	decode(data, &in)
	p, _ := st.Registry.Lookup(c.SocketID)
	msg := &Outbound{Event: EventChatFile, Payload: ChatFilePayload{
		File:     in.File,
		Username: p.Username,
		Color:    p.Color,
		SocketID: c.SocketID,
		Time:     c.Now.Format(TimeLayout),
	}}
	return fanout(st.Rooms.MembersOf(in.RoomID), "", msg)
}

func handleLanguageChange(c Context, st *State, data json.RawMessage) []Delivery {
	var in LanguageChangeRequest
	decode(data, &in)
	msg := &Outbound{Event: EventLanguageChange, Payload: LanguagePayload{Language: in.Language}}
	return fanout(st.Rooms.MembersOf(in.RoomID), c.SocketID, msg)
}

func typingHandler(event string) HandlerFunc {
	return func(c Context, st *State, data json.RawMessage) []Delivery {
		var in RoomRequest
		decode(data, &in)
		p, _ := st.Registry.Lookup(c.SocketID)
		msg := &Outbound{Event: event, Payload: TypingPayload{
			SocketID: c.SocketID,
			Username: p.Username,
		}}
		return fanout(st.Rooms.MembersOf(in.RoomID), c.SocketID, msg)
	}
}

// departure removes the connection from one room and tells whoever is left.
func departure(c Context, st *State, p domain.Participant, roomID, reason string) []Delivery {
	st.Rooms.Leave(c.SocketID, roomID)
	remaining := st.Rooms.MembersOf(roomID)

	if st.Observer != nil {
		if p.SocketID == "" {
			p.SocketID = c.SocketID
		}
		st.Observer.ParticipantLeft(p, roomID, len(remaining), reason)
	}

	msg := &Outbound{Event: EventDisconnected, Payload: DisconnectedPayload{
		SocketID: c.SocketID,
		Username: p.Username,
	}}
	return fanout(remaining, "", msg)
}

// roster builds the client list for a joined event. Members without a
// registered identity still appear with their socket id.
func roster(st *State, members []string) []domain.Participant {
	clients := make([]domain.Participant, 0, len(members))
	for _, id := range members {
		p, ok := st.Registry.Lookup(id)
		if !ok {
			p = domain.Participant{SocketID: id}
		}
		clients = append(clients, p)
	}
	return clients
}

// fanout addresses msg to every member except skip.
func fanout(members []string, skip string, msg *Outbound) []Delivery {
	out := make([]Delivery, 0, len(members))
	for _, id := range members {
		if id == skip {
			continue
		}
		out = append(out, Delivery{To: id, Msg: msg})
	}
	return out
}

// decode fills v from data on a best-effort basis. Payloads that do not
// decode leave v at its zero value.
func decode(data json.RawMessage, v any) {
	if len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, v)
}
