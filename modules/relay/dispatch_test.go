package relay

import (
	"encoding/json"
	"testing"
	"time"

	domain "github.com/example/codecollab/domain/room"
	"github.com/example/codecollab/modules/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)

type recordingObserver struct {
	joined []string
	left   []string
}

func (o *recordingObserver) ParticipantJoined(p domain.Participant, roomID string, _ int) {
	o.joined = append(o.joined, p.SocketID+"@"+roomID)
}

func (o *recordingObserver) ParticipantLeft(p domain.Participant, roomID string, _ int, reason string) {
	o.left = append(o.left, p.SocketID+"@"+roomID+":"+reason)
}

func newTestState() *State {
	return NewState(identity.WithColorPicker(func() domain.Color { return domain.Palette[2] }))
}

func ctxFor(socketID string) Context {
	return Context{SocketID: socketID, Now: fixedNow}
}

func envelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Envelope{Event: event, Data: raw}
}

func send(t *testing.T, d *Dispatcher, st *State, from, event string, data any) []Delivery {
	t.Helper()
	out, ok := d.Handle(ctxFor(from), st, envelope(t, event, data))
	require.True(t, ok, "event %q should be known", event)
	return out
}

func recipients(deliveries []Delivery) []string {
	ids := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		ids = append(ids, d.To)
	}
	return ids
}

type decodedFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func decodeFrame(t *testing.T, d Delivery) decodedFrame {
	t.Helper()
	raw, err := d.Msg.Encode()
	require.NoError(t, err)
	var f decodedFrame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func joinAll(t *testing.T, d *Dispatcher, st *State, roomID string, users ...string) {
	t.Helper()
	for _, u := range users {
		send(t, d, st, u, EventJoin, map[string]string{"roomId": roomID, "username": u + "-name"})
	}
}

func TestDispatcher_JoinFirstMember(t *testing.T) {
	d, st := NewDispatcher(), newTestState()

	out := send(t, d, st, "a", EventJoin, map[string]string{"roomId": "r1", "username": "alice"})

	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].To)

	f := decodeFrame(t, out[0])
	assert.Equal(t, EventJoined, f.Event)
	assert.Equal(t, "alice", f.Data["username"])
	assert.Equal(t, "a", f.Data["socketId"])

	clients, ok := f.Data["clients"].([]any)
	require.True(t, ok)
	require.Len(t, clients, 1)
	first := clients[0].(map[string]any)
	assert.Equal(t, "a", first["socketId"])
	assert.Equal(t, "alice", first["username"])
	assert.Equal(t, string(domain.Palette[2]), first["color"])
	assert.Equal(t, true, first["isOnline"])
}

func TestDispatcher_JoinNotifiesEveryMemberInOrder(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a")

	out := send(t, d, st, "b", EventJoin, map[string]string{"roomId": "r1", "username": "bob"})

	assert.Equal(t, []string{"a", "b"}, recipients(out))
	assert.Same(t, out[0].Msg, out[1].Msg)

	f := decodeFrame(t, out[0])
	clients := f.Data["clients"].([]any)
	require.Len(t, clients, 2)
	assert.Equal(t, "a", clients[0].(map[string]any)["socketId"])
	assert.Equal(t, "b", clients[1].(map[string]any)["socketId"])
	assert.Equal(t, "bob", f.Data["username"])
}

func TestDispatcher_JoinWithoutRoomIsIgnored(t *testing.T) {
	d, st := NewDispatcher(), newTestState()

	out := send(t, d, st, "a", EventJoin, map[string]string{"username": "alice"})

	assert.Empty(t, out)
	assert.Equal(t, 0, st.Registry.Len())
	assert.Equal(t, 0, st.Rooms.RoomCount())
}

func TestDispatcher_CodeChangeExcludesSender(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b", "c")

	out := send(t, d, st, "b", EventCodeChange, map[string]string{"roomId": "r1", "code": "print(1)"})

	assert.Equal(t, []string{"a", "c"}, recipients(out))
	f := decodeFrame(t, out[0])
	assert.Equal(t, EventCodeChange, f.Event)
	assert.Equal(t, "print(1)", f.Data["code"])
}

func TestDispatcher_CodeChangeFromNonMemberReachesRoom(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a")

	out := send(t, d, st, "outsider", EventCodeChange, map[string]string{"roomId": "r1", "code": "x"})

	assert.Equal(t, []string{"a"}, recipients(out))
}

func TestDispatcher_CodeChangeToEmptyRoom(t *testing.T) {
	d, st := NewDispatcher(), newTestState()

	out := send(t, d, st, "a", EventCodeChange, map[string]string{"roomId": "nowhere", "code": "x"})

	assert.Empty(t, out)
}

func TestDispatcher_SyncCodeTargetsOneConnection(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b", "c")

	out := send(t, d, st, "a", EventSyncCode, map[string]string{"socketId": "c", "code": "hello"})

	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0].To)
	f := decodeFrame(t, out[0])
	assert.Equal(t, EventCodeChange, f.Event)
	assert.Equal(t, "hello", f.Data["code"])
}

func TestDispatcher_SyncCodeWithoutTarget(t *testing.T) {
	d, st := NewDispatcher(), newTestState()

	out := send(t, d, st, "a", EventSyncCode, map[string]string{"code": "hello"})

	assert.Empty(t, out)
}

func TestDispatcher_CursorChangeIsEnriched(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	cursor := map[string]int{"line": 3, "ch": 7}
	out := send(t, d, st, "a", EventCursorChange, map[string]any{"roomId": "r1", "cursor": cursor})

	assert.Equal(t, []string{"b"}, recipients(out))
	f := decodeFrame(t, out[0])
	assert.Equal(t, EventCursorChange, f.Event)
	assert.Equal(t, "a", f.Data["socketId"])
	assert.Equal(t, "a-name", f.Data["username"])
	assert.Equal(t, string(domain.Palette[2]), f.Data["color"])
	assert.Equal(t, map[string]any{"line": float64(3), "ch": float64(7)}, f.Data["cursor"])
}

func TestDispatcher_ChatMessageIncludesSender(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	out := send(t, d, st, "b", EventChatMessage, map[string]string{"roomId": "r1", "message": "hi all"})

	assert.Equal(t, []string{"a", "b"}, recipients(out))
	f := decodeFrame(t, out[0])
	assert.Equal(t, EventChatMessage, f.Event)
	assert.Equal(t, "hi all", f.Data["message"])
	assert.Equal(t, "b-name", f.Data["username"])
	assert.Equal(t, "b", f.Data["socketId"])
	assert.Equal(t, "3:04:05 PM", f.Data["time"])
}

func TestDispatcher_ChatMessageRejectsBlankOrNonString(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	tests := []struct {
		name string
		data any
	}{
		{"empty", map[string]any{"roomId": "r1", "message": ""}},
		{"whitespace", map[string]any{"roomId": "r1", "message": "  \t\n"}},
		{"missing", map[string]any{"roomId": "r1"}},
		{"number", map[string]any{"roomId": "r1", "message": 42}},
		{"object", map[string]any{"roomId": "r1", "message": map[string]string{"text": "hi"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, send(t, d, st, "a", EventChatMessage, tt.data))
		})
	}
}

func TestDispatcher_ChatFileForwardsDescriptor(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	file := map[string]any{"filename": "1700000000000-notes.txt", "originalName": "notes.txt", "size": 12}
	out := send(t, d, st, "a", EventChatFile, map[string]any{"roomId": "r1", "file": file})

	assert.Equal(t, []string{"a", "b"}, recipients(out))
	f := decodeFrame(t, out[1])
	assert.Equal(t, EventChatFile, f.Event)
	assert.Equal(t, map[string]any{
		"filename":     "1700000000000-notes.txt",
		"originalName": "notes.txt",
		"size":         float64(12),
	}, f.Data["file"])
	assert.Equal(t, "a-name", f.Data["username"])
	assert.Equal(t, "3:04:05 PM", f.Data["time"])
}

func TestDispatcher_LanguageChangeExcludesSender(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	out := send(t, d, st, "a", EventLanguageChange, map[string]string{"roomId": "r1", "language": "python"})

	assert.Equal(t, []string{"b"}, recipients(out))
	f := decodeFrame(t, out[0])
	assert.Equal(t, "python", f.Data["language"])
}

func TestDispatcher_TypingExcludesSender(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	for _, event := range []string{EventTyping, EventStopTyping} {
		out := send(t, d, st, "a", event, map[string]string{"roomId": "r1"})

		assert.Equal(t, []string{"b"}, recipients(out))
		f := decodeFrame(t, out[0])
		assert.Equal(t, event, f.Event)
		assert.Equal(t, "a", f.Data["socketId"])
		assert.Equal(t, "a-name", f.Data["username"])
	}
}

func TestDispatcher_LeaveKeepsIdentity(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	out := send(t, d, st, "a", EventLeave, map[string]string{"roomId": "r1"})

	assert.Equal(t, []string{"b"}, recipients(out))
	f := decodeFrame(t, out[0])
	assert.Equal(t, EventDisconnected, f.Event)
	assert.Equal(t, "a", f.Data["socketId"])
	assert.Equal(t, "a-name", f.Data["username"])

	assert.False(t, st.Rooms.IsMember("a", "r1"))
	_, ok := st.Registry.Lookup("a")
	assert.True(t, ok)
}

func TestDispatcher_LeaveWhenNotMember(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "b")

	out := send(t, d, st, "a", EventLeave, map[string]string{"roomId": "r1"})

	assert.Empty(t, out)
	assert.Equal(t, []string{"b"}, st.Rooms.MembersOf("r1"))
}

func TestDispatcher_DisconnectNotifiesEveryRoom(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")
	joinAll(t, d, st, "r2", "a", "c")

	out := d.Disconnect(ctxFor("a"), st)

	assert.ElementsMatch(t, []string{"b", "c"}, recipients(out))
	for _, delivery := range out {
		f := decodeFrame(t, delivery)
		assert.Equal(t, EventDisconnected, f.Event)
		assert.Equal(t, "a", f.Data["socketId"])
		assert.Equal(t, "a-name", f.Data["username"])
	}

	_, ok := st.Registry.Lookup("a")
	assert.False(t, ok)
	assert.Nil(t, st.Rooms.RoomsOf("a"))
}

func TestDispatcher_DisconnectLastMemberDropsRoom(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a")

	out := d.Disconnect(ctxFor("a"), st)

	assert.Empty(t, out)
	assert.Equal(t, 0, st.Rooms.RoomCount())
	assert.Equal(t, 0, st.Registry.Len())
}

func TestDispatcher_DisconnectWithoutJoin(t *testing.T) {
	d, st := NewDispatcher(), newTestState()

	assert.Empty(t, d.Disconnect(ctxFor("ghost"), st))
}

func TestDispatcher_RejoinUpdatesIdentity(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	send(t, d, st, "a", EventJoin, map[string]string{"roomId": "r1", "username": "alice"})

	out := send(t, d, st, "a", EventJoin, map[string]string{"roomId": "r2", "username": "alicia"})

	assert.Equal(t, []string{"a"}, recipients(out))
	p, ok := st.Registry.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "alicia", p.Username)
	assert.Equal(t, []string{"r1", "r2"}, st.Rooms.RoomsOf("a"))
}

func TestDispatcher_MalformedPayloadIsTolerated(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	joinAll(t, d, st, "r1", "a", "b")

	out, ok := d.Handle(ctxFor("a"), st, Envelope{Event: EventCodeChange, Data: json.RawMessage(`"not an object"`)})

	assert.True(t, ok)
	assert.Empty(t, out)
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	d, st := NewDispatcher(), newTestState()

	out, ok := d.Handle(ctxFor("a"), st, Envelope{Event: "self-destruct"})

	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestDispatcher_ObserverSeesTransitions(t *testing.T) {
	d, st := NewDispatcher(), newTestState()
	obs := &recordingObserver{}
	st.Observer = obs

	joinAll(t, d, st, "r1", "a", "b")
	send(t, d, st, "a", EventLeave, map[string]string{"roomId": "r1"})
	d.Disconnect(ctxFor("b"), st)

	assert.Equal(t, []string{"a@r1", "b@r1"}, obs.joined)
	assert.Equal(t, []string{"a@r1:leave", "b@r1:disconnect"}, obs.left)
}
