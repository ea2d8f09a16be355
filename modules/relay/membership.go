package relay

// Membership tracks which connections are joined to which rooms.
// A room exists only while it has members. Not safe for concurrent use.
type Membership struct {
	rooms map[string][]string // roomID -> socketIDs in join order
	conns map[string][]string // socketID -> roomIDs in join order
}

// NewMembership creates an empty membership index.
func NewMembership() *Membership {
	return &Membership{
		rooms: make(map[string][]string),
		conns: make(map[string][]string),
	}
}

// Join adds a connection to a room. It reports false if the room id is
// empty or the connection is already a member.
func (m *Membership) Join(socketID, roomID string) bool {
	if roomID == "" || m.IsMember(socketID, roomID) {
		return false
	}
	m.rooms[roomID] = append(m.rooms[roomID], socketID)
	m.conns[socketID] = append(m.conns[socketID], roomID)
	return true
}

// Leave removes a connection from one room.
func (m *Membership) Leave(socketID, roomID string) bool {
	if !m.IsMember(socketID, roomID) {
		return false
	}
	m.rooms[roomID] = without(m.rooms[roomID], socketID)
	if len(m.rooms[roomID]) == 0 {
		delete(m.rooms, roomID)
	}
	m.conns[socketID] = without(m.conns[socketID], roomID)
	if len(m.conns[socketID]) == 0 {
		delete(m.conns, socketID)
	}
	return true
}

// LeaveAll removes a connection from every room and returns those rooms.
func (m *Membership) LeaveAll(socketID string) []string {
	rooms := m.RoomsOf(socketID)
	for _, roomID := range rooms {
		m.Leave(socketID, roomID)
	}
	return rooms
}

// MembersOf returns the connections joined to a room.
func (m *Membership) MembersOf(roomID string) []string {
	return clone(m.rooms[roomID])
}

// RoomsOf returns the rooms a connection is joined to.
func (m *Membership) RoomsOf(socketID string) []string {
	return clone(m.conns[socketID])
}

// IsMember reports whether the connection is joined to the room.
func (m *Membership) IsMember(socketID, roomID string) bool {
	for _, id := range m.rooms[roomID] {
		if id == socketID {
			return true
		}
	}
	return false
}

// RoomCount returns the number of non-empty rooms.
func (m *Membership) RoomCount() int {
	return len(m.rooms)
}

// MemberCount returns the number of connections joined to at least one room.
func (m *Membership) MemberCount() int {
	return len(m.conns)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func clone(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
