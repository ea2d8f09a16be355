package relay

import (
	"context"
	"testing"

	domain "github.com/example/codecollab/domain/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_Lifecycle(t *testing.T) {
	m := NewModule(newMockLogger())

	assert.Equal(t, "relay", m.Name())
	assert.Len(t, m.EmitEvents(), 2)
	require.NotNil(t, m.Hub())

	require.NoError(t, m.Start(context.Background()))

	health := m.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Equal(t, 0, health.Details["connections"])

	require.NoError(t, m.Stop(context.Background()))

	health = m.Health(context.Background())
	assert.False(t, health.Healthy)
}

func TestModule_ServicesReadHubState(t *testing.T) {
	m := NewModule(newMockLogger())
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	a := NewClient("a", 8)
	m.Hub().Register(a)
	deliver(t, m.Hub(), a, EventJoin, map[string]string{"roomId": "r1", "username": "alice"})

	roster, err := m.roomRoster(context.Background(), RoomRosterRequest{RoomID: "r1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, roster.Total)
	assert.Equal(t, "alice", roster.Participants[0].Username)

	empty, err := m.roomRoster(context.Background(), RoomRosterRequest{RoomID: "none"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Participants)
	assert.Equal(t, 0, empty.Total)

	stats, err := m.stats(context.Background(), StatsRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Connections: 1, Participants: 1, Rooms: 1}, stats.Stats)
}

func TestModule_ObserverWithoutEventBus(t *testing.T) {
	m := NewModule(newMockLogger())
	p := domain.Participant{SocketID: "a", Username: "alice"}

	assert.NotPanics(t, func() {
		m.ParticipantJoined(p, "r1", 1)
		m.ParticipantLeft(p, "r1", 0, ReasonDisconnect)
	})
}
