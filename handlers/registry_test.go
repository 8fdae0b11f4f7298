package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySingleHolder(t *testing.T) {
	r := NewIdentityRegistry()
	first := newTestConn()
	second := newTestConn()

	require.True(t, r.Register(1, first))
	assert.False(t, r.Register(1, second))
	assert.Equal(t, first, r.Get(1))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryStaleUnregisterKeepsNewerConn(t *testing.T) {
	r := NewIdentityRegistry()
	old := newTestConn()
	require.True(t, r.Register(1, old))

	// Old connection drops, a replacement claims the identity, and only then
	// does the old connection's cleanup run.
	r.Unregister(1, old)
	replacement := newTestConn()
	require.True(t, r.Register(1, replacement))
	r.Unregister(1, old)

	assert.Equal(t, replacement, r.Get(1))
}

func TestAnnounceReachesEveryConnection(t *testing.T) {
	school := resetWorld(t)
	r := NewIdentityRegistry()

	inLobby := newTestUserConn(1, "alice", school)
	inGame := newTestUserConn(2, "bob", school)
	roomless := newTestUserConn(3, "carol", school)
	require.True(t, r.Register(1, inLobby))
	require.True(t, r.Register(2, inGame))
	require.True(t, r.Register(3, roomless))

	school.GetHomeroom().Join(inLobby)
	room, _ := newTestGameRoom(4)
	mustJoin(t, room, inGame)
	drainEvents(t, inLobby)
	drainEvents(t, inGame)

	r.Announce("principal", "school's out early")

	for _, c := range []*Connection{inLobby, inGame, roomless} {
		events := eventsOfType(t, c, "announcement")
		require.Len(t, events, 1)
		var msg announcementEvent
		require.NoError(t, json.Unmarshal(events[0], &msg))
		assert.Equal(t, "principal", msg.From)
		assert.Equal(t, "school's out early", msg.Text)
	}
}
