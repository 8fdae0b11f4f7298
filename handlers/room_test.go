package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeroomJoinAndLeave(t *testing.T) {
	school := resetWorld(t)
	room := school.GetHomeroom()

	alice := newTestUserConn(1, "alice", school)
	bob := newTestUserConn(2, "bob", school)
	carol := newTestUserConn(3, "carol", school)

	info, roomErr := room.Join(alice)
	require.Nil(t, roomErr)
	require.Len(t, info.Occupants, 1)
	assert.Equal(t, Room(room), alice.currentRoom())

	// The joiner must not see their own join broadcast.
	assert.Empty(t, eventsOfType(t, alice, "join"))

	_, roomErr = room.Join(bob)
	require.Nil(t, roomErr)
	_, roomErr = room.Join(carol)
	require.Nil(t, roomErr)

	// Alice saw both later joins, bob only carol's.
	assert.Len(t, eventsOfType(t, alice, "join"), 2)
	bobJoins := eventsOfType(t, bob, "join")
	require.Len(t, bobJoins, 1)
	var joined joinEvent
	require.NoError(t, json.Unmarshal(bobJoins[0], &joined))
	assert.Equal(t, int64(3), joined.ID)
	assert.Equal(t, "carol", joined.Nickname)

	// Occupant order is join order.
	info = room.Info()
	require.Len(t, info.Occupants, 3)
	assert.Equal(t, int64(1), info.Occupants[0].ID)
	assert.Equal(t, int64(2), info.Occupants[1].ID)
	assert.Equal(t, int64(3), info.Occupants[2].ID)

	require.Nil(t, room.Leave(bob))
	assert.Nil(t, bob.currentRoom())
	assert.Equal(t, 2, room.OccupantCount())

	aliceLeaves := eventsOfType(t, alice, "leave")
	require.Len(t, aliceLeaves, 1)
	var left leaveEvent
	require.NoError(t, json.Unmarshal(aliceLeaves[0], &left))
	assert.Equal(t, int64(2), left.ID)

	// Leaving twice reports not-in-room.
	roomErr = room.Leave(bob)
	require.NotNil(t, roomErr)
	assert.Equal(t, ErrNoRoom, roomErr.Code)
}

func TestSayReachesEveryoneIncludingSender(t *testing.T) {
	school := resetWorld(t)
	room := school.GetHomeroom()

	alice := newTestUserConn(1, "alice", school)
	bob := newTestUserConn(2, "bob", school)
	room.Join(alice)
	room.Join(bob)
	drainEvents(t, alice)
	drainEvents(t, bob)

	room.Say(alice, "hi there")

	for _, c := range []*Connection{alice, bob} {
		says := eventsOfType(t, c, "say")
		require.Len(t, says, 1)
		var msg sayEvent
		require.NoError(t, json.Unmarshal(says[0], &msg))
		assert.Equal(t, int64(1), msg.ID)
		assert.Equal(t, "hi there", msg.Text)
	}
}

func TestFloodSquelchSilencesSenderOnly(t *testing.T) {
	school := resetWorld(t)
	room := school.GetHomeroom()
	room.floodCfg = FloodConfig{Window: time.Minute, MaxMessages: 2, SquelchFor: time.Hour}

	alice := newTestUserConn(1, "alice", school)
	bob := newTestUserConn(2, "bob", school)
	room.Join(alice)
	room.Join(bob)
	drainEvents(t, alice)
	drainEvents(t, bob)

	room.Say(alice, "one")
	room.Say(alice, "two")
	room.Say(alice, "three")
	room.Say(alice, "four")

	// Only the first two got through, to everyone.
	assert.Len(t, eventsOfType(t, bob, "say"), 2)

	// The sender alone learns they were squelched, once per attempt.
	assert.Empty(t, eventsOfType(t, bob, "squelched"))
	aliceSquelched := eventsOfType(t, alice, "squelched")
	require.Len(t, aliceSquelched, 2)
	var squelched squelchedEvent
	require.NoError(t, json.Unmarshal(aliceSquelched[0], &squelched))
	assert.Greater(t, squelched.Until, time.Now().UnixMilli())

	// Others can still talk.
	room.Say(bob, "still here")
	assert.Len(t, eventsOfType(t, alice, "say"), 3)
}

func TestFloodSquelchExpires(t *testing.T) {
	school := resetWorld(t)
	room := school.GetHomeroom()
	room.floodCfg = FloodConfig{Window: time.Minute, MaxMessages: 1, SquelchFor: 10 * time.Millisecond}

	alice := newTestUserConn(1, "alice", school)
	bob := newTestUserConn(2, "bob", school)
	room.Join(alice)
	room.Join(bob)
	drainEvents(t, alice)
	drainEvents(t, bob)

	room.Say(alice, "one")
	room.Say(alice, "two")
	assert.Len(t, eventsOfType(t, bob, "say"), 1)

	time.Sleep(20 * time.Millisecond)
	room.Say(alice, "back")
	assert.Len(t, eventsOfType(t, bob, "say"), 1)
}

func TestLeaveResetsFloodState(t *testing.T) {
	school := resetWorld(t)
	room := school.GetHomeroom()
	room.floodCfg = FloodConfig{Window: time.Minute, MaxMessages: 1, SquelchFor: time.Hour}

	alice := newTestUserConn(1, "alice", school)
	bob := newTestUserConn(2, "bob", school)
	room.Join(alice)
	room.Join(bob)

	room.Say(alice, "one")
	room.Say(alice, "two") // squelched

	require.Nil(t, room.Leave(alice))
	room.Join(alice)
	drainEvents(t, alice)
	drainEvents(t, bob)

	room.Say(alice, "fresh start")
	assert.Len(t, eventsOfType(t, bob, "say"), 1)
}
