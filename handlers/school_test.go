package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernpond/rumble/rumble-backend/models"
)

func TestSchoolRoomNumbering(t *testing.T) {
	school := NewSchool("ps-118", "PS 118")

	first := school.UserCreateGameRoom(GameRoomParams{Name: "first"})
	second := school.UserCreateGameRoom(GameRoomParams{})

	assert.Equal(t, 1, first.ID())
	assert.Equal(t, 2, second.ID())
	assert.Equal(t, "game PS 118", second.Name())

	assert.Equal(t, first, school.GetGameRoom(1))
	assert.Nil(t, school.GetGameRoom(42))
	assert.Len(t, school.GameRoomsInfo(), 2)
}

func TestRoomStatusReachesLobby(t *testing.T) {
	school := resetWorld(t)
	lurker := newTestUserConn(9, "lurker", school)
	school.GetHomeroom().Join(lurker)
	drainEvents(t, lurker)

	room := school.UserCreateGameRoom(GameRoomParams{MaxUsers: 2})
	mustJoin(t, room, newTestUserConn(1, "alice", school))
	mustJoin(t, room, newTestUserConn(2, "bob", school))

	// Filling the room pushes a status update into the homeroom.
	updates := eventsOfType(t, lurker, "update")
	require.Len(t, updates, 1)
	var update roomUpdateEvent
	require.NoError(t, json.Unmarshal(updates[0], &update))
	assert.Equal(t, "status", update.Update)
	assert.Equal(t, room.ID(), update.RoomInfo.Room)
	assert.Equal(t, "full", update.RoomInfo.Status)
}

func TestSchoolRegistry(t *testing.T) {
	resetWorld(t)
	LoadSchools([]models.School{
		{ID: "ps-118", Name: "PS 118"},
		{ID: "ps-119", Name: "PS 119"},
	})

	require.NotNil(t, GetSchool("ps-119"))
	assert.Equal(t, "ps-119", GetSchool("ps-119").ID())
	assert.Nil(t, GetSchool("ps-999"))
}
