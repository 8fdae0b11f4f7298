package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernpond/rumble/rumble-backend/models"
)

func loginRaw(session, token string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"session":%q,"token":%q}`, session, token))
}

// lastLoginError drains the connection and decodes the final loginError event.
func lastLoginError(t *testing.T, c *Connection) *RoomError {
	t.Helper()
	events := eventsOfType(t, c, "loginError")
	if len(events) == 0 {
		return nil
	}
	var roomErr RoomError
	require.NoError(t, json.Unmarshal(events[len(events)-1], &roomErr))
	return &roomErr
}

func validSession(token string) *models.Session {
	return &models.Session{
		User:   &models.SessionUser{ID: 1, Nickname: "alice"},
		Token:  token,
		School: "ps-118",
	}
}

func TestLoginFailureCodes(t *testing.T) {
	tests := []struct {
		name     string
		session  string
		token    string
		setup    func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore)
		wantCode string
	}{
		{
			name:     "missing credentials",
			wantCode: ErrMissing,
		},
		{
			name:    "session store down",
			session: "s1", token: "tok",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				sessions.getErr = errors.New("connection refused")
			},
			wantCode: ErrStoreError,
		},
		{
			name:    "unknown session",
			session: "nope", token: "tok",
			wantCode: ErrNoSession,
		},
		{
			name:    "session without user",
			session: "s1", token: "tok",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				sessions.sessions["s1"] = &models.Session{Token: "tok", School: "ps-118"}
			},
			wantCode: ErrNotLoggedIn,
		},
		{
			name:    "stale token",
			session: "s1", token: "old",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				sessions.sessions["s1"] = validSession("fresh")
			},
			wantCode: ErrBadToken,
		},
		{
			name:    "identity already connected",
			session: "s1", token: "tok",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				sessions.sessions["s1"] = validSession("tok")
				require.True(t, registry.Register(1, newTestConn()))
			},
			wantCode: ErrAlreadyConnected,
		},
		{
			name:    "unknown school",
			session: "s1", token: "tok",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				session := validSession("tok")
				session.School = "closed-down"
				sessions.sessions["s1"] = session
			},
			wantCode: ErrUnknownSchool,
		},
		{
			name:    "user store down",
			session: "s1", token: "tok",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				sessions.sessions["s1"] = validSession("tok")
				users.findErr = errors.New("connection refused")
			},
			wantCode: ErrDBError,
		},
		{
			name:    "user row gone",
			session: "s1", token: "tok",
			setup: func(t *testing.T, sessions *fakeSessionStore, users *fakeUserStore) {
				sessions.sessions["s1"] = validSession("tok")
				delete(users.users, 1)
			},
			wantCode: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetWorld(t)
			sessions := &fakeSessionStore{sessions: make(map[string]*models.Session)}
			users := &fakeUserStore{users: map[int64]*models.User{
				1: {ID: 1, Username: "alice", Nickname: "alice", Level: 1, School: "ps-118"},
			}}
			Sessions = sessions
			Users = users
			before := registry.Len()
			if tt.setup != nil {
				tt.setup(t, sessions, users)
			}

			c := newTestConn()
			loginHandler(c, loginRaw(tt.session, tt.token))

			roomErr := lastLoginError(t, c)
			require.NotNil(t, roomErr, "expected a loginError event")
			assert.Equal(t, tt.wantCode, roomErr.Code)

			// A failed handshake must not claim the identity or a room.
			assert.Nil(t, c.identity())
			assert.Nil(t, c.currentRoom())
			if tt.wantCode == ErrAlreadyConnected {
				assert.NotEqual(t, c, registry.Get(1))
			} else {
				assert.Equal(t, before, registry.Len())
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	school := resetWorld(t)
	sessions := &fakeSessionStore{sessions: map[string]*models.Session{"s1": validSession("tok")}}
	// A row fresh out of the database can carry a nil avatar.
	users := &fakeUserStore{users: map[int64]*models.User{
		1: {ID: 1, Username: "alice", Nickname: "alice", Level: 3, School: "ps-118"},
	}}
	Sessions = sessions
	Users = users

	c := newTestConn()
	loginHandler(c, loginRaw("s1", "tok"))

	require.Equal(t, c, registry.Get(1))
	require.NotNil(t, c.identity())
	assert.Equal(t, "alice", c.identity().Nickname)
	assert.NotNil(t, c.sessionAvatar())

	// Login lands the player in the school homeroom.
	assert.Equal(t, Room(school.GetHomeroom()), c.currentRoom())
	assert.Equal(t, 1, school.GetHomeroom().OccupantCount())

	goEvents := eventsOfType(t, c, "go")
	require.Len(t, goEvents, 1)
	var landed goHomeroomEvent
	require.NoError(t, json.Unmarshal(goEvents[0], &landed))
	assert.Equal(t, "homeroom", landed.To)
	assert.Equal(t, "alice", landed.Nickname)
	assert.False(t, landed.Booted)
	require.Len(t, landed.Occupants, 1)
	assert.Equal(t, int64(1), landed.Occupants[0].ID)
}

func TestSecondSocketForSameIdentityIsRejected(t *testing.T) {
	resetWorld(t)
	sessions := &fakeSessionStore{sessions: map[string]*models.Session{"s1": validSession("tok")}}
	users := &fakeUserStore{users: map[int64]*models.User{
		1: {ID: 1, Username: "alice", Nickname: "alice", Level: 1, School: "ps-118"},
	}}
	Sessions = sessions
	Users = users

	first := newTestConn()
	loginHandler(first, loginRaw("s1", "tok"))
	require.Equal(t, first, registry.Get(1))

	second := newTestConn()
	loginHandler(second, loginRaw("s1", "tok"))

	roomErr := lastLoginError(t, second)
	require.NotNil(t, roomErr)
	assert.Equal(t, ErrAlreadyConnected, roomErr.Code)
	assert.Nil(t, second.identity())

	// The original socket keeps the identity.
	assert.Equal(t, first, registry.Get(1))
}

func TestDuplicateLoginEventIgnored(t *testing.T) {
	school := resetWorld(t)
	sessions := &fakeSessionStore{sessions: map[string]*models.Session{"s1": validSession("tok")}}
	users := &fakeUserStore{users: map[int64]*models.User{
		1: {ID: 1, Username: "alice", Nickname: "alice", Level: 1, School: "ps-118"},
	}}
	Sessions = sessions
	Users = users

	c := newTestConn()
	c.dispatch([]byte(`{"type":"login","data":{"session":"s1","token":"tok"}}`))
	require.NotNil(t, c.identity())
	drainEvents(t, c)

	c.dispatch([]byte(`{"type":"login","data":{"session":"s1","token":"tok"}}`))

	assert.Nil(t, nextEvent(t, c))
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, school.GetHomeroom().OccupantCount())
}

func TestUnauthenticatedEventsIgnored(t *testing.T) {
	resetWorld(t)
	c := newTestConn()

	for _, raw := range []string{
		`{"type":"say","data":{"text":"hello?"}}`,
		`{"type":"joingame","data":{"room":1}}`,
		`{"type":"ping"}`,
		`{"type":"data","data":{}}`,
		`not even json`,
	} {
		c.dispatch([]byte(raw))
	}

	assert.Nil(t, nextEvent(t, c))
	assert.Equal(t, 0, registry.Len())
}

func TestClosedConnectionNeverRegisters(t *testing.T) {
	resetWorld(t)
	sessions := &fakeSessionStore{sessions: map[string]*models.Session{"s1": validSession("tok")}}
	users := &fakeUserStore{users: map[int64]*models.User{
		1: {ID: 1, Username: "alice", Nickname: "alice", Level: 1, School: "ps-118"},
	}}
	Sessions = sessions
	Users = users

	c := newTestConn()
	c.end()
	loginHandler(c, loginRaw("s1", "tok"))

	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, c.identity())
}
