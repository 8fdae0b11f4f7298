package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fernpond/rumble/rumble-backend/models"
)

// newTestConn builds a connection without a live socket; outbound events pile
// up in the send buffer where tests can read them back.
func newTestConn() *Connection {
	return &Connection{send: make(chan []byte, 256)}
}

func newTestUserConn(id int64, nickname string, school *School) *Connection {
	c := newTestConn()
	c.setIdentity(&models.User{
		ID:       id,
		Username: nickname,
		Nickname: nickname,
		Avatar:   models.Avatar{},
		Level:    1,
	}, school)
	return c
}

// nextEvent pops one queued outbound event, or nil if none is pending.
func nextEvent(t *testing.T, c *Connection) *models.Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		if raw == nil {
			return nil
		}
		var envelope models.Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		return &envelope
	default:
		return nil
	}
}

// eventsOfType drains the send buffer and returns the decoded payloads of
// every queued event with the given type.
func eventsOfType(t *testing.T, c *Connection, eventType string) []json.RawMessage {
	t.Helper()
	var matches []json.RawMessage
	for {
		envelope := nextEvent(t, c)
		if envelope == nil {
			return matches
		}
		if envelope.Type == eventType {
			matches = append(matches, envelope.Data)
		}
	}
}

func drainEvents(t *testing.T, c *Connection) {
	t.Helper()
	for nextEvent(t, c) != nil {
	}
}

// fakeSessionStore is an in-memory stand-in for the redis session store.
type fakeSessionStore struct {
	sessions map[string]*models.Session
	getErr   error
}

func (f *fakeSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sessions[id], nil
}

func (f *fakeSessionStore) Put(ctx context.Context, id string, session *models.Session) error {
	if f.sessions == nil {
		f.sessions = make(map[string]*models.Session)
	}
	f.sessions[id] = session
	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

// fakeUserStore is an in-memory stand-in for the postgres user store.
type fakeUserStore struct {
	users   map[int64]*models.User
	findErr error
	saveErr error
	saved   map[int64]models.Avatar
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) SaveAvatar(ctx context.Context, id int64, avatar models.Avatar) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[int64]models.Avatar)
	}
	f.saved[id] = avatar
	return nil
}

// resetWorld gives each test a clean registry and school map and restores the
// previous state afterwards.
func resetWorld(t *testing.T) *School {
	t.Helper()

	oldRegistry := registry
	oldSessions := Sessions
	oldUsers := Users
	oldMatches := Matches

	registry = NewIdentityRegistry()
	Matches = nil

	schoolsMu.Lock()
	oldSchools := schools
	school := NewSchool("ps-118", "PS 118")
	schools = map[string]*School{school.ID(): school}
	schoolsMu.Unlock()

	t.Cleanup(func() {
		registry = oldRegistry
		Sessions = oldSessions
		Users = oldUsers
		Matches = oldMatches
		schoolsMu.Lock()
		schools = oldSchools
		schoolsMu.Unlock()
	})
	return school
}
