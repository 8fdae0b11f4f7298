package handlers

import (
	"context"

	"github.com/fernpond/rumble/rumble-backend/models"
)

// Collaborator contracts. Production implementations live in repository/
// (redis, postgres, mongo); tests substitute in-memory fakes.

// SessionStore holds the socket session records minted at web login.
// Get returns (nil, nil) when the session does not exist.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Put(ctx context.Context, id string, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

// UserStore is the persistence side of a user: the authoritative fetch used
// by the handshake, and the gated avatar write.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	SaveAvatar(ctx context.Context, id int64, avatar models.Avatar) error
}

// MatchStore archives finished matches: the action log first, then the
// relational index row.
type MatchStore interface {
	SaveMatch(ctx context.Context, record *models.MatchRecord) (string, error)
	IndexGame(ctx context.Context, game models.Game) error
}

// Wired once at startup by cmd/main.go.
var (
	Sessions SessionStore
	Users    UserStore
	Matches  MatchStore
)
