package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fernpond/rumble/rumble-backend/models"
)

type loginData struct {
	Session string `json:"session"`
	Token   string `json:"token"`
}

// loginHandler validates the (session id, token) pair a fresh socket presents
// and attaches the verified identity to the connection. Checks run in a fixed
// order and short-circuit at the first failure; each failure maps to exactly
// one machine-readable code. A connection authenticates at most once.
func loginHandler(c *Connection, raw json.RawMessage) {
	var data loginData
	if raw != nil {
		if err := json.Unmarshal(raw, &data); err != nil {
			return
		}
	}
	if data.Session == "" || data.Token == "" {
		log.Println("Socket login: event missing session or token")
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrMissing, Message: "Missing session or token"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := Sessions.Get(ctx, data.Session)
	if err != nil {
		log.Printf("Socket login: couldn't access session store for session id %s: %v", data.Session, err)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrStoreError, Message: "Couldn't access session store"})
		return
	}
	if session == nil {
		log.Printf("Socket login: no such session %s", data.Session)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrNoSession, Message: "No such session"})
		return
	}
	if session.User == nil {
		log.Printf("Socket login: session's not logged in %s", data.Session)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrNotLoggedIn, Message: "Session's not logged in"})
		return
	}
	if session.Token != data.Token {
		log.Printf("Socket login: bad token for session %s", data.Session)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrBadToken, Message: "Bad token"})
		return
	}
	if registry.Get(session.User.ID) != nil {
		log.Printf("Socket login: user %s already has a connected socket", session.User.Nickname)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrAlreadyConnected, Message: "Already connected"})
		return
	}
	school := GetSchool(session.School)
	if school == nil {
		log.Printf("Socket login: user %s has unknown school %q", session.User.Nickname, session.School)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrUnknownSchool, Message: "Unknown school"})
		return
	}

	// The session's user snapshot may be stale and lacks avatar defaults;
	// fetch the authoritative record.
	user, err := Users.FindByID(ctx, session.User.ID)
	if err != nil {
		log.Printf("Socket login: couldn't find user object due to database problem: %v", err)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrDBError, Message: "Database trouble"})
		return
	}
	if user == nil {
		log.Printf("Socket login: couldn't find user for id %d in database", session.User.ID)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrUserNotFound, Message: "Couldn't find user in db"})
		return
	}

	// Other events were processed while we were in the stores; re-validate
	// before mutating shared state. The registry insert is the atomic claim
	// on the identity, so a racing second socket loses exactly one of these.
	if c.isClosed() {
		return
	}
	if !registry.Register(user.ID, c) {
		log.Printf("Socket login: user %s connected twice during handshake", user.Nickname)
		c.writeError("loginError", &RoomError{Where: "login", Code: ErrAlreadyConnected, Message: "Already connected"})
		return
	}

	if user.Avatar == nil {
		user.Avatar = models.Avatar{}
	}
	c.setIdentity(user, school)
	log.Printf("Socket login: found session for socket, user %s", user.Nickname)

	if roomErr := enterHomeroom(c, false); roomErr != nil {
		c.writeError("error", roomErr)
	}
}
