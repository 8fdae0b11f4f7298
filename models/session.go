package models

// SessionUser is the identity snapshot cached in the socket session record.
// It may be stale; the socket handshake always re-fetches the authoritative
// user row before attaching an identity to a connection.
type SessionUser struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// Session is the socket session record minted at web login and presented
// back during the websocket handshake as (session id, token).
type Session struct {
	User   *SessionUser `json:"user,omitempty"`
	Token  string       `json:"token"`
	School string       `json:"school"`
}
