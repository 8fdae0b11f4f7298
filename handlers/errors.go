package handlers

// Socket-side error codes. These are stable machine-readable identifiers the
// client switches on; the message is display text only.
const (
	ErrStoreError       = "store-error"
	ErrNoSession        = "no-session"
	ErrNotLoggedIn      = "not-logged-in"
	ErrBadToken         = "bad-token"
	ErrAlreadyConnected = "already-connected"
	ErrUnknownSchool    = "unknown-affiliation"
	ErrDBError          = "db-error"
	ErrUserNotFound     = "user-not-found"

	ErrFighting = "fighting"
	ErrFull     = "full"
	ErrBooted   = "booted"

	ErrNoRoom      = "no-room"
	ErrInARoom     = "in-a-room"
	ErrLost        = "lost"
	ErrBadAvatar   = "bad-avatar"
	ErrAvatarSave  = "avatar-save"
	ErrNotHomeroom = "not-homeroom"
	ErrMissing     = "missing-credentials"
)

// RoomError is the structured error delivered to a single connection as an
// "error" (or "loginError") event. It is never thrown across the socket.
type RoomError struct {
	Where    string `json:"where,omitempty"`
	Room     int    `json:"room,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	Code     string `json:"error"`
	Message  string `json:"message"`
	Reload   bool   `json:"reload,omitempty"`
}

func (e *RoomError) Error() string {
	return e.Code + ": " + e.Message
}
