package handlers

import "time"

// Homeroom flood settings are lenient; only pathological senders get
// squelched in the lobby.
var homeroomFlood = FloodConfig{
	Window:      10 * time.Second,
	MaxMessages: 40,
	SquelchFor:  10 * time.Second,
}

// Homeroom is the per-school lobby. No gameplay happens here; it is the base
// chat room plus nothing.
type Homeroom struct {
	ChatRoom
}

func NewHomeroom(id int, name string) *Homeroom {
	room := &Homeroom{}
	room.initChatRoom(room, id, name, homeroomFlood)
	return room
}
