package handlers

import (
	"sync"
	"time"

	"github.com/fernpond/rumble/rumble-backend/models"
)

// Room is a mutually-exclusive membership context: a connection belongs to at
// most one room, and that room's occupant list contains the connection. The
// two sides of that invariant are always updated under the room's lock.
type Room interface {
	ID() int
	Name() string
	Join(conn *Connection) (*RoomInfo, *RoomError)
	Leave(conn *Connection) *RoomError
	Say(conn *Connection, text string)
	Act(conn *Connection, data ActData)
	Ping(conn *Connection)
}

type OccupantInfo struct {
	ID        int64         `json:"id"`
	Nickname  string        `json:"nickname"`
	Avatar    models.Avatar `json:"avatar,omitempty"`
	Started   bool          `json:"started,omitempty"`
	BootVotes int           `json:"bootVotes,omitempty"`
}

type RoomInfo struct {
	Room      int                    `json:"room"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Custom    map[string]interface{} `json:"custom,omitempty"`
	Occupants []OccupantInfo         `json:"occupants"`
}

// FloodConfig tunes per-room chat throttling: more than MaxMessages inside a
// sliding Window squelches the sender for SquelchFor. A zero MaxMessages
// disables the watch.
type FloodConfig struct {
	Window      time.Duration
	MaxMessages int
	SquelchFor  time.Duration
}

type floodState struct {
	windowStart    time.Time
	count          int
	squelchedUntil time.Time
}

type joinEvent struct {
	Room     int           `json:"room"`
	ID       int64         `json:"id"`
	Nickname string        `json:"nickname"`
	Avatar   models.Avatar `json:"avatar,omitempty"`
}

type leaveEvent struct {
	Room     int    `json:"room"`
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

type sayEvent struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

type squelchedEvent struct {
	Until int64 `json:"until"`
}

// ChatRoom is the shared room behavior: an ordered occupant list (insertion
// order is join order), broadcast, and flood control. Homeroom and GameRoom
// embed it; their constructors install `self` so occupants point back at the
// concrete room, and `joinPayload` so variants can enrich the join broadcast.
type ChatRoom struct {
	id   int
	name string

	self        Room
	joinPayload func(*Connection) interface{}

	mu        sync.Mutex
	occupants []*Connection
	flood     map[*Connection]*floodState
	floodCfg  FloodConfig
}

func (r *ChatRoom) initChatRoom(self Room, id int, name string, floodCfg FloodConfig) {
	r.id = id
	r.name = name
	r.self = self
	r.floodCfg = floodCfg
	r.flood = make(map[*Connection]*floodState)
	r.joinPayload = func(conn *Connection) interface{} {
		user := conn.identity()
		return joinEvent{Room: r.id, ID: user.ID, Nickname: user.Nickname}
	}
}

func (r *ChatRoom) ID() int      { return r.id }
func (r *ChatRoom) Name() string { return r.name }

// Join adds the connection. Callers enforce leave-before-join; the base room
// itself has no failure path.
func (r *ChatRoom) Join(conn *Connection) (*RoomInfo, *RoomError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinLocked(conn), nil
}

func (r *ChatRoom) joinLocked(conn *Connection) *RoomInfo {
	r.broadcastLocked("join", r.joinPayload(conn), conn)
	r.occupants = append(r.occupants, conn)
	conn.setRoom(r.self)
	return r.infoLocked()
}

func (r *ChatRoom) Leave(conn *Connection) *RoomError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conn)
}

func (r *ChatRoom) leaveLocked(conn *Connection) *RoomError {
	idx := -1
	for i, occupant := range r.occupants {
		if occupant == conn {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &RoomError{Where: "leave", Room: r.id, RoomName: r.name, Code: ErrNoRoom, Message: "Not in this room"}
	}

	r.occupants = append(r.occupants[:idx], r.occupants[idx+1:]...)
	conn.setRoom(nil)
	delete(r.flood, conn)

	user := conn.identity()
	r.broadcastLocked("leave", leaveEvent{Room: r.id, ID: user.ID, Nickname: user.Nickname}, nil)
	return nil
}

// Say broadcasts a chat line from conn to the whole room, sender included,
// unless the flood watch rejects it.
func (r *ChatRoom) Say(conn *Connection, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.floodPassLocked(conn) {
		return
	}
	user := conn.identity()
	r.broadcastLocked("say", sayEvent{ID: user.ID, Nickname: user.Nickname, Text: text}, nil)
}

// Act and Ping are meaningful only in game rooms.
func (r *ChatRoom) Act(conn *Connection, data ActData) {}
func (r *ChatRoom) Ping(conn *Connection)             {}

// floodPassLocked applies the sliding-window throttle. A rejected message
// reaches nobody; only the sender learns it was squelched.
func (r *ChatRoom) floodPassLocked(conn *Connection) bool {
	if r.floodCfg.MaxMessages <= 0 {
		return true
	}

	state := r.flood[conn]
	if state == nil {
		state = &floodState{windowStart: time.Now()}
		r.flood[conn] = state
	}

	now := time.Now()
	if now.Before(state.squelchedUntil) {
		conn.writeEvent("squelched", squelchedEvent{Until: state.squelchedUntil.UnixMilli()})
		return false
	}

	if now.Sub(state.windowStart) > r.floodCfg.Window {
		state.windowStart = now
		state.count = 0
	}
	state.count++
	if state.count > r.floodCfg.MaxMessages {
		state.squelchedUntil = now.Add(r.floodCfg.SquelchFor)
		state.windowStart = now
		state.count = 0
		conn.writeEvent("squelched", squelchedEvent{Until: state.squelchedUntil.UnixMilli()})
		return false
	}
	return true
}

// broadcastLocked fans an event out to every occupant except exclude.
// Unwritable members are skipped; their own close handler cleans them up.
func (r *ChatRoom) broadcastLocked(eventType string, data interface{}, exclude *Connection) {
	for _, occupant := range r.occupants {
		if occupant == exclude {
			continue
		}
		occupant.writeEvent(eventType, data)
	}
}

func (r *ChatRoom) infoLocked() *RoomInfo {
	info := &RoomInfo{Room: r.id, Name: r.name, Occupants: make([]OccupantInfo, 0, len(r.occupants))}
	for _, occupant := range r.occupants {
		user := occupant.identity()
		info.Occupants = append(info.Occupants, OccupantInfo{ID: user.ID, Nickname: user.Nickname})
	}
	return info
}

// Broadcast fans an event out from outside the room's lock.
func (r *ChatRoom) Broadcast(eventType string, data interface{}, exclude *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(eventType, data, exclude)
}

// Info snapshots the room for callers outside the lock.
func (r *ChatRoom) Info() *RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

func (r *ChatRoom) OccupantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.occupants)
}
