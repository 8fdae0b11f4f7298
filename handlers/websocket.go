package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fernpond/rumble/rumble-backend/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event names that collide with transport-level notions and must never be
// dispatched as game events.
var eventBlacklist = map[string]bool{
	"data":  true,
	"close": true,
}

// Connection wraps one WebSocket and everything the server knows about it:
// the authenticated user (nil until the login handshake), the room it is in
// (nil while in the dressing room), its session-local avatar copy and its
// last liveness stamp.
type Connection struct {
	ws   *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	user     *models.User
	avatar   models.Avatar
	school   *School
	room     Room
	pingTime time.Time
}

func newConnection(ws *websocket.Conn) *Connection {
	return &Connection{ws: ws, send: make(chan []byte, 256)}
}

// writeEvent queues an outbound {type, data} envelope. Dead or backed-up
// connections are skipped silently; their own close handling cleans them up.
func (c *Connection) writeEvent(eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("writeEvent: could not marshal %s payload: %v", eventType, err)
		return
	}
	raw, err := json.Marshal(models.Envelope{Type: eventType, Data: payload})
	if err != nil {
		log.Printf("writeEvent: could not marshal %s envelope: %v", eventType, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *Connection) writeError(event string, roomErr *RoomError) {
	c.writeEvent(event, roomErr)
}

// end terminates the transport. Safe to call more than once and from any
// goroutine; the connection's own read pump performs room/registry cleanup.
func (c *Connection) end() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.ws != nil {
		c.ws.Close()
	}
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) identity() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// setIdentity attaches the verified user to the connection. Called exactly
// once, by the login handshake.
func (c *Connection) setIdentity(user *models.User, school *School) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.avatar = user.Avatar.Clone()
	c.school = school
}

func (c *Connection) schoolRef() *School {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.school
}

func (c *Connection) currentRoom() Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Connection) setRoom(room Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
}

// sessionAvatar is the in-room presentation copy; game rooms restyle it
// without touching the persisted avatar.
func (c *Connection) sessionAvatar() models.Avatar {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avatar
}

func (c *Connection) setSessionAvatar(avatar models.Avatar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avatar = avatar
}

func (c *Connection) lastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingTime
}

func (c *Connection) stampPing(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingTime = t
}

// WsHandler upgrades the HTTP request and runs the connection until it drops.
// Identity is attached later by the in-band login handshake, not here.
func WsHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	conn := newConnection(ws)
	go conn.writePump()
	conn.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		c.cleanup()
		c.end()
	}()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(raw)
	}
}

func (c *Connection) writePump() {
	defer func() {
		if c.ws != nil {
			c.ws.Close()
		}
	}()

	for message := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("error writing message: %v", err)
			break
		}
	}
}

// cleanup runs when the transport closes: force a room leave and drop the
// registry entry. Nothing here may block on the closed socket.
func (c *Connection) cleanup() {
	if room := c.currentRoom(); room != nil {
		room.Leave(c)
	}
	if user := c.identity(); user != nil {
		registry.Unregister(user.ID, c)
		log.Printf("Socket: user %s disconnected", user.Nickname)
	}
}

// dispatch decodes one inbound envelope and routes it by type. Unparseable
// payloads and reserved type names are dropped silently.
func (c *Connection) dispatch(raw []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}
	if envelope.Type == "" || eventBlacklist[envelope.Type] {
		return
	}

	if c.identity() == nil {
		// The only event an unauthenticated connection may send.
		if envelope.Type == "login" {
			loginHandler(c, envelope.Data)
		}
		return
	}

	switch envelope.Type {
	case "login":
		// A session authenticates at most once; repeats are protocol noise.
		log.Printf("dispatch: duplicate login from user %d ignored", c.identity().ID)
	case "say":
		sayHandler(c, envelope.Data)
	case "saveAvatar":
		saveAvatarHandler(c, envelope.Data)
	case "dressingRoom":
		dressingRoomHandler(c)
	case "homeroom":
		homeroomHandler(c)
	case "joingame":
		joinGameHandler(c, envelope.Data)
	case "newgame":
		newGameHandler(c, envelope.Data)
	case "act":
		actHandler(c, envelope.Data)
	case "ping":
		pingHandler(c)
	default:
		log.Printf("dispatch: unhandled event type %q", envelope.Type)
	}
}
