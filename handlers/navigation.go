package handlers

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/fernpond/rumble/rumble-backend/models"
)

type goHomeroomEvent struct {
	To        string         `json:"to"`
	Games     []*RoomInfo    `json:"games"`
	Avatar    models.Avatar  `json:"avatar"`
	Nickname  string         `json:"nickname"`
	Occupants []OccupantInfo `json:"occupants"`
	Booted    bool           `json:"booted"`
}

type goDressingRoomEvent struct {
	To       string        `json:"to"`
	Nickname string        `json:"nickname"`
	Avatar   models.Avatar `json:"avatar"`
	Level    int           `json:"level"`
}

type goGameRoomEvent struct {
	To   string    `json:"to"`
	Room *RoomInfo `json:"room"`
	Me   int64     `json:"me"`
}

// enterHomeroom joins the caller's school homeroom and sends the full "go"
// payload (lobby game list, own avatar, occupants). The caller must be
// roomless; leave-before-join is enforced here, not papered over.
func enterHomeroom(c *Connection, booted bool) *RoomError {
	user := c.identity()
	if user == nil {
		return &RoomError{Where: "homeroom", Code: ErrNotLoggedIn, Message: "Socket's not logged in"}
	}
	school := c.schoolRef()
	if school == nil {
		return &RoomError{Where: "homeroom", Code: ErrUnknownSchool, Message: "Unknown school"}
	}
	if c.currentRoom() != nil {
		return &RoomError{Where: "homeroom", Code: ErrInARoom, Message: "Already in a room"}
	}

	homeroom := school.GetHomeroom()
	info, _ := homeroom.Join(c)
	log.Printf("user %s joined school %s homeroom", user.Nickname, school.ID())

	c.writeEvent("go", goHomeroomEvent{
		To:        "homeroom",
		Games:     school.GameRoomsInfo(),
		Avatar:    c.sessionAvatar(),
		Nickname:  user.Nickname,
		Occupants: info.Occupants,
		Booted:    booted,
	})
	return nil
}

type sayData struct {
	Text string `json:"text"`
}

func sayHandler(c *Connection, raw json.RawMessage) {
	var data sayData
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	if room := c.currentRoom(); room != nil && data.Text != "" {
		room.Say(c, data.Text)
	}
}

type saveAvatarData struct {
	Avatar models.Avatar `json:"avatar"`
}

// saveAvatarHandler validates and persists a new avatar, then moves the
// dressed-up player into the homeroom.
func saveAvatarHandler(c *Connection, raw json.RawMessage) {
	var data saveAvatarData
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	user := c.identity()

	if err := models.ValidateAvatar(data.Avatar, user.Level); err != nil {
		log.Printf("saveAvatar: validation error for user %s: %v", user.Nickname, err)
		c.writeError("error", &RoomError{Where: "avatar", Code: ErrBadAvatar, Message: "Avatar problem"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Users.SaveAvatar(ctx, user.ID, data.Avatar); err != nil {
		log.Printf("saveAvatar: trouble saving user %s: %v", user.Nickname, err)
		c.writeError("error", &RoomError{Where: "avatar", Code: ErrAvatarSave, Message: "Trouble saving the avatar"})
		return
	}

	// The connection may have closed while the write was in flight.
	if c.isClosed() {
		return
	}
	user.Avatar = data.Avatar
	c.setSessionAvatar(data.Avatar.Clone())
	log.Printf("saveAvatar: avatar set for user %s", user.Nickname)

	if roomErr := enterHomeroom(c, false); roomErr != nil {
		c.writeError("error", roomErr)
	}
}

func dressingRoomHandler(c *Connection) {
	room := c.currentRoom()
	if room == nil {
		return
	}
	if err := room.Leave(c); err != nil {
		c.writeError("error", err)
		return
	}
	user := c.identity()
	c.writeEvent("go", goDressingRoomEvent{To: "dressingroom", Nickname: user.Nickname, Avatar: user.Avatar, Level: user.Level})
}

func homeroomHandler(c *Connection) {
	returnToHomeroom(c, false)
}

// returnToHomeroom leaves whatever room the connection is in and rejoins the
// homeroom, with the booted flag set when the move was not voluntary.
func returnToHomeroom(c *Connection, booted bool) {
	room := c.currentRoom()
	if room == nil {
		log.Printf("returnToHomeroom: connection has no room")
		return
	}
	if err := room.Leave(c); err != nil {
		c.writeError("error", err)
		return
	}
	if roomErr := enterHomeroom(c, booted); roomErr != nil {
		c.writeError("error", roomErr)
	}
}

type joinGameData struct {
	Room int `json:"room"`
}

// joinGameHandler moves a homeroom member into a game room. On any failure it
// tries to put the player back into the homeroom; if even that is impossible
// the client is told it is lost and must reload.
func joinGameHandler(c *Connection, raw json.RawMessage) {
	var data joinGameData
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}

	room := c.currentRoom()
	if room == nil {
		c.writeError("error", &RoomError{Where: "joingame", Code: ErrNoRoom, Message: "Not in a room"})
		return
	}
	homeroom, _ := room.(*Homeroom)

	if err := room.Leave(c); err != nil {
		c.writeError("error", err)
		return
	}

	gameRoom := c.schoolRef().GetGameRoom(data.Room)
	if gameRoom == nil {
		c.writeError("error", &RoomError{Where: "joingame", Room: data.Room, Code: ErrNoRoom, Message: "No such game room"})
		reenterHomeroom(c, homeroom)
		return
	}
	if err := joinGameRoom(c, gameRoom); err != nil {
		c.writeError("error", err)
		reenterHomeroom(c, homeroom)
	}
}

// reenterHomeroom is the fallback after a failed game-room entry. Losing the
// homeroom too is the one unrecoverable state the client is told to reload
// out of.
func reenterHomeroom(c *Connection, homeroom *Homeroom) {
	if homeroom == nil {
		c.writeError("error", &RoomError{Code: ErrLost, Message: "I got lost - please reload :(", Reload: true})
		return
	}
	homeroom.Join(c)
}

// joinGameRoom performs the game-room join and sends the "go" payload with
// the joiner's own entry sorted first.
func joinGameRoom(c *Connection, gameRoom *GameRoom) *RoomError {
	info, err := gameRoom.Join(c)
	if err != nil {
		return err
	}

	me := c.identity().ID
	sort.SliceStable(info.Occupants, func(i, j int) bool {
		return info.Occupants[i].ID == me && info.Occupants[j].ID != me
	})
	c.writeEvent("go", goGameRoomEvent{To: "gameroom", Room: info, Me: me})
	return nil
}

type newGameData struct {
	Name     string                 `json:"name"`
	MaxUsers int                    `json:"maxUsers"`
	Custom   map[string]interface{} `json:"custom"`
}

// newGameHandler creates a game room and moves its creator into it. Only
// homeroom members may create rooms.
func newGameHandler(c *Connection, raw json.RawMessage) {
	var data newGameData
	if raw != nil {
		if err := json.Unmarshal(raw, &data); err != nil {
			return
		}
	}

	homeroom, ok := c.currentRoom().(*Homeroom)
	if !ok {
		c.writeError("error", &RoomError{Where: "newgame", Code: ErrNotHomeroom, Message: "Can't create game room - not in homeroom"})
		return
	}

	gameRoom := c.schoolRef().UserCreateGameRoom(GameRoomParams{
		Name:     data.Name,
		MaxUsers: data.MaxUsers,
		Custom:   data.Custom,
	})

	if err := homeroom.Leave(c); err != nil {
		c.writeError("error", err)
		return
	}
	if err := joinGameRoom(c, gameRoom); err != nil {
		c.writeError("error", err)
		reenterHomeroom(c, homeroom)
	}
}

func actHandler(c *Connection, raw json.RawMessage) {
	var data ActData
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	if room := c.currentRoom(); room != nil {
		room.Act(c, data)
	}
}

func pingHandler(c *Connection) {
	if room := c.currentRoom(); room != nil {
		room.Ping(c)
	}
}
