package handlers

import (
	"log"
	"sync"

	"github.com/fernpond/rumble/rumble-backend/models"
)

const homeroomID = 0

type roomUpdateEvent struct {
	Update   string    `json:"update"`
	RoomInfo *RoomInfo `json:"roomInfo"`
}

// School is one tenant: a homeroom lobby plus its numbered game rooms. Room
// ids are unique within a school only.
type School struct {
	id   string
	name string

	mu         sync.Mutex
	homeroom   *Homeroom
	gameRooms  map[int]*GameRoom
	nextRoomID int
}

func NewSchool(id, name string) *School {
	return &School{
		id:         id,
		name:       name,
		homeroom:   NewHomeroom(homeroomID, name+" homeroom"),
		gameRooms:  make(map[int]*GameRoom),
		nextRoomID: 1,
	}
}

func (s *School) ID() string { return s.id }

func (s *School) GetHomeroom() *Homeroom {
	return s.homeroom
}

func (s *School) GetGameRoom(id int) *GameRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameRooms[id]
}

// GameRoomsInfo lists every game room the way the homeroom lobby shows them.
func (s *School) GameRoomsInfo() []*RoomInfo {
	s.mu.Lock()
	rooms := make([]*GameRoom, 0, len(s.gameRooms))
	for _, room := range s.gameRooms {
		rooms = append(rooms, room)
	}
	s.mu.Unlock()

	infos := make([]*RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	return infos
}

// UserCreateGameRoom opens a new game room on a player's behalf.
func (s *School) UserCreateGameRoom(params GameRoomParams) *GameRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextRoomID
	s.nextRoomID++
	if params.Name == "" {
		params.Name = "game " + s.name
	}

	room := NewGameRoom(id, s.id, params, s.roomStatusChanged)
	s.gameRooms[id] = room
	log.Printf("school %s created gameroom %d (%s)", s.id, id, params.Name)
	return room
}

// roomStatusChanged relays a game room's open/full/fighting transitions to
// the homeroom so the lobby list stays live. Runs with the game room's lock
// held, so it must not call back into that room.
func (s *School) roomStatusChanged(info *RoomInfo) {
	s.homeroom.Broadcast("update", roomUpdateEvent{Update: "status", RoomInfo: info}, nil)
}

// Process-wide school registry, loaded once at startup.
var (
	schoolsMu sync.Mutex
	schools   = make(map[string]*School)
)

func LoadSchools(list []models.School) {
	schoolsMu.Lock()
	defer schoolsMu.Unlock()
	for _, school := range list {
		schools[school.ID] = NewSchool(school.ID, school.Name)
	}
	log.Printf("loaded %d schools", len(list))
}

func GetSchool(id string) *School {
	schoolsMu.Lock()
	defer schoolsMu.Unlock()
	return schools[id]
}
