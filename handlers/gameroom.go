package handlers

import (
	"log"
	"time"

	"github.com/fernpond/rumble/rumble-backend/models"
)

const (
	MaxPlayers = 6
	MinPlayers = 3

	// A room member silent for this long is treated as stalled and evicted
	// on the next ping from anyone else in the room.
	PingTimeout = 20 * time.Second
)

// In-game chat has a window per user, so the flood watch here mostly guards
// bandwidth: more than 30 chats in 25 seconds earns a 60 second squelch.
var gameRoomFlood = FloodConfig{
	Window:      25 * time.Second,
	MaxMessages: 30,
	SquelchFor:  60 * time.Second,
}

// ActData is the payload of an "act" event. Boot votes carry a target; vote
// withdrawals ("dont") carry none.
type ActData struct {
	Action string `json:"action"`
	Target int64  `json:"target,omitempty"`
}

type GameRoomParams struct {
	Name     string
	MaxUsers int
	Custom   map[string]interface{}
}

type actedEvent struct {
	Event string `json:"event"`
	ID    int64  `json:"id"`
}

type bootVotesEvent struct {
	Event string        `json:"event"`
	Votes map[int64]int `json:"votes"`
}

type bootedEvent struct {
	Event  string `json:"event"`
	Target int64  `json:"target"`
}

// GameRoom hosts one fight at a time. On top of the base chat room it
// enforces capacity and access blocking, assigns uniform colors, aggregates
// start and boot votes, sweeps stalled members on every ping, and owns the
// active match while one is running.
type GameRoom struct {
	ChatRoom

	maxUsers int
	custom   map[string]interface{}
	schoolID string

	// All of the fields below are guarded by the embedded room lock.
	blockedUsers map[int64]bool
	startVotes   map[*Connection]bool
	bootVotes    map[*Connection]int64
	match        *Match

	// onUpdate pushes status changes to the school lobby. Called with the
	// room lock held; it must not call back into this room.
	onUpdate func(*RoomInfo)
}

func NewGameRoom(id int, schoolID string, params GameRoomParams, onUpdate func(*RoomInfo)) *GameRoom {
	maxUsers := params.MaxUsers
	if maxUsers < 2 || maxUsers > MaxPlayers {
		maxUsers = MaxPlayers
	}

	room := &GameRoom{
		maxUsers:     maxUsers,
		custom:       params.Custom,
		schoolID:     schoolID,
		blockedUsers: make(map[int64]bool),
		startVotes:   make(map[*Connection]bool),
		bootVotes:    make(map[*Connection]int64),
		onUpdate:     onUpdate,
	}
	room.initChatRoom(room, id, params.Name, gameRoomFlood)

	// Join broadcasts include the joiner's room-local avatar so everyone can
	// render the new fighter immediately.
	room.joinPayload = func(conn *Connection) interface{} {
		user := conn.identity()
		return joinEvent{Room: id, ID: user.ID, Nickname: user.Nickname, Avatar: conn.sessionAvatar()}
	}
	return room
}

// Join rejects fighting/full/booted before delegating to the base join, and
// assigns the joiner the lowest free uniform color first so the join
// broadcast already shows the right outfit.
func (g *GameRoom) Join(conn *Connection) (*RoomInfo, *RoomError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	user := conn.identity()
	if g.match != nil {
		return nil, &RoomError{Where: "gameroom", Room: g.id, RoomName: g.name, Code: ErrFighting, Message: "They're already fighting in there"}
	}
	if len(g.occupants) >= g.maxUsers {
		return nil, &RoomError{Where: "gameroom", Room: g.id, RoomName: g.name, Code: ErrFull, Message: "Game is full"}
	}
	if g.blockedUsers[user.ID] {
		return nil, &RoomError{Where: "gameroom", Room: g.id, RoomName: g.name, Code: ErrBooted, Message: "You've been booted from this room"}
	}

	g.assignUniformColorLocked(conn)
	g.joinLocked(conn)
	log.Printf("gameroom %d joined by %s", g.id, user.Nickname)

	// Room just filled up: tell the lobby so clients can lock it.
	if len(g.occupants) == g.maxUsers {
		g.notifyUpdateLocked()
	}

	// Latecomers need avatars and the current vote state to render the room.
	return g.gameInfoLocked(true), nil
}

// assignUniformColorLocked restyles the joiner's session-local avatar with
// the smallest color in [0, maxUsers) nobody else is wearing. The persisted
// avatar is never touched.
func (g *GameRoom) assignUniformColorLocked(conn *Connection) {
	taken := make(map[int]bool, len(g.occupants))
	for _, occupant := range g.occupants {
		if color, ok := occupant.sessionAvatar()[models.UniformColorSlot]; ok {
			taken[color] = true
		}
	}

	avatar := conn.sessionAvatar().Clone()
	delete(avatar, models.UniformColorSlot)
	for color := 0; color < g.maxUsers; color++ {
		if !taken[color] {
			avatar[models.UniformColorSlot] = color
			break
		}
	}
	conn.setSessionAvatar(avatar)
}

func (g *GameRoom) Leave(conn *Connection) *RoomError {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.leaveLocked(conn); err != nil {
		return err
	}
	g.clearVotesForLocked(conn)

	if g.match != nil {
		g.match.Leave(conn)
	} else {
		// A leaving voter can tip a boot majority.
		g.bootUpdateLocked()
	}

	if len(g.occupants) == 0 {
		g.match = nil
	}
	if g.match == nil && len(g.occupants) < g.maxUsers {
		g.notifyUpdateLocked()
	}
	return nil
}

// clearVotesForLocked drops the votes cast by conn and any boot votes that
// were aimed at it.
func (g *GameRoom) clearVotesForLocked(conn *Connection) {
	delete(g.startVotes, conn)
	delete(g.bootVotes, conn)

	userID := conn.identity().ID
	for voter, target := range g.bootVotes {
		if target == userID {
			delete(g.bootVotes, voter)
		}
	}
}

// Act drives the room's voting state machine, or forwards everything to the
// active match while a fight is on.
func (g *GameRoom) Act(conn *Connection, data ActData) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Let everyone see that the user acted, except for synthetic actions.
	if data.Action != "timeout" && data.Action != "boot" && data.Action != "dont" {
		g.broadcastLocked("gameEvent", actedEvent{Event: "acted", ID: conn.identity().ID}, nil)
	}

	if g.match != nil {
		g.match.Act(conn, data)
		return
	}

	switch data.Action {
	case "start":
		// Starting intent supersedes boot intent for the round.
		g.bootVotes = make(map[*Connection]int64)
		g.startVotes[conn] = true
		if votes := len(g.startVotes); votes >= MinPlayers && votes == len(g.occupants) {
			g.startVotes = make(map[*Connection]bool)
			g.startGameLocked()
		}
	case "boot", "dont":
		if data.Target != 0 {
			g.bootVotes[conn] = data.Target
		} else {
			delete(g.bootVotes, conn)
		}
		g.bootUpdateLocked()
	}
}

// bootUpdateLocked recomputes boot tallies, evicting a target whose count
// reached everyone-but-them (minimum 2), otherwise broadcasting the counts.
func (g *GameRoom) bootUpdateLocked() {
	counter := g.countBootVotesLocked()

	threshold := len(g.occupants) - 1
	if threshold >= 2 {
		for target, votes := range counter {
			if votes >= threshold {
				g.bootLocked(target)
				// The booted broadcast replaces the count update.
				return
			}
		}
	}

	g.broadcastLocked("gameEvent", bootVotesEvent{Event: "bootVotes", Votes: counter}, nil)
}

func (g *GameRoom) countBootVotesLocked() map[int64]int {
	counter := make(map[int64]int)
	for _, target := range g.bootVotes {
		counter[target]++
	}
	return counter
}

// bootLocked evicts the target: block the identity from rejoining, force it
// out of the room, terminate its transport, and announce the boot.
func (g *GameRoom) bootLocked(targetID int64) {
	g.bootVotes = make(map[*Connection]int64)

	var bootedConn *Connection
	for _, occupant := range g.occupants {
		if occupant.identity().ID == targetID {
			bootedConn = occupant
			break
		}
	}
	if bootedConn != nil {
		g.blockedUsers[targetID] = true
		g.forceRemoveLocked(bootedConn)
		bootedConn.end()
		log.Printf("gameroom %d booted user %d", g.id, targetID)
	} else {
		log.Printf("gameroom %d couldn't find booted user %d", g.id, targetID)
	}

	g.broadcastLocked("gameEvent", bootedEvent{Event: "booted", Target: targetID}, nil)
}

// forceRemoveLocked is the eviction path (boots, stalled peers): base leave
// plus vote cleanup, without recomputing boot tallies.
func (g *GameRoom) forceRemoveLocked(conn *Connection) {
	if err := g.leaveLocked(conn); err != nil {
		return
	}
	g.clearVotesForLocked(conn)

	if g.match != nil {
		g.match.Leave(conn)
	}
	if len(g.occupants) == 0 {
		g.match = nil
	}
	if g.match == nil && len(g.occupants) < g.maxUsers {
		g.notifyUpdateLocked()
	}
}

// Ping stamps the sender's liveness and sweeps everyone else in the room.
// A member that has never pinged gets one grace stamp; a member silent for
// longer than PingTimeout is evicted and its socket closed. There is no
// dedicated sweep timer: eviction rides on other members' pings.
func (g *GameRoom) Ping(conn *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	conn.stampPing(now)

	var stalled []*Connection
	for _, occupant := range g.occupants {
		if occupant == conn {
			continue
		}
		last := occupant.lastPing()
		if last.IsZero() {
			// They have never pinged. They get one chance.
			occupant.stampPing(now)
			continue
		}
		if now.Sub(last) > PingTimeout {
			stalled = append(stalled, occupant)
		}
	}

	for _, occupant := range stalled {
		stalledFor := now.Sub(occupant.lastPing())
		g.forceRemoveLocked(occupant)
		occupant.end()
		log.Printf("gameroom %d disconnected stalled user %s after %v", g.id, occupant.identity().Nickname, stalledFor)
	}
}

func (g *GameRoom) startGameLocked() {
	g.match = newMatch(g)
	log.Printf("gameroom %d starting match with %d players", g.id, len(g.occupants))
	g.notifyUpdateLocked()
}

// gameOverLocked detaches the finished match and tells the lobby the room is
// open again. Called by the match with the room lock held.
func (g *GameRoom) gameOverLocked() {
	g.match = nil
	log.Printf("gameroom %d just ended match", g.id)
	g.notifyUpdateLocked()
}

func (g *GameRoom) notifyUpdateLocked() {
	if g.onUpdate != nil {
		g.onUpdate(g.gameInfoLocked(false))
	}
}

// gameInfoLocked extends the base room info with status, custom rules and,
// with avatars requested, per-occupant outfits and vote state so a latecomer
// sees a consistent room.
func (g *GameRoom) gameInfoLocked(avatars bool) *RoomInfo {
	info := g.infoLocked()
	info.Type = "GameRoom"
	info.Custom = g.custom

	switch {
	case g.match != nil:
		info.Status = "fighting"
	case len(g.occupants) >= g.maxUsers:
		info.Status = "full"
	default:
		info.Status = "open"
	}

	if avatars {
		counter := g.countBootVotesLocked()
		for i, occupant := range g.occupants {
			info.Occupants[i].Avatar = occupant.sessionAvatar()
			info.Occupants[i].Started = g.startVotes[occupant]
			info.Occupants[i].BootVotes = counter[occupant.identity().ID]
		}
	}
	return info
}

// Info reports the room the way the lobby lists it.
func (g *GameRoom) Info() *RoomInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gameInfoLocked(false)
}

// Fighting reports whether a match is currently running.
func (g *GameRoom) Fighting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.match != nil
}
