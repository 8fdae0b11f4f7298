package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/fernpond/rumble/rumble-backend/models"
)

// Match is the active fight inside a game room. The rules engine proper is a
// separate concern; at this layer a match records every action, tracks who is
// still fighting, and archives itself when fewer than two fighters remain.
// All methods run with the owning room's lock held.
type Match struct {
	room      *GameRoom
	startedAt time.Time
	fighters  map[*Connection]bool
	userIDs   []string
	actions   []models.MatchAction
}

func newMatch(room *GameRoom) *Match {
	m := &Match{
		room:      room,
		startedAt: time.Now(),
		fighters:  make(map[*Connection]bool, len(room.occupants)),
	}
	for _, occupant := range room.occupants {
		m.fighters[occupant] = true
		m.userIDs = append(m.userIDs, strconv.FormatInt(occupant.identity().ID, 10))
	}
	m.record("server", ActData{Action: "start"})
	return m
}

func (m *Match) record(playerID string, data ActData) {
	m.actions = append(m.actions, models.MatchAction{
		PlayerID:  playerID,
		Action:    data.Action,
		Target:    data.Target,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Act logs an action from a fighter. Actions from non-fighters (late rejoins
// are impossible, but a stale event can race the leave) are dropped.
func (m *Match) Act(conn *Connection, data ActData) {
	if !m.fighters[conn] {
		return
	}
	m.record(strconv.FormatInt(conn.identity().ID, 10), data)
}

// Leave removes a departing fighter and ends the match once fewer than two
// remain; a fight needs an opponent.
func (m *Match) Leave(conn *Connection) {
	if !m.fighters[conn] {
		return
	}
	delete(m.fighters, conn)
	m.record(strconv.FormatInt(conn.identity().ID, 10), ActData{Action: "left"})

	if len(m.fighters) < 2 {
		m.endLocked()
	}
}

// endLocked archives the action log and hands the room back. Persistence is
// asynchronous; a store failure is logged, never fatal.
func (m *Match) endLocked() {
	m.record("server", ActData{Action: "end"})

	record := &models.MatchRecord{
		RoomName: m.room.Name(),
		School:   m.room.schoolID,
		Actions:  m.actions,
	}
	game := models.Game{
		CreatedAt:  m.startedAt,
		FinishedAt: time.Now(),
		UserIDs:    m.userIDs,
	}
	go archiveMatch(record, game)

	m.room.gameOverLocked()
}

func archiveMatch(record *models.MatchRecord, game models.Game) {
	if Matches == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := Matches.SaveMatch(ctx, record)
	if err != nil {
		log.Printf("failed to save match action log: %v", err)
		return
	}
	game.ID = id
	if err := Matches.IndexGame(ctx, game); err != nil {
		log.Printf("failed to index match %s: %v", id, err)
		return
	}
	log.Printf("match %s archived", id)
}
