package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchAction is one recorded act inside a match, including the synthetic
// server start/end markers.
type MatchAction struct {
	PlayerID  string `bson:"playerId" json:"playerId"`
	Action    string `bson:"action" json:"action"`
	Target    int64  `bson:"target,omitempty" json:"target,omitempty"`
	Timestamp int64  `bson:"timestamp" json:"timestamp"`
}

// MatchRecord is the full action log of a finished match as stored in MongoDB.
type MatchRecord struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomName string             `bson:"roomName" json:"roomName"`
	School   string             `bson:"school" json:"school"`
	Actions  []MatchAction      `bson:"actions" json:"actions"`
}

// Game is the relational index row for a finished match.
type Game struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
	UserIDs    []string  `json:"user_ids"`
}
