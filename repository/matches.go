package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fernpond/rumble/rumble-backend/models"
)

// MatchArchive stores finished matches across both backends: the action log
// in MongoDB, the index row in PostgreSQL.
type MatchArchive struct {
	Mongo *mongo.Client
	DB    *sql.DB
}

func (a *MatchArchive) SaveMatch(ctx context.Context, record *models.MatchRecord) (string, error) {
	return SaveMatchRecord(ctx, a.Mongo, record)
}

func (a *MatchArchive) IndexGame(ctx context.Context, game models.Game) error {
	_, err := a.DB.ExecContext(ctx, "INSERT INTO games (id, created_at, finished_at, user_ids) VALUES ($1, $2, $3, $4)",
		game.ID, game.CreatedAt, game.FinishedAt, pq.Array(game.UserIDs))
	return err
}
