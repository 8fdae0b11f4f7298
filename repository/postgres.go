package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lib/pq"

	"github.com/fernpond/rumble/rumble-backend/config"
	"github.com/fernpond/rumble/rumble-backend/models"
)

var (
	PostgreSQLDB *sql.DB
)

func ConnectToPostgreSQL(cfg *config.Config) *sql.DB {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalln(err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		log.Fatal(err)
	}
	PostgreSQLDB = db

	log.Println("Successfully connected to PostgreSQL")
	return db
}

// UserStore reads and writes user rows. The socket handshake uses FindByID to
// get the authoritative record instead of trusting the session snapshot.
type UserStore struct {
	DB *sql.DB
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	var avatarJSON []byte

	row := s.DB.QueryRowContext(ctx,
		"SELECT id, username, nickname, avatar, level, school FROM users WHERE id = $1", id)
	err := row.Scan(&user.ID, &user.Username, &user.Nickname, &avatarJSON, &user.Level, &user.School)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(avatarJSON) > 0 {
		if err := json.Unmarshal(avatarJSON, &user.Avatar); err != nil {
			log.Printf("FindByID: bad avatar JSON for user %d: %v", id, err)
			user.Avatar = nil
		}
	}
	return &user, nil
}

func (s *UserStore) SaveAvatar(ctx context.Context, id int64, avatar models.Avatar) error {
	avatarJSON, err := json.Marshal(avatar)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, "UPDATE users SET avatar = $1 WHERE id = $2", avatarJSON, id)
	return err
}

// ListSchools returns the schools the process should host rooms for.
func ListSchools(db *sql.DB) ([]models.School, error) {
	rows, err := db.Query("SELECT id, name FROM schools ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []models.School
	for rows.Next() {
		var school models.School
		if err := rows.Scan(&school.ID, &school.Name); err != nil {
			return nil, err
		}
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

// GamesForUser fetches the finished matches a user took part in.
func GamesForUser(db *sql.DB, userID string) ([]models.Game, error) {
	rows, err := db.Query("SELECT id, created_at, finished_at, user_ids FROM games WHERE $1 = ANY(user_ids)", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var game models.Game
		if err := rows.Scan(&game.ID, &game.CreatedAt, &game.FinishedAt, pq.Array(&game.UserIDs)); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}
