package repository

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fernpond/rumble/rumble-backend/config"
	"github.com/fernpond/rumble/rumble-backend/models"
)

var (
	RedisClient *redis.Client
)

const sessionKeyPrefix = "session:"

func ConnectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal(err)
	}
	RedisClient = client

	log.Println("Successfully connected to Redis")
	return client
}

// SessionStore keeps the socket session records minted at web login. The
// websocket handshake validates its (session id, token) pair against these.
type SessionStore struct {
	Client *redis.Client
	TTL    time.Duration
}

// Get returns the session for id, or (nil, nil) if there is no such session.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.Client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) Put(ctx context.Context, id string, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl == 0 {
		ttl = 72 * time.Hour
	}
	return s.Client.Set(ctx, sessionKeyPrefix+id, raw, ttl).Err()
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.Client.Del(ctx, sessionKeyPrefix+id).Err()
}
