package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/fernpond/rumble/rumble-backend/config"
	"github.com/fernpond/rumble/rumble-backend/handlers"
	"github.com/fernpond/rumble/rumble-backend/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}
	cfg := config.LoadConfig()

	db := repository.ConnectToPostgreSQL(cfg)
	repository.ConnectMongoDB(cfg)
	redisClient := repository.ConnectRedis(cfg)

	handlers.Sessions = &repository.SessionStore{Client: redisClient}
	handlers.Users = &repository.UserStore{DB: db}
	handlers.Matches = &repository.MatchArchive{Mongo: repository.MongoDBClient, DB: db}

	schools, err := repository.ListSchools(db)
	if err != nil {
		log.Fatal("Failed to load schools:", err)
	}
	handlers.LoadSchools(schools)

	r := handlers.NewRouter()
	log.Println("Server running on", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatal(err)
	}
}
