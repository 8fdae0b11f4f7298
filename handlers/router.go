package handlers

import (
	"github.com/gorilla/mux"

	"github.com/fernpond/rumble/rumble-backend/middleware"
)

func NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/api/register", Register).Methods("POST")
	r.HandleFunc("/api/login", Login).Methods("POST")
	r.HandleFunc("/api/refresh/token", RefreshToken).Methods("POST")
	r.HandleFunc("/ws", WsHandler)

	// Secured routes
	secured := r.PathPrefix("/api").Subrouter()
	secured.Use(middleware.JWTValidationMiddleware)
	secured.HandleFunc("/games", FetchUserGames).Methods("GET")
	secured.HandleFunc("/game/{gameID}", FetchGameActions).Methods("GET")
	secured.HandleFunc("/announce", Announce).Methods("POST")
	secured.HandleFunc("/logout", Logout).Methods("POST")
	return r
}
