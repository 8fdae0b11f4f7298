package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fernpond/rumble/rumble-backend/common"
	"github.com/fernpond/rumble/rumble-backend/models"
	"github.com/fernpond/rumble/rumble-backend/repository"
	"github.com/fernpond/rumble/rumble-backend/responses"
	"github.com/fernpond/rumble/rumble-backend/utils"
)

func FetchUserGames(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := r.Context().Value(common.AuthInfoKey).(*models.CustomClaims)
	if !ok {
		utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
		return
	}

	games, err := repository.GamesForUser(repository.PostgreSQLDB, authInfo.ID)
	if err != nil {
		log.Printf("Error fetching games: %v", err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to fetch user games."})
		return
	}

	if len(games) == 0 {
		log.Printf("No games found for user %s", authInfo.ID)
		utils.HandleSuccess(w, models.SuccessResponse([]models.Game{}))
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(games))
}

func FetchGameActions(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := r.Context().Value(common.AuthInfoKey).(*models.CustomClaims)
	if !ok {
		utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
		return
	}

	vars := mux.Vars(r)
	gameIDStr := vars["gameID"]
	if gameIDStr == "" {
		utils.HandleError(w, responses.BadRequestError{Msg: "gameID is required."})
		return
	}

	record, err := repository.FindMatchRecord(r.Context(), repository.MongoDBClient, gameIDStr)
	if err != nil {
		log.Printf("Error fetching match record: %v", err)
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid gameID format."})
		return
	}
	if record == nil {
		utils.HandleError(w, responses.NotFoundError{Msg: "Match not found."})
		return
	}

	// Only participants may read the action log.
	userInGame := false
	for _, action := range record.Actions {
		if action.PlayerID == authInfo.ID {
			userInGame = true
			break
		}
	}
	if !userInGame {
		utils.HandleError(w, responses.BadRequestError{Msg: "User is not part of the game."})
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(record))
}
