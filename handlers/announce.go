package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/fernpond/rumble/rumble-backend/common"
	"github.com/fernpond/rumble/rumble-backend/models"
	"github.com/fernpond/rumble/rumble-backend/responses"
	"github.com/fernpond/rumble/rumble-backend/utils"
)

// Level a user needs before they may send system-wide announcements.
const announceMinLevel = 10

type announceRequest struct {
	Text string `json:"text"`
}

// Announce fans a message out to every connected socket regardless of room.
func Announce(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := r.Context().Value(common.AuthInfoKey).(*models.CustomClaims)
	if !ok {
		utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
		return
	}

	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		utils.HandleError(w, responses.BadRequestError{Msg: "Announcement text is required."})
		return
	}

	userID, err := strconv.ParseInt(authInfo.ID, 10, 64)
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
		return
	}

	user, err := Users.FindByID(r.Context(), userID)
	if err != nil || user == nil {
		log.Printf("Announce: couldn't load user %d: %v", userID, err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
		return
	}
	if user.Level < announceMinLevel {
		utils.HandleError(w, responses.ForbiddenError{Msg: "Not allowed to announce."})
		return
	}

	registry.Announce(user.Nickname, req.Text)
	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "Announcement sent."}))
}
