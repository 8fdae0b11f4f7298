package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fernpond/rumble/rumble-backend/models"
	"github.com/fernpond/rumble/rumble-backend/repository"
	"github.com/fernpond/rumble/rumble-backend/responses"
	"github.com/fernpond/rumble/rumble-backend/utils"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	School   string `json:"school"`
}

func Register(w http.ResponseWriter, r *http.Request) {
	db := repository.PostgreSQLDB

	var req registerRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 50 {
		utils.HandleError(w, responses.BadRequestError{Msg: "Username must be between 3 and 50 characters."})
		return
	}

	if len(req.Password) < 3 || len(req.Password) > 50 {
		utils.HandleError(w, responses.BadRequestError{Msg: "Password must be between 3 and 50 characters."})
		return
	}

	if GetSchool(req.School) == nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Unknown school."})
		return
	}

	if req.Nickname == "" {
		req.Nickname = req.Username
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to hash password."})
		return
	}

	_, err = db.Exec("INSERT INTO users (username, password, nickname, avatar, level, school) VALUES ($1, $2, $3, '{}', 1, $4)",
		req.Username, string(hashedPassword), req.Nickname, req.School)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to create user."})
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "User created successfully."}))
}

func Login(w http.ResponseWriter, r *http.Request) {
	db := repository.PostgreSQLDB

	var loginInfo registerRequest
	err := json.NewDecoder(r.Body).Decode(&loginInfo)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var user models.User
	err = db.QueryRow("SELECT id, username, password, nickname, school FROM users WHERE username = $1",
		loginInfo.Username).Scan(&user.ID, &user.Username, &user.Password, &user.Nickname, &user.School)
	if err != nil {
		if err == sql.ErrNoRows {
			utils.HandleError(w, responses.UnauthorizedError{Msg: "You are not authorized to access this resource."})
			return
		}
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "An error occurred while processing your request."})
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginInfo.Password))
	if err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid username or password."})
		return
	}

	claims := models.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		},
		ID:       strconv.FormatInt(user.ID, 10),
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate token."})
		return
	}

	refreshToken, err := generateOpaqueToken()
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate refresh token."})
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour * 180) // Expires in 180 days
	_, err = db.Exec("INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)",
		user.ID, refreshToken, expiresAt)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to store refresh token."})
		return
	}

	// Mint the socket session: the websocket handshake presents this
	// (session id, token) pair before the connection may do anything else.
	sessionID := uuid.New().String()
	socketToken, err := generateOpaqueToken()
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate session token."})
		return
	}
	session := &models.Session{
		User:   &models.SessionUser{ID: user.ID, Nickname: user.Nickname},
		Token:  socketToken,
		School: user.School,
	}
	if err := Sessions.Put(r.Context(), sessionID, session); err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to create session."})
		return
	}

	refreshTokenCookie := &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, refreshTokenCookie)

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{
		"access_token": tokenString,
		"session_id":   sessionID,
		"socket_token": socketToken,
	}))
}

func generateOpaqueToken() (string, error) {
	tokenBytes := make([]byte, 64) // 64 bytes
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(tokenBytes), nil
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

func Logout(w http.ResponseWriter, r *http.Request) {
	refreshTokenCookie, err := r.Cookie("refresh_token")
	db := repository.PostgreSQLDB

	if err == nil {
		_, dbErr := db.Exec("DELETE FROM refresh_tokens WHERE token = $1", refreshTokenCookie.Value)
		if dbErr != nil {
			log.Println(dbErr)
			utils.HandleError(w, responses.InternalServerError{Msg: "Failed to delete refresh token."})
			return
		}
	}

	// Drop the socket session too, if the client tells us which one it had.
	var req logoutRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr == nil && req.SessionID != "" {
		if delErr := Sessions.Delete(r.Context(), req.SessionID); delErr != nil {
			log.Println(delErr)
		}
	}

	// Expire the cookie to force the client to delete it
	newCookie := &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/",
		Expires:  time.Now().AddDate(0, 0, -1),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	}
	http.SetCookie(w, newCookie)

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "Logged out successfully."}))
}

func RefreshToken(w http.ResponseWriter, r *http.Request) {
	db := repository.PostgreSQLDB

	refreshTokenCookie, err := r.Cookie("refresh_token")
	if err != nil {
		utils.HandleError(w, responses.UnauthorizedError{Msg: "Missing refresh token."})
		return
	}

	var userID int64
	var expiresAt time.Time
	err = db.QueryRow("SELECT user_id, expires_at FROM refresh_tokens WHERE token = $1",
		refreshTokenCookie.Value).Scan(&userID, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			utils.HandleError(w, responses.UnauthorizedError{Msg: "Invalid refresh token."})
			return
		}
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "An error occurred while processing your request."})
		return
	}

	if time.Now().After(expiresAt) {
		utils.HandleError(w, responses.UnauthorizedError{Msg: "Refresh token expired. Please log in again."})
		return
	}

	var username string
	err = db.QueryRow("SELECT username FROM users WHERE id = $1", userID).Scan(&username)
	if err != nil {
		log.Println(err)
		utils.HandleError(w, responses.InternalServerError{Msg: "An error occurred while processing your request."})
		return
	}

	claims := models.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		},
		ID:       strconv.FormatInt(userID, 10),
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to generate token."})
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"access_token": tokenString}))
}
