package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/rdx"
	"pixelfeed/session"
	"pixelfeed/store"
	"pixelfeed/utils"
)

type Handlers struct {
	Store    store.EntityStore
	Sessions *session.Provider
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		UserName string `json:"userName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	input.UserName = strings.TrimSpace(input.UserName)
	if input.UserName == "" || input.Password == "" || input.Email == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if _, err := h.Store.UserByName(r.Context(), input.UserName); err == nil {
		utils.RespondWithError(w, http.StatusConflict, "User already exists")
		return
	} else if !errors.Is(err, apperr.ErrNotFound) {
		utils.RespondWithError(w, apperr.Status(err), "Database error")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Hash error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Could not process password")
		return
	}

	user := models.User{
		UserID:       "u" + utils.GenerateID(10),
		UserName:     input.UserName,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Followers:    []string{},
		Following:    []string{},
	}

	if err := h.Store.InsertUser(r.Context(), user); err != nil {
		utils.RespondWithError(w, apperr.Status(err), "Failed to register user")
		return
	}

	if err := rdx.RdxHset("usernames", user.UserID, user.UserName); err != nil {
		log.Printf("Redis cache failed: %v", err)
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"ok": true, "userid": user.UserID})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if input.UserName == "" || input.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.Store.UserByName(r.Context(), input.UserName)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	ident := session.Identity{
		UID:      user.UserID,
		UserName: user.UserName,
		PhotoURL: user.PhotoURL,
		Email:    user.Email,
	}
	token, err := session.IssueToken(ident)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if err := h.Store.SetLastLogin(r.Context(), user.UserID); err != nil {
		log.Printf("last login update failed: %v", err)
	}
	if err := rdx.RdxHset("tokki", user.UserID, token); err != nil {
		log.Printf("Redis token storage failed: %v", err)
	}

	h.Sessions.SignedIn(ident)

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"ok":     true,
		"token":  token,
		"userid": user.UserID,
	})
}

// Logout handles POST /api/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	uid := utils.GetUserIDFromRequest(r)
	if uid != "" {
		if err := rdx.RdxHdel("tokki", uid); err != nil {
			log.Printf("Redis token cleanup failed: %v", err)
		}
	}
	h.Sessions.SignedOut()
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true})
}
