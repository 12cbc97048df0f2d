package profile

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/mq"
	"pixelfeed/store"
	"pixelfeed/utils"
)

type Handlers struct {
	Agg   *Aggregator
	Store store.EntityStore
}

// GetProfile handles GET /api/profile/:id
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("id")
	viewerID := utils.GetUserIDFromRequest(r)

	resp, err := h.Agg.Aggregate(r.Context(), userID, viewerID)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// EditProfile handles PATCH /api/profile/:id, owner only.
func (h *Handlers) EditProfile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("id")
	uid := utils.GetUserIDFromRequest(r)
	if uid == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if uid != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var patch models.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if patch.UserName != nil && *patch.UserName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "userName cannot be empty")
		return
	}

	if err := h.Store.SetUserProfile(r.Context(), userID, patch); err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	go mq.Emit("profile-edited", models.Index{EntityType: "user", EntityId: userID, Method: "PATCH"})

	user, err := h.Store.User(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true, "data": user})
}

// GetFollowers handles GET /api/profile/:id/followers
func (h *Handlers) GetFollowers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	users, err := h.Agg.Followers(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, users)
}

// GetFollowing handles GET /api/profile/:id/following
func (h *Handlers) GetFollowing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	users, err := h.Agg.Following(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, users)
}
