package counters

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pixelfeed/apperr"
	"pixelfeed/models"
	"pixelfeed/mq"
	"pixelfeed/utils"
)

type Handlers struct {
	Counters *Counters
}

// ToggleLike handles POST /api/posts/:postid/like
func (h *Handlers) ToggleLike(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	uid := utils.GetUserIDFromRequest(r)
	postID := ps.ByName("postid")

	likes, err := h.Counters.ToggleLike(r.Context(), postID, uid)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	liked := false
	for _, id := range likes {
		if id == uid {
			liked = true
			break
		}
	}
	if liked {
		go mq.Emit("post-liked", models.Index{EntityType: "post", EntityId: postID, Method: "PUT", ItemId: uid})
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"liked": liked,
		"likes": likes,
		"count": len(likes),
	})
}

// ToggleFollow handles POST /api/users/:id/follow
func (h *Handlers) ToggleFollow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	uid := utils.GetUserIDFromRequest(r)
	targetID := ps.ByName("id")

	following, err := h.Counters.ToggleFollow(r.Context(), targetID, uid)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	if following {
		go mq.Emit("followed", models.Index{EntityType: "follow", EntityId: uid, Method: "PUT", ItemId: targetID})
	} else {
		go mq.Emit("unfollowed", models.Index{EntityType: "follow", EntityId: uid, Method: "DELETE", ItemId: targetID})
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"isFollowing": following,
		"ok":          true,
	})
}
