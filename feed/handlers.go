package feed

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pixelfeed/apperr"
	"pixelfeed/cascade"
	"pixelfeed/models"
	"pixelfeed/mq"
	"pixelfeed/session"
	"pixelfeed/utils"
)

type Handlers struct {
	Engine  *Engine
	Cascade *cascade.Coordinator
}

// GetFeed handles GET /api/feed — the live ordered post list, newest
// first. An optional q param filters by caption or author.
func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query().Get("q")
	var posts []models.Post
	if q != "" {
		posts = h.Engine.SearchPosts(q)
	} else {
		posts = h.Engine.Posts()
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true, "data": posts})
}

// GetPost handles GET /api/feed/post/:postid — the post plus its
// comments, oldest first.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	postID := ps.ByName("postid")

	post, err := h.Engine.Post(r.Context(), postID)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	comments, err := h.Engine.GroupCommentsForPost(r.Context(), postID)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"ok":       true,
		"post":     post,
		"comments": comments,
	})
}

// CreatePost handles POST /api/feed/post
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ident := session.FromRequest(r)

	var payload struct {
		ImageURL string `json:"imageUrl"`
		Caption  string `json:"caption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	post, err := h.Engine.CreatePost(r.Context(), ident, payload.ImageURL, payload.Caption)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	go mq.Emit("post-created", models.Index{EntityType: "post", EntityId: post.PostID, Method: "POST", ItemId: ident.UID})

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"ok": true, "data": post})
}

// EditCaption handles PATCH /api/feed/post/:postid, owner only.
func (h *Handlers) EditCaption(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ident := session.FromRequest(r)
	postID := ps.ByName("postid")

	var payload struct {
		Caption string `json:"caption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.Engine.EditPostCaption(r.Context(), postID, payload.Caption, ident); err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true})
}

// DeletePost handles DELETE /api/feed/post/:postid. The cascade
// coordinator removes the post and all its comments as one unit.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ident := session.FromRequest(r)
	postID := ps.ByName("postid")

	if err := h.Cascade.DeletePost(r.Context(), postID, ident.UID); err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}
	h.Engine.ForgetPost(postID)

	go mq.Emit("post-deleted", models.Index{EntityType: "post", EntityId: postID, Method: "DELETE", ItemId: ident.UID})

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true})
}

// CreateComment handles POST /api/feed/post/:postid/comments
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ident := session.FromRequest(r)
	postID := ps.ByName("postid")

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	comment, err := h.Engine.SubmitComment(r.Context(), postID, ident, payload.Text)
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	go mq.Emit("comment-created", models.Index{EntityType: "comment", EntityId: comment.CommentID, Method: "POST", ItemId: postID})

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"ok": true, "data": comment})
}

// GetComments handles GET /api/feed/post/:postid/comments
func (h *Handlers) GetComments(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	comments, err := h.Engine.GroupCommentsForPost(r.Context(), ps.ByName("postid"))
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true, "data": comments})
}
