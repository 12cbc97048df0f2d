package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pixelfeed/auth"
	"pixelfeed/counters"
	"pixelfeed/feed"
	"pixelfeed/media"
	"pixelfeed/middleware"
	"pixelfeed/profile"
	"pixelfeed/ratelim"
)

func AddStaticRoutes(router *httprouter.Router) {
	router.ServeFiles("/static/thumbs/*filepath", http.Dir("static/thumbs"))
}

func AddAuthRoutes(router *httprouter.Router, h *auth.Handlers, rl *ratelim.RateLimiter) {
	router.POST("/api/auth/register", rl.Limit(h.Register))
	router.POST("/api/auth/login", rl.Limit(h.Login))
	router.POST("/api/auth/logout", middleware.Authenticate(h.Logout))
}

func AddFeedRoutes(router *httprouter.Router, h *feed.Handlers, rl *ratelim.RateLimiter) {
	router.GET("/api/feed", middleware.OptionalAuth(h.GetFeed))
	router.GET("/api/feed/post/:postid", middleware.OptionalAuth(h.GetPost))
	router.POST("/api/feed/post", rl.Limit(middleware.Authenticate(h.CreatePost)))
	router.PATCH("/api/feed/post/:postid", middleware.Authenticate(h.EditCaption))
	router.DELETE("/api/feed/post/:postid", middleware.Authenticate(h.DeletePost))
	router.POST("/api/feed/post/:postid/comments", rl.Limit(middleware.Authenticate(h.CreateComment)))
	router.GET("/api/feed/post/:postid/comments", h.GetComments)
}

func AddCounterRoutes(router *httprouter.Router, h *counters.Handlers) {
	router.POST("/api/posts/:postid/like", middleware.Authenticate(h.ToggleLike))
	router.POST("/api/users/:id/follow", middleware.Authenticate(h.ToggleFollow))
}

func AddProfileRoutes(router *httprouter.Router, h *profile.Handlers) {
	router.GET("/api/profile/:id", middleware.OptionalAuth(h.GetProfile))
	router.PATCH("/api/profile/:id", middleware.Authenticate(h.EditProfile))
	router.GET("/api/profile/:id/followers", h.GetFollowers)
	router.GET("/api/profile/:id/following", h.GetFollowing)
	router.GET("/api/profile/:id/qr", h.ShareQR)
	router.GET("/api/profile/:id/card", h.ProfileCard)
}

func AddMediaRoutes(router *httprouter.Router, h *media.Handlers, rl *ratelim.RateLimiter) {
	router.POST("/api/media/upload", rl.Limit(middleware.Authenticate(h.UploadImage)))
}

func AddStreamRoutes(router *httprouter.Router, hub *feed.Hub) {
	router.GET("/ws/feed", hub.ServeWS)
	router.GET("/ws/post/:postid", hub.ServeWS)
}
