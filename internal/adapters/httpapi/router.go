// Package httpapi wires the REST surface: auth, user listing, chat history,
// reactions, uploads and friend requests. Realtime side effects go through
// the relay router; persistence through the store.
package httpapi

import (
	"context"

	"github.com/connectify/connectify/internal/adapters/signal"
	"github.com/connectify/connectify/internal/config"
	"github.com/connectify/connectify/internal/relay"
	"github.com/connectify/connectify/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type API struct {
	Store  *store.Store
	Router *relay.Router
	Cfg    *config.Config
}

func SetupRouter(ctx context.Context, cfg *config.Config, st *store.Store, router *relay.Router, ws *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConnectifySession", sessionStore))

	r.Static("/uploads", cfg.UploadDir)

	api := &API{Store: st, Router: router, Cfg: cfg}

	auth := r.Group("/api/auth")
	auth.POST("/signup", api.handleSignup)
	auth.POST("/login", api.handleLogin)
	auth.POST("/logout", api.handleLogout)
	auth.GET("/me", AuthRequired(), api.handleMe)

	authed := r.Group("/api", AuthRequired())
	authed.GET("/users", api.handleListUsers)
	authed.GET("/chat/:id", api.handleGetMessages)
	authed.POST("/chat/:id", api.handleSendMessage)
	authed.POST("/chat/react/:messageId", api.handleReact)
	authed.POST("/chat/upload", api.handleUpload)
	authed.GET("/friends", api.handleListFriends)
	authed.GET("/friends/requests", api.handleIncomingRequests)
	authed.POST("/friends/request/:id", api.handleSendFriendRequest)
	authed.POST("/friends/accept/:id", api.handleAcceptFriendRequest)

	authed.GET("/ws", func(c *gin.Context) {
		ws.HandleSocket(ctx, c)
	})

	log.Info().Str("module", "httpapi").Str("uploads", cfg.UploadDir).Msg("router setup")
	return r
}
