package http

import (
	stdhttp "net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/auth"
	"github.com/ovoronin/talkline-server/internal/config"
	"github.com/ovoronin/talkline-server/internal/core"
	"github.com/ovoronin/talkline-server/internal/store"
)

// Gateway bundles the core components the transport dispatches into.
type Gateway struct {
	Presence *core.PresenceTracker
	Typing   *core.TypingCoordinator
	Delivery *core.DeliveryEngine
	Mutation *core.MutationBroadcaster
}

// NewServer builds the HTTP server: REST API plus the websocket endpoint.
func NewServer(gw Gateway, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	messageHandlers := NewMessageHandlers(st, gw.Delivery, gw.Mutation, logger)
	profileHandlers := NewProfileHandlers(st, authService, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	authed.GET("/me", profileHandlers.Me)
	authed.PATCH("/profile/username", profileHandlers.UpdateUsername)
	authed.PATCH("/profile/password", profileHandlers.ChangePassword)
	authed.GET("/users", userHandlers.ListUsers)
	authed.GET("/users/search", userHandlers.SearchUsers)
	authed.GET("/conversations/:userId", messageHandlers.Conversation)
	authed.DELETE("/conversations/:userId", messageHandlers.ClearConversation)
	authed.GET("/messages/unread/count", messageHandlers.UnreadCount)
	authed.PATCH("/messages/:messageId/read", messageHandlers.MarkRead)
	authed.DELETE("/messages/:messageId", messageHandlers.DeleteMessage)

	router.GET("/ws", gin.WrapH(NewWSHandler(gw, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
