package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/handlers"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/websocket"
)

// registerRoutes sets up the whole HTTP surface.
func (s *Server) registerRoutes(deps Dependencies, bridge *websocket.Bridge) {
	authHandler := handlers.NewAuthHandler(deps.Users)
	messageHandler := handlers.NewMessageHandler(s.chat, deps.Media)
	userHandler := handlers.NewUserHandler(s.chat, s.presence)
	mediaHandler := handlers.NewMediaHandler(deps.Media)

	s.E.POST("/api/login", authHandler.Login, middleware.RateLimiter(10))
	s.E.POST("/api/logout", authHandler.Logout)

	api := s.E.Group("/api", middleware.RequireIdentity())
	api.GET("/users", userHandler.List)
	api.GET("/presence", userHandler.Presence)
	api.GET("/messages/:peer", messageHandler.GetHistory)
	api.POST("/messages/:peer", messageHandler.Send)
	api.DELETE("/messages/:id", messageHandler.Delete)

	s.E.GET("/ws", bridge.Handler(), middleware.RequireIdentity())
	s.E.GET("/media/:name", mediaHandler.Get, middleware.RequireIdentity())

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
