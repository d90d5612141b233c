package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/chat"
	"github.com/nfrund/courier/internal/domain"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/presence"
)

// UserHandler implements the peer list and the presence poll endpoint.
type UserHandler struct {
	chat     *chat.Service
	presence *presence.Service
}

// NewUserHandler creates a user handler.
func NewUserHandler(chatSvc *chat.Service, presenceSvc *presence.Service) *UserHandler {
	return &UserHandler{chat: chatSvc, presence: presenceSvc}
}

// List returns every other user, for the conversation sidebar.
func (h *UserHandler) List(c echo.Context) error {
	self := middleware.Identity(c)

	peers, err := h.chat.Peers(c.Request().Context(), self)
	if err != nil {
		return httpError(err)
	}
	if peers == nil {
		peers = []*domain.User{}
	}
	return c.JSON(http.StatusOK, peers)
}

// Presence returns the current online snapshot. The socket pushes the same
// snapshot on every change; this endpoint exists for clients that have not
// connected yet.
func (h *UserHandler) Presence(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{
		"users": h.presence.OnlineUsers(),
	})
}
