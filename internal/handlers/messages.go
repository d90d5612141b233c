package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/chat"
	"github.com/nfrund/courier/internal/domain"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/storage"
)

// MessageHandler implements the message endpoints.
type MessageHandler struct {
	chat  *chat.Service
	media *storage.MediaStore
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(chatSvc *chat.Service, media *storage.MediaStore) *MessageHandler {
	return &MessageHandler{chat: chatSvc, media: media}
}

// GetHistory returns the conversation with :peer, oldest first. This is
// the client's catch-up path; it always reflects the store, so anything a
// dropped live event missed shows up here.
func (h *MessageHandler) GetHistory(c echo.Context) error {
	self := middleware.Identity(c)
	peer := c.Param("peer")

	history, err := h.chat.History(c.Request().Context(), self, peer)
	if err != nil {
		return httpError(err)
	}
	if history == nil {
		history = []*domain.Message{}
	}
	return c.JSON(http.StatusOK, history)
}

// Send creates a message to :peer. The body is multipart form data: a text
// field and an optional media part. A send with neither is rejected before
// anything is stored.
func (h *MessageHandler) Send(c echo.Context) error {
	self := middleware.Identity(c)
	peer := c.Param("peer")

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	mediaRef, err := h.saveMedia(c)
	if err != nil {
		return err
	}

	msg, err := h.chat.Send(c.Request().Context(), self, peer, req.Text, mediaRef)
	if err != nil {
		if mediaRef != "" {
			// The blob was written before validation could see the full
			// request; a rejected send must not leak it.
			h.media.Delete(c.Request().Context(), mediaRef)
		}
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, msg)
}

// Delete removes a message the requester participates in.
func (h *MessageHandler) Delete(c echo.Context) error {
	self := middleware.Identity(c)
	id := c.Param("id")

	if err := h.chat.Delete(c.Request().Context(), self, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// saveMedia stores the uploaded media part, if present, and returns its
// reference. A missing part is not an error.
func (h *MessageHandler) saveMedia(c echo.Context) (string, error) {
	file, err := c.FormFile("media")
	if err != nil {
		return "", nil
	}

	src, err := file.Open()
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unreadable media upload")
	}
	defer src.Close()

	ref, err := h.media.Save(c.Request().Context(), file.Filename, src)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, "failed to store media")
	}
	return ref, nil
}
