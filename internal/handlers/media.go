package handlers

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/storage"
)

// MediaHandler serves stored message attachments.
type MediaHandler struct {
	store *storage.MediaStore
}

// NewMediaHandler creates a media handler.
func NewMediaHandler(store *storage.MediaStore) *MediaHandler {
	return &MediaHandler{store: store}
}

// Get streams one attachment by name.
func (h *MediaHandler) Get(c echo.Context) error {
	name := c.Param("name")

	blob, err := h.store.Open(c.Request().Context(), name)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	defer blob.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), blob)
	return err
}
