package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/middleware"
)

// IdentityRegistrar records an identity asserted at login so message
// participant checks can find it later.
type IdentityRegistrar interface {
	Ensure(ctx context.Context, id, email string, name *string) error
}

// AuthHandler implements the login and logout endpoints. Credentials are
// the concern of the external identity collaborator; this handler trusts
// the asserted identity and binds it to the session cookie.
type AuthHandler struct {
	users IdentityRegistrar
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users IdentityRegistrar) *AuthHandler {
	return &AuthHandler{users: users}
}

// Login binds the asserted identity to the session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if err := h.users.Ensure(c.Request().Context(), req.ID, req.Email, req.Name); err != nil {
		return httpError(err)
	}

	if err := middleware.SetIdentity(c, req.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to establish session")
	}

	return c.JSON(http.StatusOK, map[string]string{"id": req.ID})
}

// Logout clears the session.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := middleware.ClearIdentity(c); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear session")
	}
	return c.NoContent(http.StatusNoContent)
}
