// Package handlers exposes the REST surface: login, message history, send,
// delete, the peer list, and media. Handlers translate HTTP to service
// calls and domain errors back to status codes; no business rules live here.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/domain"
)

// CustomValidator wraps go-playground/validator to implement Echo's
// Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// LoginRequest is the DTO for the login endpoint.
type LoginRequest struct {
	ID    string  `json:"id" form:"id" validate:"required,max=128"`
	Email string  `json:"email" form:"email" validate:"required,email"`
	Name  *string `json:"name" form:"name" validate:"omitempty,max=128"`
}

// SendMessageRequest is the DTO for the send endpoint. The media file, if
// any, arrives as a multipart part alongside it.
type SendMessageRequest struct {
	Text string `json:"text" form:"text" validate:"omitempty,max=4000"`
}

// httpError maps a domain error to its HTTP status. Everything unknown is
// a 500 with a generic body so store internals never leak to clients.
func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrUnknownUser):
		return echo.NewHTTPError(http.StatusNotFound, "unknown user")
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, "not a participant")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
