package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthEcho(users *testutils.MemUserRepo) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.Use(middleware.Session("test-secret"))

	h := NewAuthHandler(users)
	e.POST("/api/login", h.Login)
	e.POST("/api/logout", h.Logout)
	return e
}

func TestAuthHandler_Login(t *testing.T) {
	users := testutils.NewMemUserRepo()
	e := newAuthEcho(users)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"id":"alice","email":"alice@example.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Set-Cookie"), "login establishes the session cookie")

	exists, err := users.Exists(req.Context(), "alice")
	require.NoError(t, err)
	assert.True(t, exists, "login registers the identity")
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"email":"a@example.com"}`},
		{"missing email", `{"id":"alice"}`},
		{"invalid email", `{"id":"alice","email":"not-an-email"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAuthEcho(testutils.NewMemUserRepo())

			req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newAuthEcho(testutils.NewMemUserRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
