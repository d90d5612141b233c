package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	// SessionName is the cookie holding the identity session.
	SessionName = "courier_session"

	// IdentityContextKey is where RequireIdentity stores the resolved
	// identity on the echo context.
	IdentityContextKey = "identity"

	sessionIdentityKey = "identity"
)

// Session returns the echo session middleware backed by a cookie store.
func Session(secret string) echo.MiddlewareFunc {
	return session.Middleware(sessions.NewCookieStore([]byte(secret)))
}

// RequireIdentity rejects requests that carry no identity in their session.
// Handlers downstream read the identity with Identity(c).
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(SessionName, c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}

			identity, ok := sess.Values[sessionIdentityKey].(string)
			if !ok || identity == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			c.Set(IdentityContextKey, identity)
			return next(c)
		}
	}
}

// Identity returns the authenticated identity for this request, or "" if
// RequireIdentity did not run.
func Identity(c echo.Context) string {
	identity, _ := c.Get(IdentityContextKey).(string)
	return identity
}

// SetIdentity writes the identity into the session cookie. Used by the
// login handler.
func SetIdentity(c echo.Context, identity string) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	sess.Values[sessionIdentityKey] = identity
	return sess.Save(c.Request(), c.Response())
}

// ClearIdentity removes the identity from the session cookie.
func ClearIdentity(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Options = &sessions.Options{Path: "/", MaxAge: -1}
	delete(sess.Values, sessionIdentityKey)
	return sess.Save(c.Request(), c.Response())
}
