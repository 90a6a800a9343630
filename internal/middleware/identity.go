package middleware

// identity.go holds the context keys JWTAuth fills and the helpers other
// middleware and handlers use to read them.

import "github.com/labstack/echo/v4"

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// UserID returns the authenticated admin's id, or false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Username returns the name claim of the authenticated admin.
func Username(c echo.Context) string {
	s, _ := c.Get(ctxUsername).(string)
	return s
}

