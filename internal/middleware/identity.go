package middleware

// identity.go holds the helpers that read who is calling from the echo
// context. They are shared by the rate limiter, the response cache and the
// request logger.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// UserID returns the authenticated marketplace user, 0 when anonymous.
func UserID(c echo.Context) uint64 {
	if v, ok := c.Get(CtxUserID).(uint64); ok {
		return v
	}
	return 0
}

// identity names the caller for keys and logs: "u<id>", "a<id>" for admins
// or "guest".
func identity(c echo.Context) string {
	if a, ok := c.Get(CtxAdmin).(*model.Admin); ok && a != nil {
		return "a" + strconv.FormatUint(a.ID, 10)
	}
	if uid := UserID(c); uid != 0 {
		return "u" + strconv.FormatUint(uid, 10)
	}
	return "guest"
}
