package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-marketplace/internal/utils"
)

// Context keys set by the auth middlewares.
const (
	CtxUserID   = "user_id"
	CtxUserType = "user_type"
	CtxAdmin    = "admin"
	CtxAdminTok = "admin_token"
)

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// JWTAuth validates the Bearer access token of a marketplace user and
// stores its subject under "user_id" (uint64) and "user_type".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			uid, userType, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set(CtxUserID, uid)
			c.Set(CtxUserType, userType)
			return next(c)
		}
	}
}

// OptionalJWT identifies the caller when a valid token is sent and lets
// anonymous requests through. A bad token is treated as anonymous.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if uid, userType, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set(CtxUserID, uid)
					c.Set(CtxUserType, userType)
				}
			}
			return next(c)
		}
	}
}
