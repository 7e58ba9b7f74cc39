package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/service"
)

// SessionAuthenticator resolves an admin session token.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Admin, error)
}

// AdminAuth requires a live admin session token in the Bearer header. The
// admin is stored under "admin" and the raw token under "admin_token".
func AdminAuth(auth SessionAuthenticator, log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			a, err := auth.Authenticate(ctx, raw)
			if err != nil {
				if !errors.Is(err, service.ErrUnauthorized) {
					log.WithError(err).Error("admin session lookup failed")
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
			}
			c.Set(CtxAdmin, a)
			c.Set(CtxAdminTok, raw)
			return next(c)
		}
	}
}

// RequirePermission lets the request through only when the admin set by
// AdminAuth holds perm.
func RequirePermission(perm model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, _ := c.Get(CtxAdmin).(*model.Admin)
			if err := service.Authorize(a, perm); err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
