package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler answers load balancer health checks.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client // optional
}

// Health returns 200 "ok" while the database answers a ping. Redis is
// reported but never fails the check since every redis feature degrades.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	out := echo.Map{"status": "ok", "database": "ok", "redis": "disabled"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			out["status"], out["database"] = "unavailable", "down"
			return c.JSON(http.StatusServiceUnavailable, out)
		}
	}
	if h.Redis != nil {
		out["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			out["redis"] = "down"
		}
	}
	return c.JSON(http.StatusOK, out)
}
