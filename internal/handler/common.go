package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/middleware"
	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/service"
)

const requestTimeout = 5 * time.Second

// getUserID extracts the user_id set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		return t, nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// viewerID is the signed-in user on routes with optional auth, else 0.
func viewerID(c echo.Context) uint64 {
	uid, _ := getUserID(c)
	return uid
}

func currentAdmin(c echo.Context) *model.Admin {
	a, _ := c.Get(middleware.CtxAdmin).(*model.Admin)
	return a
}

func actor(c echo.Context) service.Actor {
	return service.Actor{Admin: currentAdmin(c), IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, service.Invalid("invalid " + name)
	}
	return n, nil
}

// pageParams reads page and limit. Clamping happens in the repositories.
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit == 0 {
		limit, _ = strconv.Atoi(c.QueryParam("per_page"))
	}
	return page, limit
}

func bindJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return service.Invalid("invalid body")
	}
	return nil
}

// statusOf maps a domain error onto an HTTP status and the message shown to
// the client.
func statusOf(err error) (int, string) {
	var v *service.ValidationError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest, v.Msg
	case errors.Is(err, service.ErrOTPExpired), errors.Is(err, service.ErrOTPMismatch),
		errors.Is(err, service.ErrOTPRequest), errors.Is(err, repository.ErrNotPending):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrNoChange):
		return http.StatusBadRequest, "Already in the requested state"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid or expired token"
	case errors.Is(err, service.ErrInvalidLogin), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrBanned):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, repository.ErrForbidden), errors.Is(err, service.ErrPermission):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrCarNotFound):
		return http.StatusNotFound, "Car not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, repository.ErrAdminNotFound):
		return http.StatusNotFound, "Admin not found"
	case errors.Is(err, repository.ErrReportNotFound):
		return http.StatusNotFound, "Report not found"
	case errors.Is(err, repository.ErrSavedSearchNotFound):
		return http.StatusNotFound, "Saved search not found"
	case errors.Is(err, repository.ErrPackageNotFound):
		return http.StatusNotFound, "Subscription package not found"
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		return http.StatusNotFound, "Subscription not found"
	case errors.Is(err, repository.ErrPaymentNotFound):
		return http.StatusNotFound, "Payment not found"
	case errors.Is(err, repository.ErrUnknownLookup):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "Resource already exists"
	}
	return http.StatusInternalServerError, "internal server error"
}

// writeError renders err. Server errors are logged with the request id and
// answered with a fixed body.
func writeError(c echo.Context, log *logrus.Logger, err error) error {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"method":     c.Request().Method,
			"route":      c.Path(),
		}).Error("request failed")
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// paged is the list envelope shared by paginated endpoints.
func paged(items any, p model.Page) echo.Map {
	return echo.Map{"data": items, "pagination": p}
}
