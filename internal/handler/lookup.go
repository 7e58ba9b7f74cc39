package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/repository"
)

// LookupHandler serves the reference lists used by listing forms and
// search filters.
type LookupHandler struct {
	Lookups *repository.LookupRepo
	Log     *logrus.Logger
}

func NewLookupHandler(lookups *repository.LookupRepo, log *logrus.Logger) *LookupHandler {
	return &LookupHandler{Lookups: lookups, Log: log}
}

// List returns a handler for one named list.
func (h *LookupHandler) List(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := reqCtx(c)
		defer cancel()
		items, err := h.Lookups.List(ctx, name)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"data": items})
	}
}

// ByName handles GET /api/cars/lookups/:name. Dashes and underscores are
// interchangeable in the name.
func (h *LookupHandler) ByName(c echo.Context) error {
	return h.List(strings.ReplaceAll(c.Param("name"), "-", "_"))(c)
}

// Makes handles GET /api/cars/makes.
func (h *LookupHandler) Makes(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Lookups.Makes(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Models handles GET /api/cars/models?make=.
func (h *LookupHandler) Models(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Lookups.Models(ctx, strings.TrimSpace(c.QueryParam("make")))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Years handles GET /api/cars/years?make=&model=.
func (h *LookupHandler) Years(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Lookups.Years(ctx, strings.TrimSpace(c.QueryParam("make")), strings.TrimSpace(c.QueryParam("model")))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Trims handles GET /api/cars/trims?make=&model=.
func (h *LookupHandler) Trims(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Lookups.Trims(ctx, strings.TrimSpace(c.QueryParam("make")), strings.TrimSpace(c.QueryParam("model")))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// UploadOptions handles GET /api/cars/upload-option-details: every list a
// listing form needs in one response.
func (h *LookupHandler) UploadOptions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	opts, err := h.Lookups.UploadOptions(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": opts})
}
