package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/service"
)

// SearchHandler serves /api/search. Every endpoint accepts GET query
// parameters or a POST JSON body.
type SearchHandler struct {
	Search *service.SearchService
	Log    *logrus.Logger
}

func NewSearchHandler(s *service.SearchService, log *logrus.Logger) *SearchHandler {
	return &SearchHandler{Search: s, Log: log}
}

// Basic handles /api/search/search.
func (h *SearchHandler) Basic(c echo.Context) error {
	v := requestParams(c)
	page, _ := strconv.Atoi(v.Get("page"))
	limit, _ := strconv.Atoi(first(v, "limit", "per_page"))
	q := service.BasicQuery{
		Make:     v.Get("make"),
		Model:    v.Get("model"),
		BodyType: v.Get("body_type"),
		Location: v.Get("location"),
		Page:     page,
		Limit:    limit,
		ViewerID: viewerID(c),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Search.Basic(ctx, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Filter handles /api/search/filter.
func (h *SearchHandler) Filter(c echo.Context) error {
	f := carFilter(requestParams(c))
	f.ViewerID = viewerID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Search.Advanced(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Suggestions handles /api/search/suggestions?q=.
func (h *SearchHandler) Suggestions(c echo.Context) error {
	v := requestParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Search.Suggestions(ctx, first(v, "q", "query"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}
