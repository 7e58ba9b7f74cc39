package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/service"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

const maxUploadBytes = 10 << 20

// UploadHandler stores images and serves them back under /static/uploads.
type UploadHandler struct {
	Store storage.Storage
	Log   *logrus.Logger
}

func NewUploadHandler(store storage.Storage, log *logrus.Logger) *UploadHandler {
	return &UploadHandler{Store: store, Log: log}
}

// saveUpload validates and stores one uploaded image and returns its
// canonical URL.
func saveUpload(ctx context.Context, store storage.Storage, fh *multipart.FileHeader) (string, error) {
	if !storage.Allowed(fh.Filename) {
		return "", service.Invalid("File type not allowed")
	}
	if fh.Size > maxUploadBytes {
		return "", service.Invalid("File is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxUploadBytes {
		return "", service.Invalid("File is too large")
	}
	name, err := store.Save(ctx, data, fh.Filename)
	if err != nil {
		return "", err
	}
	return storage.URLPrefix + name, nil
}

// Upload stores the "file" (or "image") part and returns its URL.
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		if fh, err = c.FormFile("image"); err != nil {
			return writeError(c, h.Log, service.Invalid("No file provided"))
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	url, err := saveUpload(ctx, h.Store, fh)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}

// Serve streams a stored image.
func (h *UploadHandler) Serve(c echo.Context) error {
	rc, ctype, err := h.Store.Open(c.Request().Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return writeError(c, h.Log, err)
	}
	defer rc.Close()
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, ctype, rc)
}
