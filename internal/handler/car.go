package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/service"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

// CarHandler serves the listing endpoints under /api/cars.
type CarHandler struct {
	Cars   *service.CarService
	Import *service.ImportService
	Users  *service.UserService
	Store  storage.Storage
	Log    *logrus.Logger
}

func NewCarHandler(cars *service.CarService, imp *service.ImportService, users *service.UserService,
	store storage.Storage, log *logrus.Logger) *CarHandler {
	return &CarHandler{Cars: cars, Import: imp, Users: users, Store: store, Log: log}
}

// bindCar reads a listing form. Multipart requests carry text fields plus
// car_image/images files; anything else is decoded as JSON.
func (h *CarHandler) bindCar(c echo.Context) (*model.CarInput, error) {
	in := &model.CarInput{}
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := bindJSON(c, in); err != nil {
			return nil, err
		}
		return in, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, service.Invalid("invalid form")
	}
	for key, vals := range form.Value {
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "draft":
			d := isTruthyForm(vals[0])
			in.Draft = &d
		case "images":
			in.Images = append(in.Images, vals...)
		default:
			in.Set(key, vals[0])
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	for _, key := range []string{"car_image", "images"} {
		for _, fh := range form.File[key] {
			url, err := saveUpload(ctx, h.Store, fh)
			if err != nil {
				return nil, err
			}
			in.Images = append(in.Images, url)
			if key == "car_image" && in.CarImage == nil {
				in.CarImage = model.Flex(url)
			}
		}
	}
	return in, nil
}

func isTruthyForm(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func limitParam(c echo.Context, def int) int {
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		return n
	}
	return def
}

// List handles GET /api/cars/list.
func (h *CarHandler) List(c echo.Context) error {
	f := carFilter(requestParams(c))
	f.ViewerID = viewerID(c)
	f.IncludeUnapproved = false
	f.Approval = ""
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, page, err := h.Cars.List(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, page))
}

// Details handles GET /api/cars/details/:id.
func (h *CarHandler) Details(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Cars.Get(ctx, id, viewerID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *CarHandler) create(c echo.Context, forceDraft bool) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	in, err := h.bindCar(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if forceDraft {
		d := true
		in.Draft = &d
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	car, err := h.Cars.Create(ctx, uid, in, service.CreateOptions{})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	msg := "Car added successfully"
	if car.Draft {
		msg = "Draft saved successfully"
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg, "car": car})
}

// Add handles POST /api/cars/add.
func (h *CarHandler) Add(c echo.Context) error { return h.create(c, false) }

// Draft handles POST /api/cars/draft.
func (h *CarHandler) Draft(c echo.Context) error { return h.create(c, true) }

// Update handles PUT /api/cars/update/:id and /api/cars/edit-draft/:id.
func (h *CarHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	in, err := h.bindCar(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	car, err := h.Cars.Update(ctx, id, uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Car updated successfully", "car": car})
}

// Delete handles DELETE /api/cars/delete/:id.
func (h *CarHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Cars.Delete(ctx, id, uid); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Car deleted successfully"})
}

// MarkSold handles POST /api/cars/:id/mark-sold.
func (h *CarHandler) MarkSold(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Cars.MarkSold(ctx, id, uid); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Car marked as sold"})
}

// Recommended handles GET /api/cars/recommended.
func (h *CarHandler) Recommended(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Cars.Recommended(ctx, viewerID(c), limitParam(c, 10))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Featured handles GET /api/cars/featured.
func (h *CarHandler) Featured(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Cars.Featured(ctx, viewerID(c), limitParam(c, 10))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Similar handles GET /api/cars/:id/similar.
func (h *CarHandler) Similar(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Cars.Similar(ctx, id, viewerID(c), limitParam(c, 5))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// MyListings handles GET /api/cars/my-listings.
func (h *CarHandler) MyListings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cars, err := h.Cars.UserCars(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cars)
}

// Stats handles GET /api/cars/stats.
func (h *CarHandler) Stats(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Cars.Stats(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// UserCars handles GET /api/cars/user/:id, the public seller page.
func (h *CarHandler) UserCars(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Users.PublicProfile(ctx, id, viewerID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ToggleFavorite handles POST /api/cars/favorites/:id.
func (h *CarHandler) ToggleFavorite(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	fav, err := h.Users.ToggleFavorite(ctx, uid, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	msg := "Car removed from favorites"
	if fav {
		msg = "Car added to favorites"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "is_favorite": fav})
}

// AddImages handles POST /api/cars/:id/images with one or more "images"
// parts.
func (h *CarHandler) AddImages(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, h.Log, service.Invalid("invalid form"))
	}
	files := append(form.File["images"], form.File["image"]...)
	if len(files) == 0 {
		return writeError(c, h.Log, service.Required("images"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := saveUpload(ctx, h.Store, fh)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		urls = append(urls, url)
	}
	imgs, err := h.Cars.AddImages(ctx, id, uid, urls)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"images": imgs})
}

// UploadSheet handles POST /api/cars/upload-cars-xlsx. Row failures are
// reported per row; the request fails only when the sheet is unreadable.
func (h *CarHandler) UploadSheet(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, h.Log, service.Required("file"))
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
		return writeError(c, h.Log, service.Invalid("Only .xlsx files are accepted"))
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, h.Log, err)
	}
	defer f.Close()
	rows, err := service.ParseSheet(f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Import.Import(ctx, uid, rows)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{
		"user_id": uid, "created": len(res.Created), "failed": len(res.Failed),
	}).Info("spreadsheet imported")
	return c.JSON(http.StatusOK, res)
}
