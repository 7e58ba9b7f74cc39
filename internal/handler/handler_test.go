package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/middleware"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/service"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.Required("make"), http.StatusBadRequest, "make is required"},
		{repository.ErrNoChange, http.StatusBadRequest, "Already in the requested state"},
		{service.ErrUnauthorized, http.StatusUnauthorized, "invalid or expired token"},
		{service.ErrInvalidLogin, http.StatusUnauthorized, "Invalid username or password"},
		{repository.ErrForbidden, http.StatusForbidden, "forbidden"},
		{service.ErrPermission, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("load: %w", repository.ErrCarNotFound), http.StatusNotFound, "Car not found"},
		{repository.ErrConflict, http.StatusConflict, "Resource already exists"},
		{errors.New("dial tcp 10.0.0.3:3306: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		status, msg := statusOf(tc.err)
		if status != tc.status || msg != tc.msg {
			t.Errorf("%v: got %d %q, want %d %q", tc.err, status, msg, tc.status, tc.msg)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	_ = writeError(c, logging.Discard(), errors.New("Error 1146: Table 'cars' doesn't exist"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "1146") {
		t.Fatalf("driver error leaked: %s", rec.Body.String())
	}
	if got := decode(t, rec)["error"]; got != "internal server error" {
		t.Fatalf("body %v", got)
	}
}

func TestRequestParamsMergesJSONBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/search/filter?make=Kia&page=2",
		strings.NewReader(`{"make":"Toyota","min_price":12000,"is_featured":true,"model":null}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	f := carFilter(requestParams(c))
	if f.Make != "Toyota" {
		t.Errorf("make = %q, body should win", f.Make)
	}
	if f.Page != 2 {
		t.Errorf("page = %d", f.Page)
	}
	if f.PriceFrom == nil || *f.PriceFrom != 12000 {
		t.Errorf("price_from = %v", f.PriceFrom)
	}
	if f.Featured == nil || !*f.Featured {
		t.Errorf("is_featured = %v", f.Featured)
	}
	if f.Model != "" || f.YearFrom != nil {
		t.Errorf("unexpected filters %+v", f)
	}
}

func newSearchHandler(db *sql.DB) *SearchHandler {
	svc := service.NewSearchService(repository.NewCarRepo(db), repository.NewLookupRepo(sqlx.NewDb(db, "sqlmock")))
	return NewSearchHandler(svc, logging.Discard())
}

func TestBasicSearchWithoutCriteriaSkipsDatabase(t *testing.T) {
	db, mock := newMock(t)
	h := newSearchHandler(db)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/search/search", nil), rec)

	if err := h.Basic(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decode(t, rec)
	if data, ok := body["data"].([]any); !ok || len(data) != 0 {
		t.Fatalf("data = %v", body["data"])
	}
	pg := body["pagination"].(map[string]any)
	if pg["total"].(float64) != 0 || pg["total_pages"].(float64) != 0 {
		t.Fatalf("pagination = %v", pg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSuggestionsShortQuery(t *testing.T) {
	db, _ := newMock(t)
	h := newSearchHandler(db)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/search/suggestions?q=k", nil), rec)

	if err := h.Suggestions(c); err != nil {
		t.Fatal(err)
	}
	body := decode(t, rec)
	for _, k := range []string{"makes", "models", "locations"} {
		if l, ok := body[k].([]any); !ok || len(l) != 0 {
			t.Errorf("%s = %v", k, body[k])
		}
	}
}

func newCarHandler(t *testing.T, db *sql.DB) *CarHandler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	log := logging.Discard()
	cars := service.NewCarService(repository.NewCarRepo(db), repository.NewUserRepo(db), repository.NewBlockRepo(db),
		repository.NewSavedSearchRepo(db), log)
	return NewCarHandler(cars, service.NewImportService(db, cars, log), nil, store, log)
}

func TestCarDetailsNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM cars c WHERE c.id = ?")).WillReturnError(sql.ErrNoRows)
	h := newCarHandler(t, db)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/cars/details/99", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := h.Details(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound || decode(t, rec)["error"] != "Car not found" {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCarDetailsRejectsBadID(t *testing.T) {
	db, _ := newMock(t)
	h := newCarHandler(t, db)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/cars/details/abc", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	_ = h.Details(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAddRequiresUser(t *testing.T) {
	db, _ := newMock(t)
	h := newCarHandler(t, db)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/cars/add", strings.NewReader(`{}`)), rec)

	_ = h.Add(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestBindCarMultipart(t *testing.T) {
	db, _ := newMock(t)
	h := newCarHandler(t, db)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("make", "Nissan")
	_ = w.WriteField("price", "9500")
	_ = w.WriteField("draft", "true")
	fw, _ := w.CreateFormFile("car_image", "front.png")
	_, _ = fw.Write([]byte("\x89PNG fake image"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/cars/add", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	c := echo.New().NewContext(req, httptest.NewRecorder())

	in, err := h.bindCar(c)
	if err != nil {
		t.Fatal(err)
	}
	if in.Get("make") != "Nissan" || in.Get("price") != "9500" {
		t.Fatalf("fields not bound: make=%q price=%q", in.Get("make"), in.Get("price"))
	}
	if in.Draft == nil || !*in.Draft {
		t.Fatal("draft not set")
	}
	if len(in.Images) != 1 || !strings.HasPrefix(in.Images[0], storage.URLPrefix+"front_") {
		t.Fatalf("images = %v", in.Images)
	}
	if in.Get("car_image") != in.Images[0] {
		t.Fatalf("car_image = %q", in.Get("car_image"))
	}
}

func TestBindCarRejectsDisallowedFile(t *testing.T) {
	db, _ := newMock(t)
	h := newCarHandler(t, db)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, _ := w.CreateFormFile("images", "payload.exe")
	_, _ = fw.Write([]byte("MZ"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/cars/add", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	c := echo.New().NewContext(req, httptest.NewRecorder())

	_, err := h.bindCar(c)
	var v *service.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadServeRoundTrip(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h := NewUploadHandler(store, logging.Discard())
	e := echo.New()
	e.POST("/api/uploads", h.Upload)
	e.GET("/static/uploads/:name", h.Serve)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, _ := w.CreateFormFile("file", "photo.jpg")
	_, _ = fw.Write([]byte("jpeg bytes"))
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	url := decode(t, rec)["url"].(string)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg bytes" {
		t.Fatalf("serve %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/uploads/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing file status %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	db, mock := newMock(t)
	h := &HealthHandler{DB: db}
	e := echo.New()

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	_ = h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec))
	if rec.Code != http.StatusOK || decode(t, rec)["redis"] != "disabled" {
		t.Fatalf("healthy: %d %s", rec.Code, rec.Body.String())
	}

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	rec = httptest.NewRecorder()
	_ = h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("down: %d", rec.Code)
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, err := getUserID(c); err == nil {
		t.Fatal("expected error without user")
	}
	if viewerID(c) != 0 {
		t.Fatal("anonymous viewer should be 0")
	}
	c.Set(middleware.CtxUserID, uint64(7))
	if uid, err := getUserID(c); err != nil || uid != 7 {
		t.Fatalf("uid %d err %v", uid, err)
	}
}
