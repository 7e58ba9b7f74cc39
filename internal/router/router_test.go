package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/car-marketplace/internal/config"
	"github.com/iliyamo/car-marketplace/internal/handler"
	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/realtime"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/service"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	dbx := sqlx.NewDb(db, "sqlmock")
	log := logging.Discard()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cars := repository.NewCarRepo(db)
	users := repository.NewUserRepo(db)
	blocks := repository.NewBlockRepo(db)
	searches := repository.NewSavedSearchRepo(db)
	lookups := repository.NewLookupRepo(dbx)
	carSvc := service.NewCarService(cars, users, blocks, searches, log)
	userSvc := service.NewUserService(service.UserDeps{Users: users, Cars: cars, Blocks: blocks, Searches: searches})
	adminSvc := service.NewAdminService(service.AdminDeps{
		Admins: repository.NewAdminRepo(db), Sessions: repository.NewSessionRepo(db), Log: log,
	})
	paySvc := service.NewPaymentService(repository.NewPaymentRepo(dbx), repository.NewSubscriptionRepo(dbx), "https://pay.example", log)
	msgSvc := service.NewMessageService(repository.NewMessageRepo(nil), users, blocks)
	chat := &realtime.Server{Messages: msgSvc, Presence: realtime.NewMemoryPresence(), Hub: realtime.NewHub(log), JWTSecret: "s", Log: log}

	return New(Handlers{
		Auth:     handler.NewAuthHandler(nil, log),
		Cars:     handler.NewCarHandler(carSvc, nil, userSvc, store, log),
		Lookups:  handler.NewLookupHandler(lookups, log),
		Search:   handler.NewSearchHandler(service.NewSearchService(cars, lookups), log),
		Users:    handler.NewUserHandler(userSvc, log),
		Admin:    handler.NewAdminHandler(adminSvc, userSvc, lookups, log),
		Billing:  handler.NewBillingHandler(paySvc, nil, log),
		Messages: handler.NewMessageHandler(msgSvc, chat, log),
		Uploads:  handler.NewUploadHandler(store, log),
		Health:   &handler.HealthHandler{},
		Chat:     chat,
	}, Deps{
		JWTSecret: "s",
		Sessions:  adminSvc,
		RateLimit: config.RateLimitConfig{},
		OTPLimit:  config.RateLimitConfig{},
		Cache:     config.CacheConfig{},
		Registry:  prometheus.NewRegistry(),
		Log:       log,
	})
}

func TestRoutesRegistered(t *testing.T) {
	e := newTestServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"GET /ws",
		"GET /static/uploads/:name",
		"POST /api/auth/verify-otp",
		"GET /api/cars/list",
		"POST /api/cars/add",
		"POST /api/cars/upload-cars-xlsx",
		"GET /api/cars/fuel-types",
		"POST /api/search/filter",
		"GET /api/users/saved-searches",
		"GET /api/messages/:user_id",
		"POST /api/payments/webhook",
		"POST /api/subscriptions/subscribe",
		"POST /api/admin/cars/:id/approve",
		"GET /api/admin/user-incident-reports-list",
	} {
		if !have[want] {
			t.Errorf("route %s missing", want)
		}
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	e := newTestServer(t)
	cases := []struct {
		method, path, msg string
	}{
		{http.MethodGet, "/api/users/profile", "invalid or expired token"},
		{http.MethodPost, "/api/cars/add", "invalid or expired token"},
		{http.MethodGet, "/api/admin/dashboard", "invalid or expired session"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status %d", tc.method, tc.path, rec.Code)
			continue
		}
		var body map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != tc.msg {
			t.Errorf("%s %s: body %v", tc.method, tc.path, body)
		}
	}
}

func TestErrorHandlerShapes(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = errorHandler(logging.Discard())
	e.GET("/boom", func(echo.Context) error { return errors.New("secret dsn root:pw@tcp") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound || rec.Body.String() != "{\"error\":\"Not Found\"}\n" {
		t.Fatalf("404: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "{\"error\":\"internal server error\"}\n" {
		t.Fatalf("500: %d %q", rec.Code, rec.Body.String())
	}
}
