// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/config"
	"github.com/iliyamo/car-marketplace/internal/handler"
	"github.com/iliyamo/car-marketplace/internal/middleware"
	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/realtime"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth     *handler.AuthHandler
	Cars     *handler.CarHandler
	Lookups  *handler.LookupHandler
	Search   *handler.SearchHandler
	Users    *handler.UserHandler
	Admin    *handler.AdminHandler
	Billing  *handler.BillingHandler
	Messages *handler.MessageHandler
	Uploads  *handler.UploadHandler
	Health   *handler.HealthHandler
	Chat     *realtime.Server
}

// Deps carries what the middleware stack needs.
type Deps struct {
	JWTSecret string
	Sessions  middleware.SessionAuthenticator
	Redis     *redis.Client // nil disables cache and rate limits
	RateLimit config.RateLimitConfig
	OTPLimit  config.RateLimitConfig
	Cache     config.CacheConfig
	Registry  *prometheus.Registry
	Log       *logrus.Logger
}

// lookupRoutes maps the public dashed paths to lookup list names.
var lookupRoutes = map[string]string{
	"body-types":          "body_types",
	"regions":             "locations",
	"colours":             "colours",
	"regional-specs":      "regional_specs",
	"extra-features":      "extra_features",
	"interiors":           "interiors",
	"accident-histories":  "accident_histories",
	"car-conditions":      "car_conditions",
	"badges":              "badges",
	"number-of-seats":     "number_of_seats",
	"number-of-doors":     "number_of_doors",
	"number-of-cylinders": "number_of_cylinders",
	"fuel-types":          "fuel_types",
	"transmission-types":  "transmission_types",
	"drive-types":         "drive_types",
	"payment-options":     "payment_options",
}

// New builds the echo instance with the full route table.
func New(h Handlers, d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(d.Log)

	metrics := middleware.NewMetrics(d.Registry)
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(metrics.Middleware())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	e.GET("/healthz", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	e.GET("/static/uploads/:name", h.Uploads.Serve)
	e.GET("/ws", h.Chat.Handle)

	api := e.Group("/api", middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))
	api.POST("/uploads", h.Uploads.Upload, middleware.JWTAuth(d.JWTSecret))

	registerAuth(api, h.Auth, d)
	registerCars(api, h, d)
	registerSearch(api, h, d)
	registerUsers(api, h, d)
	registerMessages(api, h.Messages, d)
	registerBilling(api, h.Billing, d)
	registerAdmin(api, h, d)
	return e
}

func registerAuth(api *echo.Group, a *handler.AuthHandler, d Deps) {
	otp := middleware.NewTokenBucket(d.OTPLimit, d.Redis, d.Log)
	g := api.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, otp)
	g.POST("/verify-otp", a.VerifyOTP, otp)
	g.POST("/login-password", a.PasswordLogin)
	g.POST("/forgot-password", a.ForgotPassword, otp)
	g.POST("/reset-password", a.ResetPassword, otp)
	g.POST("/change-password", a.ChangePassword, middleware.JWTAuth(d.JWTSecret))
}

func registerCars(api *echo.Group, h Handlers, d Deps) {
	c, l := h.Cars, h.Lookups
	lookupCache := middleware.NewRedisCache(d.Cache, d.Redis, d.Cache.LookupTTL)
	listCache := middleware.NewRedisCache(d.Cache, d.Redis, d.Cache.TTL)

	pub := api.Group("/cars", middleware.OptionalJWT(d.JWTSecret))
	pub.GET("/list", c.List, listCache)
	pub.GET("/details/:id", c.Details)
	pub.GET("/recommended", c.Recommended)
	pub.GET("/featured", c.Featured, listCache)
	pub.GET("/user/:id", c.UserCars)
	pub.GET("/:id/similar", c.Similar)

	pub.GET("/makes", l.Makes, lookupCache)
	pub.GET("/models", l.Models, lookupCache)
	pub.GET("/years", l.Years, lookupCache)
	pub.GET("/trims", l.Trims, lookupCache)
	pub.GET("/upload-option-details", l.UploadOptions, lookupCache)
	pub.GET("/lookups/:name", l.ByName, lookupCache)
	for path, name := range lookupRoutes {
		pub.GET("/"+path, l.List(name), lookupCache)
	}

	g := api.Group("/cars", middleware.JWTAuth(d.JWTSecret))
	g.POST("/add", c.Add)
	g.POST("/draft", c.Draft)
	g.PUT("/update/:id", c.Update)
	g.PUT("/edit-draft/:id", c.Update)
	g.DELETE("/delete/:id", c.Delete)
	g.POST("/:id/mark-sold", c.MarkSold)
	g.POST("/:id/images", c.AddImages)
	g.GET("/my-listings", c.MyListings)
	g.GET("/stats", c.Stats)
	g.POST("/favorites/:id", c.ToggleFavorite)
	g.POST("/upload-cars-xlsx", c.UploadSheet)
}

func registerSearch(api *echo.Group, h Handlers, d Deps) {
	s, l := h.Search, h.Lookups
	cache := middleware.NewRedisCache(d.Cache, d.Redis, d.Cache.TTL)
	lookupCache := middleware.NewRedisCache(d.Cache, d.Redis, d.Cache.LookupTTL)

	g := api.Group("/search", middleware.OptionalJWT(d.JWTSecret))
	g.GET("/search", s.Basic, cache)
	g.POST("/search", s.Basic)
	g.GET("/filter", s.Filter, cache)
	g.POST("/filter", s.Filter)
	g.GET("/suggestions", s.Suggestions, cache)
	g.GET("/makes", l.Makes, lookupCache)
	g.GET("/models", l.Models, lookupCache)
	g.GET("/years", l.Years, lookupCache)
	g.GET("/fuel-types", l.List("fuel_types"), lookupCache)
	g.GET("/transmissions", l.List("transmission_types"), lookupCache)
	g.GET("/body-types", l.List("body_types"), lookupCache)
	g.GET("/conditions", l.List("car_conditions"), lookupCache)
	g.GET("/locations", l.List("locations"), lookupCache)
}

func registerUsers(api *echo.Group, h Handlers, d Deps) {
	u := h.Users
	otp := middleware.NewTokenBucket(d.OTPLimit, d.Redis, d.Log)

	pub := api.Group("/users", middleware.OptionalJWT(d.JWTSecret))
	pub.GET("/details/:id", u.Details)
	pub.GET("/contact-info", u.ContactInfo)
	pub.POST("/contact", u.Contact)
	pub.GET("/car-rejection-reasons", h.Lookups.List("rejection_reasons"))

	g := api.Group("/users", middleware.JWTAuth(d.JWTSecret))
	g.GET("/profile", u.Profile)
	g.PUT("/edit-profile", u.EditProfile)
	g.GET("/favorites", u.Favorites)
	g.POST("/favorites/:id", u.AddFavorite)
	g.DELETE("/favorites/:id", u.RemoveFavorite)
	g.GET("/saved-searches", u.SavedSearches)
	g.POST("/saved-searches", u.CreateSavedSearch)
	g.PUT("/saved-searches/:id", u.UpdateSavedSearch)
	g.DELETE("/saved-searches/:id", u.DeleteSavedSearch)
	g.POST("/update-phone/initiate", u.InitiatePhoneChange, otp)
	g.POST("/update-phone/verify", u.VerifyPhoneChange, otp)
	g.POST("/delete-account/initiate", u.RequestDeletion, otp)
	g.POST("/delete-account/verify", u.ConfirmDeletion, otp)
	g.POST("/block/:id", u.Block)
	g.POST("/unblock/:id", u.Unblock)
	g.GET("/blocked-users", u.BlockedUsers)
	g.POST("/report", u.Report)
}

func registerMessages(api *echo.Group, m *handler.MessageHandler, d Deps) {
	g := api.Group("/messages", middleware.JWTAuth(d.JWTSecret))
	g.GET("/conversations", m.Conversations)
	g.GET("/unread-count", m.Unread)
	g.GET("/:user_id", m.Thread)
	g.POST("", m.Send)
	g.POST("/:id/read", m.MarkRead)
}

func registerBilling(api *echo.Group, b *handler.BillingHandler, d Deps) {
	auth := middleware.JWTAuth(d.JWTSecret)

	p := api.Group("/payments")
	p.GET("/methods", b.Methods)
	p.POST("/webhook", b.Webhook)
	p.POST("/checkout", b.Checkout, auth)
	p.GET("/transactions", b.Transactions, auth)
	p.GET("/invoices/:id", b.Invoice, auth)

	s := api.Group("/subscriptions")
	s.GET("/packages", b.Packages)
	s.GET("/my-subscription", b.MySubscription, auth)
	s.POST("/subscribe", b.Subscribe, auth)
	s.POST("/cancel", b.Cancel, auth)
	s.GET("/history", b.History, auth)
}

func registerAdmin(api *echo.Group, h Handlers, d Deps) {
	a := h.Admin
	otp := middleware.NewTokenBucket(d.OTPLimit, d.Redis, d.Log)

	pub := api.Group("/admin")
	pub.POST("/login", a.Login, otp)
	pub.POST("/forgot-password", a.ForgotPassword, otp)
	pub.POST("/verify-otp", a.VerifyOTP, otp)
	pub.POST("/reset-password", a.ResetPassword, otp)
	pub.GET("/contact/subjects", a.ContactSubjects)
	pub.POST("/contact/submit", a.ContactSubmit)

	g := api.Group("/admin", middleware.AdminAuth(d.Sessions, d.Log))
	g.POST("/logout", a.Logout)
	g.GET("/profile", a.Profile)
	g.POST("/update-password-initial", a.UpdatePasswordInitial)
	g.POST("/update-password", a.UpdatePassword)
	g.GET("/dashboard", a.Dashboard)
	g.GET("/car-rejection-reasons", a.RejectionReasons)

	super := middleware.RequirePermission(model.PermSuperAdmin)
	g.GET("/admins", a.ListAdmins, super)
	g.POST("/admins", a.CreateAdmin, super)
	g.PUT("/admins/:id", a.UpdatePermissions, super)
	g.DELETE("/admins/:id", a.DeleteAdmin, super)
	g.GET("/activity-log", a.ActivityLog, super)

	listings := middleware.RequirePermission(model.PermListingManager)
	g.GET("/cars", a.Cars, listings)
	g.GET("/cars/pending", a.PendingCars, listings)
	g.GET("/cars/:id", a.CarDetails, listings)
	g.DELETE("/cars/:id", a.DeleteCar, listings)
	g.POST("/cars/:id/approve", a.ApproveCar, listings)
	g.POST("/cars/:id/reject", a.RejectCar, listings)
	g.POST("/cars/:id/feature", a.FeatureCar, listings)
	g.POST("/cars/:id/unfeature", a.UnfeatureCar, listings)
	g.POST("/cars/:id/mark-best-pick", a.MarkBestPick, listings)
	g.GET("/featured-cars", a.FeaturedCars, listings)

	users := middleware.RequirePermission(model.PermUserManager)
	g.GET("/users", a.Users, users)
	g.POST("/users/:id/verify", a.VerifyUser, users)
	g.POST("/users/:id/ban", a.BanUser, users)
	g.POST("/users/:id/unban", a.UnbanUser, users)
	g.GET("/dealer-verification-tasks", a.DealerTasks, users)

	support := middleware.RequirePermission(model.PermSupportManager)
	g.GET("/reports", a.Reports, support)
	g.POST("/reports/:id/resolve", a.ResolveReport, support)
	g.GET("/user-incident-reports-list", a.IncidentReports, support)
}

// errorHandler renders framework errors (unknown routes, bad methods,
// recovered panics) with the same {"error": ...} body as the handlers.
func errorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := http.StatusInternalServerError, "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if s, ok := he.Message.(string); ok && status < 500 {
				msg = s
			} else if status < 500 {
				msg = http.StatusText(status)
			}
		}
		if status >= 500 {
			log.WithError(err).WithFields(logrus.Fields{
				"request_id": middleware.RequestID(c),
				"method":     c.Request().Method,
				"route":      c.Path(),
			}).Error("unhandled error")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, echo.Map{"error": msg})
	}
}
