package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/middleware"
	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/service"
)

// AdminHandler serves the back office under /api/admin.
type AdminHandler struct {
	Admin   *service.AdminService
	UserSvc *service.UserService
	Lookups *repository.LookupRepo
	Log     *logrus.Logger
}

func NewAdminHandler(admin *service.AdminService, users *service.UserService,
	lookups *repository.LookupRepo, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{Admin: admin, UserSvc: users, Lookups: lookups, Log: log}
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type rejectRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

type banRequest struct {
	Reason string `json:"reason"`
}

type adminOTPRequest struct {
	Email       string `json:"email"`
	RequestID   string `json:"request_id"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// byID runs fn with the :id path parameter and answers msg on success.
func (h *AdminHandler) byID(c echo.Context, msg string, fn func(ctx context.Context, id uint64) error) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := fn(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// Login handles POST /api/admin/login.
func (h *AdminHandler) Login(c echo.Context) error {
	var req adminLoginRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return writeError(c, h.Log, service.Invalid("username and password are required"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Admin.Login(ctx, req.Username, req.Password, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Logout handles POST /api/admin/logout.
func (h *AdminHandler) Logout(c echo.Context) error {
	tok, _ := c.Get(middleware.CtxAdminTok).(string)
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.Logout(ctx, actor(c), tok); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Profile handles GET /api/admin/profile.
func (h *AdminHandler) Profile(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"admin": currentAdmin(c)})
}

// UpdatePasswordInitial handles POST /api/admin/update-password-initial.
func (h *AdminHandler) UpdatePasswordInitial(c echo.Context) error {
	var req passwordRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.UpdatePasswordInitial(ctx, actor(c), req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

// UpdatePassword handles POST /api/admin/update-password.
func (h *AdminHandler) UpdatePassword(c echo.Context) error {
	var req passwordRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.UpdatePassword(ctx, actor(c), req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}

// ListAdmins handles GET /api/admin/admins.
func (h *AdminHandler) ListAdmins(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Admin.ListAdmins(ctx, actor(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// CreateAdmin handles POST /api/admin/admins.
func (h *AdminHandler) CreateAdmin(c echo.Context) error {
	var in service.NewAdmin
	if err := bindJSON(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	a, err := h.Admin.CreateAdmin(ctx, actor(c), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Admin created successfully", "admin": a})
}

// UpdatePermissions handles PUT /api/admin/admins/:id.
func (h *AdminHandler) UpdatePermissions(c echo.Context) error {
	var req struct {
		Permissions model.Permissions `json:"permissions"`
	}
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.byID(c, "Permissions updated successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.UpdatePermissions(ctx, actor(c), id, req.Permissions)
	})
}

// DeleteAdmin handles DELETE /api/admin/admins/:id.
func (h *AdminHandler) DeleteAdmin(c echo.Context) error {
	return h.byID(c, "Admin deleted successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.DeleteAdmin(ctx, actor(c), id)
	})
}

// ActivityLog handles GET /api/admin/activity-log.
func (h *AdminHandler) ActivityLog(c echo.Context) error {
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.ActivityLog(ctx, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Admin.Dashboard(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// PendingCars handles GET /api/admin/cars/pending.
func (h *AdminHandler) PendingCars(c echo.Context) error {
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.PendingCars(ctx, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Cars handles GET /api/admin/cars with the listing filters.
func (h *AdminHandler) Cars(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.Cars(ctx, carFilter(c.QueryParams()))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// FeaturedCars handles GET /api/admin/featured-cars.
func (h *AdminHandler) FeaturedCars(c echo.Context) error {
	f := carFilter(c.QueryParams())
	yes := true
	f.Featured = &yes
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.Cars(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// CarDetails handles GET /api/admin/cars/:id. Admins see listings in any
// state.
func (h *AdminHandler) CarDetails(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	car, err := h.Admin.Car(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"car": car})
}

// ApproveCar handles POST /api/admin/cars/:id/approve.
func (h *AdminHandler) ApproveCar(c echo.Context) error {
	return h.byID(c, "Car approved successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.ApproveCar(ctx, actor(c), id)
	})
}

// RejectCar handles POST /api/admin/cars/:id/reject.
func (h *AdminHandler) RejectCar(c echo.Context) error {
	var req rejectRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.byID(c, "Car rejected successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.RejectCar(ctx, actor(c), id, req.Reason, req.Comment)
	})
}

// FeatureCar handles POST /api/admin/cars/:id/feature.
func (h *AdminHandler) FeatureCar(c echo.Context) error {
	return h.byID(c, "Car featured successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.SetFeatured(ctx, actor(c), id, true)
	})
}

// UnfeatureCar handles POST /api/admin/cars/:id/unfeature.
func (h *AdminHandler) UnfeatureCar(c echo.Context) error {
	return h.byID(c, "Car unfeatured successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.SetFeatured(ctx, actor(c), id, false)
	})
}

// MarkBestPick handles POST /api/admin/cars/:id/mark-best-pick. The body
// may carry {"is_best_pick": false} to clear the flag.
func (h *AdminHandler) MarkBestPick(c echo.Context) error {
	var req struct {
		IsBestPick *bool `json:"is_best_pick"`
	}
	if c.Request().ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	pick := req.IsBestPick == nil || *req.IsBestPick
	return h.byID(c, "Best pick updated successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.SetBestPick(ctx, actor(c), id, pick)
	})
}

// DeleteCar handles DELETE /api/admin/cars/:id.
func (h *AdminHandler) DeleteCar(c echo.Context) error {
	return h.byID(c, "Car deleted successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.DeleteCar(ctx, actor(c), id)
	})
}

// Users handles GET /api/admin/users?search=.
func (h *AdminHandler) Users(c echo.Context) error {
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.Users(ctx, strings.TrimSpace(c.QueryParam("search")), page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// VerifyUser handles POST /api/admin/users/:id/verify.
func (h *AdminHandler) VerifyUser(c echo.Context) error {
	return h.byID(c, "User verified successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.VerifyUser(ctx, actor(c), id)
	})
}

// BanUser handles POST /api/admin/users/:id/ban.
func (h *AdminHandler) BanUser(c echo.Context) error {
	var req banRequest
	if c.Request().ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	return h.byID(c, "User banned successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.BanUser(ctx, actor(c), id, true, req.Reason)
	})
}

// UnbanUser handles POST /api/admin/users/:id/unban.
func (h *AdminHandler) UnbanUser(c echo.Context) error {
	return h.byID(c, "User unbanned successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.BanUser(ctx, actor(c), id, false, "")
	})
}

// DealerTasks handles GET /api/admin/dealer-verification-tasks.
func (h *AdminHandler) DealerTasks(c echo.Context) error {
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.DealerTasks(ctx, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Reports handles GET /api/admin/reports?status=.
func (h *AdminHandler) Reports(c echo.Context) error {
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Admin.Reports(ctx, c.QueryParam("status"), page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// ResolveReport handles POST /api/admin/reports/:id/resolve.
func (h *AdminHandler) ResolveReport(c echo.Context) error {
	return h.byID(c, "Report resolved successfully", func(ctx context.Context, id uint64) error {
		return h.Admin.ResolveReport(ctx, actor(c), id)
	})
}

// IncidentReports handles GET /api/admin/user-incident-reports-list. With
// user_id it lists the reports against that account, otherwise the
// reported accounts with their counts.
func (h *AdminHandler) IncidentReports(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if s := c.QueryParam("user_id"); s != "" {
		uid, err := strconv.ParseUint(s, 10, 64)
		if err != nil || uid == 0 {
			return writeError(c, h.Log, service.Invalid("invalid user_id"))
		}
		items, err := h.Admin.UserReports(ctx, uid)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"data": items})
	}
	page, limit := pageParams(c)
	items, p, err := h.Admin.ReportedUsers(ctx, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// ContactSubjects handles GET /api/admin/contact/subjects.
func (h *AdminHandler) ContactSubjects(c echo.Context) error {
	return h.lookup(c, "subjects")
}

// RejectionReasons handles GET /api/admin/car-rejection-reasons.
func (h *AdminHandler) RejectionReasons(c echo.Context) error {
	return h.lookup(c, "rejection_reasons")
}

func (h *AdminHandler) lookup(c echo.Context, name string) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Lookups.List(ctx, name)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// ContactSubmit handles POST /api/admin/contact/submit.
func (h *AdminHandler) ContactSubmit(c echo.Context) error {
	var req contactRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m := &model.ContactMessage{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message}
	if err := h.UserSvc.Contact(ctx, m); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Message sent successfully"})
}

// ForgotPassword handles POST /api/admin/forgot-password.
func (h *AdminHandler) ForgotPassword(c echo.Context) error {
	var req adminOTPRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rid, err := h.Admin.ForgotPassword(ctx, req.Email)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If the email exists, a code has been sent", "request_id": rid})
}

// VerifyOTP handles POST /api/admin/verify-otp.
func (h *AdminHandler) VerifyOTP(c echo.Context) error {
	var req adminOTPRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.VerifyResetOTP(ctx, req.RequestID, req.OTP); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP verified"})
}

// ResetPassword handles POST /api/admin/reset-password.
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	var req adminOTPRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Admin.ResetPassword(ctx, req.RequestID, req.OTP, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}
