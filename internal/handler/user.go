package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/service"
)

// UserHandler serves the signed-in user's account under /api/users.
type UserHandler struct {
	Users *service.UserService
	Log   *logrus.Logger
}

func NewUserHandler(users *service.UserService, log *logrus.Logger) *UserHandler {
	return &UserHandler{Users: users, Log: log}
}

type savedSearchRequest struct {
	Name                 *string           `json:"name"`
	SearchParams         map[string]string `json:"search_params"`
	NotificationsEnabled *bool             `json:"notifications_enabled"`
}

type otpConfirmRequest struct {
	RequestID string `json:"request_id"`
	OTP       string `json:"otp"`
}

type reportRequest struct {
	ReportedUserID uint64  `json:"reported_user_id"`
	CarID          *uint64 `json:"car_id"`
	Reason         string  `json:"reason"`
	Details        string  `json:"details"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Profile handles GET /api/users/profile.
func (h *UserHandler) Profile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Profile(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// EditProfile handles PUT /api/users/edit-profile.
func (h *UserHandler) EditProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var p model.UserPatch
	if err := bindJSON(c, &p); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.UpdateProfile(ctx, uid, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": u})
}

// Details handles GET /api/users/details/:id, a seller page.
func (h *UserHandler) Details(c echo.Context) error {
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

// Favorites handles GET /api/users/favorites.
func (h *UserHandler) Favorites(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Users.Favorites(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// AddFavorite handles POST /api/users/favorites/:id.
func (h *UserHandler) AddFavorite(c echo.Context) error {
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
	if err := h.Users.AddFavorite(ctx, uid, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Car added to favorites"})
}

// RemoveFavorite handles DELETE /api/users/favorites/:id.
func (h *UserHandler) RemoveFavorite(c echo.Context) error {
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
	if err := h.Users.RemoveFavorite(ctx, uid, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Car removed from favorites"})
}

// SavedSearches handles GET /api/users/saved-searches.
func (h *UserHandler) SavedSearches(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Users.SavedSearches(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// CreateSavedSearch handles POST /api/users/saved-searches.
func (h *UserHandler) CreateSavedSearch(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req savedSearchRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	notify := req.NotificationsEnabled == nil || *req.NotificationsEnabled
	ctx, cancel := reqCtx(c)
	defer cancel()
	ss, err := h.Users.SaveSearch(ctx, uid, name, req.SearchParams, notify)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Search saved successfully", "saved_search": ss})
}

// UpdateSavedSearch handles PUT /api/users/saved-searches/:id.
func (h *UserHandler) UpdateSavedSearch(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req savedSearchRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.UpdateSavedSearch(ctx, uid, id, req.Name, req.SearchParams, req.NotificationsEnabled); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Saved search updated successfully"})
}

// DeleteSavedSearch handles DELETE /api/users/saved-searches/:id.
func (h *UserHandler) DeleteSavedSearch(c echo.Context) error {
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
	if err := h.Users.DeleteSavedSearch(ctx, uid, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Saved search deleted successfully"})
}

// InitiatePhoneChange handles POST /api/users/update-phone/initiate.
func (h *UserHandler) InitiatePhoneChange(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rid, err := h.Users.RequestPhoneChange(ctx, uid, req.PhoneNumber)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent", "request_id": rid})
}

// VerifyPhoneChange handles POST /api/users/update-phone/verify.
func (h *UserHandler) VerifyPhoneChange(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req otpConfirmRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.ConfirmPhoneChange(ctx, uid, req.RequestID, req.OTP); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Phone number updated successfully"})
}

// RequestDeletion handles POST /api/users/delete-account/initiate.
func (h *UserHandler) RequestDeletion(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rid, err := h.Users.RequestDeletion(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent", "request_id": rid})
}

// ConfirmDeletion handles POST /api/users/delete-account/verify.
func (h *UserHandler) ConfirmDeletion(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req otpConfirmRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.ConfirmDeletion(ctx, uid, req.RequestID, req.OTP); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Account deleted successfully"})
}

// Block handles POST /api/users/block/:id.
func (h *UserHandler) Block(c echo.Context) error {
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
	if err := h.Users.Block(ctx, uid, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User blocked successfully"})
}

// Unblock handles POST /api/users/unblock/:id.
func (h *UserHandler) Unblock(c echo.Context) error {
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
	if err := h.Users.Unblock(ctx, uid, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User unblocked successfully"})
}

// BlockedUsers handles GET /api/users/blocked-users.
func (h *UserHandler) BlockedUsers(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Users.BlockedUsers(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Report handles POST /api/users/report.
func (h *UserHandler) Report(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reportRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	rep := &model.UserReport{
		ReporterID:     uid,
		ReportedUserID: req.ReportedUserID,
		CarID:          req.CarID,
		Reason:         req.Reason,
		Details:        strings.TrimSpace(req.Details),
		Status:         model.ReportPending,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.ReportUser(ctx, rep); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Report submitted successfully", "report": rep})
}

// ContactInfo handles GET /api/users/contact-info.
func (h *UserHandler) ContactInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, service.ContactInfo)
}

// Contact handles POST /api/users/contact. Anonymous submissions are
// accepted.
func (h *UserHandler) Contact(c echo.Context) error {
	var req contactRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	m := &model.ContactMessage{
		Name: strings.TrimSpace(req.Name), Email: strings.TrimSpace(req.Email),
		Subject: req.Subject, Message: req.Message,
	}
	if uid := viewerID(c); uid != 0 {
		m.UserID = &uid
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Contact(ctx, m); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Message sent successfully"})
}
