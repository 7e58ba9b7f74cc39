package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/service"
)

// AuthHandler serves signup and the OTP and password sign-in flows.
type AuthHandler struct {
	Auth *service.AuthService
	Log  *logrus.Logger
}

func NewAuthHandler(a *service.AuthService, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{Auth: a, Log: log}
}

type phoneReq struct {
	PhoneNumber string `json:"phone_number"`
}

type otpReq struct {
	RequestID string `json:"request_id"`
	OTP       string `json:"otp"`
}

type passwordLoginReq struct {
	Login       string `json:"login"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type resetReq struct {
	RequestID   string `json:"request_id"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register creates an account and returns a signed-in session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Auth.Register(ctx, req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// Login texts a sign-in code to the phone.
func (h *AuthHandler) Login(c echo.Context) error {
	var req phoneReq
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.Auth.RequestLoginOTP(ctx, req.PhoneNumber)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent", "request_id": id})
}

// VerifyOTP completes a phone sign-in.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpReq
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if req.RequestID == "" || req.OTP == "" {
		return writeError(c, h.Log, service.Invalid("request_id and otp are required"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Auth.VerifyLoginOTP(ctx, req.RequestID, req.OTP)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// PasswordLogin signs in with phone or email and password.
func (h *AuthHandler) PasswordLogin(c echo.Context) error {
	var req passwordLoginReq
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	login := req.Login
	if login == "" {
		login = req.PhoneNumber
	}
	if login == "" || req.Password == "" {
		return writeError(c, h.Log, service.Invalid("login and password are required"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Auth.Login(ctx, login, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// ForgotPassword texts a reset code.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req phoneReq
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, err := h.Auth.ForgotPassword(ctx, req.PhoneNumber)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent", "request_id": id})
}

// ResetPassword sets a new password with a reset code.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.ResetPassword(ctx, req.RequestID, req.OTP, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}

// ChangePassword replaces the signed-in user's password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return writeError(c, h.Log, service.ErrUnauthorized)
	}
	var req changePasswordReq
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.ChangePassword(ctx, uid, req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated successfully"})
}
