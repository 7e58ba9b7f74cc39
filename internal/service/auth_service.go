package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/utils"
)

const userOTPDigits = 4

// ErrInvalidCredentials is the password login failure.
var ErrInvalidCredentials = errors.New("Invalid phone number or password")

// RegisterInput is the signup form.
type RegisterInput struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Password       string `json:"password"`
	UserType       string `json:"user_type"`
	Location       string `json:"location"`
	IsDealer       bool   `json:"is_dealer"`
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
	TradeLicense   string `json:"trade_license"`
}

// Session is a signed-in user with their bearer token.
type Session struct {
	Token        string      `json:"token,omitempty"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
	User         *model.User `json:"user,omitempty"`
	IsRegistered bool        `json:"is_registered"`
	PhoneNumber  string      `json:"phone_number,omitempty"`
}

// AuthConfig carries the token and hashing settings.
type AuthConfig struct {
	JWTSecret    string
	AccessTTLMin int
	BcryptCost   int
	OTPTTL       time.Duration
}

// AuthService handles user signup and the OTP and password sign-in flows.
type AuthService struct {
	users    *repository.UserRepo
	otps     *repository.OTPRepo
	notifier Notifier
	cfg      AuthConfig
	log      *logrus.Logger
}

func NewAuthService(users *repository.UserRepo, otps *repository.OTPRepo, n Notifier, cfg AuthConfig, log *logrus.Logger) *AuthService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	return &AuthService{users: users, otps: otps, notifier: n, cfg: cfg, log: log}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.FullName = strings.TrimSpace(in.FullName)
	switch {
	case in.FullName == "":
		return nil, Required("full_name")
	case in.PhoneNumber == "":
		return nil, Required("phone_number")
	}
	userType := strings.ToLower(strings.TrimSpace(in.UserType))
	switch userType {
	case "":
		userType = model.UserTypeIndividual
		if in.IsDealer {
			userType = model.UserTypeDealer
		}
	case model.UserTypeDealer, model.UserTypeIndividual:
	default:
		return nil, Invalid("user_type must be dealer or individual")
	}

	u := &model.User{
		FullName: in.FullName, Email: strings.TrimSpace(in.Email), PhoneNumber: in.PhoneNumber,
		UserType: userType, Location: strings.TrimSpace(in.Location),
		IsDealer: userType == model.UserTypeDealer,
	}
	if u.IsDealer {
		u.CompanyName = strings.TrimSpace(in.CompanyName)
		u.CompanyAddress = strings.TrimSpace(in.CompanyAddress)
		u.TradeLicense = strings.TrimSpace(in.TradeLicense)
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return nil, err
		}
		hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, Invalid("Phone number already registered")
		}
		return nil, err
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *model.User) (*Session, error) {
	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.UserType, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	exp := tok.Exp
	return &Session{Token: tok.Token, ExpiresAt: &exp, User: u, IsRegistered: true}, nil
}

// sendOTP stores a fresh challenge for phone and texts the code.
func (s *AuthService) sendOTP(ctx context.Context, phone, purpose string, userID uint64, payload string) (string, error) {
	code, err := utils.NewOTP(userOTPDigits)
	if err != nil {
		return "", err
	}
	o := &model.OTPRequest{
		RequestID: uuid.NewString(), PhoneNumber: phone, Purpose: purpose, Code: code,
		UserID: userID, Payload: payload, ExpiresAt: time.Now().UTC().Add(s.cfg.OTPTTL),
	}
	if err := s.otps.Create(ctx, o); err != nil {
		return "", err
	}
	if err := s.notifier.SendSMS(ctx, phone, "Your verification code is "+code); err != nil {
		s.log.WithError(err).WithField("purpose", purpose).Warn("send otp failed")
	}
	return o.RequestID, nil
}

// RequestLoginOTP starts a phone sign-in. Unknown numbers get a code too so
// verification can report is_registered=false.
func (s *AuthService) RequestLoginOTP(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", Invalid("Missing required field: phone_number")
	}
	var userID uint64
	u, err := s.users.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		if u.IsBanned {
			return "", ErrBanned
		}
		userID = u.ID
	case !errors.Is(err, repository.ErrUserNotFound):
		return "", err
	}
	return s.sendOTP(ctx, phone, model.OTPLogin, userID, "")
}

// VerifyLoginOTP completes a phone sign-in. For an unknown number the
// session carries only is_registered=false and the phone.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, requestID, code string) (*Session, error) {
	o, err := verifyOTP(ctx, s.otps, requestID, model.OTPLogin, code)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByPhone(ctx, o.PhoneNumber)
	if errors.Is(err, repository.ErrUserNotFound) {
		return &Session{IsRegistered: false, PhoneNumber: o.PhoneNumber}, nil
	}
	if err != nil {
		return nil, err
	}
	if u.IsBanned {
		return nil, ErrBanned
	}
	if err := s.otps.Delete(ctx, o.RequestID); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login signs in with phone or email and password.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	u, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.IsBanned {
		return nil, ErrBanned
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// ForgotPassword texts a reset code to a registered phone.
func (s *AuthService) ForgotPassword(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", Invalid("Phone number not registered")
		}
		return "", err
	}
	return s.sendOTP(ctx, phone, model.OTPResetPass, u.ID, "")
}

// ResetPassword consumes a reset code and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, requestID, code, newPassword string) error {
	o, err := verifyOTP(ctx, s.otps, requestID, model.OTPResetPass, code)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, o.UserID, hash); err != nil {
		return err
	}
	return s.otps.Delete(ctx, o.RequestID)
}

// ChangePassword replaces the password after checking the current one.
// Accounts created through OTP have no password yet and skip the check.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.PasswordHash != "" && !utils.VerifyPassword(u.PasswordHash, current) {
		return Invalid("Current password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, userID, hash)
}
