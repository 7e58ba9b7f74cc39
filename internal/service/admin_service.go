package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/queue"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/utils"
)

// ErrInvalidLogin is the single admin login failure.
var ErrInvalidLogin = errors.New("Invalid username or password")

// Admin OTP shape for the forgot-password flow.
const (
	adminOTPDigits = 6
	adminOTPTTL    = 10 * time.Minute
	minPasswordLen = 8
)

// Actor is the admin performing a request plus the client details stored
// in the activity log.
type Actor struct {
	Admin     *model.Admin
	IP        string
	UserAgent string
}

// AdminLogin is returned by a successful login.
type AdminLogin struct {
	AccessToken         string       `json:"access_token"`
	ExpiresAt           time.Time    `json:"expires_at"`
	NeedsPasswordUpdate bool         `json:"needs_password_update"`
	Admin               *model.Admin `json:"admin"`
}

// NewAdmin is the input of CreateAdmin.
type NewAdmin struct {
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name"`
	Password    string            `json:"password"`
	Permissions model.Permissions `json:"permissions"`
}

// AdminDeps groups the collaborators of AdminService.
type AdminDeps struct {
	Admins     *repository.AdminRepo
	Sessions   *repository.SessionRepo
	Activity   *repository.ActivityRepo
	Cars       *repository.CarRepo
	Users      *repository.UserRepo
	Reports    *repository.ReportRepo
	OTPs       *repository.OTPRepo
	Publisher  *queue.Publisher
	Notifier   Notifier
	Log        *logrus.Logger
	SessionTTL time.Duration
	BcryptCost int
}

// AdminService implements the back office: sessions, admin accounts,
// moderation, user management and reports.
type AdminService struct {
	d AdminDeps
}

func NewAdminService(d AdminDeps) *AdminService {
	if d.SessionTTL <= 0 {
		d.SessionTTL = 24 * time.Hour
	}
	return &AdminService{d: d}
}

// Login checks credentials and opens a session.
func (s *AdminService) Login(ctx context.Context, username, password, ip, ua string) (*AdminLogin, error) {
	a, err := s.d.Admins.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		return nil, ErrInvalidLogin
	}
	raw, err := utils.NewSessionToken()
	if err != nil {
		return nil, err
	}
	exp := time.Now().UTC().Add(s.d.SessionTTL)
	if err := s.d.Sessions.Store(ctx, a.ID, utils.HashToken(raw), exp); err != nil {
		return nil, err
	}
	if err := s.d.Admins.TouchLogin(ctx, a.ID); err != nil {
		s.d.Log.WithError(err).WithField("admin_id", a.ID).Warn("touch last_login failed")
	}
	s.audit(ctx, Actor{Admin: a, IP: ip, UserAgent: ua}, "login", "Admin logged in")
	return &AdminLogin{AccessToken: raw, ExpiresAt: exp, NeedsPasswordUpdate: a.NeedsPasswordUpdate, Admin: a}, nil
}

// Authenticate resolves a bearer session token to its admin.
func (s *AdminService) Authenticate(ctx context.Context, token string) (*model.Admin, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	a, err := s.d.Sessions.Validate(ctx, utils.HashToken(token))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	return a, err
}

// Logout ends the session behind token.
func (s *AdminService) Logout(ctx context.Context, act Actor, token string) error {
	if err := s.d.Sessions.Revoke(ctx, utils.HashToken(token)); err != nil {
		return err
	}
	s.audit(ctx, act, "logout", "Admin logged out")
	return nil
}

func validatePassword(p string) error {
	if len(p) < minPasswordLen {
		return Invalid(fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	return nil
}

// UpdatePasswordInitial rotates the bootstrap password. It is only allowed
// while the account is flagged for a password update.
func (s *AdminService) UpdatePasswordInitial(ctx context.Context, act Actor, newPassword string) error {
	if !act.Admin.NeedsPasswordUpdate {
		return Invalid("Password has already been updated")
	}
	return s.setPassword(ctx, act, newPassword, "update_password_initial")
}

// UpdatePassword changes the password after checking the current one.
func (s *AdminService) UpdatePassword(ctx context.Context, act Actor, current, newPassword string) error {
	if !utils.VerifyPassword(act.Admin.PasswordHash, current) {
		return Invalid("Current password is incorrect")
	}
	return s.setPassword(ctx, act, newPassword, "update_password")
}

func (s *AdminService) setPassword(ctx context.Context, act Actor, newPassword, action string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword, s.d.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.d.Admins.SetPassword(ctx, act.Admin.ID, hash); err != nil {
		return err
	}
	s.audit(ctx, act, action, "Admin changed password")
	return nil
}

// CreateAdmin adds a back-office account. New accounts must rotate their
// password on first login.
func (s *AdminService) CreateAdmin(ctx context.Context, act Actor, in NewAdmin) (*model.Admin, error) {
	if err := Authorize(act.Admin, model.PermSuperAdmin); err != nil {
		return nil, err
	}
	in.Username, in.Email = strings.TrimSpace(in.Username), strings.TrimSpace(in.Email)
	switch {
	case in.Username == "":
		return nil, Required("username")
	case in.Email == "":
		return nil, Required("email")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.d.BcryptCost)
	if err != nil {
		return nil, err
	}
	a := &model.Admin{
		Username: in.Username, Email: in.Email, FullName: strings.TrimSpace(in.FullName),
		PasswordHash: hash, Permissions: in.Permissions, NeedsPasswordUpdate: true,
	}
	if _, err := s.d.Admins.Create(ctx, a); err != nil {
		return nil, err
	}
	s.audit(ctx, act, "create_admin", "Created admin "+a.Username)
	return a, nil
}

// ErrAlreadyBootstrapped is returned when a super admin already exists.
var ErrAlreadyBootstrapped = errors.New("a super admin already exists")

// Bootstrap creates the first super admin. It refuses to run once any super
// admin exists. The account must change its password on first login.
func (s *AdminService) Bootstrap(ctx context.Context, in NewAdmin) (*model.Admin, error) {
	n, err := s.d.Admins.CountSuper(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrAlreadyBootstrapped
	}
	in.Username, in.Email = strings.TrimSpace(in.Username), strings.TrimSpace(in.Email)
	switch {
	case in.Username == "":
		return nil, Required("username")
	case in.Email == "":
		return nil, Required("email")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.d.BcryptCost)
	if err != nil {
		return nil, err
	}
	a := &model.Admin{
		Username: in.Username, Email: in.Email, FullName: strings.TrimSpace(in.FullName),
		PasswordHash: hash, Permissions: model.Permissions{SuperAdmin: true}, NeedsPasswordUpdate: true,
	}
	if _, err := s.d.Admins.Create(ctx, a); err != nil {
		return nil, err
	}
	s.d.Log.WithFields(logrus.Fields{"admin_id": a.ID, "username": a.Username}).Info("super admin bootstrapped")
	return a, nil
}

// UpdatePermissions replaces another admin's flags.
func (s *AdminService) UpdatePermissions(ctx context.Context, act Actor, id uint64, p model.Permissions) error {
	if err := Authorize(act.Admin, model.PermSuperAdmin); err != nil {
		return err
	}
	if err := s.d.Admins.SetPermissions(ctx, id, p); err != nil {
		return err
	}
	s.audit(ctx, act, "update_permissions", fmt.Sprintf("Updated permissions of admin %d", id))
	return nil
}

// DeleteAdmin soft-deletes another admin and ends their sessions.
func (s *AdminService) DeleteAdmin(ctx context.Context, act Actor, id uint64) error {
	if err := Authorize(act.Admin, model.PermSuperAdmin); err != nil {
		return err
	}
	if id == act.Admin.ID {
		return Invalid("You cannot delete your own account")
	}
	if err := s.d.Admins.SoftDelete(ctx, id); err != nil {
		return err
	}
	if err := s.d.Sessions.RevokeAllForAdmin(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, act, "delete_admin", fmt.Sprintf("Deleted admin %d", id))
	return nil
}

// ListAdmins lists every non-super admin.
func (s *AdminService) ListAdmins(ctx context.Context, act Actor) ([]model.Admin, error) {
	if err := Authorize(act.Admin, model.PermSuperAdmin); err != nil {
		return nil, err
	}
	return s.d.Admins.ListNonSuper(ctx)
}

// Dashboard aggregates the back-office counters.
func (s *AdminService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	st := &model.DashboardStats{}
	if err := s.d.Cars.DashboardCounts(ctx, st); err != nil {
		return nil, err
	}
	var err error
	if st.TotalUsers, err = s.d.Users.Count(ctx); err != nil {
		return nil, err
	}
	if st.PendingReports, err = s.d.Reports.CountPending(ctx); err != nil {
		return nil, err
	}
	if st.RecentCars, err = s.d.Cars.Recent(ctx, 5); err != nil {
		return nil, err
	}
	return st, nil
}

// PendingCars lists listings awaiting moderation.
func (s *AdminService) PendingCars(ctx context.Context, page, limit int) ([]model.CarSummary, model.Page, error) {
	return s.d.Cars.Pending(ctx, page, limit)
}

// Cars lists every non-draft listing, optionally filtered.
func (s *AdminService) Cars(ctx context.Context, f repository.CarFilter) ([]model.CarSummary, model.Page, error) {
	f.IncludeUnapproved = true
	f.ViewerID = 0
	return s.d.Cars.Search(ctx, f)
}

// Car returns any listing with its images, whatever its state.
func (s *AdminService) Car(ctx context.Context, carID uint64) (*model.Car, error) {
	c, err := s.d.Cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	if c.Images, err = s.d.Cars.Images(ctx, carID); err != nil {
		return nil, err
	}
	return c, nil
}

// ApproveCar publishes a pending listing. Listings stored without every
// required field (bulk import) cannot be approved until completed.
func (s *AdminService) ApproveCar(ctx context.Context, act Actor, carID uint64) error {
	c, err := s.d.Cars.GetByID(ctx, carID)
	if err != nil {
		return err
	}
	if c.Lifecycle() != model.LifecyclePending {
		return repository.ErrNotPending
	}
	vals := c.ColumnValues()
	if err := ValidateRequired(c.UserID, func(col string) string { return vals[col] }); err != nil {
		return err
	}
	if err := s.d.Cars.Approve(ctx, carID); err != nil {
		return err
	}
	s.audit(ctx, act, "approve_car", fmt.Sprintf("Approved car %d", carID))
	s.publishModeration(ctx, act, c, model.ApprovalApproved, "", "")
	return nil
}

// RejectCar rejects a pending listing with a reason.
func (s *AdminService) RejectCar(ctx context.Context, act Actor, carID uint64, reason, comment string) error {
	reason, comment = strings.TrimSpace(reason), strings.TrimSpace(comment)
	if reason == "" {
		return Invalid("Missing required field: reason")
	}
	c, err := s.d.Cars.GetByID(ctx, carID)
	if err != nil {
		return err
	}
	if err := s.d.Cars.Reject(ctx, carID, reason, comment); err != nil {
		return err
	}
	s.audit(ctx, act, "reject_car", fmt.Sprintf("Rejected car %d: %s", carID, reason))
	s.publishModeration(ctx, act, c, model.ApprovalRejected, reason, comment)
	return nil
}

func (s *AdminService) publishModeration(ctx context.Context, act Actor, c *model.Car, decision, reason, comment string) {
	if !s.d.Publisher.Enabled() {
		return
	}
	ev := queue.CarModeratedEvent{
		CarID: c.ID, OwnerID: c.UserID, AdminID: act.Admin.ID, AdminName: act.Admin.Username,
		Decision: decision, Reason: reason, Comment: comment, AdTitle: c.AdTitle,
		ModeratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.d.Publisher.PublishCarModerated(ctx, ev); err != nil {
		s.d.Log.WithError(err).WithField("car_id", c.ID).Warn("publish car.moderated failed")
	}
}

// DeleteCar archives and removes any listing.
func (s *AdminService) DeleteCar(ctx context.Context, act Actor, carID uint64) error {
	c, err := s.d.Cars.GetByID(ctx, carID)
	if err != nil {
		return err
	}
	if !CanDeleteCar(c.UserID, 0, act.Admin) {
		return ErrPermission
	}
	if err := s.d.Cars.DeleteArchive(ctx, carID); err != nil {
		return err
	}
	s.audit(ctx, act, "delete_car", fmt.Sprintf("Deleted car %d (%s) of user %d", carID, c.AdTitle, c.UserID))
	return nil
}

// SetFeatured features or unfeatures a listing.
func (s *AdminService) SetFeatured(ctx context.Context, act Actor, carID uint64, featured bool) error {
	if err := s.d.Cars.SetFeatured(ctx, carID, featured); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			if featured {
				return Invalid("Car is already featured")
			}
			return Invalid("Car is not featured")
		}
		return err
	}
	action := "feature_car"
	if !featured {
		action = "unfeature_car"
	}
	s.audit(ctx, act, action, fmt.Sprintf("%s %d", action, carID))
	return nil
}

// SetBestPick flags an approved listing as a best pick.
func (s *AdminService) SetBestPick(ctx context.Context, act Actor, carID uint64, pick bool) error {
	if err := s.d.Cars.SetBestPick(ctx, carID, pick); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return Invalid("Only approved cars can be best picks")
		}
		return err
	}
	s.audit(ctx, act, "best_pick", fmt.Sprintf("Set best pick=%t on car %d", pick, carID))
	return nil
}

// Users lists or searches marketplace accounts.
func (s *AdminService) Users(ctx context.Context, search string, page, limit int) ([]model.User, model.Page, error) {
	return s.d.Users.List(ctx, strings.TrimSpace(search), page, limit)
}

// VerifyUser marks a user (typically a dealer) verified.
func (s *AdminService) VerifyUser(ctx context.Context, act Actor, userID uint64) error {
	if err := s.d.Users.SetVerified(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Invalid("User is already verified")
		}
		return err
	}
	s.audit(ctx, act, "verify_user", fmt.Sprintf("Verified user %d", userID))
	return nil
}

// BanUser bans or unbans a user.
func (s *AdminService) BanUser(ctx context.Context, act Actor, userID uint64, banned bool, reason string) error {
	reason = strings.TrimSpace(reason)
	if banned && reason == "" {
		return Invalid("Missing required field: reason")
	}
	if err := s.d.Users.SetBanned(ctx, userID, banned, reason); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			if banned {
				return Invalid("User is already banned")
			}
			return Invalid("User is not banned")
		}
		return err
	}
	action := "ban_user"
	if !banned {
		action = "unban_user"
	}
	s.audit(ctx, act, action, fmt.Sprintf("%s %d %s", action, userID, reason))
	return nil
}

// DealerTasks lists dealers awaiting verification.
func (s *AdminService) DealerTasks(ctx context.Context, page, limit int) ([]model.User, model.Page, error) {
	return s.d.Users.PendingDealers(ctx, page, limit)
}

// Reports lists user reports, optionally by status.
func (s *AdminService) Reports(ctx context.Context, status string, page, limit int) ([]model.UserReport, model.Page, error) {
	return s.d.Reports.List(ctx, status, page, limit)
}

// UserReports lists reports filed against one user.
func (s *AdminService) UserReports(ctx context.Context, userID uint64) ([]model.UserReport, error) {
	return s.d.Reports.AgainstUser(ctx, userID)
}

// ReportedUsers aggregates reports per account.
func (s *AdminService) ReportedUsers(ctx context.Context, page, limit int) ([]model.ReportedUser, model.Page, error) {
	return s.d.Reports.ReportedUsers(ctx, page, limit)
}

// ResolveReport closes a pending report.
func (s *AdminService) ResolveReport(ctx context.Context, act Actor, id uint64) error {
	if err := s.d.Reports.Resolve(ctx, id, act.Admin.ID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Invalid("Report is already resolved")
		}
		return err
	}
	s.audit(ctx, act, "resolve_report", fmt.Sprintf("Resolved report %d", id))
	return nil
}

// ActivityLog pages through the audit log.
func (s *AdminService) ActivityLog(ctx context.Context, page, limit int) ([]model.ActivityLog, model.Page, error) {
	return s.d.Activity.List(ctx, page, limit)
}

// ForgotPassword emails a reset code to the admin owning email. The request
// id is returned even for unknown addresses so accounts cannot be enumerated.
func (s *AdminService) ForgotPassword(ctx context.Context, email string) (string, error) {
	requestID := uuid.NewString()
	a, err := s.d.Admins.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrAdminNotFound) {
		return requestID, nil
	}
	if err != nil {
		return "", err
	}
	code, err := utils.NewOTP(adminOTPDigits)
	if err != nil {
		return "", err
	}
	o := &model.OTPRequest{
		RequestID: requestID, PhoneNumber: a.Email, Purpose: model.OTPAdminReset,
		Code: code, UserID: a.ID, ExpiresAt: time.Now().UTC().Add(adminOTPTTL),
	}
	if err := s.d.OTPs.Create(ctx, o); err != nil {
		return "", err
	}
	if err := s.d.Notifier.SendEmail(ctx, a.Email, "Password reset code", "Your code is "+code); err != nil {
		s.d.Log.WithError(err).WithField("admin_id", a.ID).Warn("send reset email failed")
	}
	return requestID, nil
}

// VerifyResetOTP checks a reset code without consuming it.
func (s *AdminService) VerifyResetOTP(ctx context.Context, requestID, code string) error {
	_, err := s.checkOTP(ctx, requestID, model.OTPAdminReset, code)
	return err
}

// ResetPassword consumes a reset code and sets a new password. Every open
// session of the admin is revoked.
func (s *AdminService) ResetPassword(ctx context.Context, requestID, code, newPassword string) error {
	o, err := s.checkOTP(ctx, requestID, model.OTPAdminReset, code)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword, s.d.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.d.Admins.SetPassword(ctx, o.UserID, hash); err != nil {
		return err
	}
	if err := s.d.OTPs.Delete(ctx, requestID); err != nil {
		return err
	}
	return s.d.Sessions.RevokeAllForAdmin(ctx, o.UserID)
}

func (s *AdminService) checkOTP(ctx context.Context, requestID, purpose, code string) (*model.OTPRequest, error) {
	return verifyOTP(ctx, s.d.OTPs, requestID, purpose, code)
}

// verifyOTP loads a challenge and checks expiry then code.
func verifyOTP(ctx context.Context, otps *repository.OTPRepo, requestID, purpose, code string) (*model.OTPRequest, error) {
	o, err := otps.Get(ctx, strings.TrimSpace(requestID), purpose)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, ErrOTPRequest
		}
		return nil, err
	}
	if time.Now().After(o.ExpiresAt) {
		_ = otps.Delete(ctx, o.RequestID)
		return nil, ErrOTPExpired
	}
	if o.Code != strings.TrimSpace(code) {
		return nil, ErrOTPMismatch
	}
	return o, nil
}

// audit appends to the activity log. A failed write is logged and does not
// fail the request that triggered it.
func (s *AdminService) audit(ctx context.Context, act Actor, action, desc string) {
	if act.Admin == nil {
		return
	}
	e := &model.ActivityLog{
		AdminID: act.Admin.ID, Action: action, Description: desc, IPAddress: act.IP, UserAgent: act.UserAgent,
	}
	if err := s.d.Activity.Append(ctx, e); err != nil {
		s.d.Log.WithError(err).WithFields(logrus.Fields{"admin_id": act.Admin.ID, "action": action}).
			Warn("activity log append failed")
	}
}
