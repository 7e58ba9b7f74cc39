package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

// ContactInfo lists the fixed support channels of the contact screen.
var ContactInfo = map[string]string{
	"call_us":  "9613123123",
	"email_us": "info@souqsayarat.com",
	"whatsapp": "9613123123",
}

// PublicProfile is a seller page.
type PublicProfile struct {
	User *model.UserSummary `json:"user"`
	Cars []model.CarSummary `json:"cars"`
}

// UserDeps groups the collaborators of UserService.
type UserDeps struct {
	Users     *repository.UserRepo
	Cars      *repository.CarRepo
	Favorites *repository.FavoriteRepo
	Searches  *repository.SavedSearchRepo
	Blocks    *repository.BlockRepo
	Reports   *repository.ReportRepo
	Contacts  *repository.ContactRepo
	Auth      *AuthService
}

// UserService covers the signed-in user's account and social features.
type UserService struct {
	d UserDeps
}

func NewUserService(d UserDeps) *UserService { return &UserService{d: d} }

// Profile returns the caller's account.
func (s *UserService) Profile(ctx context.Context, userID uint64) (*model.User, error) {
	return s.d.Users.GetByID(ctx, userID)
}

// UpdateProfile applies a sparse profile edit and returns the result.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, p model.UserPatch) (*model.User, error) {
	if p.FullName != nil && strings.TrimSpace(*p.FullName) == "" {
		return nil, Invalid("full_name cannot be empty")
	}
	if err := s.d.Users.Update(ctx, userID, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, Invalid("Email already in use")
		}
		return nil, err
	}
	return s.d.Users.GetByID(ctx, userID)
}

// PublicProfile returns a seller with their public listings. Blocked pairs
// see not found.
func (s *UserService) PublicProfile(ctx context.Context, userID, viewerID uint64) (*PublicProfile, error) {
	if viewerID != 0 && viewerID != userID {
		blocked, err := s.d.Blocks.Between(ctx, viewerID, userID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, repository.ErrUserNotFound
		}
	}
	u, err := s.d.Users.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	cars, err := s.d.Cars.PublicByUser(ctx, userID, viewerID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{User: u, Cars: cars}, nil
}

// RequestPhoneChange texts a code to the new number.
func (s *UserService) RequestPhoneChange(ctx context.Context, userID uint64, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", Required("phone_number")
	}
	if _, err := s.d.Users.GetByPhone(ctx, phone); err == nil {
		return "", Invalid("Phone number already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return "", err
	}
	return s.d.Auth.sendOTP(ctx, phone, model.OTPChangePhone, userID, "")
}

// ConfirmPhoneChange consumes the code and switches the number.
func (s *UserService) ConfirmPhoneChange(ctx context.Context, userID uint64, requestID, code string) error {
	o, err := verifyOTP(ctx, s.d.Auth.otps, requestID, model.OTPChangePhone, code)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrOTPRequest
	}
	if err := s.d.Users.SetPhone(ctx, userID, o.PhoneNumber); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Invalid("Phone number already registered")
		}
		return err
	}
	return s.d.Auth.otps.Delete(ctx, o.RequestID)
}

// RequestDeletion texts a confirmation code to the account's phone.
func (s *UserService) RequestDeletion(ctx context.Context, userID uint64) (string, error) {
	u, err := s.d.Users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.d.Auth.sendOTP(ctx, u.PhoneNumber, model.OTPDelete, userID, "")
}

// ConfirmDeletion consumes the code and soft-deletes the account.
func (s *UserService) ConfirmDeletion(ctx context.Context, userID uint64, requestID, code string) error {
	o, err := verifyOTP(ctx, s.d.Auth.otps, requestID, model.OTPDelete, code)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrOTPRequest
	}
	if err := s.d.Users.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.d.Auth.otps.Delete(ctx, o.RequestID)
}

// AddFavorite favorites a car. Repeating it is harmless.
func (s *UserService) AddFavorite(ctx context.Context, userID, carID uint64) error {
	_, err := s.d.Favorites.Add(ctx, userID, carID)
	return err
}

// RemoveFavorite unfavorites a car.
func (s *UserService) RemoveFavorite(ctx context.Context, userID, carID uint64) error {
	if err := s.d.Favorites.Remove(ctx, userID, carID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Invalid("Car is not in favorites")
		}
		return err
	}
	return nil
}

// ToggleFavorite adds the car to favorites, or removes it when it already
// was one. It reports whether the car is a favorite afterwards.
func (s *UserService) ToggleFavorite(ctx context.Context, userID, carID uint64) (bool, error) {
	created, err := s.d.Favorites.Add(ctx, userID, carID)
	if err != nil || created {
		return created, err
	}
	if err := s.d.Favorites.Remove(ctx, userID, carID); err != nil && !errors.Is(err, repository.ErrNoChange) {
		return true, err
	}
	return false, nil
}

// Favorites lists the caller's favorite cars.
func (s *UserService) Favorites(ctx context.Context, userID uint64) ([]model.CarSummary, error) {
	items, err := s.d.Favorites.List(ctx, userID)
	for i := range items {
		items[i].IsFavorite = true
	}
	return items, err
}

// SaveSearch stores a search. Only make, model, location and body type are
// kept and at least one is required.
func (s *UserService) SaveSearch(ctx context.Context, userID uint64, name string, params map[string]string, notify bool) (*model.SavedSearch, error) {
	ss := &model.SavedSearch{
		UserID: userID, Name: strings.TrimSpace(name),
		Params: repository.FilterParams(params), NotificationsEnabled: notify,
	}
	if len(ss.Params) == 0 {
		return nil, Invalid("search_params must include make, model, location or body_type")
	}
	if ss.Name == "" {
		ss.Name = strings.Join(paramValues(ss.Params), " ")
	}
	if err := s.d.Searches.Create(ctx, ss); err != nil {
		return nil, err
	}
	return ss, nil
}

func paramValues(p map[string]string) []string {
	var out []string
	for _, k := range model.SavedSearchKeys {
		if v := p[k]; v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SavedSearches lists the caller's saved searches.
func (s *UserService) SavedSearches(ctx context.Context, userID uint64) ([]model.SavedSearch, error) {
	return s.d.Searches.List(ctx, userID)
}

// UpdateSavedSearch edits the name, params or notification toggle.
func (s *UserService) UpdateSavedSearch(ctx context.Context, userID, id uint64, name *string, params map[string]string, notify *bool) error {
	return s.d.Searches.Update(ctx, userID, id, name, params, notify)
}

// DeleteSavedSearch removes a saved search.
func (s *UserService) DeleteSavedSearch(ctx context.Context, userID, id uint64) error {
	return s.d.Searches.Delete(ctx, userID, id)
}

// Block hides another user from the caller in both directions.
func (s *UserService) Block(ctx context.Context, userID, otherID uint64) error {
	if err := s.checkOther(ctx, userID, otherID); err != nil {
		return err
	}
	if err := s.d.Blocks.Block(ctx, userID, otherID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Invalid("User is already blocked")
		}
		return err
	}
	return nil
}

// Unblock lifts a block.
func (s *UserService) Unblock(ctx context.Context, userID, otherID uint64) error {
	if err := s.checkOther(ctx, userID, otherID); err != nil {
		return err
	}
	if err := s.d.Blocks.Unblock(ctx, userID, otherID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Invalid("User is not blocked")
		}
		return err
	}
	return nil
}

func (s *UserService) checkOther(ctx context.Context, userID, otherID uint64) error {
	if otherID == 0 || otherID == userID {
		return Invalid("Invalid user")
	}
	ok, err := s.d.Users.Exists(ctx, otherID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrUserNotFound
	}
	return nil
}

// BlockedUsers lists who the caller blocked.
func (s *UserService) BlockedUsers(ctx context.Context, userID uint64) ([]model.BlockedUser, error) {
	return s.d.Blocks.List(ctx, userID)
}

// ReportUser files a complaint against another user.
func (s *UserService) ReportUser(ctx context.Context, rep *model.UserReport) error {
	rep.Reason = strings.TrimSpace(rep.Reason)
	if rep.Reason == "" {
		return Invalid("Missing required field: reason")
	}
	if err := s.checkOther(ctx, rep.ReporterID, rep.ReportedUserID); err != nil {
		return err
	}
	return s.d.Reports.Create(ctx, rep)
}

// Contact stores a support form submission.
func (s *UserService) Contact(ctx context.Context, m *model.ContactMessage) error {
	m.Subject, m.Message = strings.TrimSpace(m.Subject), strings.TrimSpace(m.Message)
	switch {
	case m.Subject == "":
		return Invalid("Missing required field: subject")
	case m.Message == "":
		return Invalid("Missing required field: message")
	}
	return s.d.Contacts.Create(ctx, m)
}
