package model

import "time"

// User types.
const (
	UserTypeDealer     = "dealer"
	UserTypeIndividual = "individual"
)

// User mirrors the users table. Dealer fields are only meaningful when
// IsDealer is set.
type User struct {
	ID              uint64     `json:"id"`
	FullName        string     `json:"full_name"`
	Email           string     `json:"email"`
	PhoneNumber     string     `json:"phone_number"`
	PasswordHash    string     `json:"-"`
	UserType        string     `json:"user_type"`
	ProfilePic      string     `json:"profile_pic"`
	Location        string     `json:"location"`
	IsDealer        bool       `json:"is_dealer"`
	CompanyName     string     `json:"company_name"`
	CompanyAddress  string     `json:"company_address"`
	TradeLicense    string     `json:"trade_license"`
	IsVerified      bool       `json:"is_verified"`
	IsBanned        bool       `json:"is_banned"`
	BanReason       string     `json:"ban_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

// UserPatch is a sparse profile edit. Nil fields are left unchanged.
type UserPatch struct {
	FullName       *string `json:"full_name"`
	Email          *string `json:"email"`
	Location       *string `json:"location"`
	ProfilePic     *string `json:"profile_pic"`
	IsDealer       *bool   `json:"is_dealer"`
	CompanyName    *string `json:"company_name"`
	CompanyAddress *string `json:"company_address"`
	TradeLicense   *string `json:"trade_license"`
}

// UserSummary is the public view of a seller.
type UserSummary struct {
	ID          uint64 `json:"id"`
	FullName    string `json:"full_name"`
	UserType    string `json:"user_type"`
	ProfilePic  string `json:"profile_pic"`
	IsVerified  bool   `json:"is_verified"`
	CompanyName string `json:"company_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// OTPRequest is one pending one-time-password challenge.
type OTPRequest struct {
	RequestID   string    `json:"request_id"`
	PhoneNumber string    `json:"phone_number"`
	Purpose     string    `json:"purpose"`
	Code        string    `json:"-"`
	UserID      uint64    `json:"-"`
	Payload     string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OTP purposes.
const (
	OTPLogin       = "login"
	OTPResetPass   = "reset_password"
	OTPChangePhone = "change_phone"
	OTPDelete      = "delete_account"
	OTPAdminReset  = "admin_reset"
)

// SavedSearch is a stored search with its notification toggle.
type SavedSearch struct {
	ID                   uint64            `json:"id"`
	UserID               uint64            `json:"user_id"`
	Name                 string            `json:"name"`
	Params               map[string]string `json:"search_params"`
	NotificationsEnabled bool              `json:"notifications_enabled"`
	CreatedAt            time.Time         `json:"created_at"`
}

// SavedSearchKeys are the only parameters kept in a saved search.
var SavedSearchKeys = []string{"make", "model", "location", "body_type"}

// BlockedUser is one row of the caller's block list.
type BlockedUser struct {
	UserID     uint64    `json:"user_id"`
	FullName   string    `json:"full_name"`
	ProfilePic string    `json:"profile_pic"`
	BlockedAt  time.Time `json:"blocked_at"`
}

// UserReport is a complaint filed by one user about another.
type UserReport struct {
	ID             uint64     `json:"id" db:"id"`
	ReporterID     uint64     `json:"reporter_id" db:"reporter_id"`
	ReportedUserID uint64     `json:"reported_user_id" db:"reported_user_id"`
	CarID          *uint64    `json:"car_id,omitempty" db:"car_id"`
	Reason         string     `json:"reason" db:"reason"`
	Details        string     `json:"details" db:"details"`
	Status         string     `json:"status" db:"status"`
	ResolvedBy     *uint64    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Report statuses.
const (
	ReportPending  = "pending"
	ReportResolved = "resolved"
)

// ReportedUser aggregates reports per reported account.
type ReportedUser struct {
	UserID      uint64    `json:"user_id" db:"user_id"`
	FullName    string    `json:"full_name" db:"full_name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	ReportCount int64     `json:"report_count" db:"report_count"`
	IsBanned    bool      `json:"is_banned" db:"is_banned"`
	LastReport  time.Time `json:"last_reported_at" db:"last_reported_at"`
}
