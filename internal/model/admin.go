package model

import "time"

// Permission names one admin capability flag.
type Permission string

const (
	PermSuperAdmin          Permission = "super_admin"
	PermListingManager      Permission = "listing_manager"
	PermUserManager         Permission = "user_manager"
	PermSubscriptionManager Permission = "subscription_manager"
	PermSupportManager      Permission = "support_manager"
)

// Permissions is the set of flags stored on an admin row.
type Permissions struct {
	SuperAdmin          bool `json:"super_admin"`
	ListingManager      bool `json:"listing_manager"`
	UserManager         bool `json:"user_manager"`
	SubscriptionManager bool `json:"subscription_manager"`
	SupportManager      bool `json:"support_manager"`
}

// Has reports whether the raw flag for p is set. It does not apply the
// super admin rule; use service.Authorize for access decisions.
func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case PermSuperAdmin:
		return p.SuperAdmin
	case PermListingManager:
		return p.ListingManager
	case PermUserManager:
		return p.UserManager
	case PermSubscriptionManager:
		return p.SubscriptionManager
	case PermSupportManager:
		return p.SupportManager
	}
	return false
}

// Admin mirrors the admins table. Admins are a separate identity space from
// marketplace users.
type Admin struct {
	ID                  uint64      `json:"id"`
	Username            string      `json:"username"`
	Email               string      `json:"email"`
	FullName            string      `json:"full_name"`
	PasswordHash        string      `json:"-"`
	Permissions         Permissions `json:"permissions"`
	NeedsPasswordUpdate bool        `json:"needs_password_update"`
	LastLogin           *time.Time  `json:"last_login,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	DeletedAt           *time.Time  `json:"-"`
}

// AdminSession is an opaque bearer credential. Only the token hash is
// persisted.
type AdminSession struct {
	ID        uint64    `json:"id"`
	AdminID   uint64    `json:"admin_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLog is one append-only audit row.
type ActivityLog struct {
	ID          uint64    `json:"id" db:"id"`
	AdminID     uint64    `json:"admin_id" db:"admin_id"`
	AdminName   string    `json:"admin_username" db:"admin_username"`
	Action      string    `json:"action" db:"action"`
	Description string    `json:"description" db:"description"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	UserAgent   string    `json:"user_agent" db:"user_agent"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DashboardStats backs the admin dashboard.
type DashboardStats struct {
	TotalUsers     int64        `json:"total_users"`
	TotalCars      int64        `json:"total_cars"`
	PendingCars    int64        `json:"pending_cars"`
	ApprovedCars   int64        `json:"approved_cars"`
	SoldCars       int64        `json:"sold_cars"`
	PendingReports int64        `json:"pending_reports"`
	RecentCars     []CarSummary `json:"recent_cars"`
}

// ContactMessage is a support form submission.
type ContactMessage struct {
	ID        uint64    `json:"id"`
	UserID    *uint64   `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
