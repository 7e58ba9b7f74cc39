package model

import "time"

// PaymentMethod is a configured way to pay.
type PaymentMethod struct {
	ID          uint64 `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Code        string `json:"code" db:"code"`
	Description string `json:"description" db:"description"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Payment mirrors the payments table. Metadata is stored as JSON text.
type Payment struct {
	ID            uint64            `json:"id"`
	CheckoutID    string            `json:"checkout_id"`
	UserID        uint64            `json:"user_id"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Description   string            `json:"description"`
	PaymentMethod string            `json:"payment_method"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// Checkout is the result of starting a payment.
type Checkout struct {
	CheckoutID  string `json:"checkout_id"`
	PaymentID   uint64 `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

// SubscriptionPackage is a purchasable listing allowance.
type SubscriptionPackage struct {
	ID           uint64  `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Description  string  `json:"description" db:"description"`
	Price        float64 `json:"price" db:"price"`
	Currency     string  `json:"currency" db:"currency"`
	DurationDays int     `json:"duration_days" db:"duration_days"`
	ListingLimit int64   `json:"listing_limit" db:"listing_limit"`
	IsActive     bool    `json:"is_active" db:"is_active"`
}

// FreePackage is what a user without a subscription gets.
var FreePackage = SubscriptionPackage{
	Name:         "Free",
	Description:  "Free tier with limited features",
	ListingLimit: 1,
}

// Subscription mirrors the subscriptions table.
type Subscription struct {
	ID        uint64               `json:"id"`
	UserID    uint64               `json:"user_id"`
	PackageID uint64               `json:"package_id"`
	StartDate time.Time            `json:"start_date"`
	EndDate   time.Time            `json:"end_date"`
	IsActive  bool                 `json:"is_active"`
	CreatedAt time.Time            `json:"created_at"`
	Package   *SubscriptionPackage `json:"package,omitempty"`
}

// Entitlement is the caller's current plan and usage.
type Entitlement struct {
	IsSubscribed      bool                `json:"is_subscribed"`
	SubscriptionID    uint64              `json:"subscription_id,omitempty"`
	Package           SubscriptionPackage `json:"package"`
	StartDate         *time.Time          `json:"start_date,omitempty"`
	EndDate           *time.Time          `json:"end_date,omitempty"`
	ListingsUsed      int64               `json:"listings_used"`
	ListingsRemaining int64               `json:"listings_remaining"`
}
