package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// SubscriptionRepo handles packages and user subscriptions.
type SubscriptionRepo struct {
	db *sql.DB
	x  *sqlx.DB
}

func NewSubscriptionRepo(db *sqlx.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db.DB, x: db}
}

const packageColumns = `id, name, COALESCE(description,'') AS description, price, COALESCE(currency,'USD') AS currency,
	duration_days, listing_limit, is_active`

// Packages lists purchasable packages, cheapest first.
func (r *SubscriptionRepo) Packages(ctx context.Context) ([]model.SubscriptionPackage, error) {
	out := []model.SubscriptionPackage{}
	err := r.x.SelectContext(ctx, &out,
		"SELECT "+packageColumns+" FROM subscription_packages WHERE is_active = 1 ORDER BY price, id")
	return out, err
}

// Package returns one active package.
func (r *SubscriptionRepo) Package(ctx context.Context, id uint64) (*model.SubscriptionPackage, error) {
	var p model.SubscriptionPackage
	err := r.x.GetContext(ctx, &p,
		"SELECT "+packageColumns+" FROM subscription_packages WHERE id = ? AND is_active = 1", id)
	if err != nil {
		return nil, notFound(err, ErrPackageNotFound)
	}
	return &p, nil
}

const subscriptionSelect = `SELECT s.id, s.user_id, s.package_id, s.start_date, s.end_date, s.is_active, s.created_at,
	p.id, p.name, COALESCE(p.description,''), p.price, COALESCE(p.currency,'USD'), p.duration_days, p.listing_limit, p.is_active
	FROM subscriptions s JOIN subscription_packages p ON p.id = s.package_id`

func scanSubscription(s rowScanner) (*model.Subscription, error) {
	var sub model.Subscription
	var p model.SubscriptionPackage
	if err := s.Scan(&sub.ID, &sub.UserID, &sub.PackageID, &sub.StartDate, &sub.EndDate, &sub.IsActive, &sub.CreatedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency, &p.DurationDays, &p.ListingLimit, &p.IsActive); err != nil {
		return nil, err
	}
	sub.Package = &p
	return &sub, nil
}

// Active returns the user's live subscription, if any.
func (r *SubscriptionRepo) Active(ctx context.Context, userID uint64) (*model.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx,
		subscriptionSelect+" WHERE s.user_id = ? AND s.is_active = 1 AND s.end_date > NOW() ORDER BY s.end_date DESC LIMIT 1",
		userID))
	if err != nil {
		return nil, notFound(err, ErrSubscriptionNotFound)
	}
	return s, nil
}

// Create starts a subscription to pkg now. Only one may be active: the
// check and insert share a transaction that locks the user's rows.
func (r *SubscriptionRepo) Create(ctx context.Context, userID uint64, pkg *model.SubscriptionPackage) (sub *model.Subscription, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	sub, err = r.CreateTx(ctx, tx, userID, pkg)
	return sub, err
}

// CreateTx is Create inside a caller's transaction. The active-subscription
// check locks the user's rows until that transaction ends.
func (r *SubscriptionRepo) CreateTx(ctx context.Context, tx Execer, userID uint64, pkg *model.SubscriptionPackage) (*model.Subscription, error) {
	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE user_id = ? AND is_active = 1 AND end_date > NOW() FOR UPDATE",
		userID).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrConflict
	}
	start := time.Now().UTC()
	end := start.AddDate(0, 0, pkg.DurationDays)
	res, err := tx.ExecContext(ctx, `INSERT INTO subscriptions (user_id, package_id, start_date, end_date, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, NOW())`, userID, pkg.ID, start, end)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Subscription{
		ID: uint64(id), UserID: userID, PackageID: pkg.ID,
		StartDate: start, EndDate: end, IsActive: true, CreatedAt: start, Package: pkg,
	}, nil
}

// Cancel deactivates the user's active subscription.
func (r *SubscriptionRepo) Cancel(ctx context.Context, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE subscriptions SET is_active = 0 WHERE user_id = ? AND is_active = 1 AND end_date > NOW()", userID)
	if err != nil {
		return err
	}
	return affected(res, ErrSubscriptionNotFound)
}

// History pages through all of a user's subscriptions.
func (r *SubscriptionRepo) History(ctx context.Context, userID uint64, page, limit int) ([]model.Subscription, model.Page, error) {
	page, limit = ClampPage(page, limit)
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, model.Page{}, err
	}
	rows, err := r.db.QueryContext(ctx, subscriptionSelect+" WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id DESC LIMIT ? OFFSET ?",
		userID, limit, offset(page, limit))
	if err != nil {
		return nil, model.Page{}, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, model.Page{}, err
		}
		out = append(out, *s)
	}
	return out, model.NewPage(page, limit, total), rows.Err()
}
