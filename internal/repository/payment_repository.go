package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// PaymentRepo stores checkouts and payment methods.
type PaymentRepo struct {
	db *sql.DB
	x  *sqlx.DB
}

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db.DB, x: db} }

// DB exposes the pool so a webhook can span payments and subscriptions in
// one transaction.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

// Methods lists active payment methods.
func (r *PaymentRepo) Methods(ctx context.Context) ([]model.PaymentMethod, error) {
	out := []model.PaymentMethod{}
	err := r.x.SelectContext(ctx, &out, `SELECT id, name, code, COALESCE(description,'') AS description, is_active
		FROM payment_methods WHERE is_active = 1 ORDER BY id`)
	return out, err
}

// MethodExists reports whether code names an active method.
func (r *PaymentRepo) MethodExists(ctx context.Context, code string) error {
	var one int
	err := r.x.GetContext(ctx, &one, "SELECT 1 FROM payment_methods WHERE code = ? AND is_active = 1", code)
	return notFound(err, ErrMethodNotFound)
}

// Create stores a pending payment.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO payments
		(checkout_id, user_id, amount, currency, description, payment_method, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW())`,
		p.CheckoutID, p.UserID, p.Amount, p.Currency, p.Description, p.PaymentMethod, p.Status, string(meta))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

const paymentSelect = `SELECT id, checkout_id, user_id, amount, COALESCE(currency,'USD'), COALESCE(description,''),
	COALESCE(payment_method,''), status, COALESCE(metadata,'{}'), created_at, updated_at FROM payments`

func scanPayment(s rowScanner) (*model.Payment, error) {
	var p model.Payment
	var meta string
	var updated sql.NullTime
	if err := s.Scan(&p.ID, &p.CheckoutID, &p.UserID, &p.Amount, &p.Currency, &p.Description,
		&p.PaymentMethod, &p.Status, &meta, &p.CreatedAt, &updated); err != nil {
		return nil, err
	}
	if json.Unmarshal([]byte(meta), &p.Metadata) != nil {
		p.Metadata = map[string]string{}
	}
	if updated.Valid {
		t := updated.Time
		p.UpdatedAt = &t
	}
	return &p, nil
}

// GetByCheckout finds a payment by its gateway checkout id.
func (r *PaymentRepo) GetByCheckout(ctx context.Context, checkoutID string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, paymentSelect+" WHERE checkout_id = ?", checkoutID))
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return p, nil
}

// GetForUser returns a payment only when it belongs to userID.
func (r *PaymentRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, paymentSelect+" WHERE id = ? AND user_id = ?", id, userID))
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return p, nil
}

// SetStatus moves a payment out of pending. It reports false when the
// payment had already left pending, so webhooks replayed by the gateway are
// applied once.
func (r *PaymentRepo) SetStatus(ctx context.Context, checkoutID, status string) (bool, error) {
	return r.SetStatusTx(ctx, r.db, checkoutID, status)
}

// SetStatusTx is SetStatus on a caller supplied executor.
func (r *PaymentRepo) SetStatusTx(ctx context.Context, ex Execer, checkoutID, status string) (bool, error) {
	res, err := ex.ExecContext(ctx,
		"UPDATE payments SET status = ?, updated_at = NOW() WHERE checkout_id = ? AND status = ?",
		status, checkoutID, model.PaymentPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListForUser pages through a user's payments, newest first.
func (r *PaymentRepo) ListForUser(ctx context.Context, userID uint64, page, limit int) ([]model.Payment, model.Page, error) {
	page, limit = ClampPage(page, limit)
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, model.Page{}, err
	}
	rows, err := r.db.QueryContext(ctx, paymentSelect+" WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		userID, limit, offset(page, limit))
	if err != nil {
		return nil, model.Page{}, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, model.Page{}, err
		}
		out = append(out, *p)
	}
	return out, model.NewPage(page, limit, total), rows.Err()
}
