package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// OTPRepo stores one-time-password challenges for users and admins.
type OTPRepo struct {
	db *sql.DB
}

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{db: db} }

// Create stores a challenge. Earlier challenges for the same phone and
// purpose are dropped so only the newest code is valid.
func (r *OTPRepo) Create(ctx context.Context, o *model.OTPRequest) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM otp_requests WHERE phone_number = ? AND purpose = ?", o.PhoneNumber, o.Purpose); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO otp_requests
		(request_id, phone_number, purpose, otp_code, user_id, payload, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW())`,
		o.RequestID, o.PhoneNumber, o.Purpose, o.Code, o.UserID, o.Payload, o.ExpiresAt)
	return err
}

// Get returns a challenge by its request id and purpose. Expiry is checked
// by the caller so it can report "expired" distinctly.
func (r *OTPRepo) Get(ctx context.Context, requestID, purpose string) (*model.OTPRequest, error) {
	var o model.OTPRequest
	err := r.db.QueryRowContext(ctx, `SELECT request_id, phone_number, purpose, otp_code,
		COALESCE(user_id, 0), COALESCE(payload, ''), expires_at
		FROM otp_requests WHERE request_id = ? AND purpose = ?`, requestID, purpose).
		Scan(&o.RequestID, &o.PhoneNumber, &o.Purpose, &o.Code, &o.UserID, &o.Payload, &o.ExpiresAt)
	if err != nil {
		return nil, notFound(err, ErrOTPNotFound)
	}
	return &o, nil
}

// Delete consumes a challenge.
func (r *OTPRepo) Delete(ctx context.Context, requestID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM otp_requests WHERE request_id = ?", requestID)
	return err
}

// PurgeExpired removes stale challenges.
func (r *OTPRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM otp_requests WHERE expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
