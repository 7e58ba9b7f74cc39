package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// SessionRepo persists admin bearer sessions (single 'token_hash' column).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Store inserts a session hash row.
func (r *SessionRepo) Store(ctx context.Context, adminID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO admin_sessions (admin_id, token_hash, expires_at, created_at) VALUES (?,?,?,NOW())",
		adminID, tokenHash, exp)
	return err
}

// Validate returns the admin behind a live session: the row exists, has not
// expired and the admin is not soft-deleted.
func (r *SessionRepo) Validate(ctx context.Context, tokenHash string) (*model.Admin, error) {
	row := r.DB.QueryRowContext(ctx, adminSelectAlias+`
		JOIN admin_sessions s ON s.admin_id = a.id
		WHERE s.token_hash = ? AND s.expires_at > NOW() AND a.deleted_at IS NULL
		LIMIT 1`, tokenHash)
	a, err := scanAdmin(row)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	return a, nil
}

// Revoke deletes one session.
func (r *SessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM admin_sessions WHERE token_hash=?", tokenHash)
	if err != nil {
		return err
	}
	return affected(res, ErrSessionNotFound)
}

// RevokeAllForAdmin ends every session of an admin (password reset, delete).
func (r *SessionRepo) RevokeAllForAdmin(ctx context.Context, adminID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM admin_sessions WHERE admin_id=?", adminID)
	return err
}

// PurgeExpired removes dead sessions.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM admin_sessions WHERE expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
