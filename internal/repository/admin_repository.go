package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// AdminRepo stores back-office accounts.
type AdminRepo struct {
	db *sql.DB
}

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

const adminColumns = `a.id, a.username, COALESCE(a.email,''), COALESCE(a.full_name,''), a.password_hash,
	COALESCE(a.super_admin,0), COALESCE(a.listing_manager,0), COALESCE(a.user_manager,0),
	COALESCE(a.subscription_manager,0), COALESCE(a.support_manager,0),
	COALESCE(a.needs_password_update,0), a.last_login, a.created_at, a.deleted_at`

const adminSelectAlias = "SELECT " + adminColumns + " FROM admins a"

func scanAdmin(s rowScanner) (*model.Admin, error) {
	var a model.Admin
	var last, deleted sql.NullTime
	p := &a.Permissions
	err := s.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &a.PasswordHash,
		&p.SuperAdmin, &p.ListingManager, &p.UserManager, &p.SubscriptionManager, &p.SupportManager,
		&a.NeedsPasswordUpdate, &last, &a.CreatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		a.LastLogin = &t
	}
	if deleted.Valid {
		t := deleted.Time
		a.DeletedAt = &t
	}
	return &a, nil
}

// GetByUsername returns an active admin.
func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		adminSelectAlias+" WHERE a.username = ? AND a.deleted_at IS NULL", username))
	if err != nil {
		return nil, notFound(err, ErrAdminNotFound)
	}
	return a, nil
}

// GetByEmail returns an active admin by email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		adminSelectAlias+" WHERE a.email = ? AND a.deleted_at IS NULL", email))
	if err != nil {
		return nil, notFound(err, ErrAdminNotFound)
	}
	return a, nil
}

// GetByID returns an active admin.
func (r *AdminRepo) GetByID(ctx context.Context, id uint64) (*model.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		adminSelectAlias+" WHERE a.id = ? AND a.deleted_at IS NULL", id))
	if err != nil {
		return nil, notFound(err, ErrAdminNotFound)
	}
	return a, nil
}

// Create inserts an admin. ErrConflict on a duplicate username or email.
func (r *AdminRepo) Create(ctx context.Context, a *model.Admin) (uint64, error) {
	p := a.Permissions
	res, err := r.db.ExecContext(ctx, `INSERT INTO admins
		(username, email, full_name, password_hash, super_admin, listing_manager, user_manager,
		 subscription_manager, support_manager, needs_password_update, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`,
		a.Username, a.Email, a.FullName, a.PasswordHash,
		p.SuperAdmin, p.ListingManager, p.UserManager, p.SubscriptionManager, p.SupportManager,
		a.NeedsPasswordUpdate)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = uint64(id)
	return a.ID, nil
}

// SetPassword stores a new hash and clears needs_password_update.
func (r *AdminRepo) SetPassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE admins SET password_hash = ?, needs_password_update = 0 WHERE id = ? AND deleted_at IS NULL", hash, id)
	if err != nil {
		return err
	}
	return affected(res, ErrAdminNotFound)
}

// TouchLogin records a successful login.
func (r *AdminRepo) TouchLogin(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE admins SET last_login = NOW() WHERE id = ?", id)
	return err
}

// SetPermissions replaces the capability flags of an admin.
func (r *AdminRepo) SetPermissions(ctx context.Context, id uint64, p model.Permissions) error {
	res, err := r.db.ExecContext(ctx, `UPDATE admins SET super_admin = ?, listing_manager = ?, user_manager = ?,
		subscription_manager = ?, support_manager = ? WHERE id = ? AND deleted_at IS NULL`,
		p.SuperAdmin, p.ListingManager, p.UserManager, p.SubscriptionManager, p.SupportManager, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 when the flags are unchanged; only fail on a missing row.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SoftDelete marks an admin deleted. Their sessions stop validating at once
// because session lookup joins on deleted_at.
func (r *AdminRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE admins SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return affected(res, ErrAdminNotFound)
}

// ListNonSuper lists active admins that are not super admins.
func (r *AdminRepo) ListNonSuper(ctx context.Context) ([]model.Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		adminSelectAlias+" WHERE a.deleted_at IS NULL AND COALESCE(a.super_admin,0) = 0 ORDER BY a.created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountSuper returns the number of active super admins.
func (r *AdminRepo) CountSuper(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM admins WHERE deleted_at IS NULL AND super_admin = 1").Scan(&n)
	return n, err
}
