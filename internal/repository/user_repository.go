package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// UserRepo handles marketplace accounts.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userSelect = `SELECT id, COALESCE(full_name,''), COALESCE(email,''), phone_number, COALESCE(password_hash,''),
	COALESCE(user_type,'individual'), COALESCE(profile_pic,''), COALESCE(location,''), COALESCE(is_dealer,0),
	COALESCE(company_name,''), COALESCE(company_address,''), COALESCE(trade_license,''),
	COALESCE(is_verified,0), COALESCE(is_banned,0), COALESCE(ban_reason,''), created_at, updated_at, deleted_at
	FROM users`

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	var deleted sql.NullTime
	err := s.Scan(&u.ID, &u.FullName, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&u.UserType, &u.ProfilePic, &u.Location, &u.IsDealer,
		&u.CompanyName, &u.CompanyAddress, &u.TradeLicense,
		&u.IsVerified, &u.IsBanned, &u.BanReason, &u.CreatedAt, &u.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	if deleted.Valid {
		t := deleted.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

// Create inserts a user. ErrConflict when the phone or email is taken.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users
		(full_name, email, phone_number, password_hash, user_type, location, is_dealer,
		 company_name, company_address, trade_license, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		u.FullName, nullableStr(u.Email), u.PhoneNumber, nullableStr(u.PasswordHash), u.UserType, u.Location,
		u.IsDealer, u.CompanyName, u.CompanyAddress, u.TradeLicense)
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
	u.ID = uint64(id)
	return u.ID, nil
}

// GetByID returns an active (not soft-deleted) user.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, userSelect+" WHERE id = ? AND deleted_at IS NULL", id))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// GetByPhone returns an active user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, userSelect+" WHERE phone_number = ? AND deleted_at IS NULL", phone))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// GetByLogin finds a user by email or phone for password login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		userSelect+" WHERE (email = ? OR phone_number = ?) AND deleted_at IS NULL LIMIT 1", login, login))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// Update applies a sparse profile patch. Turning is_dealer off clears the
// dealer fields in the same statement.
func (r *UserRepo) Update(ctx context.Context, id uint64, p model.UserPatch) error {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if p.FullName != nil {
		add("full_name", strings.TrimSpace(*p.FullName))
	}
	if p.Email != nil {
		add("email", nullableStr(strings.TrimSpace(*p.Email)))
	}
	if p.Location != nil {
		add("location", strings.TrimSpace(*p.Location))
	}
	if p.ProfilePic != nil {
		add("profile_pic", *p.ProfilePic)
	}
	if p.IsDealer != nil && !*p.IsDealer {
		add("is_dealer", false)
		add("user_type", model.UserTypeIndividual)
		add("company_name", "")
		add("company_address", "")
		add("trade_license", "")
	} else {
		if p.IsDealer != nil {
			add("is_dealer", true)
			add("user_type", model.UserTypeDealer)
		}
		if p.CompanyName != nil {
			add("company_name", strings.TrimSpace(*p.CompanyName))
		}
		if p.CompanyAddress != nil {
			add("company_address", strings.TrimSpace(*p.CompanyAddress))
		}
		if p.TradeLicense != nil {
			add("trade_license", strings.TrimSpace(*p.TradeLicense))
		}
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id = ? AND deleted_at IS NULL", args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return affected(res, ErrUserNotFound)
}

// SetPassword stores a new bcrypt hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = NOW() WHERE id = ? AND deleted_at IS NULL", hash, id)
	if err != nil {
		return err
	}
	return affected(res, ErrUserNotFound)
}

// SetPhone changes the phone number. ErrConflict when it is taken.
func (r *UserRepo) SetPhone(ctx context.Context, id uint64, phone string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET phone_number = ?, updated_at = NOW() WHERE id = ? AND deleted_at IS NULL", phone, id)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return affected(res, ErrUserNotFound)
}

// SoftDelete marks the account deleted and frees the phone number for
// re-registration.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users
		SET deleted_at = NOW(), phone_number = CONCAT('deleted:', id, ':', phone_number), updated_at = NOW()
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	return affected(res, ErrUserNotFound)
}

// SetVerified marks a user verified. ErrNoChange when already verified.
func (r *UserRepo) SetVerified(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_verified = 1, updated_at = NOW() WHERE id = ? AND deleted_at IS NULL AND COALESCE(is_verified,0) = 0", id)
	if err != nil {
		return err
	}
	return r.existsOr(ctx, res, id, ErrNoChange)
}

// SetBanned bans or unbans a user. ErrNoChange when already in that state.
func (r *UserRepo) SetBanned(ctx context.Context, id uint64, banned bool, reason string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_banned = ?, ban_reason = ?, updated_at = NOW() WHERE id = ? AND deleted_at IS NULL AND COALESCE(is_banned,0) <> ?",
		banned, nullableStr(reason), id, banned)
	if err != nil {
		return err
	}
	return r.existsOr(ctx, res, id, ErrNoChange)
}

func (r *UserRepo) existsOr(ctx context.Context, res sql.Result, id uint64, otherwise error) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? AND deleted_at IS NULL", id).Scan(&one); err != nil {
		return notFound(err, ErrUserNotFound)
	}
	return otherwise
}

// Exists reports whether an active user exists.
func (r *UserRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? AND deleted_at IS NULL", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// List pages through users for the admin console. search matches name,
// email or phone.
func (r *UserRepo) List(ctx context.Context, search string, page, limit int) ([]model.User, model.Page, error) {
	page, limit = ClampPage(page, limit)
	where := "WHERE deleted_at IS NULL"
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		p := "%" + escapeLike(s) + "%"
		where += " AND (full_name LIKE ? OR email LIKE ? OR phone_number LIKE ?)"
		args = append(args, p, p, p)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, model.Page{}, err
	}
	rows, err := r.db.QueryContext(ctx, userSelect+" "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset(page, limit))...)
	if err != nil {
		return nil, model.Page{}, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, model.Page{}, err
		}
		out = append(out, *u)
	}
	return out, model.NewPage(page, limit, total), rows.Err()
}

// PendingDealers lists dealer accounts awaiting verification.
func (r *UserRepo) PendingDealers(ctx context.Context, page, limit int) ([]model.User, model.Page, error) {
	page, limit = ClampPage(page, limit)
	const where = "WHERE deleted_at IS NULL AND is_dealer = 1 AND COALESCE(is_verified,0) = 0"
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users "+where).Scan(&total); err != nil {
		return nil, model.Page{}, err
	}
	rows, err := r.db.QueryContext(ctx, userSelect+" "+where+" ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?",
		limit, offset(page, limit))
	if err != nil {
		return nil, model.Page{}, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, model.Page{}, err
		}
		out = append(out, *u)
	}
	return out, model.NewPage(page, limit, total), rows.Err()
}

// Count returns the number of active users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE deleted_at IS NULL").Scan(&n)
	return n, err
}

// Summary returns the public view of a seller.
func (r *UserRepo) Summary(ctx context.Context, id uint64) (*model.UserSummary, error) {
	var s model.UserSummary
	err := r.db.QueryRowContext(ctx, `SELECT id, COALESCE(full_name,''), COALESCE(user_type,'individual'),
		COALESCE(profile_pic,''), COALESCE(is_verified,0), COALESCE(company_name,''), phone_number
		FROM users WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&s.ID, &s.FullName, &s.UserType, &s.ProfilePic, &s.IsVerified, &s.CompanyName, &s.PhoneNumber)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &s, nil
}
