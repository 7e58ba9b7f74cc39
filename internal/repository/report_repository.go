package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// ReportRepo stores user complaints and the moderation queue built on them.
type ReportRepo struct {
	db *sqlx.DB
}

func NewReportRepo(db *sqlx.DB) *ReportRepo { return &ReportRepo{db: db} }

const reportColumns = `id, reporter_id, reported_user_id, car_id, COALESCE(reason,'') AS reason,
	COALESCE(details,'') AS details, status, resolved_by, resolved_at, created_at`

// Create files a report in the pending state.
func (r *ReportRepo) Create(ctx context.Context, rep *model.UserReport) error {
	rep.Status = model.ReportPending
	res, err := r.db.NamedExecContext(ctx, `INSERT INTO user_reports
		(reporter_id, reported_user_id, car_id, reason, details, status, created_at)
		VALUES (:reporter_id, :reported_user_id, :car_id, :reason, :details, :status, NOW())`, rep)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rep.ID = uint64(id)
	return nil
}

// List pages through reports, optionally filtered by status.
func (r *ReportRepo) List(ctx context.Context, status string, page, limit int) ([]model.UserReport, model.Page, error) {
	page, limit = ClampPage(page, limit)
	where := ""
	var args []any
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, status)
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM user_reports "+where, args...); err != nil {
		return nil, model.Page{}, err
	}
	out := []model.UserReport{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+reportColumns+" FROM user_reports "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset(page, limit))...)
	if err != nil {
		return nil, model.Page{}, err
	}
	return out, model.NewPage(page, limit, total), nil
}

// AgainstUser lists the reports filed about one account.
func (r *ReportRepo) AgainstUser(ctx context.Context, userID uint64) ([]model.UserReport, error) {
	out := []model.UserReport{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+reportColumns+" FROM user_reports WHERE reported_user_id = ? ORDER BY created_at DESC", userID)
	return out, err
}

// Resolve closes a pending report. ErrNoChange when already resolved.
func (r *ReportRepo) Resolve(ctx context.Context, id, adminID uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE user_reports SET status = ?, resolved_by = ?, resolved_at = NOW()
		WHERE id = ? AND status <> ?`, model.ReportResolved, adminID, id, model.ReportResolved)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var one int
	if err := r.db.GetContext(ctx, &one, "SELECT 1 FROM user_reports WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReportNotFound
		}
		return err
	}
	return ErrNoChange
}

// ReportedUsers aggregates reports per reported account, most reported first.
func (r *ReportRepo) ReportedUsers(ctx context.Context, page, limit int) ([]model.ReportedUser, model.Page, error) {
	page, limit = ClampPage(page, limit)
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(DISTINCT reported_user_id) FROM user_reports"); err != nil {
		return nil, model.Page{}, err
	}
	out := []model.ReportedUser{}
	err := r.db.SelectContext(ctx, &out, `SELECT u.id AS user_id, COALESCE(u.full_name,'') AS full_name,
		u.phone_number, COUNT(r.id) AS report_count, COALESCE(u.is_banned,0) AS is_banned,
		MAX(r.created_at) AS last_reported_at
		FROM user_reports r JOIN users u ON u.id = r.reported_user_id
		GROUP BY u.id, u.full_name, u.phone_number, u.is_banned
		ORDER BY report_count DESC, last_reported_at DESC
		LIMIT ? OFFSET ?`, limit, offset(page, limit))
	if err != nil {
		return nil, model.Page{}, err
	}
	return out, model.NewPage(page, limit, total), nil
}

// CountPending returns the number of open reports.
func (r *ReportRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM user_reports WHERE status = ?", model.ReportPending)
	return n, err
}
