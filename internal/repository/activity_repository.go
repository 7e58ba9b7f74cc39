package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// ActivityRepo is the append-only admin audit log.
type ActivityRepo struct {
	db *sqlx.DB
}

func NewActivityRepo(db *sqlx.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Append writes one audit row.
func (r *ActivityRepo) Append(ctx context.Context, e *model.ActivityLog) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO admin_activity_log
		(admin_id, action, description, ip_address, user_agent, created_at)
		VALUES (:admin_id, :action, :description, :ip_address, :user_agent, NOW())`, e)
	return err
}

// List pages through the log, newest first, with the acting admin's name.
func (r *ActivityRepo) List(ctx context.Context, page, limit int) ([]model.ActivityLog, model.Page, error) {
	page, limit = ClampPage(page, limit)
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM admin_activity_log"); err != nil {
		return nil, model.Page{}, err
	}
	out := []model.ActivityLog{}
	err := r.db.SelectContext(ctx, &out, `SELECT l.id, l.admin_id, COALESCE(a.username,'') AS admin_username,
		l.action, COALESCE(l.description,'') AS description, COALESCE(l.ip_address,'') AS ip_address,
		COALESCE(l.user_agent,'') AS user_agent, l.created_at
		FROM admin_activity_log l LEFT JOIN admins a ON a.id = l.admin_id
		ORDER BY l.created_at DESC, l.id DESC LIMIT ? OFFSET ?`, limit, offset(page, limit))
	if err != nil {
		return nil, model.Page{}, err
	}
	return out, model.NewPage(page, limit, total), nil
}
