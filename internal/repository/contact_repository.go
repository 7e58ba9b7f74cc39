package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// ContactRepo stores support form submissions.
type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// Create stores a message.
func (r *ContactRepo) Create(ctx context.Context, m *model.ContactMessage) error {
	var uid any
	if m.UserID != nil {
		uid = *m.UserID
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO contact_us (user_id, name, email, subject, message, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())`, uid, m.Name, m.Email, m.Subject, m.Message)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}
