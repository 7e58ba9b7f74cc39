package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// SavedSearchRepo stores per-user saved searches. Parameters are kept as a
// JSON object restricted to model.SavedSearchKeys.
type SavedSearchRepo struct {
	db *sql.DB
}

func NewSavedSearchRepo(db *sql.DB) *SavedSearchRepo { return &SavedSearchRepo{db: db} }

// FilterParams keeps only the saved-search keys with non-empty values.
func FilterParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(model.SavedSearchKeys))
	for _, k := range model.SavedSearchKeys {
		if v, ok := in[k]; ok && v != "" {
			out[k] = v
		}
	}
	return out
}

// Create stores a saved search and returns it with its id.
func (r *SavedSearchRepo) Create(ctx context.Context, s *model.SavedSearch) error {
	s.Params = FilterParams(s.Params)
	raw, err := json.Marshal(s.Params)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO saved_searches
		(user_id, name, search_params, notifications_enabled, created_at) VALUES (?, ?, ?, ?, NOW())`,
		s.UserID, s.Name, string(raw), s.NotificationsEnabled)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// List returns the user's saved searches, newest first.
func (r *SavedSearchRepo) List(ctx context.Context, userID uint64) ([]model.SavedSearch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, COALESCE(name,''), COALESCE(search_params,'{}'),
		COALESCE(notifications_enabled,0), created_at
		FROM saved_searches WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SavedSearch{}
	for rows.Next() {
		var s model.SavedSearch
		var raw string
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &raw, &s.NotificationsEnabled, &s.CreatedAt); err != nil {
			return nil, err
		}
		var params map[string]string
		if json.Unmarshal([]byte(raw), &params) != nil {
			params = map[string]string{}
		}
		s.Params = FilterParams(params)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update changes the name, params or notification toggle of one of the
// user's saved searches. Nil arguments are left as they are.
func (r *SavedSearchRepo) Update(ctx context.Context, userID, id uint64, name *string, params map[string]string, notify *bool) error {
	set := "id = id"
	var args []any
	if name != nil {
		set += ", name = ?"
		args = append(args, *name)
	}
	if params != nil {
		raw, err := json.Marshal(FilterParams(params))
		if err != nil {
			return err
		}
		set += ", search_params = ?"
		args = append(args, string(raw))
	}
	if notify != nil {
		set += ", notifications_enabled = ?"
		args = append(args, *notify)
	}
	args = append(args, id, userID)
	if _, err := r.db.ExecContext(ctx, "UPDATE saved_searches SET "+set+" WHERE id = ? AND user_id = ?", args...); err != nil {
		return err
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM saved_searches WHERE id = ? AND user_id = ?", id, userID).Scan(&one)
	return notFound(err, ErrSavedSearchNotFound)
}

// Delete removes one of the user's saved searches.
func (r *SavedSearchRepo) Delete(ctx context.Context, userID, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM saved_searches WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return affected(res, ErrSavedSearchNotFound)
}
