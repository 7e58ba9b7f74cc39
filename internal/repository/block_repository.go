package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// BlockRepo manages user_blocks. A block hides listings and chat in both
// directions.
type BlockRepo struct {
	db *sql.DB
}

func NewBlockRepo(db *sql.DB) *BlockRepo { return &BlockRepo{db: db} }

// Block records blocker -> blocked. ErrNoChange when it already exists.
func (r *BlockRepo) Block(ctx context.Context, blockerID, blockedID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO user_blocks (blocker_id, blocked_id, created_at) VALUES (?, ?, NOW())", blockerID, blockedID)
	if err != nil {
		return err
	}
	return affected(res, ErrNoChange)
}

// Unblock removes a block. ErrNoChange when there was none.
func (r *BlockRepo) Unblock(ctx context.Context, blockerID, blockedID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM user_blocks WHERE blocker_id = ? AND blocked_id = ?", blockerID, blockedID)
	if err != nil {
		return err
	}
	return affected(res, ErrNoChange)
}

// Between reports whether either user blocked the other.
func (r *BlockRepo) Between(ctx context.Context, a, b uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_blocks
		WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)`, a, b, b, a).Scan(&n)
	return n > 0, err
}

// List returns the accounts blockerID has blocked.
func (r *BlockRepo) List(ctx context.Context, blockerID uint64) ([]model.BlockedUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT u.id, COALESCE(u.full_name,''), COALESCE(u.profile_pic,''), b.created_at
		FROM user_blocks b JOIN users u ON u.id = b.blocked_id
		WHERE b.blocker_id = ? ORDER BY b.created_at DESC`, blockerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BlockedUser{}
	for rows.Next() {
		var b model.BlockedUser
		if err := rows.Scan(&b.UserID, &b.FullName, &b.ProfilePic, &b.BlockedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
