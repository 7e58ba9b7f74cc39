package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// FavoriteRepo maintains the favorites table together with cars.likes.
type FavoriteRepo struct {
	db   *sql.DB
	cars *CarRepo
}

func NewFavoriteRepo(db *sql.DB, cars *CarRepo) *FavoriteRepo {
	return &FavoriteRepo{db: db, cars: cars}
}

// Add favorites a car. Adding twice is a no-op and does not bump likes
// again. Reports whether a new row was created.
func (r *FavoriteRepo) Add(ctx context.Context, userID, carID uint64) (created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var one int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM cars WHERE id = ?", carID).Scan(&one); err != nil {
		err = notFound(err, ErrCarNotFound)
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT IGNORE INTO favorites (user_id, car_id, created_at) VALUES (?, ?, NOW())", userID, carID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	if err = r.cars.AdjustLikes(ctx, tx, carID, 1); err != nil {
		return false, err
	}
	return true, nil
}

// Remove unfavorites a car. ErrNoChange when it was not a favorite.
func (r *FavoriteRepo) Remove(ctx context.Context, userID, carID uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE user_id = ? AND car_id = ?", userID, carID)
	if err != nil {
		return err
	}
	if err = affected(res, ErrNoChange); err != nil {
		return err
	}
	err = r.cars.AdjustLikes(ctx, tx, carID, -1)
	return err
}

// List returns the user's favorited listings, newest favorite first.
func (r *FavoriteRepo) List(ctx context.Context, userID uint64) ([]model.CarSummary, error) {
	return r.cars.querySummaries(ctx, userID,
		"JOIN favorites mine ON mine.car_id = c.id AND mine.user_id = ? ORDER BY mine.created_at DESC, c.id DESC", userID)
}
