package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// CarRepo encapsulates the queries over cars, car_images and deleted_cars.
type CarRepo struct {
	db *sql.DB
}

// NewCarRepo constructs a CarRepo with the provided DB handle.
func NewCarRepo(db *sql.DB) *CarRepo {
	return &CarRepo{db: db}
}

// DB exposes the pool for callers that need to open a transaction spanning
// several repository calls (bulk import).
func (r *CarRepo) DB() *sql.DB { return r.db }

// carTextColumns are the business columns shared by cars and deleted_cars,
// in insert order.
var carTextColumns = []string{
	"ad_title", "description", "car_information", "exterior_color", "interior", "trim",
	"regional_specs", "body_type", "`condition`", "badges", "kilometers", "location", "year",
	"warranty_date", "accident_history", "number_of_seats", "number_of_doors", "fuel_type",
	"transmission_type", "drive_type", "engine_cc", "make", "model", "price", "extra_features",
	"car_image", "consumption", "no_of_cylinders", "payment_option",
}

// archiveColumns is everything copied into deleted_cars.
var archiveColumns = append(append([]string{"id", "user_id"}, carTextColumns...),
	"status", "approval", "draft", "is_featured", "is_best_pick", "views", "likes",
	"rejection_reason", "admin_rejection_comment", "sold_at", "created_at", "updated_at")

const carSelect = `SELECT c.id, c.user_id,
	COALESCE(c.ad_title,''), COALESCE(c.description,''), COALESCE(c.car_information,''),
	COALESCE(c.exterior_color,''), COALESCE(c.interior,''), COALESCE(c.trim,''),
	COALESCE(c.regional_specs,''), COALESCE(c.body_type,''), COALESCE(c.` + "`condition`" + `,''),
	COALESCE(c.badges,''), COALESCE(c.kilometers,'0'), COALESCE(c.location,''), COALESCE(c.year,'0'),
	DATE_FORMAT(c.warranty_date, '%Y-%m-%d'), COALESCE(c.accident_history,''),
	COALESCE(c.number_of_seats,'0'), COALESCE(c.number_of_doors,'0'), COALESCE(c.fuel_type,''),
	COALESCE(c.transmission_type,''), COALESCE(c.drive_type,''), COALESCE(c.engine_cc,'0'),
	COALESCE(c.make,''), COALESCE(c.model,''), COALESCE(c.price,'0'), COALESCE(c.extra_features,'[]'),
	COALESCE(c.car_image,''), COALESCE(c.consumption,''), COALESCE(c.no_of_cylinders,''),
	COALESCE(c.payment_option,''), COALESCE(c.status,'unsold'), COALESCE(c.approval,'pending'),
	COALESCE(c.draft,0), COALESCE(c.is_featured,0), COALESCE(c.is_best_pick,0),
	COALESCE(c.views,0), COALESCE(c.likes,0), COALESCE(c.rejection_reason,''),
	COALESCE(c.admin_rejection_comment,''), c.sold_at, c.created_at, c.updated_at,
	COALESCE((SELECT ci.image_url FROM car_images ci WHERE ci.car_id = c.id ORDER BY ci.id LIMIT 1),'')
	FROM cars c`

func scanCar(s rowScanner) (*model.Car, error) {
	var c model.Car
	var warranty sql.NullString
	var soldAt sql.NullTime
	if err := s.Scan(&c.ID, &c.UserID,
		&c.AdTitle, &c.Description, &c.CarInformation,
		&c.ExteriorColor, &c.Interior, &c.Trim,
		&c.RegionalSpecs, &c.BodyType, &c.Condition,
		&c.Badges, &c.Kilometers, &c.Location, &c.Year,
		&warranty, &c.AccidentHistory,
		&c.NumberOfSeats, &c.NumberOfDoors, &c.FuelType,
		&c.TransmissionType, &c.DriveType, &c.EngineCC,
		&c.Make, &c.Model, &c.Price, &c.ExtraFeatures,
		&c.CarImage, &c.Consumption, &c.NoOfCylinders,
		&c.PaymentOption, &c.Status, &c.Approval,
		&c.Draft, &c.IsFeatured, &c.IsBestPick,
		&c.Views, &c.Likes, &c.RejectionReason,
		&c.AdminRejectionComment, &soldAt, &c.CreatedAt, &c.UpdatedAt,
		&c.ImageURL,
	); err != nil {
		return nil, err
	}
	if warranty.Valid {
		w := warranty.String
		c.WarrantyDate = &w
	}
	if soldAt.Valid {
		t := soldAt.Time
		c.SoldAt = &t
	}
	return &c, nil
}

func scanCars(rows *sql.Rows) ([]model.Car, error) {
	defer rows.Close()
	out := []model.Car{}
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a normalised car and returns its id.
func (r *CarRepo) Create(ctx context.Context, c *model.Car) (uint64, error) {
	return r.CreateTx(ctx, r.db, c)
}

// CreateTx inserts c using the given executor so it can join a caller's
// transaction.
func (r *CarRepo) CreateTx(ctx context.Context, ex Execer, c *model.Car) (uint64, error) {
	cols := append(append([]string{"user_id"}, carTextColumns...), "status", "approval", "draft")
	vals := c.ColumnValues()
	args := make([]any, 0, len(cols))
	args = append(args, c.UserID)
	for _, col := range carTextColumns {
		name := strings.Trim(col, "`")
		if name == "warranty_date" {
			args = append(args, nullable(c.WarrantyDate))
			continue
		}
		args = append(args, vals[name])
	}
	args = append(args, c.Status, c.Approval, c.Draft)

	q := "INSERT INTO cars (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = uint64(id)
	return c.ID, nil
}

// GetByID fetches a car with its first image. ErrCarNotFound when missing.
func (r *CarRepo) GetByID(ctx context.Context, id uint64) (*model.Car, error) {
	c, err := scanCar(r.db.QueryRowContext(ctx, carSelect+" WHERE c.id = ?", id))
	if err != nil {
		return nil, notFound(err, ErrCarNotFound)
	}
	return c, nil
}

// Assignment is one "column = value" pair of a sparse update.
type Assignment struct {
	Column string
	Value  any
}

// UpdateFields applies a sparse patch: only the given assignments are
// written, plus updated_at. An empty patch only touches updated_at.
func (r *CarRepo) UpdateFields(ctx context.Context, id uint64, set []Assignment) error {
	parts := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+1)
	for _, a := range set {
		col := a.Column
		if col == "condition" {
			col = "`condition`"
		}
		parts = append(parts, col+" = ?")
		args = append(args, a.Value)
	}
	parts = append(parts, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE cars SET "+strings.Join(parts, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	// an identical rewrite reports zero changed rows
	return r.existsOr(ctx, res, id, nil)
}

// MarkSold moves an approved, unsold listing of owner to sold.
func (r *CarRepo) MarkSold(ctx context.Context, id, ownerID uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cars
		SET status = 'sold', sold_at = NOW(), updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND draft = 0 AND approval = 'approved' AND status <> 'sold'`, id, ownerID)
	if err != nil {
		return err
	}
	return affected(res, ErrNoChange)
}

// Approve publishes a pending listing. The state check is part of the
// UPDATE so two concurrent moderators cannot both succeed.
func (r *CarRepo) Approve(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cars
		SET approval = 'approved', status = 'unsold', sold_at = NULL,
		    rejection_reason = NULL, admin_rejection_comment = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND draft = 0 AND approval = 'pending' AND status <> 'sold'`, id)
	if err != nil {
		return err
	}
	return r.pendingMiss(ctx, res, id)
}

// Reject declines a pending listing with a reason and optional comment.
func (r *CarRepo) Reject(ctx context.Context, id uint64, reason, comment string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cars
		SET approval = 'rejected', rejection_reason = ?, admin_rejection_comment = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND draft = 0 AND approval = 'pending' AND status <> 'sold'`, reason, nullableStr(comment), id)
	if err != nil {
		return err
	}
	return r.pendingMiss(ctx, res, id)
}

// pendingMiss tells "no such car" apart from "not pending" after a
// conditional moderation update changed nothing.
func (r *CarRepo) pendingMiss(ctx context.Context, res sql.Result, id uint64) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM cars WHERE id = ?", id).Scan(&one)
	if err != nil {
		return notFound(err, ErrCarNotFound)
	}
	return ErrNotPending
}

// SetFeatured toggles is_featured. ErrNoChange when already in that state.
func (r *CarRepo) SetFeatured(ctx context.Context, id uint64, featured bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cars SET is_featured = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND COALESCE(is_featured,0) <> ?",
		featured, id, featured)
	if err != nil {
		return err
	}
	return r.existsOr(ctx, res, id, ErrNoChange)
}

// SetBestPick flags an approved listing as a best pick.
func (r *CarRepo) SetBestPick(ctx context.Context, id uint64, pick bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cars SET is_best_pick = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND approval = 'approved' AND draft = 0",
		pick, id)
	if err != nil {
		return err
	}
	return r.existsOr(ctx, res, id, ErrNotPending)
}

func (r *CarRepo) existsOr(ctx context.Context, res sql.Result, id uint64, otherwise error) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM cars WHERE id = ?", id).Scan(&one); err != nil {
		return notFound(err, ErrCarNotFound)
	}
	return otherwise
}

// DeleteArchive moves a car into deleted_cars and removes it together with
// its images and favorites, all in one transaction. Any failure rolls the
// whole sequence back.
func (r *CarRepo) DeleteArchive(ctx context.Context, id uint64) (err error) {
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

	// Lock the row so a concurrent edit cannot slip in between copy and delete.
	var one int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM cars WHERE id = ? FOR UPDATE", id).Scan(&one); err != nil {
		err = notFound(err, ErrCarNotFound)
		return err
	}
	cols := strings.Join(archiveColumns, ", ")
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO deleted_cars ("+cols+", deleted_at) SELECT "+cols+", NOW() FROM cars WHERE id = ?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM car_images WHERE car_id = ?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM favorites WHERE car_id = ?", id); err != nil {
		return err
	}
	var res sql.Result
	if res, err = tx.ExecContext(ctx, "DELETE FROM cars WHERE id = ?", id); err != nil {
		return err
	}
	err = affected(res, ErrCarNotFound)
	return err
}

// AddImages stores already canonicalised image URLs for a car.
func (r *CarRepo) AddImages(ctx context.Context, carID uint64, urls []string) error {
	return r.AddImagesTx(ctx, r.db, carID, urls)
}

// AddImagesTx is AddImages on a caller supplied executor.
func (r *CarRepo) AddImagesTx(ctx context.Context, ex Execer, carID uint64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	rows := make([]string, 0, len(urls))
	args := make([]any, 0, 2*len(urls))
	for _, u := range urls {
		rows = append(rows, "(?, ?, NOW())")
		args = append(args, carID, u)
	}
	_, err := ex.ExecContext(ctx, "INSERT INTO car_images (car_id, image_url, created_at) VALUES "+strings.Join(rows, ", "), args...)
	return err
}

// Images lists a car's images in upload order.
func (r *CarRepo) Images(ctx context.Context, carID uint64) ([]model.CarImage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, car_id, image_url, created_at FROM car_images WHERE car_id = ? ORDER BY id", carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CarImage{}
	for rows.Next() {
		var im model.CarImage
		if err := rows.Scan(&im.ID, &im.CarID, &im.ImageURL, &im.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// DeleteImages removes every image row of a car.
func (r *CarRepo) DeleteImages(ctx context.Context, carID uint64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM car_images WHERE car_id = ?", carID)
	return err
}

// IncrementViews bumps the view counter.
func (r *CarRepo) IncrementViews(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE cars SET views = COALESCE(views, 0) + 1 WHERE id = ?", id)
	return err
}

// AdjustLikes adds delta to likes, never going below zero.
func (r *CarRepo) AdjustLikes(ctx context.Context, ex Execer, id uint64, delta int) error {
	if ex == nil {
		ex = r.db
	}
	_, err := ex.ExecContext(ctx, "UPDATE cars SET likes = GREATEST(COALESCE(likes, 0) + ?, 0) WHERE id = ?", delta, id)
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullable(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
