package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// Pagination bounds shared by every listing endpoint.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampPage normalises page/limit: page<1 becomes 1, limit<1 becomes the
// default and limit is capped at MaxLimit.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// CarFilter carries every optional search criterion. Zero values mean
// "not filtered".
type CarFilter struct {
	Type         string // all | featured | recommended
	Status       string
	Approval     string
	Make         string
	Model        string
	BodyType     string
	Location     string
	FuelType     string
	Transmission string
	Condition    string
	SellerType   string
	Keyword      string
	Featured     *bool

	YearFrom, YearTo       *float64
	PriceFrom, PriceTo     *float64
	MileageFrom, MileageTo *float64

	SortBy string
	Order  string
	Page   int
	Limit  int

	// ViewerID drives is_favorite and the block filter. 0 means anonymous.
	ViewerID uint64
	// IncludeUnapproved lets admin listings see every approval state.
	IncludeUnapproved bool
}

// Query translates the filter into conditions over cars c / users u.
func (f CarFilter) Query() *CarQuery {
	q := &CarQuery{}
	q.Cond("c.draft = 0")
	switch {
	case f.Approval != "":
		q.Eq("c.approval", f.Approval)
	case !f.IncludeUnapproved:
		q.Cond("c.approval = 'approved'")
	}
	if f.Type == "featured" {
		q.Cond("c.is_featured = 1")
	}
	if f.Featured != nil {
		q.Cond("c.is_featured = ?", *f.Featured)
	}
	q.Eq("c.status", f.Status).
		Eq("c.make", f.Make).
		Eq("c.model", f.Model).
		Eq("c.body_type", f.BodyType).
		Eq("c.location", f.Location).
		Eq("c.fuel_type", f.FuelType).
		Eq("c.transmission_type", f.Transmission).
		Eq("c.`condition`", f.Condition).
		Eq("u.user_type", f.SellerType).
		Range(exprYear, f.YearFrom, f.YearTo).
		Range(exprPrice, f.PriceFrom, f.PriceTo).
		Range(exprMileage, f.MileageFrom, f.MileageTo).
		Like(f.Keyword, "c.make", "c.model", "c.description").
		NotBlockedFor(f.ViewerID)
	return q
}

const summarySelect = `SELECT c.id, c.user_id, COALESCE(c.ad_title,''), COALESCE(c.make,''), COALESCE(c.model,''),
	COALESCE(c.year,'0'), COALESCE(c.price,'0'), COALESCE(c.description,''), COALESCE(c.exterior_color,''),
	COALESCE(c.kilometers,'0'), COALESCE(c.fuel_type,''), COALESCE(c.transmission_type,''),
	COALESCE(c.body_type,''), COALESCE(c.` + "`condition`" + `,''), COALESCE(c.location,''),
	COALESCE(c.status,'unsold'), COALESCE(c.approval,'pending'), COALESCE(c.is_featured,0), COALESCE(c.is_best_pick,0),
	COALESCE(c.car_image,''),
	COALESCE((SELECT ci.image_url FROM car_images ci WHERE ci.car_id = c.id ORDER BY ci.id LIMIT 1),''),
	COALESCE(c.trim,''), COALESCE(c.regional_specs,''), COALESCE(c.badges,''),
	COALESCE(DATE_FORMAT(c.warranty_date, '%Y-%m-%d'),''), COALESCE(c.accident_history,''),
	COALESCE(c.number_of_seats,'0'), COALESCE(c.number_of_doors,'0'), COALESCE(c.drive_type,''),
	COALESCE(c.engine_cc,'0'), COALESCE(c.extra_features,'[]'), COALESCE(c.views,0), COALESCE(c.likes,0),
	CASE WHEN f.id IS NULL THEN 0 ELSE 1 END, COALESCE(u.full_name,''), COALESCE(u.user_type,''),
	c.created_at, c.updated_at
	FROM cars c
	LEFT JOIN favorites f ON f.car_id = c.id AND f.user_id = ?
	LEFT JOIN users u ON u.id = c.user_id`

func scanSummary(s rowScanner) (model.CarSummary, error) {
	var c model.CarSummary
	err := s.Scan(&c.ID, &c.UserID, &c.AdTitle, &c.Make, &c.Model,
		&c.Year, &c.Price, &c.Description, &c.Color,
		&c.Mileage, &c.FuelType, &c.Transmission,
		&c.BodyType, &c.Condition, &c.Location,
		&c.Status, &c.Approval, &c.Featured, &c.IsBestPick,
		&c.CarImage, &c.ImageURL,
		&c.Trim, &c.RegionalSpecs, &c.Badges,
		&c.WarrantyDate, &c.AccidentHistory,
		&c.NumberOfSeats, &c.NumberOfDoors, &c.DriveType,
		&c.EngineCC, &c.ExtraFeatures, &c.Views, &c.Likes,
		&c.IsFavorite, &c.SellerName, &c.SellerType,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanSummaries(rows *sql.Rows) ([]model.CarSummary, error) {
	defer rows.Close()
	out := []model.CarSummary{}
	for rows.Next() {
		c, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// querySummaries runs summarySelect with the given tail ("WHERE ... ORDER BY
// ... LIMIT ...") and its arguments.
func (r *CarRepo) querySummaries(ctx context.Context, viewerID uint64, tail string, args ...any) ([]model.CarSummary, error) {
	rows, err := r.db.QueryContext(ctx, summarySelect+" "+tail, append([]any{viewerID}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Search executes a filtered, sorted and paginated listing query. The count
// query shares the WHERE so total always matches the filter.
func (r *CarRepo) Search(ctx context.Context, f CarFilter) ([]model.CarSummary, model.Page, error) {
	page, limit := ClampPage(f.Page, f.Limit)
	where, args := f.Query().Where()

	var total int64
	countSQL := "SELECT COUNT(*) FROM cars c LEFT JOIN users u ON u.id = c.user_id " + where
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, model.Page{}, err
	}
	pg := model.NewPage(page, limit, total)
	if total == 0 {
		return []model.CarSummary{}, pg, nil
	}

	tail := where + " " + orderBy(f.SortBy, f.Order) + " LIMIT ? OFFSET ?"
	items, err := r.querySummaries(ctx, f.ViewerID, tail, append(args, limit, offset(page, limit))...)
	if err != nil {
		return nil, model.Page{}, err
	}
	return items, pg, nil
}
