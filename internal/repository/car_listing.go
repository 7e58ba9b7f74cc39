package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// Featured returns up to limit approved, unsold, featured listings.
func (r *CarRepo) Featured(ctx context.Context, viewerID uint64, limit int) ([]model.CarSummary, error) {
	q := (&CarQuery{}).
		Cond("c.draft = 0").
		Cond("c.approval = 'approved'").
		Cond("c.status = 'unsold'").
		Cond("c.is_featured = 1").
		NotBlockedFor(viewerID)
	where, args := q.Where()
	return r.querySummaries(ctx, viewerID, where+" ORDER BY c.created_at DESC, c.id DESC LIMIT ?", append(args, limit)...)
}

// Similar looks for public listings like c, widening from make+model to make
// and finally to any unsold listing until something is found.
func (r *CarRepo) Similar(ctx context.Context, c *model.Car, viewerID uint64, limit int) ([]model.CarSummary, error) {
	tiers := []func(q *CarQuery){
		func(q *CarQuery) { q.Cond("c.make = ?", c.Make).Cond("c.model = ?", c.Model) },
		func(q *CarQuery) { q.Cond("c.make = ?", c.Make) },
		func(q *CarQuery) {},
	}
	for i, tier := range tiers {
		if i < 2 && c.Make == "" {
			continue
		}
		q := (&CarQuery{}).
			Cond("c.draft = 0").
			Cond("c.approval = 'approved'").
			Cond("c.status = 'unsold'").
			Cond("c.id <> ?", c.ID).
			NotBlockedFor(viewerID)
		tier(q)
		where, args := q.Where()
		out, err := r.querySummaries(ctx, viewerID, where+" ORDER BY c.created_at DESC, c.id DESC LIMIT ?", append(args, limit)...)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return []model.CarSummary{}, nil
}

// Recommended matches the user's saved searches (make/model/body_type) and
// flags each hit as recommended. Nil with no error when nothing matches.
func (r *CarRepo) Recommended(ctx context.Context, userID uint64, searches []model.SavedSearch, limit int) ([]model.CarSummary, error) {
	q := (&CarQuery{}).
		Cond("c.draft = 0").
		Cond("c.approval = 'approved'").
		Cond("c.status = 'unsold'").
		Cond("c.user_id <> ?", userID).
		NotBlockedFor(userID)

	var ors []string
	var orArgs []any
	for _, s := range searches {
		for _, key := range []string{"make", "model", "body_type"} {
			if v := s.Params[key]; v != "" {
				ors = append(ors, "c."+key+" = ?")
				orArgs = append(orArgs, v)
			}
		}
	}
	if len(ors) == 0 {
		return nil, nil
	}
	q.Cond("("+strings.Join(ors, " OR ")+")", orArgs...)
	where, args := q.Where()
	out, err := r.querySummaries(ctx, userID, where+" ORDER BY c.created_at DESC, c.id DESC LIMIT ?", append(args, limit)...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Recommended = true
	}
	return out, nil
}

// ListByUser groups every listing of userID for the owner's dashboard.
func (r *CarRepo) ListByUser(ctx context.Context, userID uint64) (model.UserCars, error) {
	out := model.UserCars{ApprovedPending: []model.Car{}, Sold: []model.Car{}, Draft: []model.Car{}}
	rows, err := r.db.QueryContext(ctx, carSelect+" WHERE c.user_id = ? ORDER BY c.created_at DESC, c.id DESC", userID)
	if err != nil {
		return out, err
	}
	cars, err := scanCars(rows)
	if err != nil {
		return out, err
	}
	for _, c := range cars {
		switch c.Lifecycle() {
		case model.LifecycleDraft:
			out.Draft = append(out.Draft, c)
		case model.LifecycleSold:
			out.Sold = append(out.Sold, c)
		case model.LifecycleApproved, model.LifecyclePending:
			out.ApprovedPending = append(out.ApprovedPending, c)
		}
	}
	return out, nil
}

// PublicByUser lists a seller's approved listings for their public profile.
func (r *CarRepo) PublicByUser(ctx context.Context, userID, viewerID uint64) ([]model.CarSummary, error) {
	q := (&CarQuery{}).
		Cond("c.user_id = ?", userID).
		Cond("c.draft = 0").
		Cond("c.approval = 'approved'").
		NotBlockedFor(viewerID)
	where, args := q.Where()
	return r.querySummaries(ctx, viewerID, where+" ORDER BY c.created_at DESC, c.id DESC", args...)
}

// Stats counts a user's non-draft listings per state.
func (r *CarRepo) Stats(ctx context.Context, userID uint64) (model.ListingStats, error) {
	var s model.ListingStats
	err := r.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(approval = 'approved' AND status <> 'sold'), 0),
		COALESCE(SUM(status = 'sold'), 0),
		COALESCE(SUM(approval = 'rejected'), 0),
		COALESCE(SUM(approval = 'pending' AND status <> 'sold'), 0)
		FROM cars WHERE user_id = ? AND draft = 0`, userID).
		Scan(&s.Total, &s.Active, &s.Sold, &s.Rejected, &s.Pending)
	return s, err
}

// CountActiveListings counts what a subscription plan limits: non-draft
// listings that are approved or awaiting approval.
func (r *CarRepo) CountActiveListings(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cars WHERE user_id = ? AND draft = 0 AND approval IN ('approved','pending')", userID).Scan(&n)
	return n, err
}

// Pending lists listings awaiting moderation, oldest first.
func (r *CarRepo) Pending(ctx context.Context, page, limit int) ([]model.CarSummary, model.Page, error) {
	page, limit = ClampPage(page, limit)
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cars c WHERE c.draft = 0 AND c.approval = 'pending' AND c.status <> 'sold'").Scan(&total); err != nil {
		return nil, model.Page{}, err
	}
	items, err := r.querySummaries(ctx, 0,
		"WHERE c.draft = 0 AND c.approval = 'pending' AND c.status <> 'sold' ORDER BY c.created_at ASC, c.id ASC LIMIT ? OFFSET ?",
		limit, offset(page, limit))
	if err != nil {
		return nil, model.Page{}, err
	}
	return items, model.NewPage(page, limit, total), nil
}

// Recent returns the newest non-draft listings regardless of approval.
func (r *CarRepo) Recent(ctx context.Context, limit int) ([]model.CarSummary, error) {
	return r.querySummaries(ctx, 0, "WHERE c.draft = 0 ORDER BY c.created_at DESC, c.id DESC LIMIT ?", limit)
}

// DashboardCounts fills the car counters of the admin dashboard.
func (r *CarRepo) DashboardCounts(ctx context.Context, s *model.DashboardStats) error {
	return r.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(approval = 'pending' AND status <> 'sold'), 0),
		COALESCE(SUM(approval = 'approved' AND status <> 'sold'), 0),
		COALESCE(SUM(status = 'sold'), 0)
		FROM cars WHERE draft = 0`).
		Scan(&s.TotalCars, &s.PendingCars, &s.ApprovedCars, &s.SoldCars)
}
