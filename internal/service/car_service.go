package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/storage"
)

// CreateOptions tunes Create for non-interactive callers.
type CreateOptions struct {
	// SkipRequired stores the row even when required fields are missing.
	SkipRequired bool
	// Lifecycle overrides the resulting state (bulk import). Empty means
	// draft or pending depending on the input.
	Lifecycle model.Lifecycle
}

// CarDetail is the full listing page.
type CarDetail struct {
	Car     *model.Car         `json:"car"`
	Seller  *model.UserSummary `json:"seller,omitempty"`
	Similar []model.CarSummary `json:"similar_cars"`
	Slug    string             `json:"slug"`
}

// CarService implements the listing lifecycle on top of the repositories.
type CarService struct {
	cars     *repository.CarRepo
	users    *repository.UserRepo
	blocks   *repository.BlockRepo
	searches *repository.SavedSearchRepo
	log      *logrus.Logger
}

func NewCarService(cars *repository.CarRepo, users *repository.UserRepo, blocks *repository.BlockRepo,
	searches *repository.SavedSearchRepo, log *logrus.Logger) *CarService {
	return &CarService{cars: cars, users: users, blocks: blocks, searches: searches, log: log}
}

// Create validates, normalises and stores a listing.
func (s *CarService) Create(ctx context.Context, userID uint64, in *model.CarInput, opts CreateOptions) (*model.Car, error) {
	c, err := s.prepare(userID, in, opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.cars.Create(ctx, c); err != nil {
		return nil, err
	}
	if err := s.cars.AddImages(ctx, c.ID, canonicalImages(in.Images)); err != nil {
		return nil, err
	}
	return c, nil
}

// prepare turns input into a row ready for insertion.
func (s *CarService) prepare(userID uint64, in *model.CarInput, opts CreateOptions) (*model.Car, error) {
	draft := in.Draft != nil && *in.Draft
	if !draft && !opts.SkipRequired {
		if err := ValidateRequired(userID, in.Get); err != nil {
			return nil, err
		}
	}
	c := BuildCar(userID, in)

	life := model.LifecyclePending
	switch {
	case opts.Lifecycle != "":
		life = opts.Lifecycle
	case draft:
		life = model.LifecycleDraft
	}
	// a client supplied approval is ignored; only bulk import sets one
	c.Draft, c.Approval, c.Status = life.Columns()
	return c, nil
}

// CreateTx is Create on a caller's transaction (bulk import).
func (s *CarService) CreateTx(ctx context.Context, tx repository.Execer, userID uint64, in *model.CarInput, opts CreateOptions) (*model.Car, error) {
	c, err := s.prepare(userID, in, opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.cars.CreateTx(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.cars.AddImagesTx(ctx, tx, c.ID, canonicalImages(in.Images)); err != nil {
		return nil, err
	}
	return c, nil
}

func canonicalImages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if p := storage.CanonicalImagePath(u); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Update applies a sparse patch from the owner. Only provided fields
// change. Clearing draft on a draft validates the merged record and submits
// it for approval; editing a rejected listing resubmits it.
func (s *CarService) Update(ctx context.Context, carID, userID uint64, in *model.CarInput) (*model.Car, error) {
	c, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}
	cur := c.Lifecycle()
	if cur == model.LifecycleSold {
		return nil, Invalid("Cannot update a sold car")
	}

	next := cur
	if in.Draft != nil {
		switch {
		case *in.Draft && cur != model.LifecycleDraft:
			return nil, Invalid("Listing cannot be moved back to draft")
		case !*in.Draft && cur == model.LifecycleDraft:
			next = model.LifecyclePending
		}
	}
	if cur == model.LifecycleRejected {
		next = model.LifecyclePending
	}
	if next != model.LifecycleDraft {
		if err := ValidateRequired(c.UserID, mergedValues(c, in)); err != nil {
			return nil, err
		}
	}

	set := PatchAssignments(in)
	if next != cur {
		if !cur.CanTransition(next) {
			return nil, Invalid(fmt.Sprintf("Cannot move listing from %s to %s", cur, next))
		}
		d, a, st := next.Columns()
		set = append(set,
			repository.Assignment{Column: "draft", Value: d},
			repository.Assignment{Column: "approval", Value: a},
			repository.Assignment{Column: "status", Value: st})
	}
	if err := s.cars.UpdateFields(ctx, carID, set); err != nil {
		return nil, err
	}
	if in.Images != nil {
		if err := s.cars.DeleteImages(ctx, carID); err != nil {
			return nil, err
		}
		if err := s.cars.AddImages(ctx, carID, canonicalImages(in.Images)); err != nil {
			return nil, err
		}
	}
	return s.cars.GetByID(ctx, carID)
}

// Delete archives and removes the owner's listing. Admins delete through
// AdminService.DeleteCar.
func (s *CarService) Delete(ctx context.Context, carID, userID uint64) error {
	c, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return err
	}
	if !CanDeleteCar(c.UserID, userID, nil) {
		return repository.ErrForbidden
	}
	return s.cars.DeleteArchive(ctx, carID)
}

// MarkSold moves the owner's approved listing to sold.
func (s *CarService) MarkSold(ctx context.Context, carID, userID uint64) error {
	c, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return repository.ErrForbidden
	}
	if !c.Lifecycle().CanTransition(model.LifecycleSold) {
		return Invalid("Only approved listings can be marked as sold")
	}
	if err := s.cars.MarkSold(ctx, carID, userID); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Invalid("Only approved listings can be marked as sold")
		}
		return err
	}
	return nil
}

// Get returns the listing page. Listings that are not public are visible
// only to their owner; blocked viewers get not found.
func (s *CarService) Get(ctx context.Context, carID, viewerID uint64) (*CarDetail, error) {
	c, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	owner := viewerID != 0 && viewerID == c.UserID
	if !owner {
		if l := c.Lifecycle(); l != model.LifecycleApproved && l != model.LifecycleSold {
			return nil, repository.ErrCarNotFound
		}
		if viewerID != 0 {
			blocked, err := s.blocks.Between(ctx, viewerID, c.UserID)
			if err != nil {
				return nil, err
			}
			if blocked {
				return nil, repository.ErrCarNotFound
			}
		}
		if err := s.cars.IncrementViews(ctx, carID); err != nil {
			s.log.WithError(err).WithField("car_id", carID).Warn("increment views failed")
		} else {
			c.Views++
		}
	}
	if c.Images, err = s.cars.Images(ctx, carID); err != nil {
		return nil, err
	}
	d := &CarDetail{Car: c, Slug: CarSlug(c)}
	if seller, err := s.users.Summary(ctx, c.UserID); err == nil {
		d.Seller = seller
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if d.Similar, err = s.cars.Similar(ctx, c, viewerID, 5); err != nil {
		return nil, err
	}
	return d, nil
}

// CarSlug builds "make-model-year-id".
func CarSlug(c *model.Car) string {
	return slug.Make(fmt.Sprintf("%s %s %s %d", c.Make, c.Model, c.Year, c.ID))
}

// List runs a public listing query.
func (s *CarService) List(ctx context.Context, f repository.CarFilter) ([]model.CarSummary, model.Page, error) {
	return s.cars.Search(ctx, f)
}

// Featured returns featured listings.
func (s *CarService) Featured(ctx context.Context, viewerID uint64, limit int) ([]model.CarSummary, error) {
	_, limit = repository.ClampPage(1, limit)
	return s.cars.Featured(ctx, viewerID, limit)
}

// Similar returns listings like carID.
func (s *CarService) Similar(ctx context.Context, carID, viewerID uint64, limit int) ([]model.CarSummary, error) {
	c, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	_, limit = repository.ClampPage(1, limit)
	return s.cars.Similar(ctx, c, viewerID, limit)
}

// Recommended derives suggestions from the user's saved searches and falls
// back to featured listings.
func (s *CarService) Recommended(ctx context.Context, userID uint64, limit int) ([]model.CarSummary, error) {
	_, limit = repository.ClampPage(1, limit)
	searches, err := s.searches.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(searches) > 5 {
		searches = searches[:5]
	}
	out, err := s.cars.Recommended(ctx, userID, searches, limit)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		return out, nil
	}
	return s.cars.Featured(ctx, userID, limit)
}

// UserCars groups the owner's listings.
func (s *CarService) UserCars(ctx context.Context, userID uint64) (model.UserCars, error) {
	return s.cars.ListByUser(ctx, userID)
}

// Stats counts the owner's listings per state.
func (s *CarService) Stats(ctx context.Context, userID uint64) (model.ListingStats, error) {
	return s.cars.Stats(ctx, userID)
}

// AddImages attaches images to the owner's listing.
func (s *CarService) AddImages(ctx context.Context, carID, userID uint64, urls []string) ([]model.CarImage, error) {
	c, err := s.cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}
	if err := s.cars.AddImages(ctx, carID, canonicalImages(urls)); err != nil {
		return nil, err
	}
	return s.cars.Images(ctx, carID)
}
