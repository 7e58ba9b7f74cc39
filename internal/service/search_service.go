package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

// BasicQuery is the quick search form.
type BasicQuery struct {
	Make     string
	Model    string
	BodyType string
	Location string
	Page     int
	Limit    int
	ViewerID uint64
}

func (q BasicQuery) empty() bool {
	return strings.TrimSpace(q.Make) == "" && strings.TrimSpace(q.Model) == "" &&
		strings.TrimSpace(q.BodyType) == "" && strings.TrimSpace(q.Location) == ""
}

// SearchService serves the public search endpoints.
type SearchService struct {
	cars    *repository.CarRepo
	lookups *repository.LookupRepo
}

func NewSearchService(cars *repository.CarRepo, lookups *repository.LookupRepo) *SearchService {
	return &SearchService{cars: cars, lookups: lookups}
}

// Basic searches unsold approved listings by make, model, body type and
// location. Without any criterion it returns an empty page and does not
// touch the database.
func (s *SearchService) Basic(ctx context.Context, q BasicQuery) ([]model.CarSummary, model.Page, error) {
	page, limit := repository.ClampPage(q.Page, q.Limit)
	if q.empty() {
		return []model.CarSummary{}, model.NewPage(page, limit, 0), nil
	}
	return s.cars.Search(ctx, repository.CarFilter{
		Status:   model.StatusUnsold,
		Make:     strings.TrimSpace(q.Make),
		Model:    strings.TrimSpace(q.Model),
		BodyType: strings.TrimSpace(q.BodyType),
		Location: strings.TrimSpace(q.Location),
		Page:     page,
		Limit:    limit,
		ViewerID: q.ViewerID,
	})
}

// Advanced runs the full filter over unsold approved listings unless the
// caller asked for a specific status.
func (s *SearchService) Advanced(ctx context.Context, f repository.CarFilter) ([]model.CarSummary, model.Page, error) {
	if f.Status == "" {
		f.Status = model.StatusUnsold
	}
	f.IncludeUnapproved = false
	f.Approval = ""
	return s.cars.Search(ctx, f)
}

// Suggestions autocompletes q against makes, models and locations. Queries
// shorter than two characters yield empty lists.
func (s *SearchService) Suggestions(ctx context.Context, q string) (model.Suggestions, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < 2 {
		return model.Suggestions{Makes: []string{}, Models: []string{}, Locations: []string{}}, nil
	}
	return s.lookups.Suggestions(ctx, q, 5)
}
