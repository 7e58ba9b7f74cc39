package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/model"
)

// LookupRepo reads the reference tables that feed listing forms and search
// filters. They are plain read-only lists so the repo scans straight into
// tagged structs with sqlx.
type LookupRepo struct {
	db *sqlx.DB
}

// NewLookupRepo wraps the shared pool.
func NewLookupRepo(db *sqlx.DB) *LookupRepo {
	return &LookupRepo{db: db}
}

// lookupTable describes one simple reference table.
type lookupTable struct {
	table, column, image string
}

// lookupTables maps the public list name to its table. Names double as the
// keys of the upload option aggregate.
var lookupTables = map[string]lookupTable{
	"body_types":          {"body_types", "body_type", "body_type_image"},
	"locations":           {"locations", "location", ""},
	"colours":             {"colour", "colour", "colour_image"},
	"car_conditions":      {"car_condition", "car_condition", ""},
	"regional_specs":      {"regional_specs", "regional_spec", ""},
	"accident_histories":  {"accident_history", "accident_history", ""},
	"number_of_seats":     {"no_of_seats", "no_of_seats", ""},
	"number_of_doors":     {"no_of_doors", "no_of_doors", ""},
	"number_of_cylinders": {"no_of_cylinders", "no_of_cylinders", ""},
	"fuel_types":          {"fuel_type", "fuel_type", ""},
	"transmission_types":  {"transmission_type", "transmission_type", ""},
	"drive_types":         {"drive_type", "drive_type", ""},
	"extra_features":      {"extra_features", "extra_feature", ""},
	"interiors":           {"interiors", "interior", ""},
	"badges":              {"badges", "badge", ""},
	"payment_options":     {"payment_options", "payment_option", ""},
	"rejection_reasons":   {"car_rejection_reasons", "reason", ""},
	"subjects":            {"subjects", "subject", ""},
}

// LookupNames lists every known reference list in stable order.
func LookupNames() []string {
	return []string{
		"colours", "car_conditions", "locations", "body_types", "badges", "regional_specs",
		"accident_histories", "number_of_seats", "number_of_doors", "number_of_cylinders",
		"fuel_types", "transmission_types", "drive_types", "extra_features", "interiors",
		"payment_options",
	}
}

// ErrUnknownLookup is returned for a list name outside lookupTables.
var ErrUnknownLookup = fmt.Errorf("unknown lookup")

// List returns the rows of a named reference list ordered by value.
func (r *LookupRepo) List(ctx context.Context, name string) ([]model.LookupItem, error) {
	t, ok := lookupTables[name]
	if !ok {
		return nil, ErrUnknownLookup
	}
	img := "''"
	if t.image != "" {
		img = "COALESCE(" + t.image + ", '')"
	}
	// table and column names come from the fixed map above
	q := fmt.Sprintf("SELECT id, COALESCE(%s, '') AS name, %s AS image FROM %s ORDER BY %s",
		t.column, img, t.table, t.column)
	out := []model.LookupItem{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Image = canonicalLookupImage(out[i].Image)
	}
	return out, nil
}

// UploadOptions aggregates every list a listing form needs.
func (r *LookupRepo) UploadOptions(ctx context.Context) (map[string][]model.LookupItem, error) {
	out := make(map[string][]model.LookupItem, len(LookupNames()))
	for _, name := range LookupNames() {
		items, err := r.List(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = items
	}
	return out, nil
}

// Makes lists makes that have artwork.
func (r *LookupRepo) Makes(ctx context.Context) ([]model.MakeItem, error) {
	out := []model.MakeItem{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT id, make_name AS name, COALESCE(image, '') AS image FROM makes WHERE image IS NOT NULL ORDER BY make_name")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Image = canonicalLookupImage(out[i].Image)
	}
	return out, nil
}

// Models lists the models of one make.
func (r *LookupRepo) Models(ctx context.Context, makeName string) ([]model.ModelItem, error) {
	out := []model.ModelItem{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT id, COALESCE(make_id, 0) AS make_id, make_name, model_name FROM models WHERE make_name = ? ORDER BY model_name",
		makeName)
	return out, err
}

// Years lists model years, newest first.
func (r *LookupRepo) Years(ctx context.Context, makeName, modelName string) ([]model.YearItem, error) {
	out := []model.YearItem{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT id, CAST(year AS CHAR) AS year, make_name, model_name FROM years WHERE make_name = ? AND model_name = ? ORDER BY year DESC",
		makeName, modelName)
	return out, err
}

// Trims lists trims of a make/model.
func (r *LookupRepo) Trims(ctx context.Context, makeName, modelName string) ([]model.TrimItem, error) {
	out := []model.TrimItem{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT id, make_name, model_name, trim_name, COALESCE(CAST(year AS CHAR), '') AS year FROM trim WHERE make_name = ? AND model_name = ? ORDER BY trim_name",
		makeName, modelName)
	return out, err
}

// Suggestions returns up to limit distinct makes, models and locations of
// listings containing q.
func (r *LookupRepo) Suggestions(ctx context.Context, q string, limit int) (model.Suggestions, error) {
	out := model.Suggestions{Makes: []string{}, Models: []string{}, Locations: []string{}}
	pattern := "%" + escapeLike(q) + "%"
	for _, col := range []struct {
		name string
		dst  *[]string
	}{{"make", &out.Makes}, {"model", &out.Models}, {"location", &out.Locations}} {
		query := fmt.Sprintf(
			"SELECT DISTINCT %[1]s FROM cars WHERE draft = 0 AND approval = 'approved' AND %[1]s LIKE ? ORDER BY %[1]s LIMIT ?",
			col.name)
		if err := r.db.SelectContext(ctx, col.dst, query, pattern, limit); err != nil {
			return out, err
		}
	}
	return out, nil
}

// canonicalLookupImage rewrites legacy "api/uploads/" prefixes to the
// served "static/uploads/" path.
func canonicalLookupImage(p string) string {
	return strings.Replace(p, "api/uploads/", "static/uploads/", 1)
}
