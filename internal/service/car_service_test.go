package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var carRowColumns = []string{
	"id", "user_id", "ad_title", "description", "car_information", "exterior_color", "interior", "trim",
	"regional_specs", "body_type", "condition", "badges", "kilometers", "location", "year",
	"warranty_date", "accident_history", "number_of_seats", "number_of_doors", "fuel_type",
	"transmission_type", "drive_type", "engine_cc", "make", "model", "price", "extra_features",
	"car_image", "consumption", "no_of_cylinders", "payment_option", "status", "approval",
	"draft", "is_featured", "is_best_pick", "views", "likes", "rejection_reason",
	"admin_rejection_comment", "sold_at", "created_at", "updated_at", "image_url",
}

// carRow returns a complete stored listing in the given state.
func carRow(id, owner uint64, draft bool, approval, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(carRowColumns).AddRow(
		id, owner, "Clean Corolla", "desc", "info", "White", "Beige", "GLi",
		"GCC", "Sedan", "Used", "none", "42000", "Beirut", "2018",
		"2027-01-01", "None", "5", "4", "Petrol",
		"Automatic", "FWD", "1800", "Toyota", "Corolla", "15000.0", `["GPS"]`,
		"/static/uploads/a.png", "", "", "Cash", status, approval,
		draft, false, false, 3, 1, "",
		"", nil, now, now, "",
	)
}

func newCarService(db *sql.DB) *CarService {
	return NewCarService(repository.NewCarRepo(db), repository.NewUserRepo(db), repository.NewBlockRepo(db),
		repository.NewSavedSearchRepo(db), logging.Discard())
}

func expectCar(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM cars c WHERE c.id = ?")).WillReturnRows(rows)
}

func TestCreateMissingFieldInsertsNothing(t *testing.T) {
	db, mock := newMock(t)
	in := fullInput()
	in.Set("payment_option", "")

	_, err := newCarService(db).Create(context.Background(), 3, in, CreateOptions{})
	if err == nil || err.Error() != "payment_option is required" {
		t.Fatalf("expected payment_option error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDraftSkipsValidation(t *testing.T) {
	db, mock := newMock(t)
	draft := true
	in := &model.CarInput{Make: model.Flex("Kia"), Draft: &draft}
	mock.ExpectExec("INSERT INTO cars").WillReturnResult(sqlmock.NewResult(11, 1))

	c, err := newCarService(db).Create(context.Background(), 3, in, CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 11 || c.Lifecycle() != model.LifecycleDraft || c.Price != "0" {
		t.Fatalf("unexpected draft: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateRules(t *testing.T) {
	no := false
	yes := true
	tests := []struct {
		name     string
		owner    uint64
		draft    bool
		approval string
		status   string
		in       *model.CarInput
		wantErr  string
	}{
		{"not owner", 99, false, "approved", "unsold", &model.CarInput{}, ErrNotOwner.Error()},
		{"sold", 1, false, "approved", "sold", &model.CarInput{}, "Cannot update a sold car"},
		{"back to draft", 1, false, "pending", "unsold", &model.CarInput{Draft: &yes}, "Listing cannot be moved back to draft"},
		{"submit incomplete draft", 1, true, "pending", "unsold",
			&model.CarInput{Draft: &no, Trim: model.Flex("")}, "trim is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			expectCar(mock, carRow(5, tt.owner, tt.draft, tt.approval, tt.status))
			_, err := newCarService(db).Update(context.Background(), 5, 1, tt.in)
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestUpdateRejectedResubmits(t *testing.T) {
	db, mock := newMock(t)
	expectCar(mock, carRow(5, 1, false, "rejected", "unsold"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cars SET price = ?, draft = ?, approval = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs("14000.0", false, "pending", "unsold", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCar(mock, carRow(5, 1, false, "pending", "unsold"))

	c, err := newCarService(db).Update(context.Background(), 5, 1, &model.CarInput{Price: model.Flex("14000")})
	if err != nil {
		t.Fatal(err)
	}
	if c.Lifecycle() != model.LifecyclePending {
		t.Fatalf("expected pending, got %s", c.Lifecycle())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateApprovedStaysApproved(t *testing.T) {
	db, mock := newMock(t)
	expectCar(mock, carRow(5, 1, false, "approved", "unsold"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cars SET price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs("14000.0", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCar(mock, carRow(5, 1, false, "approved", "unsold"))

	c, err := newCarService(db).Update(context.Background(), 5, 1, &model.CarInput{Price: model.Flex("14000")})
	if err != nil {
		t.Fatal(err)
	}
	if c.Lifecycle() != model.LifecycleApproved {
		t.Fatalf("expected approved, got %s", c.Lifecycle())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkSoldRequiresApproved(t *testing.T) {
	db, mock := newMock(t)
	expectCar(mock, carRow(5, 1, false, "pending", "unsold"))

	err := newCarService(db).MarkSold(context.Background(), 5, 1)
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetHidesPendingFromStrangers(t *testing.T) {
	db, mock := newMock(t)
	expectCar(mock, carRow(5, 1, false, "pending", "unsold"))

	if _, err := newCarService(db).Get(context.Background(), 5, 2); !errors.Is(err, repository.ErrCarNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCarSlug(t *testing.T) {
	c := &model.Car{ID: 42, Make: "Mercedes Benz", Model: "C 200", Year: "2020"}
	if got := CarSlug(c); got != "mercedes-benz-c-200-2020-42" {
		t.Fatalf("slug = %s", got)
	}
}

func TestBasicSearchWithoutCriteriaSkipsDatabase(t *testing.T) {
	db, mock := newMock(t)
	s := NewSearchService(repository.NewCarRepo(db), nil)

	items, page, err := s.Basic(context.Background(), BasicQuery{Make: "  ", Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 || page.Total != 0 || page.TotalPages != 0 || page.Page != 2 {
		t.Fatalf("unexpected result %v %+v", items, page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
