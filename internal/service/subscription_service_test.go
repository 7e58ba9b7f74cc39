package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

var subscriptionColumns = []string{"id", "user_id", "package_id", "start_date", "end_date", "is_active", "created_at",
	"p_id", "p_name", "p_description", "p_price", "p_currency", "p_duration_days", "p_listing_limit", "p_is_active"}

func newSubscriptionService(t *testing.T) (*SubscriptionService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	x := sqlx.NewDb(db, "mysql")
	subs := repository.NewSubscriptionRepo(x)
	payments := NewPaymentService(repository.NewPaymentRepo(x), subs, "https://pay.example.com/checkout", logging.Discard())
	return NewSubscriptionService(subs, repository.NewCarRepo(db), payments), mock
}

func TestCurrentFallsBackToFreeTier(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cars WHERE user_id = ?")).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery("FROM subscriptions s JOIN subscription_packages").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns))

	e, err := svc.Current(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if e.IsSubscribed || e.Package.ListingLimit != 1 || e.ListingsUsed != 3 || e.ListingsRemaining != -2 {
		t.Fatalf("unexpected entitlement %+v", e)
	}
}

func TestCurrentUsesActivePackage(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cars WHERE user_id = ?")).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	mock.ExpectQuery("FROM subscriptions s JOIN subscription_packages").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(
			5, 9, 2, now, now.AddDate(0, 0, 30), true, now,
			2, "Gold", "", 49.0, "USD", 30, 10, true))

	e, err := svc.Current(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if !e.IsSubscribed || e.SubscriptionID != 5 || e.ListingsRemaining != 6 {
		t.Fatalf("unexpected entitlement %+v", e)
	}
}

func TestSubscribeWhileActiveConflicts(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_packages WHERE id = ?")).WithArgs(uint64(2)).
		WillReturnRows(packageRows())
	mock.ExpectQuery("FROM subscriptions s JOIN subscription_packages").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns).AddRow(
			5, 9, 2, now, now.AddDate(0, 0, 30), true, now,
			2, "Gold", "", 49.0, "USD", 30, 10, true))

	if _, err := svc.Subscribe(context.Background(), 9, 2, "card"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribeUnknownPackage(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_packages WHERE id = ?")).WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(packageColumnNames))

	if _, err := svc.Subscribe(context.Background(), 9, 99, "card"); !errors.Is(err, repository.ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
}

func TestCancelWithoutActiveSubscription(t *testing.T) {
	svc, mock := newSubscriptionService(t)
	mock.ExpectExec("UPDATE subscriptions SET is_active = 0").WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Cancel(context.Background(), 9)
	var v *ValidationError
	if !errors.As(err, &v) || v.Msg != "No active subscription" {
		t.Fatalf("expected validation error, got %v", err)
	}
}
