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

var paymentColumns = []string{"id", "checkout_id", "user_id", "amount", "currency", "description",
	"payment_method", "status", "metadata", "created_at", "updated_at"}

var packageColumnNames = []string{"id", "name", "description", "price", "currency",
	"duration_days", "listing_limit", "is_active"}

func packageRows() *sqlmock.Rows {
	return sqlmock.NewRows(packageColumnNames).AddRow(2, "Gold", "", 49.0, "USD", 30, 10, true)
}

func pendingSubscriptionPayment() *sqlmock.Rows {
	return sqlmock.NewRows(paymentColumns).AddRow(1, "co-1", 9, 49.0, "USD", "",
		"card", "pending", `{"type":"subscription","package_id":"2"}`, time.Now(), nil)
}

func newPaymentService(t *testing.T) (*PaymentService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	x := sqlx.NewDb(db, "mysql")
	return NewPaymentService(repository.NewPaymentRepo(x), repository.NewSubscriptionRepo(x),
		"https://pay.example.com/checkout/", logging.Discard()), mock
}

func TestWebhookReplayIsIgnored(t *testing.T) {
	svc, mock := newPaymentService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE checkout_id = ?")).WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(paymentColumns).AddRow(1, "co-1", 9, 49.0, "USD", "",
			"card", "completed", `{"type":"subscription","package_id":"2"}`, time.Now(), nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_packages WHERE id = ?")).WithArgs(uint64(2)).
		WillReturnRows(packageRows())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status").WithArgs("completed", "co-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := svc.Webhook(context.Background(), "co-1", "COMPLETED"); err != nil {
		t.Fatal(err)
	}
	// no subscription insert may follow a replay
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWebhookRejectsUnknownStatus(t *testing.T) {
	svc, mock := newPaymentService(t)
	if err := svc.Webhook(context.Background(), "co-1", "refunded"); err == nil {
		t.Fatal("expected validation error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckoutBuildsRedirect(t *testing.T) {
	svc, mock := newPaymentService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM payment_methods")).WithArgs("card").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(12, 1))

	co, err := svc.Checkout(context.Background(), 9, CheckoutInput{Amount: 10, PaymentMethod: "card"})
	if err != nil {
		t.Fatal(err)
	}
	if co.PaymentID != 12 || co.RedirectURL != "https://pay.example.com/checkout/"+co.CheckoutID || len(co.CheckoutID) != 36 {
		t.Fatalf("unexpected checkout %+v", co)
	}
}

func TestCheckoutValidatesAmount(t *testing.T) {
	svc, _ := newPaymentService(t)
	if _, err := svc.Checkout(context.Background(), 9, CheckoutInput{Amount: 0, PaymentMethod: "card"}); err == nil {
		t.Fatal("expected amount error")
	}
}

func TestWebhookRollsBackStatusWhenSubscriptionFails(t *testing.T) {
	svc, mock := newPaymentService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE checkout_id = ?")).WithArgs("co-1").
		WillReturnRows(pendingSubscriptionPayment())
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_packages WHERE id = ?")).WithArgs(uint64(2)).
		WillReturnRows(packageRows())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status").WithArgs("completed", "co-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM subscriptions").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO subscriptions").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	if err := svc.Webhook(context.Background(), "co-1", "completed"); err == nil {
		t.Fatal("expected the insert error so the gateway retries")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWebhookCompletesSubscriptionInOneTransaction(t *testing.T) {
	svc, mock := newPaymentService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE checkout_id = ?")).WithArgs("co-1").
		WillReturnRows(pendingSubscriptionPayment())
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscription_packages WHERE id = ?")).WithArgs(uint64(2)).
		WillReturnRows(packageRows())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET status").WithArgs("completed", "co-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM subscriptions").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO subscriptions").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	if err := svc.Webhook(context.Background(), "co-1", "completed"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
