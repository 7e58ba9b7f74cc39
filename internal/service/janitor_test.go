package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/repository"
)

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return 1, p.err
}

func TestJanitorSweepsSessionsAndOTPs(t *testing.T) {
	db, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admin_sessions WHERE expires_at <= NOW()")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM otp_requests WHERE expires_at <= NOW()")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	j := &Janitor{
		Targets: map[string]Purger{
			"admin_sessions": repository.NewSessionRepo(db),
			"otp_requests":   repository.NewOTPRepo(db),
		},
		Log: logging.Discard(),
	}
	j.Sweep(context.Background())
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestJanitorKeepsGoingAfterFailure(t *testing.T) {
	bad := &countingPurger{err: errors.New("deadlock")}
	good := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Janitor{
		Interval: time.Millisecond,
		Targets:  map[string]Purger{"bad": bad, "good": good},
		Log:      logging.Discard(),
	}
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if bad.calls < 2 || good.calls < 2 {
		t.Fatalf("expected repeated sweeps, got bad=%d good=%d", bad.calls, good.calls)
	}
}
