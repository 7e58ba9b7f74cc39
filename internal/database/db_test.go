package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestDSN(t *testing.T) {
	cfg, err := mysql.ParseDSN(DSN("app", "s3cret", "db", "3306", "market"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.ClientFoundRows {
		t.Fatal("RowsAffected must count matched rows")
	}
	if !cfg.ParseTime || cfg.Loc.String() != "UTC" || cfg.User != "app" || cfg.Passwd != "s3cret" ||
		cfg.Addr != "db:3306" || cfg.DBName != "market" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	cfg, err = mysql.ParseDSN(DSN("app", "", "db", "3306", "market"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Passwd != "" {
		t.Fatalf("expected no password, got %q", cfg.Passwd)
	}
}

func TestWithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	if err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE payments SET status = 'completed'")
		return err
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	if err := WithTx(context.Background(), db, func(*sql.Tx) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
