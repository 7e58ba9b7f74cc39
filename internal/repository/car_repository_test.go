package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestCarQueryEmptyRendersNoWhere(t *testing.T) {
	q := &CarQuery{}
	q.Eq("c.make", "  ").Range(exprPrice, nil, nil).Like("", "c.make")
	where, args := q.Where()
	if where != "" || len(args) != 0 {
		t.Fatalf("expected empty clause, got %q %v", where, args)
	}
}

func TestCarFilterQuery(t *testing.T) {
	from, to := 2015.0, 2020.0
	f := CarFilter{Make: "Toyota", YearFrom: &from, YearTo: &to, Keyword: "50%", ViewerID: 9}
	where, args := f.Query().Where()

	for _, frag := range []string{"c.draft = 0", "c.approval = 'approved'", "c.make = ?", exprYear + " >= ?", exprYear + " <= ?", "user_blocks"} {
		if !strings.Contains(where, frag) {
			t.Errorf("missing %q in %s", frag, where)
		}
	}
	if strings.Contains(where, "1=1") || strings.Contains(where, "1=0") {
		t.Errorf("placeholder condition leaked: %s", where)
	}
	// make, two year bounds, three LIKE patterns, two block ids
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d: %v", len(args), args)
	}
	if args[3] != `%50\%%` {
		t.Errorf("keyword not escaped: %v", args[3])
	}
}

func TestCarFilterAdminSeesAllApprovals(t *testing.T) {
	where, _ := CarFilter{IncludeUnapproved: true}.Query().Where()
	if strings.Contains(where, "approval") {
		t.Fatalf("admin listing should not filter approval: %s", where)
	}
}

func TestSortClause(t *testing.T) {
	tests := []struct {
		sortBy, order string
		key, dir      string
	}{
		{"price", "asc", "price", "asc"},
		{"YEAR", "DESC", "year", "desc"},
		{"likes; DROP TABLE cars", "asc", "created_at", "asc"},
		{"", "sideways", "created_at", "desc"},
	}
	for _, tt := range tests {
		key, dir := SortClause(tt.sortBy, tt.order)
		if key != tt.key || dir != tt.dir {
			t.Errorf("SortClause(%q,%q) = %s %s, want %s %s", tt.sortBy, tt.order, key, dir, tt.key, tt.dir)
		}
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct{ page, limit, wantPage, wantLimit int }{
		{0, 0, 1, DefaultLimit},
		{-3, 5, 1, 5},
		{2, 1000, 2, MaxLimit},
	}
	for _, tt := range tests {
		p, l := ClampPage(tt.page, tt.limit)
		if p != tt.wantPage || l != tt.wantLimit {
			t.Errorf("ClampPage(%d,%d) = %d,%d", tt.page, tt.limit, p, l)
		}
	}
}

func TestSearchZeroTotalSkipsRowQuery(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cars c LEFT JOIN users u")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	items, page, err := NewCarRepo(db).Search(context.Background(), CarFilter{Make: "Nope", Page: 3, Limit: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 || page.Total != 0 || page.TotalPages != 0 || page.Limit != MaxLimit || page.Page != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteArchiveCommits(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM cars WHERE id = ? FOR UPDATE")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO deleted_cars \(id, user_id, .*is_best_pick.*admin_rejection_comment.*deleted_at\) SELECT`).
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM car_images").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM favorites").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM cars").WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewCarRepo(db).DeleteArchive(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteArchiveRollsBackOnFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("INSERT INTO deleted_cars").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM car_images").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := NewCarRepo(db).DeleteArchive(context.Background(), 7)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected the delete failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteArchiveMissingCar(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(99).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if err := NewCarRepo(db).DeleteArchive(context.Background(), 99); !errors.Is(err, ErrCarNotFound) {
		t.Fatalf("expected ErrCarNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestApproveDistinguishesMissingFromNotPending(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   error
	}{
		{"not pending", true, ErrNotPending},
		{"missing", false, ErrCarNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta("SET approval = 'approved'")).WithArgs(5).
				WillReturnResult(sqlmock.NewResult(0, 0))
			q := mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM cars WHERE id = ?")).WithArgs(5)
			if tt.exists {
				q.WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
			} else {
				q.WillReturnError(sql.ErrNoRows)
			}
			if err := NewCarRepo(db).Approve(context.Background(), 5); !errors.Is(err, tt.want) {
				t.Fatalf("got %v want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateFieldsOnlyWritesGivenColumns(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cars SET `condition` = ?, price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs("Used", "25000.0", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewCarRepo(db).UpdateFields(context.Background(), 3, []Assignment{{"condition", "Used"}, {"price", "25000.0"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateFieldsIdenticalRewriteIsNotMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cars SET updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM cars WHERE id = ?")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cars SET updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM cars WHERE id = ?")).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	repo := NewCarRepo(db)
	if err := repo.UpdateFields(context.Background(), 3, nil); err != nil {
		t.Fatalf("existing car: %v", err)
	}
	if err := repo.UpdateFields(context.Background(), 4, nil); !errors.Is(err, ErrCarNotFound) {
		t.Fatalf("missing car: expected ErrCarNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFavoriteRemoveWhenNotFavorited(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM favorites").WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewFavoriteRepo(db, NewCarRepo(db))
	if err := repo.Remove(context.Background(), 1, 2); !errors.Is(err, ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFavoriteAddIsIdempotent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM cars WHERE id = ?")).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("INSERT IGNORE INTO favorites").WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	created, err := NewFavoriteRepo(db, NewCarRepo(db)).Add(context.Background(), 1, 2)
	if err != nil || created {
		t.Fatalf("expected no-op, got created=%v err=%v", created, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
