package service

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/model"
)

func sheet(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestParseSheet(t *testing.T) {
	buf := sheet(t, [][]any{
		{"Make", "Model", "Price", "Draft", "Status", "Unknown Column", "car_image"},
		{"Toyota", "Yaris", "9000", "false", "sold", "x", "ignored.png"},
		{"Kia", "Rio", "", "TRUE", "", "", ""},
	})
	rows, err := ParseSheet(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Get("make") != "Toyota" || rows[0].Get("price") != "9000" || rows[0].CarImage != nil || rows[0].Status != nil {
		t.Fatalf("row 1 parsed wrong: make=%q price=%q", rows[0].Get("make"), rows[0].Get("price"))
	}
	if importLifecycle(rows[0]) != model.LifecyclePending || importLifecycle(rows[1]) != model.LifecycleDraft {
		t.Fatalf("lifecycles: %s %s", importLifecycle(rows[0]), importLifecycle(rows[1]))
	}
}

func TestParseSheetRejectsGarbage(t *testing.T) {
	_, err := ParseSheet(bytes.NewBufferString("not a workbook"))
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImportRollsBackOnlyFailingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT import_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO cars").WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec("RELEASE SAVEPOINT import_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT import_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO cars").WillReturnError(errors.New("Data too long for column 'make'"))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT import_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	svc := NewImportService(db, newCarService(db), logging.Discard())
	res, err := svc.Import(context.Background(), 4, []*model.CarInput{
		{Make: model.Flex("Toyota")},
		{Make: model.Flex("Kia")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 1 || res.Created[0] != 21 {
		t.Fatalf("created = %v", res.Created)
	}
	if len(res.Failed) != 1 || res.Failed[0].Row != 3 || res.Failed[0].Error != "could not store row" {
		t.Fatalf("failed = %+v", res.Failed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestImportedSoldRowStaysPending(t *testing.T) {
	db, mock := newMock(t)
	args := make([]driver.Value, 0, 33)
	args = append(args, uint64(4))
	for i := 0; i < 29; i++ {
		args = append(args, sqlmock.AnyArg())
	}
	args = append(args, model.StatusUnsold, model.ApprovalPending, false)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT import_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO cars").WithArgs(args...).WillReturnResult(sqlmock.NewResult(30, 1))
	mock.ExpectExec("RELEASE SAVEPOINT import_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rows, err := ParseSheet(sheet(t, [][]any{
		{"Make", "Model", "Status", "Approval"},
		{"Toyota", "Yaris", "sold", "approved"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	svc := NewImportService(db, newCarService(db), logging.Discard())
	res, err := svc.Import(context.Background(), 4, rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 1 || len(res.Failed) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
