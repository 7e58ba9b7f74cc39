package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/car-marketplace/internal/database"
	"github.com/iliyamo/car-marketplace/internal/model"
)

// MaxImportRows bounds one spreadsheet upload.
const MaxImportRows = 1000

// RowError reports one spreadsheet row that was not imported. Row is the
// 1-based sheet row, the header being row 1.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarises a bulk upload.
type ImportResult struct {
	Created []uint64   `json:"created"`
	Failed  []RowError `json:"failed"`
}

// ImportService loads listings from an xlsx sheet.
type ImportService struct {
	db   *sql.DB
	cars *CarService
	log  *logrus.Logger
}

func NewImportService(db *sql.DB, cars *CarService, log *logrus.Logger) *ImportService {
	return &ImportService{db: db, cars: cars, log: log}
}

// ParseSheet reads the first sheet of an xlsx workbook into car inputs.
// Header cells name columns; unknown headers are ignored.
func ParseSheet(r io.Reader) ([]*model.CarInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, Invalid("Invalid spreadsheet: " + err.Error())
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, Invalid("Spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, Invalid("Spreadsheet has no data rows")
	}
	if len(rows)-1 > MaxImportRows {
		return nil, Invalid(fmt.Sprintf("Spreadsheet has more than %d rows", MaxImportRows))
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}

	out := make([]*model.CarInput, 0, len(rows)-1)
	for _, row := range rows[1:] {
		in := &model.CarInput{}
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			switch col := header[i]; col {
			case "draft":
				d := isTruthy(cell)
				in.Draft = &d
			case "status", "approval":
				// state comes from moderation
			case "car_image":
				// images are attached after upload
			default:
				in.Set(col, cell)
			}
		}
		out = append(out, in)
	}
	return out, nil
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// importLifecycle picks the state an imported listing starts in. A row is
// a draft when flagged so and pending otherwise; sheet status text never
// skips moderation.
func importLifecycle(in *model.CarInput) model.Lifecycle {
	if in.Draft != nil && *in.Draft {
		return model.LifecycleDraft
	}
	return model.LifecyclePending
}

// Import stores every row for userID in one transaction. Each row runs
// under its own savepoint: a failing row is rolled back and reported while
// the others commit.
func (s *ImportService) Import(ctx context.Context, userID uint64, rows []*model.CarInput) (*ImportResult, error) {
	res := &ImportResult{Created: []uint64{}, Failed: []RowError{}}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, in := range rows {
			sp := fmt.Sprintf("import_row_%d", i)
			if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
				return err
			}
			c, err := s.cars.CreateTx(ctx, tx, userID, in, CreateOptions{SkipRequired: true, Lifecycle: importLifecycle(in)})
			if err != nil {
				if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
					return rbErr
				}
				s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "row": i + 2}).Warn("import row failed")
				res.Failed = append(res.Failed, RowError{Row: i + 2, Error: rowMessage(err)})
				continue
			}
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
				return err
			}
			res.Created = append(res.Created, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rowMessage keeps validation text and hides driver errors.
func rowMessage(err error) string {
	if v, ok := err.(*ValidationError); ok {
		return v.Msg
	}
	return "could not store row"
}
