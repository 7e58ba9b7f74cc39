package repository

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/car-marketplace/internal/config"
	"github.com/iliyamo/car-marketplace/internal/database"
)

func TestMakesRewritesLegacyImagePaths(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM makes").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "image"}).
			AddRow(1, "Toyota", "api/uploads/toyota.png").
			AddRow(2, "BMW", "static/uploads/bmw.png"))

	items, err := NewLookupRepo(sqlx.NewDb(db, "mysql")).Makes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Image != "static/uploads/toyota.png" || items[1].Image != "static/uploads/bmw.png" {
		t.Fatalf("unexpected images: %+v", items)
	}
}

func TestLookupListRejectsUnknownNames(t *testing.T) {
	db, _ := newMock(t)
	_, err := NewLookupRepo(sqlx.NewDb(db, "mysql")).List(context.Background(), "cars; --")
	if !errors.Is(err, ErrUnknownLookup) {
		t.Fatalf("expected ErrUnknownLookup, got %v", err)
	}
}

func TestLookupListUsesMappedTable(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM no_of_doors ORDER BY no_of_doors")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "image"}).AddRow(1, "4", ""))

	items, err := NewLookupRepo(sqlx.NewDb(db, "mysql")).List(context.Background(), "number_of_doors")
	if err != nil || len(items) != 1 || items[0].Name != "4" {
		t.Fatalf("got %+v, %v", items, err)
	}
}

func TestReportResolveTwice(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE user_reports SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM user_reports WHERE id = ?")).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := NewReportRepo(sqlx.NewDb(db, "mysql")).Resolve(context.Background(), 4, 1)
	if !errors.Is(err, ErrNoChange) {
		t.Fatalf("expected ErrNoChange, got %v", err)
	}
}

func TestFilterParamsKeepsOnlySavedKeys(t *testing.T) {
	got := FilterParams(map[string]string{"make": "Kia", "price_from": "100", "location": "", "body_type": "SUV"})
	if len(got) != 2 || got["make"] != "Kia" || got["body_type"] != "SUV" {
		t.Fatalf("unexpected params: %v", got)
	}
}

func TestMessageRepoConversations(t *testing.T) {
	store, err := database.OpenChatStore(config.ChatStoreConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "chat.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	repo := NewMessageRepo(store)
	ctx := context.Background()

	first, err := repo.Create(ctx, 2, 1, "is it still available?")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(ctx, 1, 2, "yes"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(ctx, 3, 1, "best price?"); err != nil {
		t.Fatal(err)
	}

	n, err := repo.UnreadCount(ctx, 1)
	if err != nil || n != 2 {
		t.Fatalf("unread = %d, %v", n, err)
	}

	if _, err := repo.MarkRead(ctx, first.ID, 3); !errors.Is(err, ErrNoChange) {
		t.Fatalf("non-receiver must not mark read, got %v", err)
	}
	m, err := repo.MarkRead(ctx, first.ID, 1)
	if err != nil || !m.IsRead {
		t.Fatalf("mark read: %+v %v", m, err)
	}

	convs, err := repo.Conversations(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %+v", convs)
	}
	for _, c := range convs {
		switch c.OtherUserID {
		case 2:
			if c.UnreadCount != 0 {
				t.Errorf("thread with 2 should be read: %+v", c)
			}
		case 3:
			if c.UnreadCount != 1 || c.LastMessage != "best price?" {
				t.Errorf("unexpected thread with 3: %+v", c)
			}
		}
	}

	thread, page, err := repo.Thread(ctx, 1, 2, 1, 10)
	if err != nil || len(thread) != 2 || page.Total != 2 || thread[0].Body != "is it still available?" {
		t.Fatalf("thread: %+v %+v %v", thread, page, err)
	}
}
