package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`^INSERT\s+INTO\s+files\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8\)$`).
		WithArgs("f1", "u1", "s1", "notes.pdf", "application/pdf", int64(2048), "users/u1/2026/10/14/x", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.File{
		ID: "f1", UserID: "u1", SubscriptionID: "s1", Name: "notes.pdf", ContentType: "application/pdf",
		Size: 2048, StoragePath: "users/u1/2026/10/14/x", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+files`).WillReturnError(errors.New("disk full"))

	err := repo.Create(context.Background(), &models.File{ID: "f1"})
	if err == nil || !regexp.MustCompile(`error performing sql request: .*disk full`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cols := []string{"id", "user_id", "subscription_id", "name", "content_type", "size", "storage_path", "created_at"}
	mock.ExpectQuery(`FROM\s+files\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("f1", "u1", "s1", "a.txt", "text/plain", int64(5), "p", time.Now()))

	f, err := repo.GetByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.SubscriptionID != "s1" || f.Size != 5 {
		t.Fatalf("unexpected file: %+v", f)
	}

	mock.ExpectQuery(`FROM\s+files`).WithArgs("f2").WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "f2"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cols := []string{"id", "user_id", "subscription_id", "name", "content_type", "size", "storage_path", "created_at"}
	mock.ExpectQuery(`WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("f2", "u1", "s1", "b.txt", "text/plain", int64(7), "p2", time.Now()).
			AddRow("f1", "u1", "s1", "a.txt", "text/plain", int64(5), "p1", time.Now()))

	got, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f2" {
		t.Fatalf("unexpected files: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+files\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "f1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(q).WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "f1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}
