package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ  = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*created_at\s*$`
	byLoginQ = `(?s)^SELECT\s+id,\s*username,\s*password_hash,.*s3_secret_access_key,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`
	byIDQ    = `(?s)^SELECT\s+id,\s*username,\s*password_hash,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	updateQ  = `(?s)^UPDATE\s+users\s+SET\s+s3_name\s*=\s*\$2,.*s3_secret_access_key\s*=\s*\$6\s+WHERE\s+id\s*=\s*\$1\s*$`
)

var userCols = []string{"id", "username", "password_hash", "s3_name", "s3_endpoint", "s3_region", "s3_access_key_id", "s3_secret_access_key", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("alice", "$2a$hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-42", now))

	got, err := repo.Create(context.Background(), &models.User{UserName: "alice", PasswordHash: "$2a$hash"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-42" || got.UserName != "alice" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs("alice", "h").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", PasswordHash: "h"})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs("alice", "h").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", PasswordHash: "h"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(byLoginQ).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "alice", "hash", "alice-photos", "https://s3.example.com", "us-east-1", "AKIA", "aa:bb", now))

	u, err := repo.GetUserByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByLogin error: %v", err)
	}
	want := models.StorageCredentials{
		Name: "alice-photos", Endpoint: "https://s3.example.com", Region: "us-east-1",
		AccessKeyID: "AKIA", SecretAccessKeyEncrypted: "aa:bb",
	}
	if u.ID != "u-1" || u.UserName != "alice" || u.PasswordHash != "hash" || u.Storage != want {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byLoginQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetUserByLogin(context.Background(), "ghost"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByID_EmptyStorage(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).
		WithArgs("u-2").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-2", "bob", "hash", "", "", "", "", "", time.Now()))

	u, err := repo.GetByID(context.Background(), "u-2")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if u.Storage.Complete() {
		t.Fatalf("fresh user must have empty storage: %+v", u.Storage)
	}
}

func TestGetByID_MalformedID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs("nope").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs("u-3").WillReturnError(errors.New("conn reset"))

	_, err := repo.GetByID(context.Background(), "u-3")
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestUpdateStorageCredentials(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	c := models.StorageCredentials{Name: "b", Endpoint: "e", Region: "r", AccessKeyID: "k", SecretAccessKeyEncrypted: "iv:ct"}
	mock.ExpectExec(updateQ).
		WithArgs("u-1", "b", "e", "r", "k", "iv:ct").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.UpdateStorageCredentials(context.Background(), "u-1", c)
	if err != nil {
		t.Fatalf("UpdateStorageCredentials error: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}
}

func TestUpdateStorageCredentials_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).WillReturnError(errors.New("db down"))
	if _, err := repo.UpdateStorageCredentials(context.Background(), "u-1", models.StorageCredentials{}); err == nil {
		t.Fatal("expected exec error")
	}

	mock.ExpectExec(updateQ).WillReturnResult(sqlmock.NewErrorResult(errors.New("no count")))
	if _, err := repo.UpdateStorageCredentials(context.Background(), "u-1", models.StorageCredentials{}); err == nil {
		t.Fatal("expected rows affected error")
	}
}
