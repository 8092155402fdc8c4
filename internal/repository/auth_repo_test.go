package repository_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"sunssactor/internal/repository"
)

func TestUserRepository_Create_ReturnsInsertID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, password_hash) VALUES (?, ?)")).
		WithArgs("observer", "hash").
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Create("observer", "hash")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != 7 {
		t.Fatalf("Create() id = %d, want 7", id)
	}
}

func TestUserRepository_Create_ExecErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("observer", "hash").
		WillReturnError(errors.New("constraint failed"))

	if _, err := repo.Create("observer", "hash"); err == nil {
		t.Fatalf("Create() expected error, got nil")
	}
}

func TestUserRepository_GetByUsername_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash"}).
		AddRow(3, "observer", "hash")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash FROM users WHERE username = ?")).
		WithArgs("observer").
		WillReturnRows(rows)

	u, err := repo.GetByUsername("observer")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if u == nil || u.ID != 3 || u.Username != "observer" || u.PasswordHash != "hash" {
		t.Fatalf("GetByUsername() = %+v", u)
	}
}

func TestUserRepository_GetByUsername_NotFoundReturnsNilNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash FROM users")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}))

	u, err := repo.GetByUsername("ghost")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if u != nil {
		t.Fatalf("GetByUsername() = %+v, want nil", u)
	}
}
