package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sunssactor/internal/models"
	"sunssactor/internal/repository"
)

func TestStateSQLite_Save_SetsUTCNowWhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	state := models.ActorState{
		Strategy:   "guiding",
		SunssState: models.SunssTracking,
		RACmd:      150.0,
		DecCmd:     20.0,
		// UpdatedAt is zero
	}

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO actor_state")).
		WithArgs(
			1, // id constant
			state.Strategy,
			state.SunssState,
			state.RACmd,
			state.DecCmd,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ConvertsGivenTimeToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	hst := time.FixedZone("HST", -10*3600)
	original := time.Date(2026, 8, 27, 0, 30, 0, 0, hst)
	expectedUTC := original.UTC()

	state := models.ActorState{
		Strategy:   "untracked",
		SunssState: models.SunssRunning,
		UpdatedAt:  original,
	}

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(expectedUTC) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO actor_state")).
		WithArgs(1, state.Strategy, state.SunssState, 0.0, 0.0, isExactUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO actor_state")).
		WithArgs(1, "idle", models.SunssStopped, 0.0, 0.0, sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	state := models.ActorState{Strategy: "idle", SunssState: models.SunssStopped}
	if err := repo.Save(context.Background(), state); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestStateSQLite_Load_NoRowsReturnsZeroValueAndNilError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, strategy, sunss_state, ra_cmd, dec_cmd, updated_at")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	var zero models.ActorState
	if !reflect.DeepEqual(got, zero) {
		t.Fatalf("Load() expected zero state, got: %+v", got)
	}
}

func TestStateSQLite_Load_HappyPathConvertsToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	hst := time.FixedZone("HST", -10*3600)
	nonUTC := time.Date(2026, 8, 27, 1, 15, 0, 0, hst)

	cols := []string{"id", "strategy", "sunss_state", "ra_cmd", "dec_cmd", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(1, "guiding", models.SunssTracking, 150.0, 20.0, nonUTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, strategy, sunss_state, ra_cmd, dec_cmd, updated_at")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.ID != 1 || got.Strategy != "guiding" || got.SunssState != models.SunssTracking ||
		got.RACmd != 150.0 || got.DecCmd != 20.0 {
		t.Fatalf("Load() unexpected fields: %+v", got)
	}
	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("Load() UpdatedAt not UTC: %v", got.UpdatedAt.Location())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
