package repository

import (
	"context"
	"database/sql"
	"time"

	"sunssactor/internal/models"
	"sunssactor/internal/repository/db"
)

// InitDB opens the SQLite file and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.ActorState) error
	Load(ctx context.Context) (models.ActorState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.TrackerEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.TrackerEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
