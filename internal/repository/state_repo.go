package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sunssactor/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

// There is one actor, so one row.
const (
	actorStateRowID = 1

	insertOrUpdateStateSQL = `
		INSERT INTO actor_state (id, strategy, sunss_state, ra_cmd, dec_cmd, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strategy=excluded.strategy,
			sunss_state=excluded.sunss_state,
			ra_cmd=excluded.ra_cmd,
			dec_cmd=excluded.dec_cmd,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, strategy, sunss_state, ra_cmd, dec_cmd, updated_at
		FROM actor_state WHERE id=?
	`
)

// Save updates or inserts the actor_state row (id always 1).
func (r *StateSQLite) Save(ctx context.Context, state models.ActorState) error {
	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		actorStateRowID,
		state.Strategy,
		state.SunssState,
		state.RACmd,
		state.DecCmd,
		tsUTC,
	)
	return err
}

// Load fetches the single actor_state row (id=1). A missing row is not an
// error; the caller gets the zero state and picks its own defaults.
func (r *StateSQLite) Load(ctx context.Context) (models.ActorState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, actorStateRowID)

	var s models.ActorState
	if err := row.Scan(
		&s.ID,
		&s.Strategy,
		&s.SunssState,
		&s.RACmd,
		&s.DecCmd,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ActorState{}, nil
		}
		return models.ActorState{}, err
	}
	s.UpdatedAt = s.UpdatedAt.UTC()

	return s, nil
}
