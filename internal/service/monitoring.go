package service

import (
	"context"
	"time"

	"sunssactor/internal/models"
	"sunssactor/internal/repository"
	"sunssactor/internal/tracker"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
}

func NewMonitoringService(stateRepo repository.StateRepo) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo}
}

// GetState returns the latest persisted actor state. If nothing has been
// persisted yet, returns a baseline stopped snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.ActorState, error) {
	state, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.ActorState{}, err
	}
	if state.ID == 0 {
		return s.baselineState(), nil
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

// baselineState is the snapshot for an uninitialized DB.
func (s *MonitoringService) baselineState() models.ActorState {
	return models.ActorState{
		ID:         1, // DB schema enforces single-row state with id=1
		Strategy:   tracker.DefaultStrategy,
		SunssState: models.SunssStopped,
		UpdatedAt:  time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
