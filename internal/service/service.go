package service

import (
	"context"

	"sunssactor/internal/models"
	"sunssactor/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Sunss exposes the operator command surface: strategy control plus
// manual overrides that talk straight to the hardware.
type Sunss interface {
	Enable(ctx context.Context, strategy string) error
	Disable(ctx context.Context) error
	State(ctx context.Context) (models.ActorState, error)
	DeviceStatus(ctx context.Context) (models.SunssStatus, error)
	Stop(ctx context.Context) error
	Track(ctx context.Context, p TrackParams) error
	StartExposures(ctx context.Context) error
	Raw(ctx context.Context, cmd string) (string, error)
	Strategies() []string
}

// Monitoring exposes the last persisted actor state.
type Monitoring interface {
	GetState(ctx context.Context) (models.ActorState, error)
}

// EventLog exposes the append-only decision log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.TrackerEvent, error)
}

type Service struct {
	Sunss
	Monitoring
	EventLog
	Authorization
}

// NewService wires the repository layer into concrete services. The Sunss
// service is passed in ready-made because it exists before the tracker
// does (the tracker dispatches through it).
func NewService(repos *repository.Repository, sunss Sunss) *Service {
	return &Service{
		Sunss:         sunss,
		Monitoring:    NewMonitoringService(repos.StateRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth),
	}
}
