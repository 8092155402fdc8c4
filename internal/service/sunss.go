package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sunssactor/internal/ephem"
	"sunssactor/internal/logger"
	"sunssactor/internal/models"
	"sunssactor/internal/tracker"
)

// StageController is the slice of the stage client the service needs.
type StageController interface {
	Stop(ctx context.Context) error
	Track(ctx context.Context, haDeg, decDeg float64, unix int64, speed int) error
	Status(ctx context.Context) (models.SunssStatus, error)
	Command(ctx context.Context, cmd string, timeout time.Duration) (string, error)
}

// ExposureController is the slice of the IIC client the service needs.
type ExposureController interface {
	SunssModule(ctx context.Context) (int, error)
	Start(ctx context.Context, sm int) error
	Finish(ctx context.Context) error
}

// StrategyController is what the service needs from the tracker.
type StrategyController interface {
	SetStrategy(ctx context.Context, name string) error
	Snapshot() models.ActorState
}

const (
	sidereal   = 1
	rawTimeout = 5 * time.Second
)

var (
	ErrTrackerNotReady    = errors.New("tracker is not running yet")
	ErrAlreadyIntegrating = errors.New("exposures already integrating")
	errEmptyCommand       = errors.New("raw command is empty")
)

// SunssService is the hub between the tracker and the hardware: it
// implements the tracker's Dispatcher so strategy decisions reach the
// stage and IIC, and the operator command surface on top of the same
// clients.
type SunssService struct {
	stage StageController
	exp   ExposureController
	log   *logger.Logger

	mu          sync.Mutex
	trk         StrategyController
	integrating bool

	now func() time.Time
}

func NewSunssService(stage StageController, exp ExposureController, log *logger.Logger) *SunssService {
	return &SunssService{
		stage: stage,
		exp:   exp,
		log:   log,
		now:   time.Now,
	}
}

// Ensure both roles are satisfied at compile time.
var (
	_ Sunss              = (*SunssService)(nil)
	_ tracker.Dispatcher = (*SunssService)(nil)
)

// BindTracker installs the tracker once it exists. The service is built
// first because the tracker dispatches through it.
func (s *SunssService) BindTracker(trk StrategyController) {
	s.mu.Lock()
	s.trk = trk
	s.mu.Unlock()
}

func (s *SunssService) tracker() (StrategyController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trk == nil {
		return nil, ErrTrackerNotReady
	}
	return s.trk, nil
}

//
// Dispatcher: strategy decisions land here.
//

// StartExposures finds the spectrograph module fed by SuNSS and starts
// SPS exposures on it. Only one exposure sequence runs at a time; a
// start while one is integrating fails with ErrAlreadyIntegrating.
func (s *SunssService) StartExposures(ctx context.Context) error {
	s.mu.Lock()
	if s.integrating {
		s.mu.Unlock()
		return ErrAlreadyIntegrating
	}
	s.integrating = true
	s.mu.Unlock()

	sm, err := s.exp.SunssModule(ctx)
	if err == nil {
		err = s.exp.Start(ctx, sm)
	}
	if err != nil {
		s.mu.Lock()
		s.integrating = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// StartTracking winds the stage to the current hour angle of the
// commanded pointing, starts it tracking, then starts exposures.
func (s *SunssService) StartTracking(ctx context.Context, raDeg, decDeg float64) error {
	ha, unix := ephem.RAToHA(raDeg, s.now())
	if err := s.stage.Track(ctx, ha, decDeg, unix, sidereal); err != nil {
		return err
	}
	return s.StartExposures(ctx)
}

// Stop halts the stage and, when an exposure is integrating, wraps it
// up. A failed wrap-up is logged but not fatal; the exposure times out
// on its own.
func (s *SunssService) Stop(ctx context.Context) error {
	if err := s.stage.Stop(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	wasIntegrating := s.integrating
	s.integrating = false
	s.mu.Unlock()
	if wasIntegrating {
		if err := s.exp.Finish(ctx); err != nil {
			s.log.Warnw("finish exposure failed", "err", err)
		}
	}
	return nil
}

//
// Operator surface.
//

// Enable installs the named observing strategy; an empty name selects
// the default.
func (s *SunssService) Enable(ctx context.Context, strategy string) error {
	trk, err := s.tracker()
	if err != nil {
		return err
	}
	return trk.SetStrategy(ctx, strategy)
}

// Disable installs the idle strategy and stops the hardware.
func (s *SunssService) Disable(ctx context.Context) error {
	trk, err := s.tracker()
	if err != nil {
		return err
	}
	if err := trk.SetStrategy(ctx, tracker.StrategyIdle); err != nil {
		return err
	}
	return s.Stop(ctx)
}

// State reports the live actor state.
func (s *SunssService) State(ctx context.Context) (models.ActorState, error) {
	trk, err := s.tracker()
	if err != nil {
		return models.ActorState{}, err
	}
	return trk.Snapshot(), nil
}

// DeviceStatus queries the stage controller directly.
func (s *SunssService) DeviceStatus(ctx context.Context) (models.SunssStatus, error) {
	return s.stage.Status(ctx)
}

// Track drives the stage manually from the given pointing, then starts
// exposures on it.
func (s *SunssService) Track(ctx context.Context, p TrackParams) error {
	speed := p.Speed
	if speed <= 0 {
		speed = sidereal
	}
	ha, unix := ephem.RAToHA(p.RA, s.now())
	if err := s.stage.Track(ctx, ha, p.Dec, unix, speed); err != nil {
		return err
	}
	return s.StartExposures(ctx)
}

// Raw passes a single command line through to the stage controller.
// Meant for engineering use; the reply comes back verbatim.
func (s *SunssService) Raw(ctx context.Context, cmd string) (string, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", errEmptyCommand
	}
	return s.stage.Command(ctx, cmd, rawTimeout)
}

// Strategies lists the strategy names Enable accepts.
func (s *SunssService) Strategies() []string {
	return tracker.StrategyNames()
}
