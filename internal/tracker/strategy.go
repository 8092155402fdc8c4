package tracker

import (
	"errors"
	"fmt"

	"sunssactor/internal/models"
)

// Strategy names accepted by NewStrategy and the enable command.
const (
	StrategyIdle      = "idle"
	StrategyUntracked = "untracked"
	StrategyGuiding   = "guiding"

	// DefaultStrategy is installed when enable names no strategy.
	DefaultStrategy = StrategyUntracked
)

// ErrUnknownStrategy is returned for a strategy name outside the known set.
var ErrUnknownStrategy = errors.New("unknown observing strategy")

// State is the per-strategy-instance record. It is a value: Update
// computes a successor and the tracker commits it only after Update
// returns cleanly, so a failure mid-decision cannot leave it torn.
type State struct {
	RACmd  float64 // commanded pointing at the last start, degrees
	DecCmd float64
	Sunss  string // stopped | running | tracking
}

// NewState returns the initial state for a freshly installed strategy.
func NewState() State {
	return State{Sunss: models.SunssStopped}
}

// Action is the strategy's verdict for one status update.
type Action int

const (
	ActionNone Action = iota
	ActionStop
	ActionStart
	ActionStartTrack
)

func (a Action) String() string {
	switch a {
	case ActionStop:
		return "stop"
	case ActionStart:
		return "startExposures"
	case ActionStartTrack:
		return "track"
	default:
		return ""
	}
}

// Strategy decides, one telescope snapshot at a time, whether SuNSS
// exposures and tracking should start or stop. sunIsDown is evaluated
// lazily; implementations must call it at most once per update.
type Strategy interface {
	Name() string
	Update(st State, snap models.StatusSnapshot, sunIsDown func() bool) (State, Action)
}

// NewStrategy constructs a strategy by name. The empty name selects the
// default. Unknown names fail without side effects.
func NewStrategy(name string) (Strategy, error) {
	if name == "" || name == "default" {
		name = DefaultStrategy
	}
	switch name {
	case StrategyIdle:
		return IdleStrategy{}, nil
	case StrategyUntracked:
		return UntrackedStrategy{}, nil
	case StrategyGuiding:
		return GuidingStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// StrategyNames lists the accepted strategy names.
func StrategyNames() []string {
	return []string{StrategyIdle, StrategyUntracked, StrategyGuiding}
}

func isRunning(st State) bool {
	return st.Sunss != models.SunssStopped
}

// stopSunss arranges to stop SPS exposures and SuNSS tracking.
func stopSunss(st State) (State, Action) {
	st.Sunss = models.SunssStopped
	return st, ActionStop
}

// startSunss arranges to start SPS exposures, and SuNSS tracking when
// doTrack is set. The commanded pointing is squirreled away; some
// strategies can use it.
func startSunss(st State, snap models.StatusSnapshot, doTrack bool) (State, Action) {
	st.RACmd = snap.RACmd
	st.DecCmd = snap.DecCmd
	if doTrack {
		st.Sunss = models.SunssTracking
		return st, ActionStartTrack
	}
	st.Sunss = models.SunssRunning
	return st, ActionStart
}

// IdleStrategy never acts. Installed by the disable command.
type IdleStrategy struct{}

func (IdleStrategy) Name() string { return StrategyIdle }

func (IdleStrategy) Update(st State, _ models.StatusSnapshot, _ func() bool) (State, Action) {
	return st, ActionNone
}

// UntrackedStrategy observes without tracking the sky: whenever the dome
// is open and the sun is below the horizon, take SPS exposures.
type UntrackedStrategy struct{}

func (UntrackedStrategy) Name() string { return StrategyUntracked }

func (UntrackedStrategy) Update(st State, snap models.StatusSnapshot, sunIsDown func() bool) (State, Action) {
	if isRunning(st) {
		// Stop if we close or drop into alt-az pointing mode.
		if snap.Shutter != models.ShutterOpen {
			return stopSunss(st)
		}
		if snap.DriveMode == models.DrivePointing {
			return stopSunss(st)
		}
		// We do not care if we move on the sky.
		return st, ActionNone
	}

	if snap.Shutter != models.ShutterOpen {
		return st, ActionNone
	}
	if snap.DriveMode == models.DrivePointing {
		return st, ActionNone
	}
	// The shutters do get opened during the day.
	if !sunIsDown() {
		return st, ActionNone
	}
	return startSunss(st, snap, false)
}

// GuidingStrategy tracks only while the telescope is actively guiding:
// start SuNSS tracking and exposures when guiding begins, stop them when
// the telescope slews away or the dome closes.
type GuidingStrategy struct{}

func (GuidingStrategy) Name() string { return StrategyGuiding }

func (GuidingStrategy) Update(st State, snap models.StatusSnapshot, sunIsDown func() bool) (State, Action) {
	if isRunning(st) {
		if snap.Shutter != models.ShutterOpen {
			return stopSunss(st)
		}
		// Some observing sequences (seen with FOCAS and HSC) briefly drop
		// out of Guiding to make small adjustments, and mode switches can
		// report a transient Unknown. Only a real departure stops us.
		if snap.DriveMode == models.DriveSlewing || snap.DriveMode == models.DrivePointing {
			return stopSunss(st)
		}
		return st, ActionNone
	}

	if snap.Shutter != models.ShutterOpen {
		return st, ActionNone
	}
	if snap.DriveMode != models.DriveGuiding {
		return st, ActionNone
	}
	if !sunIsDown() {
		return st, ActionNone
	}
	return startSunss(st, snap, true)
}
