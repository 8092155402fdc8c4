// Package tracker turns the 1 Hz telescope status stream into start/stop
// decisions for SuNSS and dispatches them.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sunssactor/internal/ephem"
	"sunssactor/internal/logger"
	"sunssactor/internal/models"
)

// Dispatcher carries a strategy decision out to the stage controller and
// the exposure-control actor.
type Dispatcher interface {
	StartExposures(ctx context.Context) error
	StartTracking(ctx context.Context, raDeg, decDeg float64) error
	Stop(ctx context.Context) error
}

// StateStore persists the actor state so a restart reinstalls the same
// strategy.
type StateStore interface {
	Save(ctx context.Context, st models.ActorState) error
}

// EventStore records decisions and failures for later querying.
type EventStore interface {
	Append(ctx context.Context, e models.TrackerEvent) error
}

// Tracker owns the active observing strategy. Exactly one goroutine (Run)
// feeds it status updates; the strategy state is only ever mutated there.
// The mutex covers the strategy swap from the operator API.
type Tracker struct {
	mu       sync.Mutex
	strategy Strategy
	state    State
	gen      uint64 // bumped on every strategy swap

	disp   Dispatcher
	audit  *AuditLog
	states StateStore
	events EventStore
	log    *logger.Logger

	// injectable for tests; default to ephem.SunIsDown and time.Now
	sunIsDown func(time.Time) bool
	now       func() time.Time
}

// New builds a tracker with the named strategy installed (empty name
// selects the default).
func New(strategyName string, disp Dispatcher, audit *AuditLog, states StateStore, events EventStore, log *logger.Logger) (*Tracker, error) {
	strat, err := NewStrategy(strategyName)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		strategy:  strat,
		state:     NewState(),
		disp:      disp,
		audit:     audit,
		states:    states,
		events:    events,
		log:       log,
		sunIsDown: ephem.SunIsDown,
		now:       time.Now,
	}, nil
}

// Run drains the status feed until the context is canceled or the feed
// closes. Envelopes are handled strictly in arrival order.
func (t *Tracker) Run(ctx context.Context, feed <-chan models.RawStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-feed:
			if !ok {
				return
			}
			t.OnUpdate(ctx, raw)
		}
	}
}

// OnUpdate handles one status envelope: normalize, ask the strategy,
// log the decision, dispatch it. Nothing in here may kill the loop; all
// failures degrade to a "boom:" decision line.
func (t *Tracker) OnUpdate(ctx context.Context, raw models.RawStatus) {
	now := t.now()
	ts := now.Format("2006-01-02T15:04:05")

	snap, err := Normalize(raw)
	if err != nil {
		decision := fmt.Sprintf("boom: %v", err)
		t.appendAll(ts + " " + decision)
		t.log.Warnw("status update rejected", "err", err)
		return
	}

	t.mu.Lock()
	strat, gen := t.strategy, t.gen
	prev := t.state
	next, act, decision := t.decide(strat, prev, snap, now)
	t.state = next
	t.mu.Unlock()

	msg := fmt.Sprintf("%s %0.6f %0.6f %0.6f %0.6f %s %s %s %0.2f %s %s",
		ts, snap.RACmd, snap.DecCmd, snap.RA, snap.Dec,
		snap.RAOffset, snap.DecOffset, snap.Shutter, snap.Altitude, snap.DriveMode,
		decision)
	t.appendAll(msg)
	if act == ActionNone {
		return
	}
	t.appendAction(msg)

	if err := t.dispatch(ctx, act, snap); err != nil {
		t.log.Errorw("dispatch failed", "action", act.String(), "err", err)
		t.recordEvent(ctx, "ERROR", fmt.Sprintf("%s failed: %v", act, err), nil)
		// Leave the previous state installed so the same condition fires
		// again on the next snapshot (unless the strategy was swapped
		// while we were dispatching).
		t.mu.Lock()
		if t.gen == gen {
			t.state = prev
		}
		t.mu.Unlock()
		return
	}

	t.recordEvent(ctx, eventType(act), decision, map[string]any{
		"ra_cmd":  snap.RACmd,
		"dec_cmd": snap.DecCmd,
		"drive":   snap.DriveMode,
	})
	t.persist(ctx, strat.Name(), next, now)
}

// decide runs the strategy over the snapshot. A panic inside Update is
// absorbed into a diagnostic decision and the previous state stands.
func (t *Tracker) decide(strat Strategy, st State, snap models.StatusSnapshot, now time.Time) (next State, act Action, decision string) {
	next = st
	defer func() {
		if r := recover(); r != nil {
			next, act = st, ActionNone
			decision = fmt.Sprintf("boom: %v", r)
		}
	}()

	// The ephemeris check costs tens of milliseconds, so hand the
	// strategy a memoized thunk instead of a result.
	var sunKnown, sunDown bool
	sun := func() bool {
		if !sunKnown {
			sunDown = t.sunIsDown(now)
			sunKnown = true
		}
		return sunDown
	}

	next, act = strat.Update(st, snap, sun)
	decision = decisionText(act, snap)
	return next, act, decision
}

func decisionText(act Action, snap models.StatusSnapshot) string {
	if act == ActionStartTrack {
		return fmt.Sprintf("track ra=%0.6f dec=%0.6f", snap.RACmd, snap.DecCmd)
	}
	return act.String()
}

func eventType(act Action) string {
	switch act {
	case ActionStop:
		return "STOP"
	case ActionStart:
		return "START"
	case ActionStartTrack:
		return "TRACK"
	default:
		return "ERROR"
	}
}

func (t *Tracker) dispatch(ctx context.Context, act Action, snap models.StatusSnapshot) error {
	switch act {
	case ActionStop:
		return t.disp.Stop(ctx)
	case ActionStart:
		return t.disp.StartExposures(ctx)
	case ActionStartTrack:
		return t.disp.StartTracking(ctx, snap.RACmd, snap.DecCmd)
	default:
		return nil
	}
}

// SetStrategy atomically replaces the active strategy with a fresh
// instance of the named variant. State never carries over. Unknown names
// leave the current strategy and its state untouched.
func (t *Tracker) SetStrategy(ctx context.Context, name string) error {
	strat, err := NewStrategy(name)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.strategy = strat
	t.state = NewState()
	t.gen++
	t.mu.Unlock()

	now := t.now()
	t.log.Infow("strategy installed", "strategy", strat.Name())
	t.recordEvent(ctx, "STRATEGY", "strategy set to "+strat.Name(), nil)
	t.persist(ctx, strat.Name(), NewState(), now)
	return nil
}

// Snapshot reports the current actor state.
func (t *Tracker) Snapshot() models.ActorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.ActorState{
		ID:         1,
		Strategy:   t.strategy.Name(),
		SunssState: t.state.Sunss,
		RACmd:      t.state.RACmd,
		DecCmd:     t.state.DecCmd,
		UpdatedAt:  t.now().UTC(),
	}
}

func (t *Tracker) persist(ctx context.Context, strategy string, st State, now time.Time) {
	if t.states == nil {
		return
	}
	err := t.states.Save(ctx, models.ActorState{
		ID:         1,
		Strategy:   strategy,
		SunssState: st.Sunss,
		RACmd:      st.RACmd,
		DecCmd:     st.DecCmd,
		UpdatedAt:  now.UTC(),
	})
	if err != nil {
		t.log.Warnw("state save failed", "err", err)
	}
}

func (t *Tracker) recordEvent(ctx context.Context, typ, desc string, meta map[string]any) {
	if t.events == nil {
		return
	}
	err := t.events.Append(ctx, models.TrackerEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  t.now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		t.log.Warnw("event append failed", "err", err)
	}
}

func (t *Tracker) appendAll(line string) {
	if t.audit == nil {
		return
	}
	if err := t.audit.Append(line); err != nil {
		t.log.Warnw("audit write failed", "err", err)
	}
}

func (t *Tracker) appendAction(line string) {
	if t.audit == nil {
		return
	}
	if err := t.audit.AppendAction(line); err != nil {
		t.log.Warnw("audit write failed", "err", err)
	}
}
