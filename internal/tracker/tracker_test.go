package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sunssactor/internal/logger"
	"sunssactor/internal/models"
)

type fakeDispatcher struct {
	starts   int
	tracks   int
	stops    int
	startErr error
	trackErr error
	stopErr  error
	lastRA   float64
	lastDec  float64
}

func (f *fakeDispatcher) StartExposures(ctx context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakeDispatcher) StartTracking(ctx context.Context, raDeg, decDeg float64) error {
	f.tracks++
	f.lastRA, f.lastDec = raDeg, decDeg
	return f.trackErr
}

func (f *fakeDispatcher) Stop(ctx context.Context) error {
	f.stops++
	return f.stopErr
}

type fakeStateStore struct {
	saved []models.ActorState
	err   error
}

func (f *fakeStateStore) Save(ctx context.Context, st models.ActorState) error {
	f.saved = append(f.saved, st)
	return f.err
}

type fakeEventStore struct {
	events []models.TrackerEvent
}

func (f *fakeEventStore) Append(ctx context.Context, e models.TrackerEvent) error {
	f.events = append(f.events, e)
	return nil
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panic" }

func (panicStrategy) Update(State, models.StatusSnapshot, func() bool) (State, Action) {
	panic("kaboom")
}

var testTime = time.Date(2026, time.August, 27, 10, 30, 0, 0, time.UTC)

func newTestTracker(t *testing.T, strategyName string, disp Dispatcher) (*Tracker, *fakeStateStore, *fakeEventStore, string) {
	t.Helper()
	dir := t.TempDir()
	states := &fakeStateStore{}
	events := &fakeEventStore{}
	trk, err := New(strategyName, disp, NewAuditLog(dir), states, events, logger.Get(logger.ErrorLevel))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	trk.sunIsDown = func(time.Time) bool { return true }
	trk.now = func() time.Time { return testTime }
	trk.audit.now = trk.now
	return trk, states, events, dir
}

func readLog(t *testing.T, dir, unit string) string {
	t.Helper()
	name := filepath.Join(dir, unit+"_"+testTime.Format("2006-01-02")+".log")
	b, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}

func TestOnUpdateStartsAndPersists(t *testing.T) {
	disp := &fakeDispatcher{}
	trk, states, events, dir := newTestTracker(t, StrategyUntracked, disp)

	trk.OnUpdate(context.Background(), rawFixture())

	if disp.starts != 1 {
		t.Fatalf("StartExposures calls = %d, want 1", disp.starts)
	}
	if got := trk.Snapshot().SunssState; got != models.SunssRunning {
		t.Fatalf("state = %s, want running", got)
	}
	if len(states.saved) != 1 || states.saved[0].SunssState != models.SunssRunning {
		t.Fatalf("state not persisted: %+v", states.saved)
	}
	if len(events.events) != 1 || events.events[0].Type != "START" {
		t.Fatalf("want one START event, got %+v", events.events)
	}
	all := readLog(t, dir, "all")
	if !strings.Contains(all, "startExposures") {
		t.Errorf("all log missing decision: %q", all)
	}
	action := readLog(t, dir, "action")
	if !strings.Contains(action, "startExposures") {
		t.Errorf("action log missing decision: %q", action)
	}
}

func TestOnUpdateIdempotent(t *testing.T) {
	disp := &fakeDispatcher{}
	trk, _, _, dir := newTestTracker(t, StrategyUntracked, disp)

	trk.OnUpdate(context.Background(), rawFixture())
	trk.OnUpdate(context.Background(), rawFixture())

	if disp.starts != 1 {
		t.Fatalf("StartExposures calls = %d, want 1", disp.starts)
	}
	// Every snapshot lands in the all log, only the acted-on one in action.
	if n := strings.Count(readLog(t, dir, "all"), "\n"); n != 2 {
		t.Errorf("all log lines = %d, want 2", n)
	}
	if n := strings.Count(readLog(t, dir, "action"), "\n"); n != 1 {
		t.Errorf("action log lines = %d, want 1", n)
	}
}

func TestOnUpdateGuidingDispatchesTrack(t *testing.T) {
	disp := &fakeDispatcher{}
	trk, _, events, _ := newTestTracker(t, StrategyGuiding, disp)

	trk.OnUpdate(context.Background(), rawFixture())

	if disp.tracks != 1 {
		t.Fatalf("StartTracking calls = %d, want 1", disp.tracks)
	}
	if disp.lastRA != 150.0 || disp.lastDec != 20.0 {
		t.Fatalf("tracked at %v,%v, want 150,20", disp.lastRA, disp.lastDec)
	}
	if len(events.events) != 1 || events.events[0].Type != "TRACK" {
		t.Fatalf("want one TRACK event, got %+v", events.events)
	}
}

func TestOnUpdateStopsWhenShutterCloses(t *testing.T) {
	disp := &fakeDispatcher{}
	trk, _, _, _ := newTestTracker(t, StrategyUntracked, disp)

	trk.OnUpdate(context.Background(), rawFixture())

	raw := rawFixture()
	raw[models.KeyShutterPos] = "CLOSED"
	trk.OnUpdate(context.Background(), raw)

	if disp.stops != 1 {
		t.Fatalf("Stop calls = %d, want 1", disp.stops)
	}
	if got := trk.Snapshot().SunssState; got != models.SunssStopped {
		t.Fatalf("state = %s, want stopped", got)
	}
}

func TestOnUpdateDispatchFailureKeepsPriorState(t *testing.T) {
	disp := &fakeDispatcher{startErr: errors.New("iic unreachable")}
	trk, _, events, _ := newTestTracker(t, StrategyUntracked, disp)

	trk.OnUpdate(context.Background(), rawFixture())

	if got := trk.Snapshot().SunssState; got != models.SunssStopped {
		t.Fatalf("state = %s, want stopped after failed dispatch", got)
	}
	if len(events.events) != 1 || events.events[0].Type != "ERROR" {
		t.Fatalf("want one ERROR event, got %+v", events.events)
	}

	// Condition still holds, so the next snapshot retries the start.
	disp.startErr = nil
	trk.OnUpdate(context.Background(), rawFixture())
	if disp.starts != 2 {
		t.Fatalf("StartExposures calls = %d, want 2", disp.starts)
	}
	if got := trk.Snapshot().SunssState; got != models.SunssRunning {
		t.Fatalf("state = %s, want running after retry", got)
	}
}

func TestOnUpdateBadStatusBecomesBoom(t *testing.T) {
	disp := &fakeDispatcher{}
	trk, _, _, dir := newTestTracker(t, StrategyUntracked, disp)

	raw := rawFixture()
	raw[models.KeyRACmd] = "not-an-angle"
	trk.OnUpdate(context.Background(), raw)

	if disp.starts+disp.stops+disp.tracks != 0 {
		t.Fatal("dispatched on a malformed update")
	}
	if got := trk.Snapshot().SunssState; got != models.SunssStopped {
		t.Fatalf("state changed on malformed update: %s", got)
	}
	if all := readLog(t, dir, "all"); !strings.Contains(all, "boom:") {
		t.Errorf("all log missing boom line: %q", all)
	}
}

func TestOnUpdateStrategyPanicBecomesBoom(t *testing.T) {
	disp := &fakeDispatcher{}
	trk, _, _, dir := newTestTracker(t, StrategyUntracked, disp)
	trk.strategy = panicStrategy{}

	trk.OnUpdate(context.Background(), rawFixture())

	if disp.starts+disp.stops+disp.tracks != 0 {
		t.Fatal("dispatched after a strategy panic")
	}
	if all := readLog(t, dir, "all"); !strings.Contains(all, "boom: kaboom") {
		t.Errorf("all log missing boom line: %q", all)
	}
}

func TestSetStrategyUnknownKeepsCurrent(t *testing.T) {
	trk, states, _, _ := newTestTracker(t, StrategyGuiding, &fakeDispatcher{})

	trk.OnUpdate(context.Background(), rawFixture()) // now tracking
	before := trk.Snapshot()
	saves := len(states.saved)

	if err := trk.SetStrategy(context.Background(), "sidereal"); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("want ErrUnknownStrategy, got %v", err)
	}
	after := trk.Snapshot()
	if after.Strategy != before.Strategy || after.SunssState != before.SunssState {
		t.Fatalf("rejected switch changed state: %+v -> %+v", before, after)
	}
	if len(states.saved) != saves {
		t.Fatal("rejected switch persisted state")
	}
}

func TestSetStrategyResetsState(t *testing.T) {
	trk, _, events, _ := newTestTracker(t, StrategyUntracked, &fakeDispatcher{})

	trk.OnUpdate(context.Background(), rawFixture()) // now running
	if err := trk.SetStrategy(context.Background(), StrategyIdle); err != nil {
		t.Fatalf("SetStrategy: %v", err)
	}

	snap := trk.Snapshot()
	if snap.Strategy != StrategyIdle {
		t.Fatalf("strategy = %s, want idle", snap.Strategy)
	}
	if snap.SunssState != models.SunssStopped {
		t.Fatalf("state carried over across strategies: %s", snap.SunssState)
	}
	last := events.events[len(events.events)-1]
	if last.Type != "STRATEGY" {
		t.Fatalf("want STRATEGY event, got %+v", last)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	trk, _, _, _ := newTestTracker(t, StrategyIdle, &fakeDispatcher{})

	feed := make(chan models.RawStatus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		trk.Run(ctx, feed)
		close(done)
	}()

	feed <- rawFixture()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}
}
