package hexapod

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/utils"
)

const gaitPollInterval = 10 * time.Millisecond

// CycleStatistics is a read-only snapshot of the generator's execution
// counters, used by callers and tests.
type CycleStatistics struct {
	CycleCount          int64
	TotalPhasesExecuted int64
	Running             bool
	ActiveGaitKind       GaitKind
}

// GaitGenerator owns the background execution goroutine and the currently
// active gait. It is constructed once per Hexapod.
type GaitGenerator struct {
	hexapod *Hexapod
	logger  logging.Logger

	mu         sync.Mutex
	activeGait Gait
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopOnce   *sync.Once

	running       atomic.Bool
	stopRequested atomic.Bool

	pendingMu        sync.Mutex
	hasPending       bool
	pendingDirection interface{}
	pendingRotation  float64

	cycleCount  atomic.Int64
	totalPhases atomic.Int64

	lastErrMu sync.Mutex
	lastErr   error
}

// NewGaitGenerator returns a GaitGenerator bound to h, with no active gait.
func NewGaitGenerator(h *Hexapod, logger logging.Logger) *GaitGenerator {
	return &GaitGenerator{hexapod: h, logger: logger}
}

// CreateGait installs kind as the active gait. Callers must not call this
// while a gait is executing.
func (gg *GaitGenerator) CreateGait(kind GaitKind, params GaitParams) error {
	gg.mu.Lock()
	defer gg.mu.Unlock()
	switch kind {
	case GaitKindTripod:
		gg.activeGait = NewTripodGait(gg.hexapod, params)
	case GaitKindWave:
		gg.activeGait = NewWaveGait(gg.hexapod, params)
	default:
		return errors.Errorf("unknown gait kind %q", kind)
	}
	return nil
}

// SetDirection forwards to the active gait's SetDirection.
func (gg *GaitGenerator) SetDirection(direction interface{}, rotation float64) error {
	gg.mu.Lock()
	gait := gg.activeGait
	gg.mu.Unlock()
	if gait == nil {
		return errors.New("no active gait")
	}
	return gait.SetDirection(direction, rotation)
}

func (gg *GaitGenerator) activeGaitSnapshot() Gait {
	gg.mu.Lock()
	defer gg.mu.Unlock()
	return gg.activeGait
}

// LastError returns the error that ended the most recent run, or nil if the
// most recent run (if any) completed without a mid-cycle failure. It is
// cleared at the start of each new run.
func (gg *GaitGenerator) LastError() error {
	gg.lastErrMu.Lock()
	defer gg.lastErrMu.Unlock()
	return gg.lastErr
}

func (gg *GaitGenerator) setLastError(err error) {
	gg.lastErrMu.Lock()
	gg.lastErr = err
	gg.lastErrMu.Unlock()
}

// startLoop launches run() on a background goroutine. If a run is already in
// progress, it is a no-op (matching "multiple Start() calls while running").
func (gg *GaitGenerator) startLoop(run func()) error {
	if !gg.running.CompareAndSwap(false, true) {
		return nil
	}
	gg.stopRequested.Store(false)
	gg.setLastError(nil)

	gg.mu.Lock()
	gg.stopCh = make(chan struct{})
	gg.doneCh = make(chan struct{})
	gg.stopOnce = &sync.Once{}
	stopOnce := gg.stopOnce
	doneCh := gg.doneCh
	gg.mu.Unlock()

	go func() {
		defer close(doneCh)
		defer gg.running.Store(false)
		defer func() { _ = stopOnce }()
		run()
	}()
	return nil
}

// ExecuteCycles runs exactly n full cycles then stops. n<=0 is a no-op that
// logs an error and leaves all state unchanged.
func (gg *GaitGenerator) ExecuteCycles(n int) error {
	if n <= 0 {
		gg.logger.Errorf("execute_cycles: n must be positive, got %d", n)
		return nil
	}
	return gg.startLoop(func() { gg.runLoop(n, 0, false) })
}

// RunForDuration runs until wall-clock elapsed >= d, then finishes the
// current cycle.
func (gg *GaitGenerator) RunForDuration(d time.Duration) error {
	return gg.startLoop(func() { gg.runLoop(0, d, false) })
}

// Start runs continuously, applying queued direction changes between cycles.
func (gg *GaitGenerator) Start() error {
	return gg.startLoop(func() { gg.runLoop(0, 0, true) })
}

// Stop requests a soft stop: the current phase completes, then the current
// cycle completes, then the goroutine exits via the neutral-return sequence.
// Stop blocks until the goroutine has exited. Stop when not running is a
// no-op.
func (gg *GaitGenerator) Stop() {
	if !gg.running.Load() {
		return
	}
	gg.stopRequested.Store(true)

	gg.mu.Lock()
	stopCh := gg.stopCh
	stopOnce := gg.stopOnce
	doneCh := gg.doneCh
	gg.mu.Unlock()

	if stopOnce != nil {
		stopOnce.Do(func() { close(stopCh) })
	}
	if doneCh != nil {
		<-doneCh
	}
}

// Join blocks until the current run (if any) completes, without requesting
// a stop. Used by callers of ExecuteCycles/RunForDuration. It returns the
// error that ended the run, if the gait goroutine exited on a mid-cycle
// failure rather than by reaching its cycle/duration limit or being stopped.
func (gg *GaitGenerator) Join() error {
	gg.mu.Lock()
	doneCh := gg.doneCh
	gg.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
	return gg.LastError()
}

// QueueDirection records pending direction/rotation values without mutating
// the active gait. The continuous run loop applies them at the next cycle
// boundary, after walking the legs back to neutral.
func (gg *GaitGenerator) QueueDirection(direction interface{}, rotation float64) {
	gg.pendingMu.Lock()
	defer gg.pendingMu.Unlock()
	gg.pendingDirection = direction
	gg.pendingRotation = rotation
	gg.hasPending = true
}

func (gg *GaitGenerator) consumePending() (interface{}, float64, bool) {
	gg.pendingMu.Lock()
	defer gg.pendingMu.Unlock()
	if !gg.hasPending {
		return nil, 0, false
	}
	gg.hasPending = false
	return gg.pendingDirection, gg.pendingRotation, true
}

// ExecuteRotationByAngle rotates the hexapod by approximately angleDegrees,
// in the direction given by the sign of direction, using stepRadius as the
// per-cycle step radius. The angle rotated per cycle is the arc length at
// the end-effector radius divided by that radius.
func (gg *GaitGenerator) ExecuteRotationByAngle(angleDegrees, direction, stepRadius float64) error {
	gait := gg.activeGaitSnapshot()
	if gait == nil {
		return errors.New("no active gait")
	}
	if gg.hexapod.EndEffectorRadius == 0 {
		return errors.New("end effector radius is zero")
	}
	perCycle := utils.RadToDeg(stepRadius / gg.hexapod.EndEffectorRadius)
	if perCycle <= 0 {
		return errors.New("non-positive per-cycle rotation angle")
	}
	cycles := int(math.Ceil(math.Abs(angleDegrees) / perCycle))
	if cycles < 1 {
		cycles = 1
	}
	if err := gait.SetDirection("neutral", direction); err != nil {
		return err
	}
	return gg.ExecuteCycles(cycles)
}

// Statistics returns a snapshot of the execution counters.
func (gg *GaitGenerator) Statistics() CycleStatistics {
	gait := gg.activeGaitSnapshot()
	var kind GaitKind
	if gait != nil {
		kind = gait.Kind()
	}
	return CycleStatistics{
		CycleCount:          gg.cycleCount.Load(),
		TotalPhasesExecuted: gg.totalPhases.Load(),
		Running:             gg.running.Load(),
		ActiveGaitKind:      kind,
	}
}

func (gg *GaitGenerator) runLoop(maxCycles int, maxDuration time.Duration, handleDirectionChanges bool) {
	start := time.Now()
	cyclesDone := 0
	for {
		if gg.stopRequested.Load() {
			break
		}
		if maxCycles > 0 && cyclesDone >= maxCycles {
			break
		}
		if maxDuration > 0 && time.Since(start) >= maxDuration {
			break
		}
		gait := gg.activeGaitSnapshot()
		if gait == nil {
			gg.logger.Error("gait generator: no active gait, stopping")
			break
		}

		if err := gg.executeFullCycle(gait); err != nil {
			gg.logger.Errorw("gait cycle failed, returning to high_profile", "error", err)
			gg.setLastError(err)
			if serr := gg.hexapod.MoveToPosition(PositionHighProfile); serr != nil {
				gg.logger.Errorw("failed to reach high_profile after cycle failure", "error", serr)
			}
			_ = gg.hexapod.WaitUntilMotionComplete(gg.stopChannel())
			break
		}
		cyclesDone++

		if handleDirectionChanges {
			if dir, rot, ok := gg.consumePending(); ok {
				if err := gg.returnLegsToNeutral(gait); err != nil {
					gg.logger.Errorw("return to neutral failed", "error", err)
					break
				}
				if err := gait.SetDirection(dir, rot); err != nil {
					gg.logger.Errorw("failed to apply queued direction", "error", err)
				}
			}
		}
	}

	if gait := gg.activeGaitSnapshot(); gait != nil {
		if err := gg.returnLegsToNeutral(gait); err != nil {
			gg.logger.Errorw("return to neutral on exit failed", "error", err)
		}
	}
}

func (gg *GaitGenerator) stopChannel() <-chan struct{} {
	gg.mu.Lock()
	defer gg.mu.Unlock()
	return gg.stopCh
}

// executeFullCycle starts from the gait's canonical phase, executes every
// phase in the gait graph exactly once (graph-size phases per cycle),
// waiting the full dwell time between phases, and increments the cycle and
// total-phase counters on completion.
func (gg *GaitGenerator) executeFullCycle(gait Gait) error {
	graph := gait.GaitGraph()
	phase := gait.CanonicalPhase()
	n := len(graph)

	for i := 0; i < n; i++ {
		state := gait.StateFor(phase)
		if err := gg.executePhase(gait, state); err != nil {
			return err
		}

		if gg.sleepPoll(state.DwellTime) {
			gg.stopRequested.Store(true)
		}

		successors, ok := graph[phase]
		if !ok || len(successors) == 0 {
			return errors.Errorf("gait graph has no successor for phase %s", phase)
		}
		phase = successors[0]
	}

	gg.cycleCount.Add(1)
	gg.totalPhases.Add(int64(n))
	return nil
}

// executePhase computes swing/stance targets and paths for every active leg,
// then steps all legs together through their waypoints via atomic
// whole-body moves. Legs with shorter paths hold their final waypoint while
// longer paths continue.
func (gg *GaitGenerator) executePhase(gait Gait, state GaitState) error {
	swing := state.SwingSet()
	active := make([]int, 0, numLegs)
	for _, l := range state.SwingLegs {
		active = append(active, l)
	}
	active = append(active, state.StanceLegs...)

	for _, leg := range active {
		isSwing := swing[leg]
		target := gait.CalculateLegTarget(leg, isSwing)
		gait.CalculateLegPath(leg, target, isSwing)
	}

	maxN := 0
	for _, leg := range active {
		if n := gait.PathFor(leg).count(); n > maxN {
			maxN = n
		}
	}

	for i := 0; i < maxN; i++ {
		positions := gg.hexapod.CurrentLegPositions()
		for _, leg := range active {
			positions[leg] = waypointAt(gait.PathFor(leg), i)
		}
		if err := gg.hexapod.MoveAllLegs(positions); err != nil {
			return err
		}
		if gg.sleepPoll(state.DwellTime) {
			gg.stopRequested.Store(true)
		}
	}
	return nil
}

func waypointAt(p *legPath, i int) r3.Vector {
	if p.count() == 0 {
		return r3.Vector{}
	}
	if i >= p.count() {
		i = p.count() - 1
	}
	return p.waypoints[i]
}

func neutralGroups(kind GaitKind) [][]int {
	if kind == GaitKindTripod {
		return [][]int{{0, 2, 4}, {1, 3, 5}}
	}
	return [][]int{{0}, {1}, {2}, {3}, {4}, {5}}
}

// returnLegsToNeutral moves every leg's X,Y to (0,0) at the current stance
// height: tripod returns in two groups of three, each as a swing; wave (and
// any other gait) returns six legs sequentially, each as a swing.
func (gg *GaitGenerator) returnLegsToNeutral(gait Gait) error {
	params := gait.Params()
	for _, group := range neutralGroups(gait.Kind()) {
		base := gg.hexapod.CurrentLegPositions()
		type waypoints struct{ cur, lifted, target r3.Vector }
		perLeg := make(map[int]waypoints, len(group))
		for _, leg := range group {
			cur := base[leg]
			target := r3.Vector{X: 0, Y: 0, Z: -params.StanceHeight}
			lifted := r3.Vector{X: 0, Y: 0, Z: -params.StanceHeight + params.LegLiftDistance}
			perLeg[leg] = waypoints{cur: cur, lifted: lifted, target: target}
		}
		for i := 0; i < 3; i++ {
			positions := base
			for _, leg := range group {
				wp := perLeg[leg]
				switch i {
				case 0:
					positions[leg] = wp.cur
				case 1:
					positions[leg] = wp.lifted
				default:
					positions[leg] = wp.target
				}
			}
			if err := gg.hexapod.MoveAllLegs(positions); err != nil {
				return err
			}
			gg.sleepPoll(params.DwellTime)
			base = positions
		}
	}
	return nil
}

// sleepPoll sleeps up to d, polling the stop channel every 10ms, and reports
// whether a stop was observed during the sleep.
func (gg *GaitGenerator) sleepPoll(d time.Duration) bool {
	stopCh := gg.stopChannel()
	if d <= 0 {
		select {
		case <-stopCh:
			return true
		default:
			return false
		}
	}
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := gaitPollInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-stopCh:
			return true
		case <-time.After(wait):
		}
	}
}
