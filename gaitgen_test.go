package hexapod

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

// faultyController wraps MockController and fails every SetMultipleTargets
// call, simulating a transport fault partway through a gait cycle.
type faultyController struct {
	*MockController
}

func (f *faultyController) SetMultipleTargets(targets []ChannelTarget) error {
	return errors.New("simulated servo fault")
}

func scenarioGaitParams() GaitParams {
	return GaitParams{StepRadius: 30, LegLiftDistance: 20, StanceHeight: 0, DwellTime: 0}
}

func TestExecuteCyclesZeroIsNoOp(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindTripod, scenarioGaitParams()))

	require.NoError(t, gg.ExecuteCycles(0))
	stats := gg.Statistics()
	assert.Equal(t, int64(0), stats.CycleCount)
	assert.False(t, stats.Running)
}

func TestTripodForwardOneCycleReturnsToOrigin(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindTripod, scenarioGaitParams()))
	require.NoError(t, gg.SetDirection("forward", 0))

	require.NoError(t, gg.ExecuteCycles(1))
	require.NoError(t, gg.Join())

	stats := gg.Statistics()
	assert.Equal(t, int64(1), stats.CycleCount)
	assert.Equal(t, int64(2), stats.TotalPhasesExecuted)

	positions := h.CurrentLegPositions()
	for i := 0; i < numLegs; i++ {
		assert.InDelta(t, 0, positions[i].X, 0.1)
		assert.InDelta(t, 0, positions[i].Y, 0.1)
		assert.InDelta(t, 0, positions[i].Z, 0.1)
	}
}

func TestExecuteCyclesSurfacesMidCycleFailureToJoin(t *testing.T) {
	ctrl := &faultyController{MockController: NewMockController()}
	var legs [numLegs]*Leg
	for i := 0; i < numLegs; i++ {
		legs[i] = testLegAt(i)
	}
	h := NewHexapod(ctrl, logging.NewTestLogger(t), 100, legs)

	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindTripod, scenarioGaitParams()))
	require.NoError(t, gg.SetDirection("forward", 0))

	assert.Nil(t, gg.LastError(), "no run has happened yet")

	require.NoError(t, gg.ExecuteCycles(1))
	err := gg.Join()
	require.Error(t, err, "a mid-cycle servo fault must be observable after Join")
	assert.Contains(t, err.Error(), "simulated servo fault")
	assert.Same(t, err, gg.LastError())

	stats := gg.Statistics()
	assert.Equal(t, int64(0), stats.CycleCount, "the faulted cycle must not be counted as completed")
}

func TestWaveRightTwoCyclesPhaseCount(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindWave, scenarioGaitParams()))
	require.NoError(t, gg.SetDirection("right", 0))

	require.NoError(t, gg.ExecuteCycles(2))
	require.NoError(t, gg.Join())

	stats := gg.Statistics()
	assert.Equal(t, int64(2), stats.CycleCount)
	assert.Equal(t, int64(12), stats.TotalPhasesExecuted)
}

func TestExecuteRotationByAngleComputesCycleCount(t *testing.T) {
	h, _ := testHexapod(t)
	h.EndEffectorRadius = 200
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindTripod, scenarioGaitParams()))

	require.NoError(t, gg.ExecuteRotationByAngle(90, 1, 30))
	require.NoError(t, gg.Join())

	stats := gg.Statistics()
	assert.Equal(t, int64(11), stats.CycleCount, "ceil(90/degrees(30/200)) = ceil(90/8.59) = 11")
}

func TestExecuteRotationByAngleRequiresActiveGait(t *testing.T) {
	h, _ := testHexapod(t)
	h.EndEffectorRadius = 200
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	err := gg.ExecuteRotationByAngle(90, 1, 30)
	require.Error(t, err)
}

func TestExecuteRotationByAngleZeroEndEffectorRadius(t *testing.T) {
	h, _ := testHexapod(t)
	h.EndEffectorRadius = 0
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindTripod, scenarioGaitParams()))
	err := gg.ExecuteRotationByAngle(90, 1, 30)
	require.Error(t, err)
}

func TestMultipleStartCallsAreNoOps(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	params := scenarioGaitParams()
	params.DwellTime = 5 * time.Millisecond
	require.NoError(t, gg.CreateGait(GaitKindTripod, params))
	require.NoError(t, gg.SetDirection("forward", 0))

	require.NoError(t, gg.Start())
	require.NoError(t, gg.Start(), "a second Start while running must be a no-op, not an error")
	require.True(t, gg.Statistics().Running)

	gg.Stop()
	assert.False(t, gg.Statistics().Running)
}

func TestStopWhenNotRunningIsNoOp(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	require.NoError(t, gg.CreateGait(GaitKindTripod, scenarioGaitParams()))
	gg.Stop() // must not block or panic
	assert.False(t, gg.Statistics().Running)
}

func TestQueueDirectionAppliedAtCycleBoundary(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	params := scenarioGaitParams()
	params.DwellTime = 2 * time.Millisecond
	require.NoError(t, gg.CreateGait(GaitKindTripod, params))
	require.NoError(t, gg.SetDirection("forward", 0))

	require.NoError(t, gg.Start())
	time.Sleep(10 * time.Millisecond)
	gg.QueueDirection("left", 0)
	time.Sleep(30 * time.Millisecond)
	gg.Stop()

	assert.False(t, gg.Statistics().Running)
	assert.Greater(t, gg.Statistics().TotalPhasesExecuted, int64(0))
}

func TestStatisticsReportsActiveGaitKind(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	assert.Equal(t, GaitKind(""), gg.Statistics().ActiveGaitKind)

	require.NoError(t, gg.CreateGait(GaitKindWave, scenarioGaitParams()))
	assert.Equal(t, GaitKindWave, gg.Statistics().ActiveGaitKind)
}

func TestCreateGaitUnknownKind(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	err := gg.CreateGait(GaitKind("crawl"), scenarioGaitParams())
	require.Error(t, err)
}

func TestSetDirectionWithNoActiveGait(t *testing.T) {
	h, _ := testHexapod(t)
	gg := NewGaitGenerator(h, logging.NewTestLogger(t))
	err := gg.SetDirection("forward", 0)
	require.Error(t, err)
}
