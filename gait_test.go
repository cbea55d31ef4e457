package hexapod

import (
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGaitParams() GaitParams {
	return GaitParams{StepRadius: 30, LegLiftDistance: 20, StanceHeight: 50, DwellTime: time.Millisecond}
}

func TestGaitStateSwingSet(t *testing.T) {
	s := GaitState{SwingLegs: []int{0, 2, 4}, StanceLegs: []int{1, 3, 5}}
	set := s.SwingSet()
	for _, l := range []int{0, 2, 4} {
		assert.True(t, set[l])
	}
	for _, l := range []int{1, 3, 5} {
		assert.False(t, set[l])
	}
}

func TestLegPathAdvance(t *testing.T) {
	p := &legPath{}
	p.set([]r3.Vector{{X: 1}, {X: 2}, {X: 3}})
	assert.Equal(t, r3.Vector{X: 1}, p.currentTarget())
	assert.True(t, p.advance())
	assert.Equal(t, r3.Vector{X: 2}, p.currentTarget())
	assert.True(t, p.advance())
	assert.Equal(t, r3.Vector{X: 3}, p.currentTarget())
	assert.False(t, p.advance(), "advance past the last waypoint reports false")
	assert.Equal(t, r3.Vector{X: 3}, p.currentTarget(), "currentTarget holds at the last waypoint")
}

func TestSetDirectionNamedAndExplicit(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())

	require.NoError(t, g.SetDirection("forward", 0))
	assert.Equal(t, directionMap["forward"], g.DirectionInput())

	custom := r2.Point{X: 0.5, Y: 0.5}
	require.NoError(t, g.SetDirection(custom, 0.1))
	assert.Equal(t, custom, g.DirectionInput())
	assert.Equal(t, 0.1, g.RotationInput())
}

func TestSetDirectionUnknownName(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())
	err := g.SetDirection("sideways-ish", 0)
	require.Error(t, err)
}

func TestSetDirectionUnsupportedType(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())
	err := g.SetDirection(42, 0)
	require.Error(t, err)
}

func TestCalculateLegTargetMarchingInPlace(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())
	require.NoError(t, g.SetDirection("neutral", 0))

	target := g.CalculateLegTarget(0, true)
	assert.Equal(t, -testGaitParams().StanceHeight, target.Z)
}

func TestCalculateLegTargetSwingLandsOnStepCircle(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())
	require.NoError(t, g.SetDirection("forward", 0))

	target := g.CalculateLegTarget(0, true)
	radiusXY := target.X*target.X + target.Y*target.Y
	assert.InDelta(t, testGaitParams().StepRadius*testGaitParams().StepRadius, radiusXY, 1.0)
}

func TestCalculateLegPathSwingHasThreeWaypoints(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())
	require.NoError(t, g.SetDirection("forward", 0))

	target := g.CalculateLegTarget(0, true)
	g.CalculateLegPath(0, target, true)
	assert.Equal(t, 3, g.PathFor(0).count())
}

func TestCalculateLegPathStanceHasTwoWaypoints(t *testing.T) {
	h, _ := testHexapod(t)
	g := NewTripodGait(h, testGaitParams())
	require.NoError(t, g.SetDirection("forward", 0))

	target := g.CalculateLegTarget(1, false)
	g.CalculateLegPath(1, target, false)
	assert.Equal(t, 2, g.PathFor(1).count())
}
