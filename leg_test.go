package hexapod

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeg() *Leg {
	coxa := Joint{Name: JointCoxa, Length: 30, Channel: 0, AngleMin: -90, AngleMax: 90, ServoMin: 0, ServoMax: 1000}
	femur := Joint{Name: JointFemur, Length: 80, Channel: 1, AngleMin: -90, AngleMax: 90, ServoMin: 0, ServoMax: 1000}
	tibia := Joint{Name: JointTibia, Length: 120, Channel: 2, AngleMin: -90, AngleMax: 90, ServoMin: 0, ServoMax: 1000}
	return NewLeg(0, coxa, femur, tibia, 0, 0, r3.Vector{})
}

func TestInverseForwardKinematicsRoundTrip(t *testing.T) {
	leg := testLeg()
	points := []r3.Vector{
		{X: 0, Y: 150, Z: -50},
		{X: 30, Y: 140, Z: -80},
		{X: -20, Y: 160, Z: -20},
	}
	for _, p := range points {
		angles, err := leg.InverseKinematics(p.X, p.Y, p.Z)
		require.NoError(t, err)
		back, err := leg.ForwardKinematics(angles)
		require.NoError(t, err)
		assert.InDelta(t, p.X, back.X, 0.1)
		assert.InDelta(t, p.Y, back.Y, 0.1)
		assert.InDelta(t, p.Z, back.Z, 0.1)
	}
}

func TestForwardInverseKinematicsRoundTrip(t *testing.T) {
	leg := testLeg()
	anglesList := []LegAngles{
		{Coxa: 0, Femur: 0, Tibia: 0},
		{Coxa: 15, Femur: -10, Tibia: 20},
		{Coxa: -20, Femur: 10, Tibia: -15},
	}
	for _, angles := range anglesList {
		pos, err := leg.ForwardKinematics(angles)
		require.NoError(t, err)
		back, err := leg.InverseKinematics(pos.X, pos.Y, pos.Z)
		require.NoError(t, err)
		assert.InDelta(t, angles.Coxa, back.Coxa, 0.5)
		assert.InDelta(t, angles.Femur, back.Femur, 0.5)
		assert.InDelta(t, angles.Tibia, back.Tibia, 0.5)
	}
}

func TestForwardKinematicsRejectsTriangleInequalityViolation(t *testing.T) {
	leg := testLeg()
	// Tibia=90 puts beta (the femur/tibia included angle) at exactly 180
	// degrees, the fully-extended degenerate case where F == femur+tibia:
	// the triangle collapses to a line and the inequality check must reject
	// it before F is used as an acos argument.
	_, err := leg.ForwardKinematics(LegAngles{Coxa: 0, Femur: 0, Tibia: 90})
	require.Error(t, err)
	le, ok := AsLocomotionError(err)
	require.True(t, ok)
	assert.Equal(t, ErrTriangleInequality, le.Kind)
}

func TestInverseKinematicsOutOfReach(t *testing.T) {
	leg := testLeg()
	_, err := leg.InverseKinematics(0, 1000, 0)
	require.Error(t, err)
	le, ok := AsLocomotionError(err)
	require.True(t, ok)
	assert.Equal(t, ErrOutOfReach, le.Kind)
}

func TestMoveToAtomicity(t *testing.T) {
	leg := testLeg()
	ctrl := NewMockController()

	_, err := leg.MoveTo(ctrl, 0, 150, -50, true)
	require.NoError(t, err)
	for _, ch := range []int{0, 1, 2} {
		_, ok := ctrl.Target(ch)
		assert.True(t, ok)
	}
}

func TestMoveToAnglesRejectsPartialCommit(t *testing.T) {
	leg := testLeg()
	ctrl := NewMockController()

	err := leg.MoveToAngles(ctrl, 0, 0, 500, true)
	require.Error(t, err)
	for _, ch := range []int{0, 1, 2} {
		_, ok := ctrl.Target(ch)
		assert.False(t, ok, "no joint should be commanded when any angle is invalid")
	}
}
