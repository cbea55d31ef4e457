package hexapod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJoint() Joint {
	return Joint{
		Name: JointFemur, Length: 80, Channel: 1,
		AngleMin: -90, AngleMax: 90,
		ServoMin: 0, ServoMax: 1000,
	}
}

func TestAngleToServoCountAffine(t *testing.T) {
	j := testJoint()
	assert.Equal(t, 500, j.AngleToServoCount(0))
	assert.Equal(t, 0, j.AngleToServoCount(-90))
	assert.Equal(t, 1000, j.AngleToServoCount(90))
}

func TestAngleToServoCountInvert(t *testing.T) {
	j := testJoint()
	j.Invert = true
	assert.Equal(t, 1000, j.AngleToServoCount(-90))
	assert.Equal(t, 0, j.AngleToServoCount(90))
}

func TestServoCountToAngleRoundTrip(t *testing.T) {
	j := testJoint()
	for _, angle := range []float64{-90, -45, 0, 30, 90} {
		count := j.AngleToServoCount(angle)
		back := j.ServoCountToAngle(count)
		assert.InDelta(t, angle, back, 0.2)
	}
}

func TestValidateAngleHardLimits(t *testing.T) {
	j := testJoint()
	require.NoError(t, j.ValidateAngle(0, false))
	require.NoError(t, j.ValidateAngle(-90, false))
	require.NoError(t, j.ValidateAngle(90, false))

	err := j.ValidateAngle(91, false)
	require.Error(t, err)
	le, ok := AsLocomotionError(err)
	require.True(t, ok)
	assert.Equal(t, ErrAngleOutOfHardLimit, le.Kind)

	err = j.ValidateAngle(-91, false)
	require.Error(t, err)
}

func TestValidateAngleSoftLimits(t *testing.T) {
	j := testJoint()
	j.HasSoftLimits = true
	j.AngleLimitMin = -45
	j.AngleLimitMax = 45

	require.NoError(t, j.ValidateAngle(50, false), "soft limits ignored unless enforced")

	err := j.ValidateAngle(50, true)
	require.Error(t, err)
	le, ok := AsLocomotionError(err)
	require.True(t, ok)
	assert.Equal(t, ErrAngleOutOfSoftLimit, le.Kind)
}

func TestSetAngleWritesThroughController(t *testing.T) {
	j := testJoint()
	ctrl := NewMockController()
	require.NoError(t, j.SetAngle(ctrl, 0, false))
	count, ok := ctrl.Target(j.Channel)
	require.True(t, ok)
	assert.Equal(t, 500, count)
}

func TestSetAngleRejectsOutOfRange(t *testing.T) {
	j := testJoint()
	ctrl := NewMockController()
	err := j.SetAngle(ctrl, 200, false)
	require.Error(t, err)
	_, ok := ctrl.Target(j.Channel)
	assert.False(t, ok, "no command should be issued for an invalid angle")
}

func TestUpdateCalibration(t *testing.T) {
	j := testJoint()
	j.UpdateCalibration(100, 900)
	assert.Equal(t, 100, j.ServoMin)
	assert.Equal(t, 900, j.ServoMax)
	assert.Equal(t, 500, j.AngleToServoCount(0))
}
