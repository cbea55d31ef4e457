package hexapod

// JointName identifies one of the three joints in a leg.
type JointName string

const (
	JointCoxa  JointName = "coxa"
	JointFemur JointName = "femur"
	JointTibia JointName = "tibia"
)

// Joint represents one servo: its physical length (zero for joints that
// contribute only rotation), its controller channel, its hard and optional
// soft angle limits, and the affine angle<->servo-count calibration.
//
// angle_min must be strictly less than angle_max; AngleToServoCount is then
// affine and monotone over that range.
type Joint struct {
	Name    JointName
	Length  float64 // mm
	Channel int

	AngleMin float64 // degrees, hard limit
	AngleMax float64 // degrees, hard limit

	HasSoftLimits  bool
	AngleLimitMin  float64
	AngleLimitMax  float64

	ServoMin int
	ServoMax int
	Invert   bool

	legIdx int // set by the owning Leg for error reporting
}

// AngleToServoCount maps angle (degrees) to an integer servo target count
// via the affine mapping anchored at (AngleMin, ServoMin)..(AngleMax, ServoMax).
// If Invert is set, angle is negated before the mapping is applied.
func (j *Joint) AngleToServoCount(angle float64) int {
	if j.Invert {
		angle = -angle
	}
	count := rangeMap(angle, j.AngleMin, j.AngleMax, float64(j.ServoMin), float64(j.ServoMax))
	return int(count + sign(count)*0.5) // round half away from zero
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// ServoCountToAngle is the inverse of AngleToServoCount.
func (j *Joint) ServoCountToAngle(count int) float64 {
	angle := rangeMap(float64(count), float64(j.ServoMin), float64(j.ServoMax), j.AngleMin, j.AngleMax)
	if j.Invert {
		angle = -angle
	}
	return angle
}

// ValidateAngle checks angle against hard limits (always) and, when
// enforceSoftLimits is true and soft limits are configured, against the
// calibrated soft limits too.
func (j *Joint) ValidateAngle(angle float64, enforceSoftLimits bool) error {
	if angle < j.AngleMin {
		return newAngleOutOfHardLimit(j.legIdx, string(j.Name), angle, j.AngleMin)
	}
	if angle > j.AngleMax {
		return newAngleOutOfHardLimit(j.legIdx, string(j.Name), angle, j.AngleMax)
	}
	if enforceSoftLimits && j.HasSoftLimits {
		if angle < j.AngleLimitMin {
			return newAngleOutOfSoftLimit(j.legIdx, string(j.Name), angle, j.AngleLimitMin)
		}
		if angle > j.AngleLimitMax {
			return newAngleOutOfSoftLimit(j.legIdx, string(j.Name), angle, j.AngleLimitMax)
		}
	}
	return nil
}

// SetAngle validates angle, then issues a single-channel servo target
// command through controller.
func (j *Joint) SetAngle(controller ServoController, angle float64, enforceSoftLimits bool) error {
	if err := j.ValidateAngle(angle, enforceSoftLimits); err != nil {
		return err
	}
	return controller.SetTarget(j.Channel, j.AngleToServoCount(angle))
}

// UpdateCalibration replaces the servo-count endpoints used by the affine
// mapping. It never emits a servo command.
func (j *Joint) UpdateCalibration(servoMin, servoMax int) {
	j.ServoMin = servoMin
	j.ServoMax = servoMax
}
