package hexapod

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind tags the structured locomotion error taxonomy.
type ErrorKind int

const (
	// ErrOutOfReach marks an inverse-kinematics target beyond femur+tibia reach.
	ErrOutOfReach ErrorKind = iota
	// ErrAngleOutOfHardLimit marks a commanded angle outside a joint's hard limits.
	ErrAngleOutOfHardLimit
	// ErrAngleOutOfSoftLimit marks a commanded angle outside a joint's calibrated soft limits.
	ErrAngleOutOfSoftLimit
	// ErrTriangleInequality marks an IK/FK triangle-inequality violation.
	ErrTriangleInequality
	// ErrConfig marks malformed configuration or calibration.
	ErrConfig
	// ErrControllerIO marks a servo-controller transport failure.
	ErrControllerIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrOutOfReach:
		return "OutOfReach"
	case ErrAngleOutOfHardLimit:
		return "AngleOutOfHardLimit"
	case ErrAngleOutOfSoftLimit:
		return "AngleOutOfSoftLimit"
	case ErrTriangleInequality:
		return "TriangleInequality"
	case ErrConfig:
		return "ConfigError"
	case ErrControllerIO:
		return "ControllerIoError"
	default:
		return "UnknownError"
	}
}

// LocomotionError is the single structured error type raised by the core.
// It carries just enough context (leg, joint, value, limit) for a caller or
// log line to pinpoint the offending command without parsing a message.
type LocomotionError struct {
	Kind    ErrorKind
	LegIdx  int // -1 when not leg-specific
	Joint   string
	Value   float64
	Limit   float64
	Message string
}

func (e *LocomotionError) Error() string {
	if e.Joint != "" {
		return fmt.Sprintf("%s: leg %d joint %s value=%.3f limit=%.3f: %s", e.Kind, e.LegIdx, e.Joint, e.Value, e.Limit, e.Message)
	}
	if e.LegIdx >= 0 {
		return fmt.Sprintf("%s: leg %d: %s", e.Kind, e.LegIdx, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newOutOfReach(legIdx int, reach, maxReach float64) error {
	return errors.WithStack(&LocomotionError{
		Kind: ErrOutOfReach, LegIdx: legIdx, Value: reach, Limit: maxReach,
		Message: "target beyond femur+tibia reach",
	})
}

func newTriangleInequality(legIdx int, joint string, a, b float64) error {
	return errors.WithStack(&LocomotionError{
		Kind: ErrTriangleInequality, LegIdx: legIdx, Joint: joint, Value: a, Limit: b,
		Message: "triangle inequality violated",
	})
}

func newAngleOutOfHardLimit(legIdx int, joint string, angle, limit float64) error {
	return errors.WithStack(&LocomotionError{
		Kind: ErrAngleOutOfHardLimit, LegIdx: legIdx, Joint: joint, Value: angle, Limit: limit,
		Message: "angle outside hard limit",
	})
}

func newAngleOutOfSoftLimit(legIdx int, joint string, angle, limit float64) error {
	return errors.WithStack(&LocomotionError{
		Kind: ErrAngleOutOfSoftLimit, LegIdx: legIdx, Joint: joint, Value: angle, Limit: limit,
		Message: "angle outside calibrated soft limit",
	})
}

func newConfigError(format string, args ...interface{}) error {
	return errors.WithStack(&LocomotionError{
		Kind: ErrConfig, LegIdx: -1,
		Message: fmt.Sprintf(format, args...),
	})
}

// AsLocomotionError unwraps err (which may be wrapped by github.com/pkg/errors)
// to its *LocomotionError, if any.
func AsLocomotionError(err error) (*LocomotionError, bool) {
	var le *LocomotionError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
