package hexapod

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/utils"
)

// controllerChannels is the number of addressable channels on the reference
// servo controller; MoveAllLegs zeroes every channel the six legs do not use.
const controllerChannels = 24

const numLegs = 6

// PredefinedPosition names a canonical Cartesian foot layout.
type PredefinedPosition string

const (
	PositionZero        PredefinedPosition = "zero"
	PositionLowProfile  PredefinedPosition = "low_profile"
	PositionHighProfile PredefinedPosition = "high_profile"
)

// Hexapod owns six legs mounted on a regular hexagon, the servo controller
// driving them, and the cached angle/position state the gait layer reads.
type Hexapod struct {
	mu sync.RWMutex

	Controller ServoController
	Logger     logging.Logger

	Legs             [numLegs]*Leg
	LegMountAngles   [numLegs]float64 // degrees
	HexagonSideLen   float64
	EndEffectorRadius float64

	currentLegPositions [numLegs]r3.Vector
	currentLegAngles    [numLegs]LegAngles

	predefinedPositions      map[PredefinedPosition][numLegs]r3.Vector
	predefinedAnglePositions map[PredefinedPosition][numLegs]LegAngles

	lastBodyPose spatialmath.Pose
}

// NewHexapod assembles a Hexapod from six legs (indices 0..5, already built
// with their geometry and channels) and derives end_effector_radius from the
// hexagon side length and the coxa/femur reach.
func NewHexapod(controller ServoController, logger logging.Logger, hexagonSideLength float64, legs [numLegs]*Leg) *Hexapod {
	h := &Hexapod{
		Controller:     controller,
		Logger:         logger,
		Legs:           legs,
		HexagonSideLen: hexagonSideLength,
		predefinedPositions:      make(map[PredefinedPosition][numLegs]r3.Vector),
		predefinedAnglePositions: make(map[PredefinedPosition][numLegs]LegAngles),
	}
	for i := 0; i < numLegs; i++ {
		h.LegMountAngles[i] = float64(i) * 60
	}
	h.EndEffectorRadius = hexagonSideLength + legs[0].Coxa.Length + legs[0].Femur.Length

	var zero [numLegs]r3.Vector
	h.predefinedPositions[PositionZero] = zero
	h.currentLegPositions = zero
	for i := range h.currentLegAngles {
		angles, _ := legs[i].InverseKinematics(0, 0, 0)
		h.currentLegAngles[i] = angles
	}
	return h
}

// SetPredefinedPosition registers a named Cartesian foot layout.
func (h *Hexapod) SetPredefinedPosition(name PredefinedPosition, positions [numLegs]r3.Vector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.predefinedPositions[name] = positions
}

// SetPredefinedAnglePosition registers a named angle layout.
func (h *Hexapod) SetPredefinedAnglePosition(name PredefinedPosition, angles [numLegs]LegAngles) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.predefinedAnglePositions[name] = angles
}

// CurrentLegPositions returns a copy of the cached per-leg foot positions.
func (h *Hexapod) CurrentLegPositions() [numLegs]r3.Vector {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentLegPositions
}

// CurrentLegAngles returns a copy of the cached per-leg joint angles.
func (h *Hexapod) CurrentLegAngles() [numLegs]LegAngles {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentLegAngles
}

// BodyPose reports the last commanded body-pose delta as a spatialmath.Pose,
// for callers that want a pose type consistent with the rest of the
// ecosystem rather than raw floats. It is a reporting-only snapshot; the
// actual body-IK math in MoveBody does not go through this type.
func (h *Hexapod) BodyPose() spatialmath.Pose {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastBodyPose == nil {
		return spatialmath.NewZeroPose()
	}
	return h.lastBodyPose
}

// MoveLeg runs IK for a single leg and commands it directly, then restores
// the hexapod's position/angle consistency invariant for that leg.
func (h *Hexapod) MoveLeg(legIdx int, x, y, z float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	angles, err := h.Legs[legIdx].MoveTo(h.Controller, x, y, z, true)
	if err != nil {
		return err
	}
	h.currentLegAngles[legIdx] = angles
	h.currentLegPositions[legIdx] = r3.Vector{X: x, Y: y, Z: z}
	return nil
}

// MoveLegAngles commands a single leg directly by joint angles.
func (h *Hexapod) MoveLegAngles(legIdx int, angles LegAngles) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Legs[legIdx].MoveToAngles(h.Controller, angles.Coxa, angles.Femur, angles.Tibia, true); err != nil {
		return err
	}
	position, err := h.Legs[legIdx].ForwardKinematics(angles)
	if err != nil {
		return err
	}
	h.currentLegAngles[legIdx] = angles
	h.currentLegPositions[legIdx] = position
	return nil
}

// MoveAllLegs runs IK on all six positions, validates all eighteen angles,
// and only then issues a single atomic multi-channel servo command. No
// partial commit is possible: any validation failure aborts before any
// servo is touched.
func (h *Hexapod) MoveAllLegs(positions [numLegs]r3.Vector) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveAllLegsLocked(positions)
}

func (h *Hexapod) moveAllLegsLocked(positions [numLegs]r3.Vector) error {
	var anglesList [numLegs]LegAngles
	for i := 0; i < numLegs; i++ {
		angles, err := h.Legs[i].InverseKinematics(positions[i].X, positions[i].Y, positions[i].Z)
		if err != nil {
			return errors.Wrapf(err, "move_all_legs: leg %d", i)
		}
		anglesList[i] = angles
	}
	return h.commitAnglesLocked(anglesList, positions)
}

// MoveAllLegsAngles is the angle-space symmetric path of MoveAllLegs.
func (h *Hexapod) MoveAllLegsAngles(angles [numLegs]LegAngles) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var positions [numLegs]r3.Vector
	for i := 0; i < numLegs; i++ {
		position, err := h.Legs[i].ForwardKinematics(angles[i])
		if err != nil {
			return errors.Wrapf(err, "move_all_legs_angles: leg %d", i)
		}
		positions[i] = position
	}
	return h.commitAnglesLocked(angles, positions)
}

func (h *Hexapod) commitAnglesLocked(angles [numLegs]LegAngles, positions [numLegs]r3.Vector) error {
	for i := 0; i < numLegs; i++ {
		leg := h.Legs[i]
		if err := leg.Coxa.ValidateAngle(angles[i].Coxa, false); err != nil {
			return err
		}
		if err := leg.Femur.ValidateAngle(angles[i].Femur, false); err != nil {
			return err
		}
		if err := leg.Tibia.ValidateAngle(angles[i].Tibia, false); err != nil {
			return err
		}
	}

	used := make(map[int]bool, 3*numLegs)
	targets := make([]ChannelTarget, 0, controllerChannels)
	for i := 0; i < numLegs; i++ {
		leg := h.Legs[i]
		coxaAngle, femurAngle, tibiaAngle := angles[i].Coxa, angles[i].Femur, angles[i].Tibia
		targets = append(targets,
			ChannelTarget{Channel: leg.Coxa.Channel, Count: leg.Coxa.AngleToServoCount(coxaAngle)},
			ChannelTarget{Channel: leg.Femur.Channel, Count: leg.Femur.AngleToServoCount(femurAngle)},
			ChannelTarget{Channel: leg.Tibia.Channel, Count: leg.Tibia.AngleToServoCount(tibiaAngle)},
		)
		used[leg.Coxa.Channel] = true
		used[leg.Femur.Channel] = true
		used[leg.Tibia.Channel] = true
	}
	for ch := 0; ch < controllerChannels; ch++ {
		if !used[ch] {
			targets = append(targets, ChannelTarget{Channel: ch, Count: 0})
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Channel < targets[j].Channel })

	if err := h.Controller.SetMultipleTargets(targets); err != nil {
		return errors.Wrap(err, "move_all_legs: controller write")
	}

	h.currentLegPositions = positions
	h.currentLegAngles = angles
	return nil
}

// MoveBody computes, for every leg, the local-frame delta required to keep
// the foot fixed in world space while the body undergoes the commanded
// translation/rotation, and commits the result via MoveAllLegs. See the
// component design notes on body-pose IK for the swapped/negated argument
// convention this reference frame requires.
func (h *Hexapod) MoveBody(tx, ty, tz, rollDeg, pitchDeg, yawDeg float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	nominal := make([]r3.Vector, numLegs)
	for i := 0; i < numLegs; i++ {
		th := utils.DegToRad(h.LegMountAngles[i])
		nominal[i] = r3.Vector{
			X: h.EndEffectorRadius * math.Cos(th),
			Y: h.EndEffectorRadius * math.Sin(th),
			Z: -h.Legs[i].Tibia.Length,
		}
	}

	// Swapped, negated argument order: the body-to-world transform's formal
	// roll/pitch parameters receive pitch and -roll respectively, and the
	// translation is inverted because the feet move opposite to body motion.
	tbw := newHomogeneousTransform(-tx, -ty, -tz, pitchDeg, -rollDeg, yawDeg)

	var bodyDeltas [numLegs]r3.Vector
	for i := 0; i < numLegs; i++ {
		transformed := tbw.apply(nominal[i])
		bodyDeltas[i] = r3.Vector{
			X: round2(transformed.X - nominal[i].X),
			Y: round2(transformed.Y - nominal[i].Y),
			Z: round2(transformed.Z - nominal[i].Z),
		}
	}

	var targetPositions [numLegs]r3.Vector
	for i := 0; i < numLegs; i++ {
		localDelta := legFrameRotation(h.LegMountAngles[i]).apply(bodyDeltas[i])
		localDelta = r3.Vector{X: round2(localDelta.X), Y: round2(localDelta.Y), Z: round2(localDelta.Z)}
		cur := h.currentLegPositions[i]
		targetPositions[i] = r3.Vector{X: cur.X + localDelta.X, Y: cur.Y + localDelta.Y, Z: cur.Z + localDelta.Z}
	}

	if err := h.moveAllLegsLocked(targetPositions); err != nil {
		return errors.Wrapf(err, "move_body(tx=%.2f,ty=%.2f,tz=%.2f,roll=%.2f,pitch=%.2f,yaw=%.2f)", tx, ty, tz, rollDeg, pitchDeg, yawDeg)
	}

	h.lastBodyPose = spatialmath.NewPose(
		r3.Vector{X: tx, Y: ty, Z: tz},
		&spatialmath.EulerAngles{Roll: utils.DegToRad(rollDeg), Pitch: utils.DegToRad(pitchDeg), Yaw: utils.DegToRad(yawDeg)},
	)
	return nil
}

// MoveToPosition moves every leg to a registered named Cartesian position.
func (h *Hexapod) MoveToPosition(name PredefinedPosition) error {
	h.mu.RLock()
	positions, ok := h.predefinedPositions[name]
	h.mu.RUnlock()
	if !ok {
		return newConfigError("unknown predefined position %q", name)
	}
	return h.MoveAllLegs(positions)
}

// MoveToAnglesPosition moves every leg to a registered named angle position.
func (h *Hexapod) MoveToAnglesPosition(name PredefinedPosition) error {
	h.mu.RLock()
	angles, ok := h.predefinedAnglePositions[name]
	h.mu.RUnlock()
	if !ok {
		return newConfigError("unknown predefined angle position %q", name)
	}
	return h.MoveAllLegsAngles(angles)
}

// SetAllServosSpeed maps a 1-100 percentage (0 = unlimited) linearly onto the
// controller's native 1-255 range and applies it to every joint channel.
func (h *Hexapod) SetAllServosSpeed(percent int) error {
	return h.forEachChannel(func(ch int) error {
		return h.Controller.SetSpeed(ch, percentToServoRange(percent))
	})
}

// SetAllServosAccel is the acceleration analog of SetAllServosSpeed.
func (h *Hexapod) SetAllServosAccel(percent int) error {
	return h.forEachChannel(func(ch int) error {
		return h.Controller.SetAcceleration(ch, percentToServoRange(percent))
	})
}

func percentToServoRange(percent int) int {
	if percent <= 0 {
		return 0
	}
	if percent > 100 {
		percent = 100
	}
	return int(rangeMap(float64(percent), 1, 100, 1, 255))
}

func (h *Hexapod) forEachChannel(f func(ch int) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, leg := range h.Legs {
		for _, ch := range []int{leg.Coxa.Channel, leg.Femur.Channel, leg.Tibia.Channel} {
			if err := f(ch); err != nil {
				return errors.Wrapf(err, "channel %d", ch)
			}
		}
	}
	return nil
}

// DeactivateAllServos waits a settle delay, then zeroes the target on every
// channel in the controller's channel space.
func (h *Hexapod) DeactivateAllServos() error {
	time.Sleep(servoSettleDelay)
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]ChannelTarget, controllerChannels)
	for ch := 0; ch < controllerChannels; ch++ {
		targets[ch] = ChannelTarget{Channel: ch, Count: 0}
	}
	return h.Controller.SetMultipleTargets(targets)
}

// WaitUntilMotionComplete delegates to the package-level servo poll helper.
func (h *Hexapod) WaitUntilMotionComplete(stop <-chan struct{}) error {
	return WaitUntilMotionComplete(h.Controller, stop)
}

