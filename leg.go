package hexapod

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/utils"
)

// Reference-pose offsets normalizing the "straight down, straight out" pose
// of femur and tibia to zero joint angle.
const (
	femurAngleOffset = -90.0
	tibiaAngleOffset = -90.0
)

// Leg is one of the hexapod's six legs: three joints plus the offsets that
// relate the leg's local frame to its physical mounting.
type Leg struct {
	Index int

	Coxa  Joint
	Femur Joint
	Tibia Joint

	// CoxaZOffset is the vertical offset of the coxa pivot from the leg's
	// mounting base; TibiaXOffset is carried through configuration for
	// completeness but is not consumed by this reference kinematics.
	CoxaZOffset   float64
	TibiaXOffset  float64
	EndEffectorOffset r3.Vector
}

// NewLeg wires the leg-index back into each joint (for error reporting) and
// returns the assembled Leg.
func NewLeg(index int, coxa, femur, tibia Joint, coxaZOffset, tibiaXOffset float64, endEffectorOffset r3.Vector) *Leg {
	coxa.legIdx, femur.legIdx, tibia.legIdx = index, index, index
	return &Leg{
		Index: index, Coxa: coxa, Femur: femur, Tibia: tibia,
		CoxaZOffset: coxaZOffset, TibiaXOffset: tibiaXOffset,
		EndEffectorOffset: endEffectorOffset,
	}
}

func validateTriangleInequality(legIdx int, a, b, c float64) error {
	if a+b <= c {
		return newTriangleInequality(legIdx, "a+b<=c", a+b, c)
	}
	if a+c <= b {
		return newTriangleInequality(legIdx, "a+c<=b", a+c, b)
	}
	if b+c <= a {
		return newTriangleInequality(legIdx, "b+c<=a", b+c, a)
	}
	return nil
}

// LegAngles is one coxa/femur/tibia angle triple, in degrees.
type LegAngles struct {
	Coxa, Femur, Tibia float64
}

// InverseKinematics computes the joint angles that place the foot at
// (x, y, z) in the leg's local frame (coxa pivot at the origin, neutral
// pointing direction +Y). See the component design notes on Leg for the
// full derivation of alpha1/alpha2/beta via the law of cosines.
func (l *Leg) InverseKinematics(x, y, z float64) (LegAngles, error) {
	x += l.EndEffectorOffset.X
	y += l.EndEffectorOffset.Y
	z += l.EndEffectorOffset.Z

	coxaAngle := utils.RadToDeg(math.Atan2(x, y))

	r := math.Hypot(x, y)
	f := math.Hypot(r-l.Coxa.Length, z-l.CoxaZOffset)

	maxReach := l.Femur.Length + l.Tibia.Length
	if f > maxReach {
		return LegAngles{}, newOutOfReach(l.Index, f, maxReach)
	}

	// At exactly full extension (f == maxReach) the triangle degenerates to a
	// line; that pose is still reachable, with the tibia fully straightened.
	if f < maxReach {
		if err := validateTriangleInequality(l.Index, l.Femur.Length, l.Tibia.Length, f); err != nil {
			return LegAngles{}, err
		}
	}

	dz := math.Abs(z - l.CoxaZOffset)
	var alpha1 float64
	if dz == 0 {
		alpha1 = math.Pi / 2
	} else {
		alpha1 = math.Atan((r - l.Coxa.Length) / dz)
	}

	alpha2 := math.Acos(clampUnit((sq(l.Tibia.Length) - sq(l.Femur.Length) - sq(f)) / (-2 * l.Femur.Length * f)))
	beta := math.Acos(clampUnit((sq(f) - sq(l.Femur.Length) - sq(l.Tibia.Length)) / (-2 * l.Femur.Length * l.Tibia.Length)))

	femurAngle := utils.RadToDeg(alpha1) + utils.RadToDeg(alpha2) + femurAngleOffset
	tibiaAngle := utils.RadToDeg(beta) + tibiaAngleOffset

	return LegAngles{
		Coxa:  round2(coxaAngle),
		Femur: round2(femurAngle),
		Tibia: round2(tibiaAngle),
	}, nil
}

// ForwardKinematics reconstructs the foot position from joint angles by
// accumulating the coxa, femur, and tibia segments' individual contributions,
// recovering the femur-to-foot distance F from the tibia angle via the law
// of cosines along the way. It validates the femur/tibia/F triangle before
// using F as an acos argument, mirroring InverseKinematics.
func (l *Leg) ForwardKinematics(angles LegAngles) (r3.Vector, error) {
	coxaRad := utils.DegToRad(angles.Coxa)
	femurRad := utils.DegToRad(angles.Femur)
	betaRad := utils.DegToRad(angles.Tibia - tibiaAngleOffset)

	xCoxa := l.Coxa.Length * math.Sin(coxaRad)
	yCoxa := l.Coxa.Length * math.Cos(coxaRad)

	hypFemur := l.Femur.Length * math.Cos(femurRad)
	xFemur := hypFemur * math.Sin(coxaRad)
	yFemur := hypFemur * math.Cos(coxaRad)

	f := math.Sqrt(sq(l.Femur.Length) + sq(l.Tibia.Length) - 2*l.Femur.Length*l.Tibia.Length*math.Cos(betaRad))

	if err := validateTriangleInequality(l.Index, l.Femur.Length, l.Tibia.Length, f); err != nil {
		return r3.Vector{}, err
	}

	alpha2 := math.Acos(clampUnit((sq(l.Femur.Length) + sq(f) - sq(l.Tibia.Length)) / (2 * l.Femur.Length * f)))
	alpha3 := alpha2 - femurRad

	hypFemurTibia := f * math.Cos(alpha3)
	tibiaZ := f * math.Sin(alpha3)

	xTibia := (hypFemurTibia - hypFemur) * math.Sin(coxaRad)
	yTibia := (hypFemurTibia - hypFemur) * math.Cos(coxaRad)

	x := xCoxa + xFemur + xTibia
	y := yCoxa + yFemur + yTibia
	z := -tibiaZ + l.CoxaZOffset

	x -= l.EndEffectorOffset.X
	y -= l.EndEffectorOffset.Y
	z -= l.EndEffectorOffset.Z

	return r3.Vector{X: round2(x), Y: round2(y), Z: round2(z)}, nil
}

// MoveTo runs IK on (x,y,z), validates all three resulting joint angles
// (atomically — no servo command is sent for any joint if any would exceed
// limits), then commands each joint.
func (l *Leg) MoveTo(controller ServoController, x, y, z float64, checkSoftLimits bool) (LegAngles, error) {
	angles, err := l.InverseKinematics(x, y, z)
	if err != nil {
		return LegAngles{}, err
	}
	if err := l.MoveToAngles(controller, angles.Coxa, angles.Femur, angles.Tibia, checkSoftLimits); err != nil {
		return LegAngles{}, err
	}
	return angles, nil
}

// MoveToAngles validates all three joint angles, then commands each joint.
// Validation precedes every command so the move is all-or-nothing.
func (l *Leg) MoveToAngles(controller ServoController, coxa, femur, tibia float64, checkSoftLimits bool) error {
	if err := l.Coxa.ValidateAngle(coxa, checkSoftLimits); err != nil {
		return err
	}
	if err := l.Femur.ValidateAngle(femur, checkSoftLimits); err != nil {
		return err
	}
	if err := l.Tibia.ValidateAngle(tibia, checkSoftLimits); err != nil {
		return err
	}
	if err := l.Coxa.SetAngle(controller, coxa, checkSoftLimits); err != nil {
		return err
	}
	if err := l.Femur.SetAngle(controller, femur, checkSoftLimits); err != nil {
		return err
	}
	return l.Tibia.SetAngle(controller, tibia, checkSoftLimits)
}

func sq(v float64) float64 { return v * v }

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
