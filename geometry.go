package hexapod

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/utils"
)

const circleProjectionEpsilon = 0.005

// circleProjectionBetaToleranceDeg guards the sin(beta) denominator in the
// law-of-sines step of projectPointToCircle: it catches dir/p pairs that are
// near-collinear but outside isCollinear's much tighter tolerance (clamping
// dir to the circle boundary changes only its length, not its direction).
const circleProjectionBetaToleranceDeg = 0.1

// roundTo rounds v to the given number of decimal places and normalizes -0 to 0.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}

func round2(v float64) float64 { return roundTo(v, 2) }

// rangeMap affinely maps v from [inMin, inMax] to [outMin, outMax].
func rangeMap(v, inMin, inMax, outMin, outMax float64) float64 {
	return outMin + (v-inMin)*(outMax-outMin)/(inMax-inMin)
}

// angleBetweenDeg returns the unsigned angle, in degrees, between two 2D
// vectors. Degenerate (zero-length) inputs return 0.
func angleBetweenDeg(a, b r2.Point) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	cos := a.Dot(b) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return utils.RadToDeg(math.Acos(cos))
}

// isCollinear reports whether p and d point along the same line (same or
// opposite direction), within a small angular tolerance.
func isCollinear(p, d r2.Point) bool {
	if p.Norm() == 0 || d.Norm() == 0 {
		return false
	}
	angle := angleBetweenDeg(p, d)
	return angle < 1e-6 || math.Abs(angle-180) < 1e-6
}

func normalize2(p r2.Point) r2.Point {
	n := p.Norm()
	if n == 0 {
		return p
	}
	return p.Mul(1 / n)
}

// projectPointToCircle maps the internal point p, moved "along" direction d,
// onto the boundary of the circle of radius r centered at the origin. It is
// the geometric heart of leg-target calculation: see the law-of-sines
// derivation in the component design notes for the circle-projection gait.
func projectPointToCircle(radius float64, p, d r2.Point) r2.Point {
	if d.Norm() == 0 {
		return p
	}
	if p.Norm() == 0 || isCollinear(p, d) {
		return normalize2(d).Mul(radius)
	}

	dir := d
	if dir.Norm() > radius-circleProjectionEpsilon {
		dir = normalize2(dir).Mul(radius - circleProjectionEpsilon)
	}

	c := p.Norm()
	betaDeg := 180 - angleBetweenDeg(dir, p)
	if math.Abs(betaDeg) < circleProjectionBetaToleranceDeg || math.Abs(betaDeg-180) < circleProjectionBetaToleranceDeg {
		return normalize2(dir).Mul(radius)
	}
	betaRad := utils.DegToRad(betaDeg)

	sinGamma := c * math.Sin(betaRad) / radius
	sinGamma = math.Max(-1, math.Min(1, sinGamma))
	gammaRad := math.Asin(sinGamma)

	alphaRad := math.Pi - betaRad - gammaRad
	length := radius * math.Sin(alphaRad) / math.Sin(betaRad)

	return p.Add(normalize2(dir).Mul(length))
}

// rotationMatrix3 is a dense 3x3 rotation matrix, row-major.
type rotationMatrix3 [3][3]float64

func (m rotationMatrix3) apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func (m rotationMatrix3) mul(n rotationMatrix3) rotationMatrix3 {
	var out rotationMatrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[i][k] * n[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func rotX(deg float64) rotationMatrix3 {
	r := utils.DegToRad(deg)
	c, s := math.Cos(r), math.Sin(r)
	return rotationMatrix3{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

func rotY(deg float64) rotationMatrix3 {
	r := utils.DegToRad(deg)
	c, s := math.Cos(r), math.Sin(r)
	return rotationMatrix3{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

func rotZ(deg float64) rotationMatrix3 {
	r := utils.DegToRad(deg)
	c, s := math.Cos(r), math.Sin(r)
	return rotationMatrix3{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// homogeneousTransform composes a 4x4-equivalent rigid transform as the
// standard yaw-pitch-roll rotation R = Rz(yaw) * Ry(pitch) * Rx(roll)
// followed by a translation, and exposes it as apply(v) on plain vectors.
// Callers that need the body-pose swapped/negated argument convention
// document that swap at the call site; this helper itself stays generic.
type homogeneousTransform struct {
	rot   rotationMatrix3
	trans r3.Vector
}

func newHomogeneousTransform(tx, ty, tz, rollDeg, pitchDeg, yawDeg float64) homogeneousTransform {
	rot := rotZ(yawDeg).mul(rotY(pitchDeg)).mul(rotX(rollDeg))
	return homogeneousTransform{rot: rot, trans: r3.Vector{X: tx, Y: ty, Z: tz}}
}

func (t homogeneousTransform) apply(v r3.Vector) r3.Vector {
	return t.rot.apply(v).Add(t.trans)
}

// legFrameRotation builds the 3x3 matrix that rotates a world/body-frame
// delta into leg-local coordinates for a leg whose mounting angle is
// thetaDeg, aligning the leg-local +Y with the leg's outward radial.
func legFrameRotation(thetaDeg float64) rotationMatrix3 {
	t := utils.DegToRad(thetaDeg)
	s, c := math.Sin(t), math.Cos(t)
	return rotationMatrix3{
		{s, -c, 0},
		{c, s, 0},
		{0, 0, 1},
	}
}
