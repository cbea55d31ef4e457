package hexapod

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/utils"
)

// GaitPhase tags one node in a gait's phase graph.
type GaitPhase int

const (
	PhaseTripodA GaitPhase = iota
	PhaseTripodB
	PhaseWave1
	PhaseWave2
	PhaseWave3
	PhaseWave4
	PhaseWave5
	PhaseWave6
)

func (p GaitPhase) String() string {
	switch p {
	case PhaseTripodA:
		return "TripodA"
	case PhaseTripodB:
		return "TripodB"
	case PhaseWave1:
		return "Wave1"
	case PhaseWave2:
		return "Wave2"
	case PhaseWave3:
		return "Wave3"
	case PhaseWave4:
		return "Wave4"
	case PhaseWave5:
		return "Wave5"
	case PhaseWave6:
		return "Wave6"
	default:
		return "UnknownPhase"
	}
}

// GaitState is the immutable per-phase execution specification: which legs
// swing, which stand, and the dwell time between waypoints.
type GaitState struct {
	Phase      GaitPhase
	SwingLegs  []int
	StanceLegs []int
	DwellTime  time.Duration
}

// SwingSet returns the swing-leg membership as a set, used by the
// generator's phase executor.
func (s GaitState) SwingSet() map[int]bool {
	set := make(map[int]bool, len(s.SwingLegs))
	for _, l := range s.SwingLegs {
		set[l] = true
	}
	return set
}

// legPath is an ordered sequence of 3D foot-position waypoints with a
// current index, overwritten at the start of every gait phase.
type legPath struct {
	waypoints []r3.Vector
	index     int
}

func (p *legPath) reset() { p.index = 0 }

func (p *legPath) currentTarget() r3.Vector {
	if len(p.waypoints) == 0 {
		return r3.Vector{}
	}
	if p.index >= len(p.waypoints) {
		return p.waypoints[len(p.waypoints)-1]
	}
	return p.waypoints[p.index]
}

// advance moves to the next waypoint if one exists, and reports whether it did.
func (p *legPath) advance() bool {
	if p.index+1 >= len(p.waypoints) {
		return false
	}
	p.index++
	return true
}

func (p *legPath) set(waypoints []r3.Vector) {
	p.waypoints = waypoints
	p.index = 0
}

func (p *legPath) count() int { return len(p.waypoints) }

// directionMap is the package-level constant mapping direction names to
// unit(-ish) 2D vectors. Diagonals use 1/sqrt(2) per axis to stay unit length.
var directionMap = map[string]r2.Point{
	"forward":        {X: 0, Y: 1},
	"backward":       {X: 0, Y: -1},
	"left":           {X: -1, Y: 0},
	"right":          {X: 1, Y: 0},
	"forward right":  {X: 0.707, Y: 0.707},
	"forward left":   {X: -0.707, Y: 0.707},
	"backward right": {X: 0.707, Y: -0.707},
	"backward left":  {X: -0.707, Y: -0.707},
	"neutral":        {X: 0, Y: 0},
}

// GaitKind names a concrete gait implementation.
type GaitKind string

const (
	GaitKindTripod GaitKind = "tripod"
	GaitKindWave   GaitKind = "wave"
)

// Gait encapsulates a complete walking pattern: a phase graph, a statically
// dispatched swing/stance partition per phase, and the circle-projection
// targeting logic shared by every concrete gait.
type Gait interface {
	Kind() GaitKind
	CanonicalPhase() GaitPhase
	// GaitGraph is total over the gait's phases; every successor is also a key.
	GaitGraph() map[GaitPhase][]GaitPhase
	StateFor(phase GaitPhase) GaitState
	SetDirection(direction interface{}, rotation float64) error
	DirectionInput() r2.Point
	RotationInput() float64
	// CalculateLegTarget performs circle-projection targeting for one leg.
	CalculateLegTarget(legIdx int, isSwing bool) r3.Vector
	// CalculateLegPath emits the swing (3-waypoint) or stance (2-waypoint)
	// path for one leg into its LegPath.
	CalculateLegPath(legIdx int, target r3.Vector, isSwing bool)
	PathFor(legIdx int) *legPath
	Params() GaitParams
}

// GaitParams bundles the tunable parameters of a gait.
type GaitParams struct {
	StepRadius          float64
	LegLiftDistance     float64
	StanceHeight        float64
	DwellTime           time.Duration
	UseFullCircleStance bool
}

// baseGait implements the circle-projection targeting and path-planning
// logic shared by every concrete gait (tripod, wave). Concrete gaits embed
// it and supply only their phase graph and swing/stance partition.
type baseGait struct {
	hexapod *Hexapod
	params  GaitParams

	directionInput r2.Point
	rotationInput  float64

	paths [numLegs]legPath
}

func newBaseGait(h *Hexapod, params GaitParams) baseGait {
	return baseGait{hexapod: h, params: params}
}

func (g *baseGait) Params() GaitParams { return g.params }

func (g *baseGait) DirectionInput() r2.Point { return g.directionInput }
func (g *baseGait) RotationInput() float64   { return g.rotationInput }

func (g *baseGait) PathFor(legIdx int) *legPath { return &g.paths[legIdx] }

// SetDirection accepts either a direction name (string) or an explicit
// (x,y) r2.Point, and an optional rotation scalar.
func (g *baseGait) SetDirection(direction interface{}, rotation float64) error {
	switch d := direction.(type) {
	case string:
		v, ok := directionMap[d]
		if !ok {
			return errors.Errorf("unknown direction %q", d)
		}
		g.directionInput = v
	case r2.Point:
		g.directionInput = d
	default:
		return errors.Errorf("unsupported direction type %T", direction)
	}
	g.rotationInput = rotation
	return nil
}

// CalculateLegTarget performs circle-projection targeting for one leg, per
// the component design notes on base-gait target calculation.
func (g *baseGait) CalculateLegTarget(legIdx int, isSwing bool) r3.Vector {
	h := g.hexapod
	thetaRad := utils.DegToRad(h.LegMountAngles[legIdx])
	yLocal := r2.Point{X: math.Cos(thetaRad), Y: math.Sin(thetaRad)}
	xLocal := r2.Point{X: math.Sin(thetaRad), Y: -math.Cos(thetaRad)}

	cur := h.CurrentLegPositions()[legIdx]
	curXY := r2.Point{X: cur.X, Y: cur.Y}

	marching := g.directionInput.Norm() == 0 && g.rotationInput == 0
	if marching {
		// Marching in place: swing legs keep X,Y and only lift (handled in
		// CalculateLegPath); stance legs hold position at stance height.
		return r3.Vector{X: cur.X, Y: cur.Y, Z: -g.params.StanceHeight}
	}

	rotating := g.rotationInput != 0
	var localDir r2.Point
	radius := g.params.StepRadius
	if rotating {
		sign := 1.0
		if g.rotationInput < 0 {
			sign = -1.0
		}
		localDir = r2.Point{X: sign, Y: 0}
		radius = g.params.StepRadius * math.Abs(g.rotationInput)
	} else {
		localDir = r2.Point{
			X: g.directionInput.Dot(xLocal),
			Y: g.directionInput.Dot(yLocal),
		}
		radius = g.params.StepRadius * g.directionInput.Norm()
	}

	var target2D r2.Point
	switch {
	case isSwing:
		target2D = projectPointToCircle(radius, r2.Point{}, localDir)
	case g.params.UseFullCircleStance:
		target2D = projectPointToCircle(radius, curXY, localDir.Mul(-1))
	default:
		// Half-circle stance: the leg walks straight back to center.
		target2D = r2.Point{}
	}

	return r3.Vector{X: target2D.X, Y: target2D.Y, Z: -g.params.StanceHeight}
}

// CalculateLegPath emits the swing (three-waypoint) or stance (two-waypoint)
// path for one leg into its legPath.
func (g *baseGait) CalculateLegPath(legIdx int, target r3.Vector, isSwing bool) {
	cur := g.hexapod.CurrentLegPositions()[legIdx]
	path := &g.paths[legIdx]

	marching := g.directionInput.Norm() == 0 && g.rotationInput == 0

	if !isSwing {
		path.set([]r3.Vector{cur, target})
		return
	}

	if marching {
		lifted := r3.Vector{X: cur.X, Y: cur.Y, Z: cur.Z + g.params.LegLiftDistance}
		path.set([]r3.Vector{cur, lifted, cur})
		return
	}

	lifted := r3.Vector{X: target.X, Y: target.Y, Z: target.Z + g.params.LegLiftDistance}
	path.set([]r3.Vector{cur, lifted, target})
}
