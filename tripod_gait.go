package hexapod

// TripodGait alternates two phases, three legs swinging while the other
// three support the body, for maximum walking speed.
type TripodGait struct {
	baseGait
}

// NewTripodGait constructs a tripod gait bound to hexapod h.
func NewTripodGait(h *Hexapod, params GaitParams) *TripodGait {
	return &TripodGait{baseGait: newBaseGait(h, params)}
}

func (g *TripodGait) Kind() GaitKind { return GaitKindTripod }

func (g *TripodGait) CanonicalPhase() GaitPhase { return PhaseTripodA }

func (g *TripodGait) GaitGraph() map[GaitPhase][]GaitPhase {
	return map[GaitPhase][]GaitPhase{
		PhaseTripodA: {PhaseTripodB},
		PhaseTripodB: {PhaseTripodA},
	}
}

func (g *TripodGait) StateFor(phase GaitPhase) GaitState {
	switch phase {
	case PhaseTripodA:
		return GaitState{Phase: phase, SwingLegs: []int{0, 2, 4}, StanceLegs: []int{1, 3, 5}, DwellTime: g.params.DwellTime}
	case PhaseTripodB:
		return GaitState{Phase: phase, SwingLegs: []int{1, 3, 5}, StanceLegs: []int{0, 2, 4}, DwellTime: g.params.DwellTime}
	default:
		return GaitState{Phase: phase, DwellTime: g.params.DwellTime}
	}
}
