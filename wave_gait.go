package hexapod

// WaveGait cycles through six phases, exactly one leg swinging at a time
// while the other five support the body, for maximum stability.
type WaveGait struct {
	baseGait
}

// NewWaveGait constructs a wave gait bound to hexapod h.
func NewWaveGait(h *Hexapod, params GaitParams) *WaveGait {
	return &WaveGait{baseGait: newBaseGait(h, params)}
}

func (g *WaveGait) Kind() GaitKind { return GaitKindWave }

func (g *WaveGait) CanonicalPhase() GaitPhase { return PhaseWave1 }

var waveCycle = []GaitPhase{PhaseWave1, PhaseWave2, PhaseWave3, PhaseWave4, PhaseWave5, PhaseWave6}

func (g *WaveGait) GaitGraph() map[GaitPhase][]GaitPhase {
	graph := make(map[GaitPhase][]GaitPhase, len(waveCycle))
	for i, phase := range waveCycle {
		next := waveCycle[(i+1)%len(waveCycle)]
		graph[phase] = []GaitPhase{next}
	}
	return graph
}

// waveSwingLeg maps each wave phase to the single leg that swings during it,
// in mounting order 0..5 (right, right-front, left-front, left, left-back,
// right-back).
var waveSwingLeg = map[GaitPhase]int{
	PhaseWave1: 0,
	PhaseWave2: 1,
	PhaseWave3: 2,
	PhaseWave4: 3,
	PhaseWave5: 4,
	PhaseWave6: 5,
}

func (g *WaveGait) StateFor(phase GaitPhase) GaitState {
	swingLeg, ok := waveSwingLeg[phase]
	if !ok {
		return GaitState{Phase: phase, DwellTime: g.params.DwellTime}
	}
	stance := make([]int, 0, 5)
	for i := 0; i < numLegs; i++ {
		if i != swingLeg {
			stance = append(stance, i)
		}
	}
	return GaitState{Phase: phase, SwingLegs: []int{swingLeg}, StanceLegs: stance, DwellTime: g.params.DwellTime}
}
