package hexapod

import (
	"sync"
	"sync/atomic"
	"time"

	"go.viam.com/rdk/logging"
)

// TiltReader is the external sensor collaborator a BalanceCompensator polls.
// Implementations typically wrap an IMU; gyroMagnitude is the combined
// angular-rate magnitude used to gate correction during active stepping.
type TiltReader interface {
	ReadTilt() (roll, pitch, yaw, gyroMagnitude float64, err error)
}

// BalanceCompensatorConfig tunes a BalanceCompensator.
type BalanceCompensatorConfig struct {
	PollInterval         time.Duration
	Gain                 float64
	MaxCompensationAngle float64 // degrees, symmetric clamp on roll and pitch
	GyroQuietThreshold   float64 // below this, treat the body as settled
	DecayFactor          float64 // 0..1, applied to the last correction when not applying a new one
}

// BalanceCompensator wraps a Hexapod with a background loop that reads body
// tilt from a TiltReader and applies a small counter-rotation via MoveBody to
// keep the body level, decaying the correction back toward zero whenever the
// body is not settled enough to trust the reading.
type BalanceCompensator struct {
	hexapod *Hexapod
	tilt    TiltReader
	logger  logging.Logger
	cfg     BalanceCompensatorConfig

	mu           sync.Mutex
	lastRoll     float64
	lastPitch    float64

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBalanceCompensator constructs a compensator bound to h, reading tilt
// from reader. Zero-valued fields in cfg fall back to conservative defaults.
func NewBalanceCompensator(h *Hexapod, reader TiltReader, logger logging.Logger, cfg BalanceCompensatorConfig) *BalanceCompensator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.Gain <= 0 {
		cfg.Gain = 0.5
	}
	if cfg.MaxCompensationAngle <= 0 {
		cfg.MaxCompensationAngle = 15
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
		cfg.DecayFactor = 0.8
	}
	return &BalanceCompensator{hexapod: h, tilt: reader, logger: logger, cfg: cfg}
}

// Start launches the background correction loop. A second Start call while
// already running is a no-op.
func (bc *BalanceCompensator) Start() {
	if !bc.running.CompareAndSwap(false, true) {
		return
	}
	bc.stopCh = make(chan struct{})
	bc.doneCh = make(chan struct{})
	go bc.loop(bc.stopCh, bc.doneCh)
}

// Stop requests the loop to exit and blocks until it has, returning the
// hexapod's body pose to neutral. Stop when not running is a no-op.
func (bc *BalanceCompensator) Stop() {
	if !bc.running.Load() {
		return
	}
	close(bc.stopCh)
	<-bc.doneCh
	bc.running.Store(false)
}

func (bc *BalanceCompensator) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(bc.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			bc.settle()
			return
		case <-ticker.C:
			bc.tick()
		}
	}
}

func (bc *BalanceCompensator) tick() {
	roll, pitch, _, gyroMag, err := bc.tilt.ReadTilt()
	if err != nil {
		bc.logger.Errorw("balance compensator: tilt read failed", "error", err)
		return
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	var correctionRoll, correctionPitch float64
	if gyroMag > bc.cfg.GyroQuietThreshold {
		// The body is actively stepping; trust the last correction less and
		// decay it rather than chase a noisy reading.
		correctionRoll = bc.lastRoll * bc.cfg.DecayFactor
		correctionPitch = bc.lastPitch * bc.cfg.DecayFactor
	} else {
		correctionRoll = clampDeg(-roll*bc.cfg.Gain, bc.cfg.MaxCompensationAngle)
		correctionPitch = clampDeg(-pitch*bc.cfg.Gain, bc.cfg.MaxCompensationAngle)
	}

	if correctionRoll == bc.lastRoll && correctionPitch == bc.lastPitch {
		return
	}

	if err := bc.hexapod.MoveBody(0, 0, 0, correctionRoll, correctionPitch, 0); err != nil {
		bc.logger.Errorw("balance compensator: move_body failed", "error", err)
		return
	}
	bc.lastRoll = correctionRoll
	bc.lastPitch = correctionPitch
}

func (bc *BalanceCompensator) settle() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.lastRoll == 0 && bc.lastPitch == 0 {
		return
	}
	if err := bc.hexapod.MoveBody(0, 0, 0, 0, 0, 0); err != nil {
		bc.logger.Errorw("balance compensator: settle failed", "error", err)
		return
	}
	bc.lastRoll = 0
	bc.lastPitch = 0
}

func clampDeg(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
