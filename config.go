package hexapod

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

func pointFrom(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// JointConfig is the JSON-decodable description of one joint's geometry,
// servo wiring, and limits. It mirrors Joint field-for-field so a config
// file maps onto the runtime type with no hidden defaulting logic beyond
// what Validate documents.
type JointConfig struct {
	Length  float64 `json:"length_mm"`
	Channel int     `json:"channel"`

	AngleMin float64 `json:"angle_min_deg"`
	AngleMax float64 `json:"angle_max_deg"`

	HasSoftLimits bool    `json:"has_soft_limits,omitempty"`
	AngleLimitMin float64 `json:"angle_limit_min_deg,omitempty"`
	AngleLimitMax float64 `json:"angle_limit_max_deg,omitempty"`

	ServoMin int  `json:"servo_min"`
	ServoMax int  `json:"servo_max"`
	Invert   bool `json:"invert,omitempty"`
}

// LegConfig is the JSON-decodable description of one leg: its mounting
// geometry and its three joints.
type LegConfig struct {
	MountAngleDeg float64 `json:"mount_angle_deg"`
	CoxaZOffset   float64 `json:"coxa_z_offset_mm,omitempty"`
	TibiaXOffset  float64 `json:"tibia_x_offset_mm,omitempty"`

	EndEffectorOffsetX float64 `json:"end_effector_offset_x_mm,omitempty"`
	EndEffectorOffsetY float64 `json:"end_effector_offset_y_mm,omitempty"`
	EndEffectorOffsetZ float64 `json:"end_effector_offset_z_mm,omitempty"`

	Coxa  JointConfig `json:"coxa"`
	Femur JointConfig `json:"femur"`
	Tibia JointConfig `json:"tibia"`
}

// GaitParamsConfig is the JSON-decodable form of GaitParams, with DwellTime
// expressed in milliseconds since time.Duration does not round-trip JSON.
type GaitParamsConfig struct {
	StepRadius          float64 `json:"step_radius_mm"`
	LegLiftDistance     float64 `json:"leg_lift_distance_mm"`
	StanceHeight        float64 `json:"stance_height_mm"`
	DwellTimeMs         int64   `json:"dwell_time_ms"`
	UseFullCircleStance bool    `json:"use_full_circle_stance,omitempty"`
}

func (c GaitParamsConfig) toParams() GaitParams {
	return GaitParams{
		StepRadius:          c.StepRadius,
		LegLiftDistance:     c.LegLiftDistance,
		StanceHeight:        c.StanceHeight,
		DwellTime:           time.Duration(c.DwellTimeMs) * time.Millisecond,
		UseFullCircleStance: c.UseFullCircleStance,
	}
}

// BalanceConfig is the JSON-decodable form of BalanceCompensatorConfig.
type BalanceConfig struct {
	Enabled             bool    `json:"enabled,omitempty"`
	GyroQuietThreshold  float64 `json:"gyro_quiet_threshold_dps,omitempty"`
	MaxCorrectionDeg     float64 `json:"max_correction_deg,omitempty"`
	CorrectionGain       float64 `json:"correction_gain,omitempty"`
	SampleIntervalMs     int64   `json:"sample_interval_ms,omitempty"`
	SettleDurationMs     int64   `json:"settle_duration_ms,omitempty"`
}

func (c BalanceConfig) toCompensatorConfig() BalanceCompensatorConfig {
	return BalanceCompensatorConfig{
		PollInterval:         time.Duration(c.SampleIntervalMs) * time.Millisecond,
		Gain:                 c.CorrectionGain,
		MaxCompensationAngle: c.MaxCorrectionDeg,
		GyroQuietThreshold:   c.GyroQuietThreshold,
	}
}

// HexapodConfig is the top-level JSON-decodable configuration surface: the
// hexagon geometry, all six legs, the servo transport, predefined positions,
// per-gait-mode default parameters, and the optional balance compensator.
// Validate fills defaults and reports warnings the way SoArm101Config.Validate
// did for the SO-101 arm, generalized to eighteen joints across six legs.
type HexapodConfig struct {
	Port     string        `json:"port,omitempty"`
	Baudrate int           `json:"baudrate,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`

	HexagonSideLengthMM float64 `json:"hexagon_side_length_mm"`

	Legs [numLegs]LegConfig `json:"legs"`

	DefaultSpeedPercent int `json:"default_speed_percent,omitempty"`
	DefaultAccelPercent int `json:"default_accel_percent,omitempty"`

	TripodParams GaitParamsConfig `json:"tripod_params"`
	WaveParams   GaitParamsConfig `json:"wave_params"`

	Balance BalanceConfig `json:"balance,omitempty"`

	CalibrationFile string `json:"calibration_file,omitempty"`

	// Not serialized.
	Logger logging.Logger `json:"-"`
}

// Validate checks required fields, fills defaults for optional ones, and
// returns (warnings, errors-as-strings, fatal-error) the way the reference
// arm config's Validate does, generalized to a full leg/joint tree.
func (cfg *HexapodConfig) Validate(path string) ([]string, []string, error) {
	var warnings []string

	if cfg.Port == "" {
		return nil, nil, newConfigError("must specify port for serial communication")
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = defaultBaudRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProtoTimeout
	}
	if cfg.HexagonSideLengthMM <= 0 {
		return nil, nil, newConfigError("hexagon_side_length_mm must be positive")
	}

	seenChannels := make(map[int]int, 3*numLegs)
	for i := range cfg.Legs {
		leg := &cfg.Legs[i]
		for _, j := range []struct {
			name string
			jc   *JointConfig
		}{
			{"coxa", &leg.Coxa}, {"femur", &leg.Femur}, {"tibia", &leg.Tibia},
		} {
			if j.jc.AngleMin >= j.jc.AngleMax {
				return nil, nil, newConfigError("leg %d %s: angle_min_deg must be less than angle_max_deg", i, j.name)
			}
			if j.jc.ServoMin == j.jc.ServoMax {
				return nil, nil, newConfigError("leg %d %s: servo_min and servo_max must differ", i, j.name)
			}
			if prior, ok := seenChannels[j.jc.Channel]; ok {
				return nil, nil, newConfigError("leg %d %s: channel %d already used by leg %d", i, j.name, j.jc.Channel, prior)
			}
			seenChannels[j.jc.Channel] = i
		}
	}

	if cfg.DefaultSpeedPercent == 0 {
		cfg.DefaultSpeedPercent = 50
	}
	if cfg.DefaultAccelPercent == 0 {
		cfg.DefaultAccelPercent = 50
	}
	if cfg.TripodParams.StepRadius == 0 {
		warnings = append(warnings, "tripod_params.step_radius_mm unset, gait will not move the hexapod")
	}
	if cfg.WaveParams.StepRadius == 0 {
		warnings = append(warnings, "wave_params.step_radius_mm unset, gait will not move the hexapod")
	}

	return warnings, nil, nil
}

// BuildLegs constructs the six runtime Leg values this configuration
// describes, applying the given calibration store's servo endpoints (if any
// entry exists for a leg/joint) over the config's own ServoMin/ServoMax.
func (cfg *HexapodConfig) BuildLegs(cal CalibrationStore) [numLegs]*Leg {
	var legs [numLegs]*Leg
	for i := range cfg.Legs {
		lc := cfg.Legs[i]
		coxa := lc.Coxa.toJoint(JointCoxa, cal, i)
		femur := lc.Femur.toJoint(JointFemur, cal, i)
		tibia := lc.Tibia.toJoint(JointTibia, cal, i)
		legs[i] = NewLeg(i, coxa, femur, tibia, lc.CoxaZOffset, lc.TibiaXOffset,
			pointFrom(lc.EndEffectorOffsetX, lc.EndEffectorOffsetY, lc.EndEffectorOffsetZ))
	}
	return legs
}

// LoadHexapodConfig reads and validates a HexapodConfig from a JSON file,
// the same read-then-Validate flow the reference arm's module entry point
// uses for SoArm101Config.
func LoadHexapodConfig(path string, logger logging.Logger) (*HexapodConfig, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading hexapod config")
	}
	var cfg HexapodConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, errors.Wrap(err, "parsing hexapod config JSON")
	}
	cfg.Logger = logger
	warnings, _, err := cfg.Validate(path)
	if err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

// Build assembles a live Hexapod, its GaitGenerator (with the tripod gait
// installed as the active gait from the config's tripod parameters; the wave
// parameters are available through WaveGaitParams), and its servo transport. If cfg.Port is empty, the servo bus is first located with
// DiscoverServoBus across every mapped servo ID.
func (cfg *HexapodConfig) Build(ctx context.Context) (*Hexapod, *GaitGenerator, *SerialServoController, error) {
	port := cfg.Port
	if port == "" {
		candidateIDs := make([]int, 0, 3*numLegs)
		for i := range cfg.Legs {
			candidateIDs = append(candidateIDs, cfg.Legs[i].Coxa.Channel, cfg.Legs[i].Femur.Channel, cfg.Legs[i].Tibia.Channel)
		}
		found, err := DiscoverServoBus(ctx, candidateIDs, cfg.Logger)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "discovering servo bus")
		}
		if len(found) == 0 {
			return nil, nil, nil, newConfigError("no serial port responded to any configured servo ID")
		}
		port = found[0].Port
		if cfg.CalibrationFile == "" {
			cfg.CalibrationFile = CalibrationFileNameForPort(port)
		}
	}

	cal := LoadCalibration(cfg.CalibrationFile, cfg.Logger)
	legs := cfg.BuildLegs(cal)

	// Each joint's configured channel doubles as its Feetech bus servo ID;
	// this configuration surface has no separate servo-ID field to keep the
	// eighteen-joint layout flat and addressable purely by channel number.
	channelServoID := make(map[int]int, 3*numLegs)
	for _, leg := range legs {
		channelServoID[leg.Coxa.Channel] = leg.Coxa.Channel
		channelServoID[leg.Femur.Channel] = leg.Femur.Channel
		channelServoID[leg.Tibia.Channel] = leg.Tibia.Channel
	}

	controller, err := NewSerialServoController(SerialControllerConfig{
		PortName:       port,
		BaudRate:       cfg.Baudrate,
		Timeout:        cfg.Timeout,
		ChannelServoID: channelServoID,
	}, cfg.Logger)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "opening servo controller")
	}

	h := NewHexapod(controller, cfg.Logger, cfg.HexagonSideLengthMM, legs)
	for i := range cfg.Legs {
		h.LegMountAngles[i] = cfg.Legs[i].MountAngleDeg
	}
	if err := h.SetAllServosSpeed(cfg.DefaultSpeedPercent); err != nil {
		cfg.Logger.Warnf("failed to apply default servo speed: %v", err)
	}
	if err := h.SetAllServosAccel(cfg.DefaultAccelPercent); err != nil {
		cfg.Logger.Warnf("failed to apply default servo acceleration: %v", err)
	}

	gg := NewGaitGenerator(h, cfg.Logger)
	if err := gg.CreateGait(GaitKindTripod, cfg.TripodParams.toParams()); err != nil {
		return nil, nil, nil, errors.Wrap(err, "registering tripod gait")
	}

	return h, gg, controller, nil
}

// WaveGaitParams converts the config's wave-gait parameters to the runtime
// GaitParams, for callers that want to switch the generator to GaitKindWave
// via CreateGait after Build.
func (cfg *HexapodConfig) WaveGaitParams() GaitParams { return cfg.WaveParams.toParams() }

// BalanceCompensatorConfig converts the config's balance section to the
// runtime BalanceCompensatorConfig, and reports whether balance compensation
// is enabled. The caller supplies its own TiltReader (an IMU driver), which
// is hardware-specific and outside this configuration surface.
func (cfg *HexapodConfig) BalanceCompensatorConfig() (BalanceCompensatorConfig, bool) {
	return cfg.Balance.toCompensatorConfig(), cfg.Balance.Enabled
}

func (jc JointConfig) toJoint(name JointName, cal CalibrationStore, legIdx int) Joint {
	servoMin, servoMax := jc.ServoMin, jc.ServoMax
	if entry, ok := cal.Lookup(legIdx, name); ok {
		servoMin, servoMax = entry.ServoMin, entry.ServoMax
	}
	return Joint{
		Name:          name,
		Length:        jc.Length,
		Channel:       jc.Channel,
		AngleMin:      jc.AngleMin,
		AngleMax:      jc.AngleMax,
		HasSoftLimits: jc.HasSoftLimits,
		AngleLimitMin: jc.AngleLimitMin,
		AngleLimitMax: jc.AngleLimitMax,
		ServoMin:      servoMin,
		ServoMax:      servoMax,
		Invert:        jc.Invert,
	}
}
