package hexapod

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// CalibrationEntry holds the servo-count endpoints calibrated for one joint.
type CalibrationEntry struct {
	ServoMin int `json:"servo_min"`
	ServoMax int `json:"servo_max"`
}

func (e CalibrationEntry) valid() bool {
	return e.ServoMin < e.ServoMax && e.ServoMin >= 0 && e.ServoMax >= 0 &&
		e.ServoMin <= 4095 && e.ServoMax <= 4095
}

// calibrationKey names one joint within the calibration store, matching the
// "leg_<n>.<coxa|femur|tibia>" addressing scheme the configuration surface
// documents.
type calibrationKey struct {
	legIdx int
	joint  JointName
}

// CalibrationStore is a loaded calibration document: the servo-count
// endpoints for some or all of the eighteen joints. Joints absent from the
// store fall back to the compiled-in config defaults, the same "fall back to
// defaults, never fail hard" contract the reference arm's LoadCalibration
// establishes.
type CalibrationStore struct {
	entries map[calibrationKey]CalibrationEntry
}

// Lookup returns the calibrated servo-count endpoints for one joint, if any.
func (s CalibrationStore) Lookup(legIdx int, joint JointName) (CalibrationEntry, bool) {
	if s.entries == nil {
		return CalibrationEntry{}, false
	}
	e, ok := s.entries[calibrationKey{legIdx, joint}]
	return e, ok
}

// calibrationFileFormat is the on-disk JSON shape: a flat map from
// "leg_<n>.<joint>" to its servo endpoints, chosen so the file reads legibly
// and new joints can be added without touching a fixed struct shape.
type calibrationFileFormat map[string]CalibrationEntry

func keyString(legIdx int, joint JointName) string {
	return "leg_" + strconv.Itoa(legIdx) + "." + string(joint)
}

// LoadCalibration loads a CalibrationStore from path, falling back to an
// empty store (every joint uses its config-file default) on any error. It
// never returns an error, matching SoArm101Config.LoadCalibration's
// "missing or bad file is not fatal" contract.
func LoadCalibration(path string, logger logging.Logger) CalibrationStore {
	if path == "" {
		if logger != nil {
			logger.Debug("no calibration file specified, using config defaults")
		}
		return CalibrationStore{}
	}
	if !filepath.IsAbs(path) {
		dataDir := os.Getenv("VIAM_MODULE_DATA")
		if dataDir == "" {
			dataDir = "/tmp"
		}
		path = filepath.Join(dataDir, path)
	}

	store, err := LoadCalibrationFromFile(path)
	if err != nil {
		if logger != nil {
			logger.Warnf("failed to load calibration from %s: %v, using config defaults", path, err)
		}
		return CalibrationStore{}
	}
	if logger != nil {
		logger.Debugf("loaded calibration from %s", path)
	}
	return store
}

// LoadCalibrationFromFile reads and validates a calibration document from a
// JSON file. Entries that fail validation are dropped with their joint
// falling back to the config-file default, rather than failing the whole
// load, since one bad joint should not block every other joint's commanded
// calibration.
func LoadCalibrationFromFile(path string) (CalibrationStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CalibrationStore{}, errors.Wrap(err, "reading calibration file")
	}

	var raw calibrationFileFormat
	if err := json.Unmarshal(data, &raw); err != nil {
		return CalibrationStore{}, errors.Wrap(err, "parsing calibration JSON")
	}

	store := CalibrationStore{entries: make(map[calibrationKey]CalibrationEntry, len(raw))}
	for i := 0; i < numLegs; i++ {
		for _, joint := range []JointName{JointCoxa, JointFemur, JointTibia} {
			entry, ok := raw[keyString(i, joint)]
			if !ok || !entry.valid() {
				continue
			}
			store.entries[calibrationKey{i, joint}] = entry
		}
	}
	return store, nil
}

// SaveCalibrationToFile persists a CalibrationStore as a JSON document in
// the "leg_<n>.<joint>" flat-map shape LoadCalibrationFromFile reads back.
func SaveCalibrationToFile(path string, store CalibrationStore) error {
	raw := make(calibrationFileFormat, len(store.entries))
	for key, entry := range store.entries {
		raw[keyString(key.legIdx, key.joint)] = entry
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling calibration")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "writing calibration file")
}

// CalibrationFromHexapod captures the servo-count endpoints currently
// configured on a live Hexapod's joints, suitable for SaveCalibrationToFile.
func CalibrationFromHexapod(h *Hexapod) CalibrationStore {
	h.mu.RLock()
	defer h.mu.RUnlock()
	store := CalibrationStore{entries: make(map[calibrationKey]CalibrationEntry, 3*numLegs)}
	for i, leg := range h.Legs {
		store.entries[calibrationKey{i, JointCoxa}] = CalibrationEntry{ServoMin: leg.Coxa.ServoMin, ServoMax: leg.Coxa.ServoMax}
		store.entries[calibrationKey{i, JointFemur}] = CalibrationEntry{ServoMin: leg.Femur.ServoMin, ServoMax: leg.Femur.ServoMax}
		store.entries[calibrationKey{i, JointTibia}] = CalibrationEntry{ServoMin: leg.Tibia.ServoMin, ServoMax: leg.Tibia.ServoMax}
	}
	return store
}

// ReadServoPositionLimits reads a single servo's present min/max angle-limit
// registers directly off the bus, the same register-probing technique the
// reference arm's ReadCalibrationFromServos uses, narrowed to the two
// registers a joint calibration actually needs. A read failure is not fatal:
// it is reported to the caller, which is expected to fall back to the
// config-file default exactly as the arm's loader does per-servo.
func ReadServoPositionLimits(ctx context.Context, bus *feetech.Bus, servoID int) (CalibrationEntry, error) {
	servo := feetech.NewServo(bus, servoID, &feetech.ModelSTS3215)

	minData, err := servo.ReadRegister(ctx, "min_angle_limit")
	if err != nil {
		return CalibrationEntry{}, errors.Wrapf(err, "reading min_angle_limit for servo %d", servoID)
	}
	maxData, err := servo.ReadRegister(ctx, "max_angle_limit")
	if err != nil {
		return CalibrationEntry{}, errors.Wrapf(err, "reading max_angle_limit for servo %d", servoID)
	}
	if len(minData) != 2 || len(maxData) != 2 {
		return CalibrationEntry{}, errors.Errorf("unexpected register width for servo %d", servoID)
	}

	entry := CalibrationEntry{
		ServoMin: int(minData[0]) | int(minData[1])<<8,
		ServoMax: int(maxData[0]) | int(maxData[1])<<8,
	}
	if !entry.valid() {
		return CalibrationEntry{}, errors.Errorf("servo %d reported invalid range %d-%d", servoID, entry.ServoMin, entry.ServoMax)
	}
	return entry, nil
}
