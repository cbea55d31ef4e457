package hexapod

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
)

// DiscoveredBus names a serial port found to host a responding Feetech bus,
// together with which of its expected servo IDs answered a ping.
type DiscoveredBus struct {
	Port          string
	RespondingIDs []int
}

// DiscoverServoBus scans the host's serial ports for one carrying a Feetech
// STS bus with at least one of the given servo IDs attached, the same
// enumerate-then-probe technique the reference arm's discovery service uses
// to find an SO-101 arm, generalized to the hexapod's eighteen leg servos.
func DiscoverServoBus(ctx context.Context, candidateIDs []int, logger logging.Logger) ([]DiscoveredBus, error) {
	ports := filterCandidatePorts(enumerateSerialPorts())
	if logger != nil {
		logger.Debugf("discovery: probing %d candidate serial ports", len(ports))
	}

	var found []DiscoveredBus
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		responding := pingServos(port, candidateIDs)
		if len(responding) == 0 {
			continue
		}
		if logger != nil {
			logger.Infof("discovery: found %d responding servos on %s", len(responding), port)
		}
		found = append(found, DiscoveredBus{Port: port, RespondingIDs: responding})
	}
	return found, nil
}

// pingServos opens a short-lived bus on port and pings every candidate ID,
// returning the subset that answered. A port that fails to open yields no
// responders rather than an error, since an unrelated serial device on the
// same system is an expected, non-fatal outcome of a broad port scan.
func pingServos(port string, candidateIDs []int) []int {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: defaultBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  500 * time.Millisecond,
	})
	if err != nil {
		return nil
	}
	defer bus.Close()

	var responding []int
	for _, id := range candidateIDs {
		servo := feetech.NewServo(bus, id, &feetech.ModelSTS3215)
		if _, err := servo.Ping(context.Background()); err == nil {
			responding = append(responding, id)
		}
	}
	return responding
}

// filterCandidatePorts keeps only serial ports whose name matches a known
// USB-serial naming convention across Linux, macOS, and Windows.
func filterCandidatePorts(ports []string) []string {
	var candidates []string
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

func isCandidatePort(port string) bool {
	if strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM") {
		return true
	}
	if strings.HasPrefix(port, "/dev/tty.usbmodem") || strings.HasPrefix(port, "/dev/tty.usbserial") ||
		strings.HasPrefix(port, "/dev/cu.usbmodem") || strings.HasPrefix(port, "/dev/cu.usbserial") {
		return true
	}
	if strings.HasPrefix(port, "COM") {
		return true
	}
	return false
}

// extractPortSuffix returns a friendly identifier for a port path, suitable
// for naming a port-specific calibration file.
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}

// CalibrationFileNameForPort derives the port-specific calibration filename
// Build uses for a discovered bus when no calibration file is configured,
// mirroring the reference discovery service's per-port naming.
func CalibrationFileNameForPort(port string) string {
	return extractPortSuffix(port) + "_calibration.json"
}

func enumerateSerialPorts() []string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil
	}
	portPaths := make([]string, 0, len(ports))
	for _, p := range ports {
		portPaths = append(portPaths, p.Name)
	}
	return portPaths
}
