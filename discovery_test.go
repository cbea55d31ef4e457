package hexapod

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterCandidatePorts(t *testing.T) {
	tests := []struct {
		name     string
		ports    []string
		expected []string
	}{
		{
			name:     "Linux USB ports",
			ports:    []string{"/dev/ttyUSB0", "/dev/ttyS0", "/dev/ttyACM0", "/dev/null"},
			expected: []string{"/dev/ttyUSB0", "/dev/ttyACM0"},
		},
		{
			name:     "macOS USB ports",
			ports:    []string{"/dev/tty.usbmodem123", "/dev/tty.Bluetooth", "/dev/cu.usbserial-AB"},
			expected: []string{"/dev/tty.usbmodem123", "/dev/cu.usbserial-AB"},
		},
		{
			name:     "Windows COM ports",
			ports:    []string{"COM3", "COM10", "LPT1"},
			expected: []string{"COM3", "COM10"},
		},
		{
			name:     "no matching ports",
			ports:    []string{"/dev/null", "/dev/zero"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filterCandidatePorts(tt.ports))
		})
	}
}

func TestIsCandidatePort(t *testing.T) {
	assert.True(t, isCandidatePort("/dev/ttyUSB0"))
	assert.True(t, isCandidatePort("/dev/ttyACM3"))
	assert.True(t, isCandidatePort("/dev/tty.usbmodem14201"))
	assert.True(t, isCandidatePort("/dev/cu.usbserial-AB1"))
	assert.True(t, isCandidatePort("COM7"))
	assert.False(t, isCandidatePort("/dev/ttyS0"))
	assert.False(t, isCandidatePort("/dev/null"))
}

func TestExtractPortSuffix(t *testing.T) {
	assert.Equal(t, "ttyUSB0", extractPortSuffix("/dev/ttyUSB0"))
	assert.Equal(t, "usbmodem14201", extractPortSuffix("/dev/tty.usbmodem14201"))
	assert.Equal(t, "usbserial-AB1", extractPortSuffix("/dev/cu.usbserial-AB1"))
	assert.Equal(t, "COM3", extractPortSuffix("COM3"))
}

func TestCalibrationFileNameForPort(t *testing.T) {
	assert.Equal(t, "ttyUSB0_calibration.json", CalibrationFileNameForPort("/dev/ttyUSB0"))
}

func TestEnumerateSerialPortsDoesNotPanic(t *testing.T) {
	// System-dependent: only verify it returns without panicking.
	ports := enumerateSerialPorts()
	_ = ports
}

func TestPingServosUnopenablePortYieldsNoResponders(t *testing.T) {
	responding := pingServos("/dev/definitely-not-a-real-port", []int{1, 2, 3})
	assert.Empty(t, responding)
}
