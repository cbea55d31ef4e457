package hexapod

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

type fakeTiltReader struct {
	mu                      sync.Mutex
	roll, pitch, yaw, gyro  float64
	err                     error
	calls                   int
}

func (f *fakeTiltReader) ReadTilt() (float64, float64, float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.roll, f.pitch, f.yaw, f.gyro, f.err
}

func (f *fakeTiltReader) set(roll, pitch, gyro float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roll, f.pitch, f.gyro = roll, pitch, gyro
}

func TestNewBalanceCompensatorFillsDefaults(t *testing.T) {
	h, _ := testHexapod(t)
	bc := NewBalanceCompensator(h, &fakeTiltReader{}, logging.NewTestLogger(t), BalanceCompensatorConfig{})
	assert.Equal(t, 50*time.Millisecond, bc.cfg.PollInterval)
	assert.Equal(t, 0.5, bc.cfg.Gain)
	assert.Equal(t, 15.0, bc.cfg.MaxCompensationAngle)
	assert.Equal(t, 0.8, bc.cfg.DecayFactor)
}

func TestBalanceCompensatorAppliesCorrection(t *testing.T) {
	h, _ := testHexapod(t)
	reader := &fakeTiltReader{}
	reader.set(10, 0, 0)
	bc := NewBalanceCompensator(h, reader, logging.NewTestLogger(t), BalanceCompensatorConfig{
		PollInterval: time.Millisecond, Gain: 1, MaxCompensationAngle: 15, GyroQuietThreshold: 5,
	})
	bc.tick()
	assert.NotEqual(t, 0.0, bc.lastRoll)
}

func TestBalanceCompensatorClampsCorrection(t *testing.T) {
	h, _ := testHexapod(t)
	reader := &fakeTiltReader{}
	reader.set(100, 0, 0)
	bc := NewBalanceCompensator(h, reader, logging.NewTestLogger(t), BalanceCompensatorConfig{
		PollInterval: time.Millisecond, Gain: 1, MaxCompensationAngle: 5, GyroQuietThreshold: 5,
	})
	bc.tick()
	assert.LessOrEqual(t, bc.lastRoll, 5.0)
	assert.GreaterOrEqual(t, bc.lastRoll, -5.0)
}

func TestBalanceCompensatorDecaysWhenGyroNoisy(t *testing.T) {
	h, _ := testHexapod(t)
	reader := &fakeTiltReader{}
	reader.set(10, 0, 0)
	bc := NewBalanceCompensator(h, reader, logging.NewTestLogger(t), BalanceCompensatorConfig{
		PollInterval: time.Millisecond, Gain: 1, MaxCompensationAngle: 15, GyroQuietThreshold: 5, DecayFactor: 0.5,
	})
	bc.tick() // settles a correction while quiet
	first := bc.lastRoll
	require.NotEqual(t, 0.0, first)

	reader.set(10, 0, 100) // now noisy
	bc.tick()
	assert.InDelta(t, first*0.5, bc.lastRoll, 1e-9)
}

func TestBalanceCompensatorStartStop(t *testing.T) {
	h, _ := testHexapod(t)
	reader := &fakeTiltReader{}
	bc := NewBalanceCompensator(h, reader, logging.NewTestLogger(t), BalanceCompensatorConfig{PollInterval: time.Millisecond})
	bc.Start()
	bc.Start() // second Start is a no-op
	time.Sleep(5 * time.Millisecond)
	bc.Stop()
	bc.Stop() // second Stop is a no-op, must not block
}
