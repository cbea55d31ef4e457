package hexapod

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// ServoController is the single abstraction the locomotion core depends on
// for hardware I/O. Every joint command ultimately flows through one of
// these five operations; the joint, leg, hexapod and gait code never talk
// to a transport directly.
type ServoController interface {
	SetTarget(channel, count int) error
	SetSpeed(channel, count int) error
	SetAcceleration(channel, count int) error
	// SetMultipleTargets writes every (channel, count) pair atomically, in
	// ascending channel order, as a single transport operation.
	SetMultipleTargets(targets []ChannelTarget) error
	GetMovingState() (bool, error)
}

// ChannelTarget pairs a controller channel with a target servo count.
type ChannelTarget struct {
	Channel int
	Count   int
}

// WaitUntilMotionComplete polls GetMovingState every 200ms, tolerating up to
// a one-second window where the controller has not yet latched a "moving"
// state, and otherwise waiting until motion stops or stop fires.
func WaitUntilMotionComplete(c ServoController, stop <-chan struct{}) error {
	const pollInterval = 200 * time.Millisecond
	const startWindow = 1 * time.Second

	deadline := time.Now().Add(startWindow)
	for time.Now().Before(deadline) {
		moving, err := c.GetMovingState()
		if err != nil {
			return errors.Wrap(err, "polling moving state")
		}
		if moving {
			break
		}
		select {
		case <-stop:
			return nil
		case <-time.After(pollInterval):
		}
	}

	for {
		moving, err := c.GetMovingState()
		if err != nil {
			return errors.Wrap(err, "polling moving state")
		}
		if !moving {
			return nil
		}
		select {
		case <-stop:
			return nil
		case <-time.After(pollInterval):
		}
	}
}

// MockController is an in-memory ServoController used by tests and by
// callers exercising the locomotion core without hardware attached.
type MockController struct {
	mu      sync.Mutex
	targets map[int]int
	speeds  map[int]int
	accels  map[int]int
	moving  bool
}

// NewMockController returns a MockController that reports GetMovingState as
// false (idle) until told otherwise via SetMoving.
func NewMockController() *MockController {
	return &MockController{
		targets: make(map[int]int),
		speeds:  make(map[int]int),
		accels:  make(map[int]int),
	}
}

func (m *MockController) SetTarget(channel, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[channel] = count
	return nil
}

func (m *MockController) SetSpeed(channel, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speeds[channel] = count
	return nil
}

func (m *MockController) SetAcceleration(channel, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accels[channel] = count
	return nil
}

func (m *MockController) SetMultipleTargets(targets []ChannelTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]ChannelTarget(nil), targets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Channel < sorted[j].Channel })
	for _, t := range sorted {
		m.targets[t.Channel] = t.Count
	}
	return nil
}

func (m *MockController) GetMovingState() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moving, nil
}

// SetMoving lets tests simulate the controller reporting motion in progress.
func (m *MockController) SetMoving(moving bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moving = moving
}

// Target returns the last commanded count for a channel, for test assertions.
func (m *MockController) Target(channel int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.targets[channel]
	return v, ok
}

// Speed returns the last commanded speed for a channel, for test assertions.
func (m *MockController) Speed(channel int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.speeds[channel]
	return v, ok
}

const (
	defaultBaudRate     = 1000000
	defaultProtoTimeout = 500 * time.Millisecond
	servoSettleDelay    = 2 * time.Second
)

// SerialServoController drives the eighteen leg servos over a single Feetech
// STS-protocol bus. It wraps a feetech.ServoGroup so every SetMultipleTargets
// call becomes one grouped sync-write on the bus, and serializes every other
// transport access behind a single mutex, matching the "controller assumed
// to serialize commands internally" contract the core relies on.
type SerialServoController struct {
	mu     sync.Mutex
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	logger logging.Logger

	// channelServoID maps a controller channel to the servo ID on the bus;
	// servoChannel is its inverse, built once at construction.
	channelServoID map[int]int
	servoChannel   map[int]int
}

// SerialControllerConfig configures the concrete serial transport.
type SerialControllerConfig struct {
	PortName string
	BaudRate int
	Timeout  time.Duration
	// ChannelServoID maps controller channel -> servo bus ID.
	ChannelServoID map[int]int
}

// NewSerialServoController opens the Feetech bus, builds one ServoGroup
// spanning every mapped servo, and enables torque on the group.
func NewSerialServoController(cfg SerialControllerConfig, logger logging.Logger) (*SerialServoController, error) {
	if cfg.PortName == "" {
		return nil, newConfigError("serial port is required")
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProtoTimeout
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.PortName,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open feetech bus on %s", cfg.PortName)
	}

	servoChannel := make(map[int]int, len(cfg.ChannelServoID))
	servos := make([]*feetech.Servo, 0, len(cfg.ChannelServoID))
	for ch, id := range cfg.ChannelServoID {
		servos = append(servos, feetech.NewServo(bus, id, &feetech.ModelSTS3215))
		servoChannel[id] = ch
	}

	c := &SerialServoController{
		bus:            bus,
		group:          feetech.NewServoGroup(bus, servos...),
		logger:         logger,
		channelServoID: cfg.ChannelServoID,
		servoChannel:   servoChannel,
	}

	if err := c.group.EnableAll(context.Background()); err != nil {
		logger.Warnf("failed to enable torque on servo group: %v", err)
	}

	return c, nil
}

func (c *SerialServoController) servoID(channel int) (int, error) {
	id, ok := c.channelServoID[channel]
	if !ok {
		return 0, errors.Errorf("no servo mapped to channel %d", channel)
	}
	return id, nil
}

func (c *SerialServoController) SetTarget(channel, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.servoID(channel)
	if err != nil {
		return err
	}
	err = c.group.SetPositions(context.Background(), map[int]int{id: count})
	return errors.Wrapf(err, "set target channel %d", channel)
}

func (c *SerialServoController) SetSpeed(channel, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.servoID(channel)
	if err != nil {
		return err
	}
	return errors.Wrapf(c.group.ServoByID(id).SetVelocity(context.Background(), count), "set speed channel %d", channel)
}

func (c *SerialServoController) SetAcceleration(channel, count int) error {
	// Acceleration is not yet exposed by the feetech-servo library's register
	// set for the STS protocol; accepted as a no-op, matching the reference
	// controller's own documented limitation.
	return nil
}

func (c *SerialServoController) SetMultipleTargets(targets []ChannelTarget) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	positions := make(map[int]int, len(targets))
	for _, t := range targets {
		id, err := c.servoID(t.Channel)
		if err != nil {
			return err
		}
		positions[id] = t.Count
	}
	return errors.Wrap(c.group.SetPositions(context.Background(), positions), "set multiple targets")
}

func (c *SerialServoController) GetMovingState() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.channelServoID {
		moving, err := c.group.ServoByID(id).Moving(context.Background())
		if err != nil {
			return false, errors.Wrapf(err, "reading moving state for servo %d", id)
		}
		if moving {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the underlying bus.
func (c *SerialServoController) Close() error {
	return c.bus.Close()
}
