package motion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/CubeGo/internal/config"
	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/hw/gpio"
	"github.com/cjeanneret/CubeGo/internal/hw/stepper"
	"github.com/cjeanneret/CubeGo/internal/logic/geometry"
	"github.com/cjeanneret/CubeGo/internal/protocol"
)

// ErrUnknownMotor is returned for a motor index outside the arena.
var ErrUnknownMotor = errors.New("motion: unknown motor")

// Motor is one entry of the motor arena.
type Motor struct {
	Index   int
	Face    string
	stepper *stepper.Stepper
}

// Stats is a snapshot of what the controller has done since startup.
type Stats struct {
	Commands    int        `json:"commands"`
	Pulses      int        `json:"pulses"`
	Errors      int        `json:"errors"`
	Busy        bool       `json:"busy"`
	LastCommand string     `json:"last_command,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	LastAt      *time.Time `json:"last_at,omitempty"`
}

// Controller drives the face motors. It executes one command at a time:
// a pulse train on one motor never overlaps another.
type Controller struct {
	mu     sync.Mutex
	motors []Motor
	steps  *geometry.StepsCalculator

	statsMu sync.Mutex
	stats   Stats
}

// NewController builds the motor arena from configuration. Every pin is
// driven low before the first command.
func NewController(g gpio.Driver, cfg *config.Config) (*Controller, error) {
	steps, err := geometry.NewStepsCalculator(cfg)
	if err != nil {
		return nil, err
	}

	c := &Controller{steps: steps, motors: make([]Motor, 0, cfg.MotorCount())}
	for i, mc := range cfg.Motors {
		s, err := stepper.NewStepper(g, stepper.Config{
			StepPin:   mc.StepPin,
			DirPin:    mc.DirPin,
			EnablePin: mc.EnablePin,
			InvertDir: mc.InvertDir,
			HighDwell: cfg.StepHigh(),
			LowDwell:  cfg.StepLow(),
			Settle:    cfg.Settle(),
		})
		if err != nil {
			return nil, fmt.Errorf("motor %d (%s): %w", i, mc.Face, err)
		}
		c.motors = append(c.motors, Motor{Index: i, Face: mc.Face, stepper: s})
		debug.Verbose("Motor %d: face %s, STEP=%d DIR=%d", i, mc.Face, mc.StepPin, mc.DirPin)
	}
	debug.Info("Motion controller ready: %d motors, %d pulses per base turn, %d per revolution",
		len(c.motors), steps.MicrostepsPerBaseTurn(), steps.MicrostepsPerRev())
	return c, nil
}

// MotorCount returns the size of the arena.
func (c *Controller) MotorCount() int {
	return len(c.motors)
}

// Motors returns the arena entries in index order.
func (c *Controller) Motors() []Motor {
	return append([]Motor(nil), c.motors...)
}

// PulsesPerBaseTurn returns the pulse count of one base turn.
func (c *Controller) PulsesPerBaseTurn() int {
	return c.steps.MicrostepsPerBaseTurn()
}

// Execute runs one command: set DIR, emit turns × pulses-per-base-turn
// step pulses, settle, then drive the motor pins back low. It returns the
// number of pulses emitted.
func (c *Controller) Execute(cmd protocol.Command) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cmd.Motor < 0 || cmd.Motor >= len(c.motors) {
		return 0, c.fail(cmd, fmt.Errorf("%w: %d (have %d)", ErrUnknownMotor, cmd.Motor, len(c.motors)))
	}
	if !cmd.Sense.Valid() || cmd.Turns <= 0 {
		return 0, c.fail(cmd, fmt.Errorf("%w: %s", protocol.ErrMalformed, cmd))
	}

	m := c.motors[cmd.Motor]
	pulses, err := c.steps.PulsesForTurns(cmd.Turns)
	if err != nil {
		return 0, c.fail(cmd, fmt.Errorf("%w: %w", protocol.ErrMalformed, err))
	}
	c.setBusy(true)
	debug.Move(m.Index, pulses, string(cmd.Sense))
	debug.Verbose("Motor %d: %.0f° in about %v", m.Index,
		c.steps.AngleForTurns(cmd.Turns), time.Duration(pulses)*m.stepper.PulsePeriod())

	n, err := m.stepper.Pulse(cmd.Sense.Clockwise(), pulses)
	idleErr := m.stepper.Idle()
	c.setBusy(false)
	if err != nil {
		return n, c.fail(cmd, fmt.Errorf("motor %d after %d/%d pulses: %w", m.Index, n, pulses, err))
	}
	if idleErr != nil {
		return n, c.fail(cmd, fmt.Errorf("motor %d idle: %w", m.Index, idleErr))
	}

	c.statsMu.Lock()
	c.stats.Commands++
	c.stats.Pulses += n
	c.stats.LastCommand = cmd.String()
	c.stats.LastAt = now()
	c.statsMu.Unlock()
	return n, nil
}

// EnableMotors enables every driver. Motors hold position.
func (c *Controller) EnableMotors() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.motors {
		if err := m.stepper.Enable(); err != nil {
			return fmt.Errorf("enable motor %d: %w", m.Index, err)
		}
	}
	return nil
}

// DisableMotors disables every driver. Motors freewheel.
func (c *Controller) DisableMotors() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.motors {
		if err := m.stepper.Disable(); err != nil {
			return fmt.Errorf("disable motor %d: %w", m.Index, err)
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Controller) setBusy(b bool) {
	c.statsMu.Lock()
	c.stats.Busy = b
	c.statsMu.Unlock()
}

func (c *Controller) fail(cmd protocol.Command, err error) error {
	c.statsMu.Lock()
	c.stats.Errors++
	c.stats.LastCommand = cmd.String()
	c.stats.LastError = err.Error()
	c.stats.LastAt = now()
	c.statsMu.Unlock()
	debug.Error(err)
	return err
}

func now() *time.Time {
	t := time.Now()
	return &t
}
