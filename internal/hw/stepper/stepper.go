package stepper

import (
	"fmt"
	"time"

	"github.com/cjeanneret/CubeGo/internal/debug"
	"github.com/cjeanneret/CubeGo/internal/hw/gpio"
)

// Config holds the hardware configuration for one face motor.
type Config struct {
	StepPin   int
	DirPin    int
	EnablePin int  // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	InvertDir bool // swap the level written for clockwise and counter-clockwise

	HighDwell time.Duration // STEP held high per pulse
	LowDwell  time.Duration // STEP held low per pulse
	Settle    time.Duration // pause once a pulse train completes
}

// Stepper drives a single motor through STEP/DIR lines.
type Stepper struct {
	gpio gpio.Driver
	cfg  Config

	sleep func(time.Duration)
}

// NewStepper configures the motor pins as outputs, drives them low and
// enables the driver.
// Zero dwell times default to 500µs, matching a 1 kHz pulse train.
func NewStepper(g gpio.Driver, cfg Config) (*Stepper, error) {
	if cfg.HighDwell <= 0 {
		cfg.HighDwell = 500 * time.Microsecond
	}
	if cfg.LowDwell <= 0 {
		cfg.LowDwell = 500 * time.Microsecond
	}

	for _, pin := range []int{cfg.StepPin, cfg.DirPin} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup pin %d: %w", pin, err)
		}
		if err := g.WritePin(pin, gpio.Low); err != nil {
			return nil, fmt.Errorf("reset pin %d: %w", pin, err)
		}
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		if err := g.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup enable pin %d: %w", cfg.EnablePin, err)
		}
		if err := g.WritePin(cfg.EnablePin, gpio.Low); err != nil {
			return nil, fmt.Errorf("enable driver: %w", err)
		}
	}

	return &Stepper{gpio: g, cfg: cfg, sleep: time.Sleep}, nil
}

// DirLevel returns the level written to DIR for the requested sense.
// Clockwise is HIGH unless the motor is mounted inverted.
func (s *Stepper) DirLevel(clockwise bool) gpio.Level {
	return gpio.Level(clockwise != s.cfg.InvertDir)
}

// Pulse sets the direction then emits n step pulses, each HighDwell high
// followed by LowDwell low, then waits Settle. It returns the number of
// pulses actually emitted.
func (s *Stepper) Pulse(clockwise bool, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	dir := s.DirLevel(clockwise)
	debug.Verbose("Stepper: %d pulses, DIR=%s on pin %d", n, dir, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dir); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		if err := s.stepPulse(); err != nil {
			return i, err
		}
	}
	if s.cfg.Settle > 0 {
		s.sleep(s.cfg.Settle)
	}
	return n, nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	s.sleep(s.cfg.HighDwell)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	s.sleep(s.cfg.LowDwell)
	return nil
}

// Idle drives STEP and DIR low. Called on every command boundary.
func (s *Stepper) Idle() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	return s.gpio.WritePin(s.cfg.DirPin, gpio.Low)
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}

// PulsePeriod returns the duration of one full step pulse.
func (s *Stepper) PulsePeriod() time.Duration {
	return s.cfg.HighDwell + s.cfg.LowDwell
}
