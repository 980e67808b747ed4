package config

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a configuration file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// FaceLetters lists the solver face letters in facelet order.
const FaceLetters = "URFDLB"

// MechanicsConfig describes the drive train. It must be identical on the
// orchestrator and on the actuator: nothing on the wire checks it.
type MechanicsConfig struct {
	DegreesPerFullStep   float64 `yaml:"degrees_per_full_step"`   // motor full-step angle (1.8° for a 200-step motor)
	Microstepping        int     `yaml:"microstepping"`           // driver microsteps per full step
	BaseTurnDeg          float64 `yaml:"base_turn_deg"`           // angle of one base turn (45°)
	QuarterTurnBaseTurns int     `yaml:"quarter_turn_base_turns"` // base turns for a quarter move (U, U')
	HalfTurnBaseTurns    int     `yaml:"half_turn_base_turns"`    // base turns for a half move (U2)
}

// MotorConfig wires one face motor. The slice index is the motor index on the wire.
type MotorConfig struct {
	Face      string `yaml:"face"`       // face letter driven by this motor (U, R, F, D, L, B)
	StepPin   int    `yaml:"step_pin"`   // BCM pin
	DirPin    int    `yaml:"dir_pin"`    // BCM pin
	EnablePin int    `yaml:"enable_pin"` // driver ENABLE pin (BCM). 0 = not used. Active LOW.
	InvertDir bool   `yaml:"invert_dir"` // swap the direction level when the motor is mounted reversed
}

// ActuatorConfig holds the Pi-side daemon settings.
type ActuatorConfig struct {
	Listen     string `yaml:"listen"`       // e.g. "0.0.0.0:65432"
	StepHighUs int    `yaml:"step_high_us"` // step pin high dwell (µs)
	StepLowUs  int    `yaml:"step_low_us"`  // step pin low dwell (µs)
	SettleMs   int    `yaml:"settle_ms"`    // pause after a pulse train (ms)
	StatusPort int    `yaml:"status_port"`  // status HTTP port, 0 = disabled
}

// SessionConfig holds the orchestrator-side link settings.
type SessionConfig struct {
	Transport           string `yaml:"transport"`              // "tcp" or "serial"
	Address             string `yaml:"address"`                // actuator host:port for tcp
	SerialDevice        string `yaml:"serial_device"`          // e.g. /dev/ttyUSB0
	SerialBaud          int    `yaml:"serial_baud"`            // e.g. 115200
	DialTimeoutMs       int    `yaml:"dial_timeout_ms"`        // connection timeout
	AckTimeoutMs        int    `yaml:"ack_timeout_ms"`         // bounded wait for a reply; at most MaxSerialAckTimeoutMs on serial
	ReplyBufferBytes    int    `yaml:"reply_buffer_bytes"`     // longest accepted reply line
	InterCommandDelayMs int    `yaml:"inter_command_delay_ms"` // pause after each DONE
}

// SolverConfig selects the external solving oracle.
type SolverConfig struct {
	Command []string `yaml:"command"` // argv; the facelet string is appended
	Verify  bool     `yaml:"verify"`  // replay the solution on the cube model before moving motors
}

// EncodingConfig fixes the face-orientation convention of the rig.
type EncodingConfig struct {
	ReverseTop bool `yaml:"reverse_top"` // reverse the nine Top stickers before encoding
}

// StoreConfig points to the run journal.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file, empty = journal disabled
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Mechanics MechanicsConfig `yaml:"mechanics"`
	Motors    []MotorConfig   `yaml:"motors"`
	Actuator  ActuatorConfig  `yaml:"actuator"`
	Session   SessionConfig   `yaml:"session"`
	Solver    SolverConfig    `yaml:"solver"`
	Encoding  EncodingConfig  `yaml:"encoding"`
	Store     StoreConfig     `yaml:"store"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// MaxSerialAckTimeoutMs is the longest read timeout a serial port can hold
// (VTIME counts 255 deciseconds).
const MaxSerialAckTimeoutMs = 25500

// ValidateDebugLevel checks that level is one of the debug package levels.
func ValidateDebugLevel(level int) error {
	if level < 0 || level > 4 {
		return fmt.Errorf("debug level must be between 0 and 4, got %d", level)
	}
	return nil
}

// ValidateConfigPath checks that path names a .yaml file directly inside a
// "configs" directory and does not climb out of it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if len(c.Motors) == 0 {
		return fmt.Errorf("motors: at least one motor is required")
	}

	// Mechanics
	m := &c.Mechanics
	if m.DegreesPerFullStep < 0 || m.BaseTurnDeg < 0 || m.Microstepping < 0 {
		return fmt.Errorf("mechanics values must not be negative")
	}
	if m.DegreesPerFullStep == 0 {
		m.DegreesPerFullStep = 1.8
	}
	if m.Microstepping == 0 {
		m.Microstepping = 16
	}
	if m.BaseTurnDeg == 0 {
		m.BaseTurnDeg = 45
	}
	if m.QuarterTurnBaseTurns <= 0 {
		m.QuarterTurnBaseTurns = int(math.Round(90 / m.BaseTurnDeg))
	}
	if m.HalfTurnBaseTurns <= 0 {
		m.HalfTurnBaseTurns = 2 * m.QuarterTurnBaseTurns
	}
	if !sameAngle(float64(m.QuarterTurnBaseTurns)*m.BaseTurnDeg, 90) {
		return fmt.Errorf("mechanics: %d base turns of %.3f° do not make a quarter turn",
			m.QuarterTurnBaseTurns, m.BaseTurnDeg)
	}
	if !sameAngle(float64(m.HalfTurnBaseTurns)*m.BaseTurnDeg, 180) {
		return fmt.Errorf("mechanics: %d base turns of %.3f° do not make a half turn",
			m.HalfTurnBaseTurns, m.BaseTurnDeg)
	}
	if _, err := c.MicrostepsPerBaseTurn(); err != nil {
		return err
	}

	// Motors
	seen := make(map[string]int)
	for i := range c.Motors {
		mc := &c.Motors[i]
		if mc.Face == "" && i < len(FaceLetters) {
			mc.Face = string(FaceLetters[i])
		}
		mc.Face = strings.ToUpper(mc.Face)
		if len(mc.Face) != 1 || !strings.Contains(FaceLetters, mc.Face) {
			return fmt.Errorf("motors[%d].face must be one of %s, got %q", i, FaceLetters, mc.Face)
		}
		if prev, dup := seen[mc.Face]; dup {
			return fmt.Errorf("motors[%d].face %s already driven by motors[%d]", i, mc.Face, prev)
		}
		seen[mc.Face] = i
		if mc.StepPin < 0 || mc.StepPin > 27 || mc.DirPin < 0 || mc.DirPin > 27 {
			return fmt.Errorf("motors[%d]: BCM pins must be between 0 and 27", i)
		}
		if mc.StepPin == mc.DirPin {
			return fmt.Errorf("motors[%d]: step_pin and dir_pin must differ, both are %d", i, mc.StepPin)
		}
	}

	// Actuator
	if c.Actuator.Listen == "" {
		c.Actuator.Listen = "0.0.0.0:65432"
	}
	if c.Actuator.StepHighUs <= 0 {
		c.Actuator.StepHighUs = 500
	}
	if c.Actuator.StepLowUs <= 0 {
		c.Actuator.StepLowUs = 500
	}
	if c.Actuator.SettleMs < 0 {
		return fmt.Errorf("actuator.settle_ms must be >= 0, got %d", c.Actuator.SettleMs)
	}
	if c.Actuator.SettleMs == 0 {
		c.Actuator.SettleMs = 10
	}
	if c.Actuator.StatusPort < 0 || c.Actuator.StatusPort > 65535 {
		return fmt.Errorf("actuator.status_port must be between 0 and 65535, got %d", c.Actuator.StatusPort)
	}

	// Session
	s := &c.Session
	if s.Transport == "" {
		s.Transport = "tcp"
	}
	switch s.Transport {
	case "tcp":
		if s.Address == "" {
			s.Address = "192.168.1.100:65432"
		}
	case "serial":
		if s.SerialDevice == "" {
			return fmt.Errorf("session.serial_device is required for the serial transport")
		}
		if s.SerialBaud <= 0 {
			s.SerialBaud = 115200
		}
	default:
		return fmt.Errorf("session.transport must be tcp or serial, got %q", s.Transport)
	}
	if s.DialTimeoutMs <= 0 {
		s.DialTimeoutMs = 5000
	}
	if s.AckTimeoutMs <= 0 {
		s.AckTimeoutMs = 30000
		if s.Transport == "serial" {
			s.AckTimeoutMs = MaxSerialAckTimeoutMs
		}
	}
	if s.Transport == "serial" && s.AckTimeoutMs > MaxSerialAckTimeoutMs {
		return fmt.Errorf("session.ack_timeout_ms must be at most %d on the serial transport, got %d",
			MaxSerialAckTimeoutMs, s.AckTimeoutMs)
	}
	if s.ReplyBufferBytes <= 0 {
		s.ReplyBufferBytes = 1024
	}
	if s.InterCommandDelayMs < 0 {
		return fmt.Errorf("session.inter_command_delay_ms must be >= 0, got %d", s.InterCommandDelayMs)
	}

	if err := ValidateDebugLevel(c.Defaults.DebugLevel); err != nil {
		return fmt.Errorf("defaults.debug_level: %w", err)
	}
	return nil
}

// MicrostepsPerBaseTurn returns the number of step pulses in one base turn.
// The ratio base_turn_deg / degrees_per_full_step must be a whole number.
func (c *Config) MicrostepsPerBaseTurn() (int, error) {
	m := c.Mechanics
	if m.DegreesPerFullStep <= 0 {
		return 0, fmt.Errorf("mechanics.degrees_per_full_step must be > 0")
	}
	fullSteps := m.BaseTurnDeg / m.DegreesPerFullStep
	rounded := math.Round(fullSteps)
	if rounded < 1 || math.Abs(fullSteps-rounded) > 1e-9 {
		return 0, fmt.Errorf("mechanics.base_turn_deg (%.3f) must be a whole number of full steps of %.3f°",
			m.BaseTurnDeg, m.DegreesPerFullStep)
	}
	return int(rounded) * m.Microstepping, nil
}

func sameAngle(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// MotorCount returns the number of configured motors.
func (c *Config) MotorCount() int {
	return len(c.Motors)
}

// StepHigh returns the step pin high dwell.
func (c *Config) StepHigh() time.Duration {
	return time.Duration(c.Actuator.StepHighUs) * time.Microsecond
}

// StepLow returns the step pin low dwell.
func (c *Config) StepLow() time.Duration {
	return time.Duration(c.Actuator.StepLowUs) * time.Microsecond
}

// Settle returns the pause after each pulse train.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Actuator.SettleMs) * time.Millisecond
}

// DialTimeout returns the connection timeout of a session.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Session.DialTimeoutMs) * time.Millisecond
}

// AckTimeout returns how long a session waits for a reply.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Session.AckTimeoutMs) * time.Millisecond
}

// InterCommandDelay returns the pause after each acknowledged command.
func (c *Config) InterCommandDelay() time.Duration {
	return time.Duration(c.Session.InterCommandDelayMs) * time.Millisecond
}
