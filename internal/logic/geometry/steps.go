package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/CubeGo/internal/config"
)

// ErrTooManyTurns is returned when a turn count does not fit the pulse
// counter.
var ErrTooManyTurns = errors.New("geometry: too many base turns")

// StepsCalculator converts base turns to step pulses.
type StepsCalculator struct {
	microstepsPerBaseTurn int
	degreesPerBaseTurn    float64
	microstepsPerRev      int
}

// NewStepsCalculator creates a step calculator from the mechanics section.
// microsteps per base turn = microstepping × (base_turn_deg / degrees_per_full_step)
func NewStepsCalculator(cfg *config.Config) (*StepsCalculator, error) {
	perTurn, err := cfg.MicrostepsPerBaseTurn()
	if err != nil {
		return nil, err
	}
	fullStepsPerRev := math.Round(360 / cfg.Mechanics.DegreesPerFullStep)
	return &StepsCalculator{
		microstepsPerBaseTurn: perTurn,
		degreesPerBaseTurn:    cfg.Mechanics.BaseTurnDeg,
		microstepsPerRev:      int(fullStepsPerRev) * cfg.Mechanics.Microstepping,
	}, nil
}

// MicrostepsPerBaseTurn returns the pulse count of one base turn.
func (s *StepsCalculator) MicrostepsPerBaseTurn() int {
	return s.microstepsPerBaseTurn
}

// MicrostepsPerRev returns the pulse count of a full shaft revolution.
func (s *StepsCalculator) MicrostepsPerRev() int {
	return s.microstepsPerRev
}

// PulsesForTurns returns the pulse count for n base turns.
func (s *StepsCalculator) PulsesForTurns(n int) (int, error) {
	if n > s.MaxTurns() {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrTooManyTurns, n, s.MaxTurns())
	}
	return n * s.microstepsPerBaseTurn, nil
}

// MaxTurns returns the largest turn count PulsesForTurns accepts.
func (s *StepsCalculator) MaxTurns() int {
	if s.microstepsPerBaseTurn <= 0 {
		return math.MaxInt
	}
	return math.MaxInt / s.microstepsPerBaseTurn
}

// AngleForTurns returns the shaft rotation of n base turns in degrees.
func (s *StepsCalculator) AngleForTurns(n int) float64 {
	return float64(n) * s.degreesPerBaseTurn
}
