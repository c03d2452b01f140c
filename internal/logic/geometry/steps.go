package geometry

import (
	"github.com/mche201/motorhat/internal/config"
	"github.com/mche201/motorhat/internal/hw/stepper"
)

// StepsCalculator converts shaft angles to stepper engine steps.
type StepsCalculator struct {
	fullStepsPerDegree float64
	microsteps         int
}

// NewStepsCalculator creates a step calculator from configuration.
func NewStepsCalculator(cfg *config.Config) *StepsCalculator {
	return &StepsCalculator{
		fullStepsPerDegree: float64(cfg.Stepper.StepsPerRev) / 360.0,
		microsteps:         cfg.Stepper.Microsteps,
	}
}

// StepsPerFullStep returns how many engine steps of the given style make one
// full step: Single and Double move a full step, Interleave half a step and
// Microstep 1/M of a step.
func (s *StepsCalculator) StepsPerFullStep(style stepper.Style) int {
	switch style {
	case stepper.Interleave:
		return 2
	case stepper.Microstep:
		return s.microsteps
	default:
		return 1
	}
}

// StepsFromAngle converts an angle in degrees to a signed step count for
// style. Partial steps are truncated toward zero.
func (s *StepsCalculator) StepsFromAngle(angleDegrees float64, style stepper.Style) int {
	return int(angleDegrees * s.fullStepsPerDegree * float64(s.StepsPerFullStep(style)))
}

// AngleFromSteps is the inverse of StepsFromAngle.
func (s *StepsCalculator) AngleFromSteps(steps int, style stepper.Style) float64 {
	return float64(steps) / (s.fullStepsPerDegree * float64(s.StepsPerFullStep(style)))
}
