package stepper

import (
	"fmt"

	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/pwm"
)

// fullDrive is the coil magnitude used by every style except Microstep.
const fullDrive = 255

// dutyScale maps a 0-255 magnitude onto the expander's 12-bit duty range.
const dutyScale = 16

// Pins is the channel assignment of the TB6612 driving the stepper.
type Pins struct {
	PWMA int // coil A current
	AIN1 int
	AIN2 int
	PWMB int // coil B current
	BIN1 int
	BIN2 int
}

// DefaultPins matches the MCHE201 board wiring.
var DefaultPins = Pins{
	PWMA: 13,
	AIN2: 12,
	AIN1: 11,
	PWMB: 8,
	BIN2: 9,
	BIN1: 10,
}

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	Microsteps int // microsteps per phase, 8 or 16
	Pins       Pins
}

// Stepper is a two-phase stepper driven through an H-bridge whose current
// and enable lines hang off a Sink.
//
// A Stepper is not safe for concurrent use; callers serialize Step calls.
type Stepper struct {
	sink       pwm.Sink
	pins       Pins
	microsteps int
	curve      []int
	pos        int // in [0, 4*microsteps)
}

// NewStepper returns a stepper at position 0. It fails with
// *ConfigurationError unless cfg.Microsteps is 8 or 16.
func NewStepper(sink pwm.Sink, cfg Config) (*Stepper, error) {
	curve, err := curveFor(cfg.Microsteps)
	if err != nil {
		return nil, err
	}
	return &Stepper{
		sink:       sink,
		pins:       cfg.Pins,
		microsteps: cfg.Microsteps,
		curve:      curve,
	}, nil
}

// Microsteps returns the configured microsteps per phase.
func (s *Stepper) Microsteps() int {
	return s.microsteps
}

// Position returns the position within the phase cycle, in [0, 4*Microsteps).
func (s *Stepper) Position() int {
	return s.pos
}

// Step advances one step in the given direction and style, drives the coils
// and returns the new position. Errors from the sink are returned unchanged;
// the position has already been updated when that happens.
func (s *Stepper) Step(dir Direction, style Style) (int, error) {
	var sign int
	switch dir {
	case Forward:
		sign = 1
	case Backward:
		sign = -1
	default:
		return s.pos, fmt.Errorf("%w: %d", ErrInvalidDirection, int(dir))
	}

	m := s.microsteps
	half := m / 2
	oddOctant := (s.pos/half)%2 == 1

	var delta int
	switch style {
	case Single:
		delta = m
		if oddOctant {
			delta = half
		}
	case Double:
		delta = half
		if oddOctant {
			delta = m
		}
	case Interleave:
		delta = half
	case Microstep:
		delta = 1
	default:
		return s.pos, fmt.Errorf("%w: %d", ErrInvalidStyle, int(style))
	}

	cycle := 4 * m
	s.pos = ((s.pos+sign*delta)%cycle + cycle) % cycle

	a, b := fullDrive, fullDrive
	if style == Microstep {
		a, b = magnitudes(s.curve, s.pos, m)
	}
	mask := coilMask(s.pos, m, style)

	debug.Coils(s.pos, mask, a*dutyScale, b*dutyScale)
	return s.pos, s.drive(a*dutyScale, b*dutyScale, mask)
}

// Release removes all current from the coils. The position is kept.
func (s *Stepper) Release() error {
	return s.drive(0, 0, 0)
}

func (s *Stepper) drive(dutyA, dutyB int, mask uint8) error {
	if err := s.sink.SetDuty(s.pins.PWMA, dutyA); err != nil {
		return err
	}
	if err := s.sink.SetDuty(s.pins.PWMB, dutyB); err != nil {
		return err
	}

	coils := [4]struct {
		bit uint8
		pin int
	}{
		{coilAIN2, s.pins.AIN2},
		{coilBIN1, s.pins.BIN1},
		{coilAIN1, s.pins.AIN1},
		{coilBIN2, s.pins.BIN2},
	}
	for _, c := range coils {
		if err := s.sink.SetPin(c.pin, mask&c.bit != 0); err != nil {
			return err
		}
	}
	return nil
}
