// Package dcmotor drives the brushed DC motors on the board. Each motor sits
// behind a DRV8871 with two inputs: one carries the PWM duty, the other is
// held low, and swapping them reverses the motor.
package dcmotor

import (
	"errors"
	"fmt"
	"math"

	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/pwm"
)

var (
	ErrInvalidMotor = errors.New("dcmotor: invalid motor number")
	ErrInvalidSpeed = errors.New("dcmotor: speed must be within ±100%")
)

// PinPair is the two driver inputs of one motor.
type PinPair struct {
	In1 int
	In2 int
}

// DefaultPins matches the MCHE201 board: motor 1 on (2,3), motor 2 on (4,5).
var DefaultPins = []PinPair{{In1: 2, In2: 3}, {In1: 4, In2: 5}}

// Motors controls a set of DC motors numbered from 1.
type Motors struct {
	sink pwm.Sink
	pins []PinPair
}

func New(sink pwm.Sink, pins []PinPair) *Motors {
	if len(pins) == 0 {
		pins = DefaultPins
	}
	return &Motors{sink: sink, pins: pins}
}

// Count returns the number of motors.
func (m *Motors) Count() int {
	return len(m.pins)
}

func (m *Motors) pair(motor int) (PinPair, error) {
	if motor < 1 || motor > len(m.pins) {
		return PinPair{}, fmt.Errorf("%w: %d", ErrInvalidMotor, motor)
	}
	return m.pins[motor-1], nil
}

// SetSpeed runs motor at speed percent (positive forward, negative
// backward). Zero releases the motor to coast.
func (m *Motors) SetSpeed(motor int, speed float64) error {
	p, err := m.pair(motor)
	if err != nil {
		return err
	}
	if math.IsNaN(speed) || speed < -100 || speed > 100 {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, speed)
	}

	debug.Speed(fmt.Sprintf("dc%d", motor), speed)
	return Drive(m.sink, p, DutyFromPercent(speed))
}

// Brake shorts the motor by driving both inputs high.
func (m *Motors) Brake(motor int) error {
	p, err := m.pair(motor)
	if err != nil {
		return err
	}
	debug.Live("Braking DC motor %d", motor)
	return Brake(m.sink, p)
}

// DutyFromPercent converts ±100% into a signed duty in [-MaxDuty, MaxDuty].
func DutyFromPercent(speed float64) int {
	return int(speed / 100 * pwm.MaxDuty)
}

// Drive applies a signed duty to a DRV8871 input pair.
func Drive(sink pwm.Sink, p PinPair, duty int) error {
	switch {
	case duty > 0:
		if err := sink.SetDuty(p.In1, duty); err != nil {
			return err
		}
		return sink.SetPin(p.In2, false)
	case duty < 0:
		if err := sink.SetPin(p.In1, false); err != nil {
			return err
		}
		return sink.SetDuty(p.In2, -duty)
	default:
		if err := sink.SetPin(p.In1, false); err != nil {
			return err
		}
		return sink.SetPin(p.In2, false)
	}
}

// Brake drives both inputs of p high.
func Brake(sink pwm.Sink, p PinPair) error {
	if err := sink.SetPin(p.In1, true); err != nil {
		return err
	}
	return sink.SetPin(p.In2, true)
}
