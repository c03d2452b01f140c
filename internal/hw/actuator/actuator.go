// Package actuator drives the board's linear actuator, a DC motor behind a
// DRV8871 on a fixed pin pair.
package actuator

import (
	"errors"
	"fmt"
	"math"

	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/dcmotor"
	"github.com/mche201/motorhat/internal/hw/pwm"
)

var ErrInvalidSpeed = errors.New("actuator: speed must be within ±100%")

// DefaultPins is the actuator's pin pair on the MCHE201 board.
var DefaultPins = dcmotor.PinPair{In1: 6, In2: 7}

// LinearActuator remembers the last commanded speed.
type LinearActuator struct {
	sink  pwm.Sink
	pins  dcmotor.PinPair
	speed float64
}

func New(sink pwm.Sink, pins dcmotor.PinPair) *LinearActuator {
	if pins == (dcmotor.PinPair{}) {
		pins = DefaultPins
	}
	return &LinearActuator{sink: sink, pins: pins}
}

// Speed returns the last speed passed to SetSpeed.
func (a *LinearActuator) Speed() float64 {
	return a.speed
}

// SetSpeed extends (positive) or retracts (negative) at speed percent.
// Non-zero requests are mapped into the 50-100% duty band.
func (a *LinearActuator) SetSpeed(speed float64) error {
	if math.IsNaN(speed) || speed < -100 || speed > 100 {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, speed)
	}
	a.speed = speed

	debug.Speed("actuator", speed)
	return dcmotor.Drive(a.sink, a.pins, dcmotor.DutyFromPercent(compensate(speed)))
}

// Brake holds the actuator by driving both inputs high. Speed keeps
// reporting the last commanded value.
func (a *LinearActuator) Brake() error {
	debug.Live("Braking actuator")
	return dcmotor.Brake(a.sink, a.pins)
}

// compensate maps speed onto the range the actuator responds to.
func compensate(speed float64) float64 {
	switch {
	case speed > 0:
		return 0.5*speed + 50
	case speed < 0:
		return 0.5*speed - 50
	default:
		return 0
	}
}
