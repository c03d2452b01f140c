// Package pwm is the actuation layer between the motor drivers and the
// board: a 16-channel PCA9685 expander on I²C, optionally with some digital
// lines on host GPIO.
package pwm

import (
	"errors"
	"fmt"
)

const (
	// Channels is the number of outputs on the expander.
	Channels = 16
	// MaxDuty is the largest proportional duty value (12-bit counter).
	MaxDuty = 4095
	// FullOn is the on-count that sets the expander's "always on" bit.
	FullOn = 4096
)

// ErrInvalidChannel is returned for a channel outside [0, Channels).
var ErrInvalidChannel = errors.New("pwm: invalid channel")

// Sink receives duty and pin commands for individual channels.
// Implementations are synchronous; errors come from the transport and are
// returned to the caller as-is.
type Sink interface {
	// SetDuty drives channel with a duty in [0, MaxDuty]. Values above
	// MaxDuty saturate to fully on.
	SetDuty(channel, value int) error
	// SetPin drives channel fully high or fully low.
	SetPin(channel int, high bool) error
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return nil
}

// onOff converts a duty value into the expander's on/off counter pair.
func onOff(value int) (on, off int) {
	switch {
	case value > MaxDuty:
		return FullOn, 0
	case value < 0:
		return 0, 0
	default:
		return 0, value
	}
}
