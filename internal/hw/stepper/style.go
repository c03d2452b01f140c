package stepper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDirection = errors.New("stepper: invalid direction")
	ErrInvalidStyle     = errors.New("stepper: invalid step style")
)

// Direction of rotation.
type Direction int

const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "forward"/"backward" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Style selects how far a step moves and how the coils are driven.
type Style int

const (
	// Single energizes one coil at a time (full steps).
	Single Style = iota + 1
	// Double energizes two coils at a time (full steps, more torque).
	Double
	// Interleave alternates single and double (half steps).
	Interleave
	// Microstep blends the coil currents along a sine envelope.
	Microstep
)

func (s Style) String() string {
	switch s {
	case Single:
		return "single"
	case Double:
		return "double"
	case Interleave:
		return "interleave"
	case Microstep:
		return "microstep"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// ParseStyle accepts the lowercase style names in any case.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return Single, nil
	case "double":
		return Double, nil
	case "interleave":
		return Interleave, nil
	case "microstep":
		return Microstep, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStyle, s)
	}
}

// ConfigurationError reports an unsupported microsteps-per-phase value.
type ConfigurationError struct {
	Microsteps int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("stepper: microsteps must be 8 or 16, got %d", e.Microsteps)
}
