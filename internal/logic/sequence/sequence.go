// Package sequence plays scripted programs of moves against the motion
// controller.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/mche201/motorhat/internal/config"
	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/stepper"
	"github.com/mche201/motorhat/internal/logic/motion"
)

// Sequence runs programs one move at a time.
type Sequence struct {
	motion       *motion.Controller
	defaultStyle stepper.Style
}

func NewSequence(m *motion.Controller, defaultStyle stepper.Style) *Sequence {
	if defaultStyle == 0 {
		defaultStyle = stepper.Single
	}
	return &Sequence{motion: m, defaultStyle: defaultStyle}
}

// Run executes program in order, waiting each move's dwell before the next.
// It stops at the first failing move or when ctx is cancelled.
func (s *Sequence) Run(ctx context.Context, program []config.Move) error {
	debug.Section("Program")
	debug.Live("Running %d moves", len(program))

	for i, mv := range program {
		if err := ctx.Err(); err != nil {
			return err
		}
		debug.Step(i+1, mv.Kind)
		if err := s.apply(ctx, mv); err != nil {
			return fmt.Errorf("move %d (%s): %w", i+1, mv.Kind, err)
		}
		if err := sleep(ctx, mv.Dwell()); err != nil {
			return err
		}
	}

	debug.Summary("Program complete")
	return nil
}

// apply drives one move. Nothing is driven once ctx is done.
func (s *Sequence) apply(ctx context.Context, mv config.Move) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch mv.Kind {
	case "stepper":
		style := s.defaultStyle
		if mv.Style != "" {
			var err error
			if style, err = stepper.ParseStyle(mv.Style); err != nil {
				return err
			}
		}
		var err error
		if mv.Degrees != 0 {
			_, err = s.motion.MoveDegrees(ctx, mv.Degrees, style)
		} else {
			_, err = s.motion.MoveSteps(ctx, mv.Steps, style)
		}
		return err
	case "dc":
		return s.motion.SetMotorSpeed(mv.Motor, mv.Speed)
	case "actuator":
		return s.motion.SetActuatorSpeed(mv.Speed)
	case "brake":
		if mv.Motor == 0 {
			return s.motion.BrakeActuator()
		}
		return s.motion.BrakeMotor(mv.Motor)
	case "release":
		return s.motion.ReleaseStepper()
	default:
		return fmt.Errorf("unknown move kind %q", mv.Kind)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
