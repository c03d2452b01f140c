package motion

import (
	"context"
	"sync"
	"time"

	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/actuator"
	"github.com/mche201/motorhat/internal/hw/dcmotor"
	"github.com/mche201/motorhat/internal/hw/stepper"
	"github.com/mche201/motorhat/internal/logic/geometry"
	"go.uber.org/multierr"
)

// Controller owns every motor on the board. It's the layer between
// callers (CLI, web, programs) and the drivers, and the one place that
// serializes access to the stepper's position state.
type Controller struct {
	mu       sync.Mutex
	stepper  *stepper.Stepper
	dc       *dcmotor.Motors
	actuator *actuator.LinearActuator
	steps    *geometry.StepsCalculator
	delay    time.Duration
}

func NewController(s *stepper.Stepper, dc *dcmotor.Motors, a *actuator.LinearActuator, steps *geometry.StepsCalculator, delay time.Duration) *Controller {
	return &Controller{
		stepper:  s,
		dc:       dc,
		actuator: a,
		steps:    steps,
		delay:    delay,
	}
}

// Position returns the stepper's position in its phase cycle.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepper.Position()
}

// MoveSteps issues |n| steps of style, forward for positive n, pausing for
// the step delay between steps. It stops early when ctx is cancelled and
// returns the position reached. The lock is held per step, never across
// the delay.
func (c *Controller) MoveSteps(ctx context.Context, n int, style stepper.Style) (int, error) {
	dir := stepper.Forward
	if n < 0 {
		dir = stepper.Backward
		n = -n
	}
	debug.Move("stepper", n, style.String())

	pos := c.Position()
	for i := 0; i < n; i++ {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return pos, ctx.Err()
			case <-time.After(c.delay):
			}
		}

		var err error
		if pos, err = c.step(ctx, dir, style); err != nil {
			return pos, err
		}
	}
	return pos, nil
}

// step advances the stepper once unless ctx is already done. ctx is
// checked under the lock: a Stop issued after cancelling is never
// followed by another step.
func (c *Controller) step(ctx context.Context, dir stepper.Direction, style stepper.Style) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return c.stepper.Position(), err
	}
	return c.stepper.Step(dir, style)
}

// MoveDegrees turns the shaft by angle degrees (sign gives direction).
func (c *Controller) MoveDegrees(ctx context.Context, angle float64, style stepper.Style) (int, error) {
	return c.MoveSteps(ctx, c.steps.StepsFromAngle(angle, style), style)
}

// ReleaseStepper de-energizes the stepper coils.
func (c *Controller) ReleaseStepper() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepper.Release()
}

func (c *Controller) SetMotorSpeed(motor int, speed float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.SetSpeed(motor, speed)
}

func (c *Controller) BrakeMotor(motor int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.Brake(motor)
}

func (c *Controller) SetActuatorSpeed(speed float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actuator.SetSpeed(speed)
}

func (c *Controller) BrakeActuator() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actuator.Brake()
}

// ActuatorSpeed returns the last commanded actuator speed.
func (c *Controller) ActuatorSpeed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actuator.Speed()
}

// Stop releases the stepper and lets every DC motor and the actuator coast.
// All outputs are attempted and every failure is reported.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	debug.Live("Stopping all motors")
	err := c.stepper.Release()
	for m := 1; m <= c.dc.Count(); m++ {
		err = multierr.Append(err, c.dc.SetSpeed(m, 0))
	}
	return multierr.Append(err, c.actuator.SetSpeed(0))
}
