package geometry

import (
	"testing"

	"github.com/mche201/motorhat/internal/config"
	"github.com/mche201/motorhat/internal/hw/stepper"
	"github.com/stretchr/testify/assert"
)

func newStepsConfig(stepsPerRev, microsteps int) *config.Config {
	return &config.Config{
		Stepper: config.StepperConfig{
			StepsPerRev: stepsPerRev,
			Microsteps:  microsteps,
		},
	}
}

func TestStepsCalculator_KnownConfig(t *testing.T) {
	// 200 full steps/rev, 16 microsteps per phase
	sc := NewStepsCalculator(newStepsConfig(200, 16))

	cases := []struct {
		name  string
		angle float64
		style stepper.Style
		want  int
	}{
		{"single_full_turn", 360, stepper.Single, 200},
		{"double_quarter", 90, stepper.Double, 50},
		{"interleave_quarter", 90, stepper.Interleave, 100},
		{"microstep_quarter", 90, stepper.Microstep, 800},
		{"negative", -90, stepper.Single, -50},
		{"zero", 0, stepper.Microstep, 0},
		{"truncates", 1, stepper.Single, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sc.StepsFromAngle(tc.angle, tc.style))
		})
	}
}

func TestStepsCalculator_MicrostepsFollowConfig(t *testing.T) {
	for _, ms := range []int{8, 16} {
		sc := NewStepsCalculator(newStepsConfig(200, ms))
		assert.Equal(t, ms, sc.StepsPerFullStep(stepper.Microstep))
		assert.Equal(t, 200*ms, sc.StepsFromAngle(360, stepper.Microstep))
	}
}

func TestStepsCalculator_AngleFromSteps(t *testing.T) {
	sc := NewStepsCalculator(newStepsConfig(48, 8))
	cases := []struct {
		steps int
		style stepper.Style
	}{
		{24, stepper.Single},
		{24, stepper.Double},
		{48, stepper.Interleave},
		{192, stepper.Microstep},
	}
	for _, tc := range cases {
		assert.InDelta(t, 180, sc.AngleFromSteps(tc.steps, tc.style), 1e-9, tc.style.String())
	}
}
