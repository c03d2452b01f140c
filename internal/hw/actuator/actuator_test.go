package actuator

import (
	"testing"

	"github.com/mche201/motorhat/internal/hw/dcmotor"
	"github.com/mche201/motorhat/internal/hw/pwm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSpeed_DeadZoneCompensation(t *testing.T) {
	cases := []struct {
		name     string
		speed    float64
		in1, in2 int // off counts
	}{
		{"full_extend", 100, 4095, 0},
		{"half_extend", 50, 3071, 0},
		{"full_retract", -100, 0, 4095},
		{"half_retract", -50, 0, 3071},
		{"stop", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &pwm.MockSink{}
			a := New(sink, DefaultPins)
			require.NoError(t, a.SetSpeed(tc.speed))

			_, off1 := sink.Channel(6)
			_, off2 := sink.Channel(7)
			assert.Equal(t, tc.in1, off1)
			assert.Equal(t, tc.in2, off2)
			assert.Equal(t, tc.speed, a.Speed())
		})
	}
}

func TestBrake(t *testing.T) {
	sink := &pwm.MockSink{}
	a := New(sink, DefaultPins)
	require.NoError(t, a.SetSpeed(40))
	require.NoError(t, a.Brake())

	on1, _ := sink.Channel(6)
	on2, _ := sink.Channel(7)
	assert.Equal(t, pwm.FullOn, on1)
	assert.Equal(t, pwm.FullOn, on2)
	assert.Equal(t, 40.0, a.Speed(), "brake keeps the last commanded speed")

	require.NoError(t, a.SetSpeed(0))
	assert.Zero(t, a.Speed())
}

func TestSetSpeed_OutOfRange(t *testing.T) {
	a := New(&pwm.MockSink{}, DefaultPins)
	assert.ErrorIs(t, a.SetSpeed(150), ErrInvalidSpeed)
	assert.ErrorIs(t, a.SetSpeed(-100.1), ErrInvalidSpeed)
}

func TestNew_DefaultPins(t *testing.T) {
	sink := &pwm.MockSink{}
	a := New(sink, dcmotor.PinPair{})
	require.NoError(t, a.SetSpeed(100))
	_, off := sink.Channel(6)
	assert.Equal(t, pwm.MaxDuty, off)
}
