package stepper

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink records sink calls for verification.
type recordingSink struct {
	calls []sinkCall
	fail  error
}

type sinkCall struct {
	op      string // "duty", "pin"
	channel int
	value   int
	high    bool
}

func (r *recordingSink) SetDuty(channel, value int) error {
	r.calls = append(r.calls, sinkCall{op: "duty", channel: channel, value: value})
	return r.fail
}

func (r *recordingSink) SetPin(channel int, high bool) error {
	r.calls = append(r.calls, sinkCall{op: "pin", channel: channel, high: high})
	return r.fail
}

func (r *recordingSink) duty(channel int) int {
	for i := len(r.calls) - 1; i >= 0; i-- {
		if c := r.calls[i]; c.op == "duty" && c.channel == channel {
			return c.value
		}
	}
	return -1
}

// mask rebuilds the coil mask from the last pin writes.
func (r *recordingSink) mask(p Pins) uint8 {
	var m uint8
	for _, c := range r.calls {
		if c.op != "pin" {
			continue
		}
		var bit uint8
		switch c.channel {
		case p.AIN2:
			bit = coilAIN2
		case p.BIN1:
			bit = coilBIN1
		case p.AIN1:
			bit = coilAIN1
		case p.BIN2:
			bit = coilBIN2
		}
		if c.high {
			m |= bit
		} else {
			m &^= bit
		}
	}
	return m
}

func newTestStepper(t *testing.T, microsteps int) (*Stepper, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s, err := NewStepper(sink, Config{Microsteps: microsteps, Pins: DefaultPins})
	require.NoError(t, err)
	return s, sink
}

func TestNewStepper_ValidMicrosteps(t *testing.T) {
	for _, m := range []int{8, 16} {
		s, err := NewStepper(&recordingSink{}, Config{Microsteps: m, Pins: DefaultPins})
		require.NoError(t, err, "microsteps=%d", m)
		assert.Equal(t, 0, s.Position())
		assert.Equal(t, m, s.Microsteps())
	}
}

func TestNewStepper_InvalidMicrosteps(t *testing.T) {
	for _, m := range []int{0, 4, 12, 32, -8} {
		s, err := NewStepper(&recordingSink{}, Config{Microsteps: m, Pins: DefaultPins})
		assert.Nil(t, s)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr, "microsteps=%d", m)
		assert.Equal(t, m, cfgErr.Microsteps)
	}
}

func TestStep_SingleFromZero(t *testing.T) {
	s, sink := newTestStepper(t, 16)

	pos, err := s.Step(Forward, Single)
	require.NoError(t, err)
	assert.Equal(t, 16, pos)

	assert.Equal(t, 4080, sink.duty(DefaultPins.PWMA))
	assert.Equal(t, 4080, sink.duty(DefaultPins.PWMB))
	assert.Equal(t, uint8(0x2), sink.mask(DefaultPins))
}

func TestStep_MicrostepFromZero(t *testing.T) {
	s, sink := newTestStepper(t, 16)

	pos, err := s.Step(Forward, Microstep)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	assert.Equal(t, 253*16, sink.duty(DefaultPins.PWMA))
	assert.Equal(t, 25*16, sink.duty(DefaultPins.PWMB))
	assert.Equal(t, uint8(0x3), sink.mask(DefaultPins))
}

func TestStep_CommandOrder(t *testing.T) {
	s, sink := newTestStepper(t, 16)

	_, err := s.Step(Forward, Single)
	require.NoError(t, err)

	want := []sinkCall{
		{op: "duty", channel: 13, value: 4080},
		{op: "duty", channel: 8, value: 4080},
		{op: "pin", channel: 12, high: false},
		{op: "pin", channel: 10, high: true},
		{op: "pin", channel: 11, high: false},
		{op: "pin", channel: 9, high: false},
	}
	assert.Equal(t, want, sink.calls)
}

func TestStep_PositionAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	styles := []Style{Single, Double, Interleave, Microstep}
	dirs := []Direction{Forward, Backward}

	for _, m := range []int{8, 16} {
		s, _ := newTestStepper(t, m)
		for i := 0; i < 10000; i++ {
			pos, err := s.Step(dirs[rng.Intn(2)], styles[rng.Intn(4)])
			require.NoError(t, err)
			require.GreaterOrEqual(t, pos, 0)
			require.Less(t, pos, 4*m)
			require.Equal(t, pos, s.Position())
		}
	}
}

func TestStep_BackwardUndoesForward(t *testing.T) {
	// Each full-step style moves on its own lattice: Single on multiples
	// of M, Double on odd multiples of M/2, Interleave on any position.
	cases := []struct {
		style Style
		start func(m, k int) int
	}{
		{Single, func(m, k int) int { return k * m % (4 * m) }},
		{Double, func(m, k int) int { return (m/2 + k*m) % (4 * m) }},
		{Interleave, func(m, k int) int { return k % (4 * m) }},
	}

	for _, m := range []int{8, 16} {
		for _, tc := range cases {
			t.Run(tc.style.String(), func(t *testing.T) {
				s, _ := newTestStepper(t, m)
				for k := 0; k < 4*m; k++ {
					start := tc.start(m, k)
					s.pos = start

					_, err := s.Step(Forward, tc.style)
					require.NoError(t, err)
					pos, err := s.Step(Backward, tc.style)
					require.NoError(t, err)
					assert.Equal(t, start, pos, "m=%d start=%d", m, start)
				}
			})
		}
	}
}

func TestStep_DoubleRealignsFromEvenOctant(t *testing.T) {
	s, _ := newTestStepper(t, 16)

	pos, err := s.Step(Forward, Double)
	require.NoError(t, err)
	assert.Equal(t, 8, pos, "first double step moves half a phase onto the dual-coil lattice")

	pos, err = s.Step(Backward, Double)
	require.NoError(t, err)
	assert.Equal(t, 56, pos)
}

func TestStep_FullCycleClosure(t *testing.T) {
	for _, m := range []int{8, 16} {
		for _, style := range []Style{Single, Interleave} {
			s, _ := newTestStepper(t, m)
			var pos int
			for i := 0; i < 8*(m/2); i++ {
				var err error
				pos, err = s.Step(Forward, style)
				require.NoError(t, err)
			}
			assert.Equal(t, 0, pos, "m=%d style=%s", m, style)
		}

		// Double settles onto its lattice with the first step, then closes.
		s, _ := newTestStepper(t, m)
		start, err := s.Step(Forward, Double)
		require.NoError(t, err)
		pos := start
		for i := 0; i < 8*(m/2); i++ {
			pos, err = s.Step(Forward, Double)
			require.NoError(t, err)
		}
		assert.Equal(t, start, pos, "m=%d style=double", m)
	}
}

func TestStep_InterleaveWalksAllOctants(t *testing.T) {
	s, sink := newTestStepper(t, 16)
	want := []uint8{0x3, 0x2, 0x6, 0x4, 0xC, 0x8, 0x9, 0x1}

	for i, w := range want {
		sink.calls = nil
		_, err := s.Step(Forward, Interleave)
		require.NoError(t, err)
		assert.Equal(t, w, sink.mask(DefaultPins), "step %d", i)
	}
}

func TestStep_DoubleEnergizesTwoCoils(t *testing.T) {
	s, sink := newTestStepper(t, 8)
	for i := 0; i < 8; i++ {
		sink.calls = nil
		_, err := s.Step(Backward, Double)
		require.NoError(t, err)
		assert.Contains(t, []uint8{0x3, 0x6, 0xC, 0x9}, sink.mask(DefaultPins))
		assert.Equal(t, 4080, sink.duty(DefaultPins.PWMA))
		assert.Equal(t, 4080, sink.duty(DefaultPins.PWMB))
	}
}

func TestStep_MicrostepQuadrantBoundaries(t *testing.T) {
	for _, m := range []int{8, 16} {
		s, sink := newTestStepper(t, m)
		for q := 0; q < 4; q++ {
			s.pos = (q*m - 1 + 4*m) % (4 * m)
			pos, err := s.Step(Forward, Microstep)
			require.NoError(t, err)
			require.Equal(t, q*m, pos)

			got := []int{sink.duty(DefaultPins.PWMA), sink.duty(DefaultPins.PWMB)}
			assert.ElementsMatch(t, []int{0, 255 * 16}, got, "m=%d quadrant=%d", m, q)
		}
	}
}

func TestStep_MicrostepFullCycle(t *testing.T) {
	for _, m := range []int{8, 16} {
		s, sink := newTestStepper(t, m)
		masks := map[uint8]bool{}
		var pos int
		for i := 0; i < 4*m; i++ {
			sink.calls = nil
			var err error
			pos, err = s.Step(Backward, Microstep)
			require.NoError(t, err)
			assert.LessOrEqual(t, sink.duty(DefaultPins.PWMA), 4080)
			assert.LessOrEqual(t, sink.duty(DefaultPins.PWMB), 4080)
			masks[sink.mask(DefaultPins)] = true
		}
		assert.Equal(t, 0, pos)
		assert.Len(t, masks, 4)
	}
}

func TestStep_SinkErrorPropagatesUnchanged(t *testing.T) {
	errBus := errors.New("i2c: nack")
	sink := &recordingSink{fail: errBus}
	s, err := NewStepper(sink, Config{Microsteps: 8, Pins: DefaultPins})
	require.NoError(t, err)

	pos, err := s.Step(Forward, Interleave)
	assert.Same(t, errBus, err)
	assert.Equal(t, 4, pos)
	assert.Len(t, sink.calls, 1, "stops at the first failing command")
}

func TestStep_InvalidArgumentsDoNotMove(t *testing.T) {
	s, sink := newTestStepper(t, 16)

	_, err := s.Step(Forward, Style(0))
	assert.ErrorIs(t, err, ErrInvalidStyle)

	_, err = s.Step(Direction(7), Single)
	assert.ErrorIs(t, err, ErrInvalidDirection)

	assert.Equal(t, 0, s.Position())
	assert.Empty(t, sink.calls)
}

func TestRelease(t *testing.T) {
	s, sink := newTestStepper(t, 16)
	_, err := s.Step(Forward, Double)
	require.NoError(t, err)

	sink.calls = nil
	require.NoError(t, s.Release())
	assert.Equal(t, 0, sink.duty(DefaultPins.PWMA))
	assert.Equal(t, 0, sink.duty(DefaultPins.PWMB))
	assert.Equal(t, uint8(0), sink.mask(DefaultPins))
	assert.Equal(t, 8, s.Position())
}

func TestMicrostepCurves(t *testing.T) {
	for _, m := range []int{8, 16} {
		curve, err := curveFor(m)
		require.NoError(t, err)
		require.Len(t, curve, m+1)
		assert.Equal(t, 0, curve[0])
		assert.Equal(t, 255, curve[m])
		for i := 1; i < len(curve); i++ {
			assert.GreaterOrEqual(t, curve[i], curve[i-1], "m=%d index=%d", m, i)
		}
	}
}

func TestParseStyleAndDirection(t *testing.T) {
	for _, st := range []Style{Single, Double, Interleave, Microstep} {
		got, err := ParseStyle(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	got, err := ParseStyle(" MicroStep ")
	require.NoError(t, err)
	assert.Equal(t, Microstep, got)
	_, err = ParseStyle("wave")
	assert.ErrorIs(t, err, ErrInvalidStyle)

	for _, d := range []Direction{Forward, Backward} {
		got, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err = ParseDirection("left")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}
