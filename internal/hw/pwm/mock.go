package pwm

import (
	"sync"

	"github.com/mche201/motorhat/internal/debug"
)

// MockSink stands in for the expander on a development machine. It logs
// every command and remembers the on/off pair last written to each channel.
type MockSink struct {
	mu  sync.Mutex
	on  [Channels]int
	off [Channels]int
}

func NewMockSink() *MockSink {
	debug.Info("Using MOCK PWM expander (development mode)")
	return &MockSink{}
}

func (m *MockSink) SetDuty(channel, value int) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	debug.PWM("SetDuty", channel, value)
	on, off := onOff(value)
	m.set(channel, on, off)
	return nil
}

func (m *MockSink) SetPin(channel int, high bool) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	debug.PWM("SetPin", channel, high)
	if high {
		m.set(channel, FullOn, 0)
	} else {
		m.set(channel, 0, 0)
	}
	return nil
}

func (m *MockSink) set(channel, on, off int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.on[channel], m.off[channel] = on, off
}

// Channel returns the on/off counts last written to channel.
func (m *MockSink) Channel(channel int) (on, off int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on[channel], m.off[channel]
}

func (m *MockSink) Close() error {
	debug.Trace("PWM Close (mock)")
	return nil
}
