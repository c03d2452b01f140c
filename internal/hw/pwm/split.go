package pwm

import "github.com/mche201/motorhat/internal/hw/gpio"

// SplitSink sends duty commands to Analog and pin commands to host GPIO.
// Channels passed to SetPin are host pin numbers.
type SplitSink struct {
	Analog  Sink
	Digital gpio.Driver
}

// NewSplitSink configures pins as outputs, driven low.
func NewSplitSink(analog Sink, digital gpio.Driver, pins ...int) (*SplitSink, error) {
	for _, p := range pins {
		if err := digital.SetupPin(p, gpio.Output); err != nil {
			return nil, err
		}
		if err := digital.WritePin(p, gpio.Low); err != nil {
			return nil, err
		}
	}
	return &SplitSink{Analog: analog, Digital: digital}, nil
}

func (s *SplitSink) SetDuty(channel, value int) error {
	return s.Analog.SetDuty(channel, value)
}

func (s *SplitSink) SetPin(channel int, high bool) error {
	return s.Digital.WritePin(channel, gpio.Level(high))
}
