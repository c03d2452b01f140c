package pwm

import (
	"fmt"

	"github.com/mche201/motorhat/internal/debug"
	periphgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// DefaultAddress is the expander address on v2 of the MCHE201 board.
const DefaultAddress uint16 = 0x60

// DefaultFrequency suits the DRV8871 and TB6612 drivers on the board.
const DefaultFrequency = 1600 * physic.Hertz

// Device is the subset of *pca9685.Dev the expander sink needs.
type Device interface {
	SetPwm(channel int, on, off periphgpio.Duty) error
}

// ExpanderConfig selects the I²C bus and chip.
type ExpanderConfig struct {
	Bus       string // i2creg name, "" for the first bus
	Address   uint16
	Frequency physic.Frequency
}

// Expander is a Sink backed by a PCA9685.
type Expander struct {
	dev Device
	bus i2c.BusCloser
}

// OpenExpander initializes periph, opens the bus and configures the chip's
// PWM frequency.
func OpenExpander(cfg ExpanderConfig) (*Expander, error) {
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = DefaultFrequency
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}

	dev, err := pca9685.NewI2C(bus, cfg.Address)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685 at %#x: %w", cfg.Address, err)
	}
	if err := dev.SetPwmFreq(cfg.Frequency); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set pwm frequency %s: %w", cfg.Frequency, err)
	}

	debug.Info("PCA9685 ready at %#x on bus %q (%s)", cfg.Address, cfg.Bus, cfg.Frequency)
	return &Expander{dev: dev, bus: bus}, nil
}

// NewExpander wraps an already configured device. The caller keeps
// ownership of the bus.
func NewExpander(dev Device) *Expander {
	return &Expander{dev: dev}
}

func (e *Expander) SetDuty(channel, value int) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	on, off := onOff(value)
	debug.PWM("SetDuty", channel, value)
	return e.dev.SetPwm(channel, periphgpio.Duty(on), periphgpio.Duty(off))
}

func (e *Expander) SetPin(channel int, high bool) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	debug.PWM("SetPin", channel, high)
	if high {
		return e.dev.SetPwm(channel, FullOn, 0)
	}
	return e.dev.SetPwm(channel, 0, 0)
}

// Close releases the bus if the expander opened it.
func (e *Expander) Close() error {
	if e.bus == nil {
		return nil
	}
	return e.bus.Close()
}
