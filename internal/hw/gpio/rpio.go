package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mche201/motorhat/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// headerPins is the number of BCM GPIO lines on the 40-pin header.
const headerPins = 28

var (
	ErrPinRange = errors.New("gpio: pin outside the header range")
	ErrPinMode  = errors.New("gpio: pin configured for the other direction")
)

// HeaderDriver drives coil lines wired straight to the Raspberry Pi header.
// Lines are configured on first use and remembered so Close can let them
// float again.
type HeaderDriver struct {
	mu    sync.Mutex
	lines map[int]PinMode
}

// OpenHeader maps the GPIO registers through /dev/gpiomem.
func OpenHeader() (*HeaderDriver, error) {
	debug.Info("Opening header GPIO (go-rpio)")
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("map GPIO registers: %w", err)
	}
	return &HeaderDriver{lines: make(map[int]PinMode)}, nil
}

func checkPin(pin int) error {
	if pin < 0 || pin >= headerPins {
		return fmt.Errorf("%w: %d", ErrPinRange, pin)
	}
	return nil
}

// claim returns the header line for pin, configuring it as mode on first
// use. A line already claimed for the other direction is refused.
// Callers hold d.mu.
func (d *HeaderDriver) claim(pin int, mode PinMode) (rpio.Pin, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	line := rpio.Pin(pin)
	if have, ok := d.lines[pin]; ok {
		if have != mode {
			return 0, fmt.Errorf("%w: %d", ErrPinMode, pin)
		}
		return line, nil
	}
	if err := configure(line, mode); err != nil {
		return 0, err
	}
	d.lines[pin] = mode
	return line, nil
}

func configure(line rpio.Pin, mode PinMode) error {
	switch mode {
	case Input:
		line.Input()
	case Output:
		line.Output()
		line.Low()
	default:
		return fmt.Errorf("gpio: unknown pin mode %d", mode)
	}
	return nil
}

// SetupPin configures pin explicitly. Reconfiguring a claimed line to the
// other direction is allowed here.
func (d *HeaderDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	if err := checkPin(pin); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := configure(rpio.Pin(pin), mode); err != nil {
		return err
	}
	d.lines[pin] = mode
	return nil
}

func (d *HeaderDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	d.mu.Lock()
	defer d.mu.Unlock()
	line, err := d.claim(pin, Output)
	if err != nil {
		return err
	}
	if level == High {
		line.High()
	} else {
		line.Low()
	}
	return nil
}

func (d *HeaderDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	d.mu.Lock()
	defer d.mu.Unlock()
	line, err := d.claim(pin, Input)
	if err != nil {
		return Low, err
	}
	return Level(line.Read() == rpio.High), nil
}

// Close pulls every output line low, returns all claimed lines to input
// and unmaps the registers.
func (d *HeaderDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pin, mode := range d.lines {
		line := rpio.Pin(pin)
		if mode == Output {
			line.Low()
		}
		line.Input()
		debug.Verbose("Header pin %d released", pin)
	}
	d.lines = map[int]PinMode{}
	return rpio.Close()
}
