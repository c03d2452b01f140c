package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExpanderConfig describes the PCA9685 PWM expander.
type ExpanderConfig struct {
	Bus         string `yaml:"bus"`          // periph i2c bus name, "" = first bus
	Address     uint16 `yaml:"address"`      // 0x60 on v2 of the MCHE201 board
	FrequencyHz int    `yaml:"frequency_hz"` // PWM frequency
}

// StepperPins is the TB6612 channel map.
type StepperPins struct {
	PWMA int `yaml:"pwm_a"`
	AIN1 int `yaml:"ain1"`
	AIN2 int `yaml:"ain2"`
	PWMB int `yaml:"pwm_b"`
	BIN1 int `yaml:"bin1"`
	BIN2 int `yaml:"bin2"`
}

// Coil driver backends.
const (
	CoilDriverExpander = "expander"
	CoilDriverGPIO     = "gpio"
)

// StepperConfig holds the configuration for the stepper motor.
type StepperConfig struct {
	Microsteps  int          `yaml:"microsteps"`    // 8 or 16
	StepsPerRev int          `yaml:"steps_per_rev"` // full steps per revolution
	StepDelayMs int          `yaml:"step_delay_ms"` // delay between steps
	CoilDriver  string       `yaml:"coil_driver"`   // "expander" or "gpio"
	Pins        *StepperPins `yaml:"pins,omitempty"`
}

// PinPair is the two driver inputs of a DC motor or the actuator.
type PinPair struct {
	In1 int `yaml:"in1"`
	In2 int `yaml:"in2"`
}

// Move is one entry of a scripted program.
type Move struct {
	Kind    string  `yaml:"kind"` // stepper, dc, actuator, brake, release
	Steps   int     `yaml:"steps,omitempty"`
	Degrees float64 `yaml:"degrees,omitempty"`
	Style   string  `yaml:"style,omitempty"`
	Motor   int     `yaml:"motor,omitempty"` // dc motor number; 0 targets the actuator for brake
	Speed   float64 `yaml:"speed,omitempty"`
	DwellMs int     `yaml:"dwell_ms,omitempty"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	StepStyle  string `yaml:"step_style"`  // style used when none is given
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	Mock       bool   `yaml:"mock"`        // mock expander and GPIO (true=dev/test)
}

// Config aggregates all application configuration.
type Config struct {
	Expander ExpanderConfig `yaml:"expander"`
	Stepper  StepperConfig  `yaml:"stepper"`
	DCMotors []PinPair      `yaml:"dc_motors,omitempty"`
	Actuator *PinPair       `yaml:"actuator,omitempty"`
	Program  []Move         `yaml:"program,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

var validStyles = map[string]bool{"single": true, "double": true, "interleave": true, "microstep": true}

var validKinds = map[string]bool{"stepper": true, "dc": true, "actuator": true, "brake": true, "release": true}

// ValidateConfigPath accepts only *.yaml files directly inside a configs/
// directory, without any ".." component.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if cfg.Expander.Address == 0 {
		cfg.Expander.Address = 0x60
	}
	if cfg.Expander.FrequencyHz <= 0 {
		cfg.Expander.FrequencyHz = 1600
	}
	if cfg.Expander.FrequencyHz < 24 || cfg.Expander.FrequencyHz > 1600 {
		return nil, fmt.Errorf("expander.frequency_hz must be between 24 and 1600, got %d", cfg.Expander.FrequencyHz)
	}

	if cfg.Stepper.Microsteps == 0 {
		cfg.Stepper.Microsteps = 16
	}
	if cfg.Stepper.Microsteps != 8 && cfg.Stepper.Microsteps != 16 {
		return nil, fmt.Errorf("stepper.microsteps must be 8 or 16, got %d", cfg.Stepper.Microsteps)
	}
	if cfg.Stepper.StepsPerRev <= 0 {
		cfg.Stepper.StepsPerRev = 200 // 1.8° motor
	}
	if cfg.Stepper.StepDelayMs <= 0 {
		cfg.Stepper.StepDelayMs = 10
	}
	switch cfg.Stepper.CoilDriver {
	case "":
		cfg.Stepper.CoilDriver = CoilDriverExpander
	case CoilDriverExpander, CoilDriverGPIO:
	default:
		return nil, fmt.Errorf("stepper.coil_driver must be %q or %q, got %q", CoilDriverExpander, CoilDriverGPIO, cfg.Stepper.CoilDriver)
	}
	if cfg.Stepper.Pins == nil {
		if cfg.Stepper.CoilDriver == CoilDriverGPIO {
			return nil, errors.New("stepper.pins is required with coil_driver gpio")
		}
		cfg.Stepper.Pins = &StepperPins{PWMA: 13, AIN2: 12, AIN1: 11, PWMB: 8, BIN2: 9, BIN1: 10}
	}

	if len(cfg.DCMotors) == 0 {
		cfg.DCMotors = []PinPair{{In1: 2, In2: 3}, {In1: 4, In2: 5}}
	}
	if cfg.Actuator == nil {
		cfg.Actuator = &PinPair{In1: 6, In2: 7}
	}

	if cfg.Defaults.StepStyle == "" {
		cfg.Defaults.StepStyle = "single"
	}
	cfg.Defaults.StepStyle = strings.ToLower(cfg.Defaults.StepStyle)
	if !validStyles[cfg.Defaults.StepStyle] {
		return nil, fmt.Errorf("defaults.step_style %q is not a step style", cfg.Defaults.StepStyle)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	for i, mv := range cfg.Program {
		if err := ValidateMove(mv, len(cfg.DCMotors)); err != nil {
			return nil, fmt.Errorf("program[%d]: %w", i, err)
		}
	}

	return &cfg, nil
}

// ValidateMove checks one program move against a board with the given
// number of DC motors.
func ValidateMove(mv Move, motors int) error {
	if !validKinds[mv.Kind] {
		return fmt.Errorf("unknown kind %q", mv.Kind)
	}
	if mv.Style != "" && !validStyles[strings.ToLower(mv.Style)] {
		return fmt.Errorf("unknown style %q", mv.Style)
	}
	if mv.Speed < -100 || mv.Speed > 100 {
		return fmt.Errorf("speed must be within ±100, got %g", mv.Speed)
	}
	if mv.DwellMs < 0 {
		return fmt.Errorf("dwell_ms must be >= 0, got %d", mv.DwellMs)
	}
	switch mv.Kind {
	case "stepper":
		if mv.Steps != 0 && mv.Degrees != 0 {
			return errors.New("set either steps or degrees, not both")
		}
	case "dc":
		if mv.Motor < 1 || mv.Motor > motors {
			return fmt.Errorf("motor must be between 1 and %d, got %d", motors, mv.Motor)
		}
	case "brake":
		if mv.Motor < 0 || mv.Motor > motors {
			return fmt.Errorf("motor must be between 0 (actuator) and %d, got %d", motors, mv.Motor)
		}
	}
	return nil
}

// StepDelay returns the pause between two stepper steps.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Stepper.StepDelayMs) * time.Millisecond
}

// Dwell returns the pause after a program move.
func (m Move) Dwell() time.Duration {
	return time.Duration(m.DwellMs) * time.Millisecond
}
