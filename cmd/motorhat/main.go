package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"periph.io/x/conn/v3/physic"

	"github.com/mche201/motorhat/internal/config"
	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/actuator"
	"github.com/mche201/motorhat/internal/hw/dcmotor"
	"github.com/mche201/motorhat/internal/hw/gpio"
	"github.com/mche201/motorhat/internal/hw/pwm"
	"github.com/mche201/motorhat/internal/hw/stepper"
	"github.com/mche201/motorhat/internal/logic/geometry"
	"github.com/mche201/motorhat/internal/logic/motion"
	"github.com/mche201/motorhat/internal/logic/sequence"
	"github.com/mche201/motorhat/internal/web"
	"go.uber.org/multierr"
)

// oneShot holds the command-line motor commands. Nil fields were not given.
type oneShot struct {
	steps    *int
	style    string
	motor    *int
	speed    float64
	actuator *float64
	release  bool
}

func (o oneShot) empty() bool {
	return o.steps == nil && o.motor == nil && o.actuator == nil && !o.release
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	steps := flag.Int("steps", 0, "step the stepper N times (negative = backward)")
	style := flag.String("style", "", "step style: single, double, interleave or microstep (default from config)")
	motorNum := flag.Int("motor", 0, "DC motor number to drive (1-based)")
	speed := flag.Float64("speed", 0, "DC motor speed in percent (-100..100)")
	actuatorSpeed := flag.Float64("actuator", 0, "linear actuator speed in percent (-100..100)")
	release := flag.Bool("release", false, "release every motor and exit")
	flag.Parse()

	cmd := oneShot{style: *style, speed: *speed, release: *release}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "steps":
			cmd.steps = steps
		case "motor":
			cmd.motor = motorNum
		case "actuator":
			cmd.actuator = actuatorSpeed
		}
	})

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateOneShot(cmd, len(cfg.DCMotors)); err != nil {
		log.Fatalf("invalid command: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", debug.Level())

	b, err := openBoard(cfg)
	if err != nil {
		log.Fatalf("init board failed: %v", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Printf("closing board failed: %v", err)
		}
	}()

	defaultStyle, _ := stepper.ParseStyle(cfg.Defaults.StepStyle)
	seq := sequence.NewSequence(b.ctrl, defaultStyle)

	if port := webPort.port(); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.AddHook(broadcaster)

		srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, b.ctrl, seq.Run, boardInfo(cfg))
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := b.ctrl.Stop(); err != nil {
			log.Printf("stopping motors failed: %v", err)
		}
		return
	}

	if cmd.empty() {
		if err := seq.Run(ctx, cfg.Program); err != nil {
			log.Fatalf("program failed: %v", err)
		}
		return
	}
	if err := runOneShot(ctx, b.ctrl, cmd, defaultStyle, os.Stdout); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

// board bundles the motor controller with the transports it owns.
type board struct {
	ctrl    *motion.Controller
	closers []io.Closer
}

// Close releases the transports in reverse order of opening.
func (b *board) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i].Close())
	}
	return err
}

// openBoard builds the sinks and drivers described by cfg.
func openBoard(cfg *config.Config) (*board, error) {
	b := &board{}

	debug.Step(1, "Opening PWM expander")
	var analog interface {
		pwm.Sink
		io.Closer
	}
	if cfg.Defaults.Mock {
		analog = pwm.NewMockSink()
	} else {
		exp, err := pwm.OpenExpander(pwm.ExpanderConfig{
			Bus:       cfg.Expander.Bus,
			Address:   cfg.Expander.Address,
			Frequency: physic.Frequency(cfg.Expander.FrequencyHz) * physic.Hertz,
		})
		if err != nil {
			return nil, err
		}
		analog = exp
	}
	b.closers = append(b.closers, analog)
	debug.PrintStruct("Expander config", cfg.Expander)

	debug.Step(2, "Initializing stepper")
	pins := stepperPins(cfg.Stepper.Pins)
	var coilSink pwm.Sink = analog
	if cfg.Stepper.CoilDriver == config.CoilDriverGPIO {
		drv, err := gpio.NewDriver(cfg.Defaults.Mock)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("init GPIO: %w", err)
		}
		b.closers = append(b.closers, drv)
		split, err := pwm.NewSplitSink(analog, drv, pins.AIN1, pins.AIN2, pins.BIN1, pins.BIN2)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("init coil lines: %w", err)
		}
		coilSink = split
	}
	st, err := stepper.NewStepper(coilSink, stepper.Config{Microsteps: cfg.Stepper.Microsteps, Pins: pins})
	if err != nil {
		b.Close()
		return nil, err
	}
	debug.PrintStruct("Stepper config", cfg.Stepper)

	debug.Step(3, "Initializing DC motors and actuator")
	dc := dcmotor.New(analog, pinPairs(cfg.DCMotors))
	act := actuator.New(analog, dcmotor.PinPair{In1: cfg.Actuator.In1, In2: cfg.Actuator.In2})

	b.ctrl = motion.NewController(st, dc, act, geometry.NewStepsCalculator(cfg), cfg.StepDelay())
	return b, nil
}

func stepperPins(p *config.StepperPins) stepper.Pins {
	return stepper.Pins{
		PWMA: p.PWMA,
		AIN1: p.AIN1,
		AIN2: p.AIN2,
		PWMB: p.PWMB,
		BIN1: p.BIN1,
		BIN2: p.BIN2,
	}
}

func pinPairs(pairs []config.PinPair) []dcmotor.PinPair {
	out := make([]dcmotor.PinPair, len(pairs))
	for i, p := range pairs {
		out[i] = dcmotor.PinPair{In1: p.In1, In2: p.In2}
	}
	return out
}

func boardInfo(cfg *config.Config) web.BoardInfo {
	return web.BoardInfo{
		Microsteps:  cfg.Stepper.Microsteps,
		StepsPerRev: cfg.Stepper.StepsPerRev,
		StepStyle:   cfg.Defaults.StepStyle,
		DCMotors:    len(cfg.DCMotors),
		Program:     cfg.Program,
	}
}

// validateOneShot checks the command-line motor commands before any
// hardware is touched.
func validateOneShot(cmd oneShot, motors int) error {
	if cmd.style != "" {
		if _, err := stepper.ParseStyle(cmd.style); err != nil {
			return err
		}
	}
	if cmd.motor != nil {
		if *cmd.motor < 1 || *cmd.motor > motors {
			return fmt.Errorf("motor must be between 1 and %d, got %d", motors, *cmd.motor)
		}
		if err := validatePercent("speed", cmd.speed); err != nil {
			return err
		}
	}
	if cmd.actuator != nil {
		if err := validatePercent("actuator", *cmd.actuator); err != nil {
			return err
		}
	}
	return nil
}

func validatePercent(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -100 || v > 100 {
		return fmt.Errorf("%s must be between -100 and 100, got %g", name, v)
	}
	return nil
}

// runOneShot applies cmd in a fixed order: stepper, DC motor, actuator,
// release.
func runOneShot(ctx context.Context, ctrl *motion.Controller, cmd oneShot, defaultStyle stepper.Style, out io.Writer) error {
	if cmd.steps != nil {
		style := defaultStyle
		if cmd.style != "" {
			style, _ = stepper.ParseStyle(cmd.style)
		}
		pos, err := ctrl.MoveSteps(ctx, *cmd.steps, style)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "position %d\n", pos)
	}
	if cmd.motor != nil {
		if err := ctrl.SetMotorSpeed(*cmd.motor, cmd.speed); err != nil {
			return err
		}
	}
	if cmd.actuator != nil {
		if err := ctrl.SetActuatorSpeed(*cmd.actuator); err != nil {
			return err
		}
	}
	if cmd.release {
		return ctrl.Stop()
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
