package debug

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (board setup, program summary)
	LevelLive    = 2 // Live info (moves, speed changes)
	LevelVerbose = 3 // Verbose (every step, position, coil mask)
	LevelTrace   = 4 // Trace (PWM/GPIO channel writes)
)

var (
	level  int
	logger *logrus.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (board setup, program summary)
// 2 = live info (moves, speed changes)
// 3 = verbose (every step, position, coil mask)
// 4 = trace (PWM/GPIO channel writes)
func Init(debugLevel int) {
	level = debugLevel
	if level <= LevelOff {
		logger = nil
		return
	}
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	logger.SetLevel(logrusLevel(level))
}

func logrusLevel(l int) logrus.Level {
	switch {
	case l >= LevelTrace:
		return logrus.TraceLevel
	case l >= LevelLive:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// SetOutput redirects debug output, e.g. to tee it into the web status stream.
// It is a no-op while debug output is off.
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// AddHook attaches h to the debug logger, e.g. to forward entries to the
// web status stream. It is a no-op while debug output is off.
func AddHook(h logrus.Hook) {
	if logger != nil {
		logger.AddHook(h)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.WithField("section", "summary").Info(title)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.WithField("stage", "live").Debugf(format, args...)
	}
}

// Move prints a motor movement (level 2).
func Move(motor string, steps int, style string) {
	if level >= LevelLive && logger != nil {
		logger.WithFields(logrus.Fields{
			"motor": motor,
			"steps": steps,
			"style": style,
		}).Debug("move")
	}
}

// Speed prints a speed change on a DC motor or the actuator (level 2).
func Speed(motor string, speed float64) {
	if level >= LevelLive && logger != nil {
		logger.WithFields(logrus.Fields{
			"motor": motor,
			"speed": speed,
		}).Debug("speed")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.WithField("stage", "verbose").Debugf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.WithField("stage", "verbose").Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.WithField("section", name).Debug("━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered setup step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.WithField("step", num).Debug(description)
	}
}

// Coils prints the result of one stepper step (level 3).
func Coils(position int, mask uint8, dutyA, dutyB int) {
	if level >= LevelVerbose && logger != nil {
		logger.WithFields(logrus.Fields{
			"pos":   position,
			"mask":  fmt.Sprintf("%#x", mask),
			"dutyA": dutyA,
			"dutyB": dutyB,
		}).Debug("coils")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof("  %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Tracef(format, args...)
	}
}

// GPIO prints a host GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.WithFields(logrus.Fields{"pin": pin, "value": value}).Trace(operation)
	}
}

// PWM prints an expander channel write (level 4).
func PWM(operation string, channel int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.WithFields(logrus.Fields{"channel": channel, "value": value}).Trace(operation)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Error(err)
	}
}
