package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/mche201/motorhat/internal/config"
	"github.com/mche201/motorhat/internal/debug"
	"github.com/mche201/motorhat/internal/hw/stepper"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

const (
	maxSteps   = 100000
	maxDegrees = 3600
)

// Board is the set of motor operations the handlers drive.
// *motion.Controller implements it.
type Board interface {
	Position() int
	MoveSteps(ctx context.Context, n int, style stepper.Style) (int, error)
	MoveDegrees(ctx context.Context, angle float64, style stepper.Style) (int, error)
	ReleaseStepper() error
	SetMotorSpeed(motor int, speed float64) error
	BrakeMotor(motor int) error
	SetActuatorSpeed(speed float64) error
	BrakeActuator() error
	ActuatorSpeed() float64
	Stop() error
}

// RunProgramFunc plays a program of moves.
// It is called from the POST /run handler in a goroutine.
type RunProgramFunc func(ctx context.Context, program []config.Move) error

// BoardInfo is the static board description served by GET /config.
type BoardInfo struct {
	Microsteps  int           `json:"microsteps"`
	StepsPerRev int           `json:"steps_per_rev"`
	StepStyle   string        `json:"step_style"`
	DCMotors    int           `json:"dc_motors"`
	Program     []config.Move `json:"program"`
}

// StepRequest is the body of POST /step. Exactly one of Steps or Degrees
// is set; a negative value moves backward.
type StepRequest struct {
	Steps   int     `json:"steps"`
	Degrees float64 `json:"degrees"`
	Style   string  `json:"style"`
}

// MotorRequest is the body of POST /motor.
type MotorRequest struct {
	Motor int     `json:"motor"`
	Speed float64 `json:"speed"`
	Brake bool    `json:"brake"`
}

// ActuatorRequest is the body of POST /actuator.
type ActuatorRequest struct {
	Speed float64 `json:"speed"`
	Brake bool    `json:"brake"`
}

// RunRequest is the body of POST /run. An empty program runs the one
// from the configuration file.
type RunRequest struct {
	Program []config.Move `json:"program"`
}

// Status is the body of GET /status.
type Status struct {
	Position      int     `json:"position"`
	ActuatorSpeed float64 `json:"actuator_speed"`
	Running       bool    `json:"running"`
	Stepping      bool    `json:"stepping"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Board       Board
	RunProgram  RunProgramFunc
	Info        BoardInfo
	runningMu   sync.Mutex
	running     bool
	cancelRun   context.CancelFunc
	cancelStep  context.CancelFunc // non-nil while a /step move is in flight
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runProgram is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, board Board, runProgram RunProgramFunc, info BoardInfo, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Board:       board,
		RunProgram:  runProgram,
		Info:        info,
		staticFS:    staticFS,
	}
}

// ValidateStepRequest checks r and resolves its style, falling back to
// defaultStyle when none is given.
func ValidateStepRequest(r StepRequest, defaultStyle stepper.Style) (stepper.Style, error) {
	style := defaultStyle
	if r.Style != "" {
		var err error
		if style, err = stepper.ParseStyle(r.Style); err != nil {
			return 0, err
		}
	}
	if r.Steps != 0 && r.Degrees != 0 {
		return 0, errors.New("set either steps or degrees, not both")
	}
	if r.Steps < -maxSteps || r.Steps > maxSteps {
		return 0, fmt.Errorf("steps must be within ±%d", maxSteps)
	}
	if !isFinite(r.Degrees) || math.Abs(r.Degrees) > maxDegrees {
		return 0, fmt.Errorf("degrees must be a finite number within ±%d", maxDegrees)
	}
	return style, nil
}

// ValidateMotorRequest checks r against a board with motors DC motors.
func ValidateMotorRequest(r MotorRequest, motors int) error {
	if r.Motor < 1 || r.Motor > motors {
		return fmt.Errorf("motor must be between 1 and %d", motors)
	}
	return validateSpeed(r.Speed)
}

// ValidateActuatorRequest checks r.
func ValidateActuatorRequest(r ActuatorRequest) error {
	return validateSpeed(r.Speed)
}

// ValidateRunRequest checks every move of r.
func ValidateRunRequest(r RunRequest, motors int) error {
	for i, mv := range r.Program {
		if err := config.ValidateMove(mv, motors); err != nil {
			return fmt.Errorf("program[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSpeed(speed float64) error {
	if !isFinite(speed) || speed < -100 || speed > 100 {
		return errors.New("speed must be between -100 and 100")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// decode reads a size-limited JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// isRunning reports whether a program is in progress.
func (h *Handlers) isRunning() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	return h.running
}

// isStepping reports whether a /step move is in flight.
func (h *Handlers) isStepping() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	return h.cancelStep != nil
}

// rejectWhileRunning answers 409 when a program owns the motors.
func (h *Handlers) rejectWhileRunning(w http.ResponseWriter) bool {
	if h.isRunning() {
		http.Error(w, "program in progress", http.StatusConflict)
		return true
	}
	return false
}

// claimStepper marks a /step move in flight and returns its context. It
// answers 409 and returns false when a program or another move already
// owns the stepper. Calling the returned func clears the claim.
func (h *Handlers) claimStepper(w http.ResponseWriter, parent context.Context) (context.Context, func(), bool) {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	switch {
	case h.running:
		http.Error(w, "program in progress", http.StatusConflict)
		return nil, nil, false
	case h.cancelStep != nil:
		http.Error(w, "stepper move in progress", http.StatusConflict)
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	h.cancelStep = cancel
	return ctx, func() {
		cancel()
		h.runningMu.Lock()
		h.cancelStep = nil
		h.runningMu.Unlock()
	}, true
}

// HandleConfig returns the board description as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Info)
}

// HandleStatus returns the current motor state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Status{
		Position:      h.Board.Position(),
		ActuatorSpeed: h.Board.ActuatorSpeed(),
		Running:       h.isRunning(),
		Stepping:      h.isStepping(),
	})
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStep handles POST /step.
func (h *Handlers) HandleStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if !decode(w, r, &req) {
		return
	}
	defaultStyle, _ := stepper.ParseStyle(h.Info.StepStyle)
	style, err := ValidateStepRequest(req, defaultStyle)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, done, ok := h.claimStepper(w, r.Context())
	if !ok {
		return
	}
	defer done()

	var pos int
	if req.Degrees != 0 {
		pos, err = h.Board.MoveDegrees(ctx, req.Degrees, style)
	} else {
		pos, err = h.Board.MoveSteps(ctx, req.Steps, style)
	}
	if errors.Is(err, context.Canceled) {
		h.Broadcaster.BroadcastPosition("Stepper move cancelled", pos)
		http.Error(w, "step cancelled", http.StatusConflict)
		return
	}
	if err != nil {
		debug.Error(err)
		http.Error(w, "step failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Broadcaster.BroadcastPosition(fmt.Sprintf("Stepper moved (%s)", style), pos)
	writeJSON(w, http.StatusOK, map[string]int{"position": pos})
}

// HandleMotor handles POST /motor.
func (h *Handlers) HandleMotor(w http.ResponseWriter, r *http.Request) {
	var req MotorRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ValidateMotorRequest(req, h.Info.DCMotors); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.rejectWhileRunning(w) {
		return
	}

	var err error
	if req.Brake {
		err = h.Board.BrakeMotor(req.Motor)
	} else {
		err = h.Board.SetMotorSpeed(req.Motor, req.Speed)
	}
	if err != nil {
		debug.Error(err)
		http.Error(w, "motor command failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleActuator handles POST /actuator.
func (h *Handlers) HandleActuator(w http.ResponseWriter, r *http.Request) {
	var req ActuatorRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ValidateActuatorRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.rejectWhileRunning(w) {
		return
	}

	var err error
	if req.Brake {
		err = h.Board.BrakeActuator()
	} else {
		err = h.Board.SetActuatorSpeed(req.Speed)
	}
	if err != nil {
		debug.Error(err)
		http.Error(w, "actuator command failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRelease handles POST /release: it cancels a running program or
// /step move and lets every motor go.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	h.runningMu.Lock()
	if h.cancelRun != nil {
		h.cancelRun()
	}
	if h.cancelStep != nil {
		h.cancelStep()
	}
	h.runningMu.Unlock()

	if err := h.Board.Stop(); err != nil {
		debug.Error(err)
		http.Error(w, "release failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Broadcaster.Broadcast("info", "All motors released")
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

// HandleRun handles POST /run to start a program.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ValidateRunRequest(req, h.Info.DCMotors); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	program := req.Program
	if len(program) == 0 {
		program = h.Info.Program
	}
	if len(program) == 0 {
		http.Error(w, "no program to run", http.StatusBadRequest)
		return
	}

	if h.RunProgram == nil {
		http.Error(w, "program runner not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "program already in progress", http.StatusConflict)
		return
	}
	if h.cancelStep != nil {
		h.runningMu.Unlock()
		http.Error(w, "stepper move in progress", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.running = true
	h.cancelRun = cancel
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			cancel()
			h.runningMu.Lock()
			h.running = false
			h.cancelRun = nil
			h.runningMu.Unlock()
		}()

		if err := h.RunProgram(ctx, program); err != nil {
			h.Broadcaster.Broadcast("error", "Program failed: "+err.Error())
			debug.Error(err)
		} else {
			h.Broadcaster.BroadcastPosition("Program complete", h.Board.Position())
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
