// Package handlers binds the host commands to the train controller.
package handlers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/openato/onboard/internal/dispatcher"
	"github.com/openato/onboard/internal/parser"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
)

// Host commands.
const (
	CmdVersion   = ":VERSION:"
	CmdLoadSpecs = ":LOAD:SPECS:"
	CmdInit      = ":INIT:"
	CmdElapse    = ":ELAPSE:"
	CmdKeyDown   = ":KEY:DOWN:"
	CmdKeyUp     = ":KEY:UP:"
	CmdDoor      = ":DOOR:"
	CmdBeacon    = ":BEACON:"
	CmdSignal    = ":SIGNAL:"
	CmdReverser  = ":REVERSER:"
	CmdPower     = ":POWER:"
	CmdBrake     = ":BRAKE:"
	CmdExport    = ":RECORDER:EXPORT:"
)

// ErrNoRecorder is returned by the export command when recording is off.
var ErrNoRecorder = errors.New("recorder not configured")

const exportQueueSize = 4

// Controller is the control surface driven by the host. *train.Controller
// satisfies it.
type Controller interface {
	Specs() core.VehicleSpecs
	SetSpecs(specs core.VehicleSpecs)
	Initialize(mode core.InitMode)
	Tick(state core.VehicleState) core.Output
	OnKeyDown(key core.VirtualKey)
	OnKeyUp(key core.VirtualKey)
	OnDoorChange(oldState, newState core.DoorState)
	OnBeacon(b core.Beacon)
	OnSignal(signals []core.SignalData)
}

// Recorder opens a session on every initialization and exports on request.
// *recorder.Recorder satisfies it.
type Recorder interface {
	StartSession(mode core.InitMode, specs core.VehicleSpecs) error
	Export() (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Controller Controller
	// Recorder is optional.
	Recorder  Recorder
	Log       zerolog.Logger
	Version   string
	BuildDate string
}

// Service provides the handler methods for the host commands.
type Service struct {
	deps Dependencies
	log  zerolog.Logger

	// Controller calls come from the host thread and, for the recorder
	// export, from a dispatcher worker.
	mu      sync.Mutex
	handles core.Handles
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps: deps,
		log:  deps.Log.With().Str("component", "handlers").Logger(),
	}
}

// Register puts every command on d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdVersion, s.handleVersion)
	d.Register(CmdLoadSpecs, s.handleLoadSpecs, dispatcher.Logged())
	d.Register(CmdInit, s.handleInit, dispatcher.Logged())
	d.Register(CmdElapse, s.handleElapse)
	d.Register(CmdKeyDown, s.handleKeyDown)
	d.Register(CmdKeyUp, s.handleKeyUp)
	d.Register(CmdDoor, s.handleDoor, dispatcher.Logged())
	d.Register(CmdBeacon, s.handleBeacon)
	d.Register(CmdSignal, s.handleSignal)
	d.Register(CmdReverser, s.handleReverser)
	d.Register(CmdPower, s.handlePower)
	d.Register(CmdBrake, s.handleBrake)
	d.Register(CmdExport, s.handleExport, dispatcher.Buffered(exportQueueSize), dispatcher.Logged())
}

// Handles returns the last handle positions reported outside a tick.
func (s *Service) Handles() core.Handles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles
}

func (s *Service) handleVersion(dispatcher.Request) (any, error) {
	return []string{s.deps.Version, s.deps.BuildDate}, nil
}

func (s *Service) handleLoadSpecs(r dispatcher.Request) (any, error) {
	specs, err := parser.ParseSpecs(r.Args)
	if err != nil {
		return nil, fmt.Errorf("loading specs: %w", err)
	}
	s.mu.Lock()
	s.deps.Controller.SetSpecs(specs)
	s.mu.Unlock()
	return "ok", nil
}

func (s *Service) handleInit(r dispatcher.Request) (any, error) {
	mode, err := parser.ParseInitMode(r.Args)
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// the session opens first so it holds its own initialize event
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.StartSession(mode, s.deps.Controller.Specs()); err != nil {
			s.log.Error().Err(err).Msg("Recording session not started")
		}
	}
	s.deps.Controller.Initialize(mode)
	return "ok", nil
}

func (s *Service) handleElapse(r dispatcher.Request) (any, error) {
	state, err := parser.ParseElapse(r.Args)
	if err != nil {
		return nil, fmt.Errorf("elapse: %w", err)
	}

	s.mu.Lock()
	s.handles = state.Handles
	out := s.deps.Controller.Tick(state)
	s.mu.Unlock()

	return []any{out.Power, out.Brake, out.Reverser, out.Diagnostic}, nil
}

func (s *Service) handleKeyDown(r dispatcher.Request) (any, error) {
	key, err := parser.ParseKey(r.Args)
	if err != nil {
		return nil, fmt.Errorf("key down: %w", err)
	}
	s.mu.Lock()
	s.deps.Controller.OnKeyDown(key)
	s.mu.Unlock()
	return "ok", nil
}

func (s *Service) handleKeyUp(r dispatcher.Request) (any, error) {
	key, err := parser.ParseKey(r.Args)
	if err != nil {
		return nil, fmt.Errorf("key up: %w", err)
	}
	s.mu.Lock()
	s.deps.Controller.OnKeyUp(key)
	s.mu.Unlock()
	return "ok", nil
}

func (s *Service) handleDoor(r dispatcher.Request) (any, error) {
	oldState, newState, err := parser.ParseDoor(r.Args)
	if err != nil {
		return nil, fmt.Errorf("door: %w", err)
	}
	s.mu.Lock()
	s.deps.Controller.OnDoorChange(oldState, newState)
	s.mu.Unlock()
	return "ok", nil
}

func (s *Service) handleBeacon(r dispatcher.Request) (any, error) {
	b, err := parser.ParseBeacon(r.Args)
	if err != nil {
		return nil, fmt.Errorf("beacon: %w", err)
	}
	s.mu.Lock()
	s.deps.Controller.OnBeacon(b)
	s.mu.Unlock()
	return "ok", nil
}

func (s *Service) handleSignal(r dispatcher.Request) (any, error) {
	signals, err := parser.ParseSignals(r.Args)
	if err != nil {
		return nil, fmt.Errorf("signal: %w", err)
	}
	s.mu.Lock()
	s.deps.Controller.OnSignal(signals)
	s.mu.Unlock()
	return "ok", nil
}

// The handle commands are accepted for completeness. Propulsion takes the
// handle positions from the tick arguments.
func (s *Service) handleReverser(r dispatcher.Request) (any, error) {
	return s.setHandle(r, "reverser", func(h *core.Handles, v int) { h.Reverser = v })
}

func (s *Service) handlePower(r dispatcher.Request) (any, error) {
	return s.setHandle(r, "power", func(h *core.Handles, v int) { h.PowerNotch = v })
}

func (s *Service) handleBrake(r dispatcher.Request) (any, error) {
	return s.setHandle(r, "brake", func(h *core.Handles, v int) { h.BrakeNotch = v })
}

func (s *Service) setHandle(r dispatcher.Request, name string, set func(*core.Handles, int)) (any, error) {
	v, err := parser.ParseNotch(r.Args)
	if err != nil {
		return nil, fmt.Errorf("%s handle: %w", name, err)
	}
	s.mu.Lock()
	set(&s.handles, v)
	s.mu.Unlock()
	s.log.Trace().Str("handle", name).Int("value", v).Msg("Handle moved")
	return "ok", nil
}

func (s *Service) handleExport(dispatcher.Request) (any, error) {
	if s.deps.Recorder == nil {
		return nil, ErrNoRecorder
	}
	path, err := s.deps.Recorder.Export()
	if err != nil {
		return nil, fmt.Errorf("exporting recording: %w", err)
	}
	return path, nil
}
