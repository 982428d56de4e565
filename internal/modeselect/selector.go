// Package modeselect moves the train between operating modes. A change the
// driver selects only takes effect with the vehicle at a stand and the brake
// handle at the required notch.
package modeselect

import (
	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/internal/timer"
	"github.com/openato/onboard/pkg/core"
)

// Selector owns the guarded transition from the selected to the actual mode.
type Selector struct {
	cfg config.ModeSelectorConfig

	pending    core.Opt[core.Mode]
	changeover timer.Countdown
}

// New creates a Selector.
func New(cfg config.ModeSelectorConfig) *Selector {
	return &Selector{cfg: cfg}
}

func (s *Selector) Name() string { return "modeselect" }

// Pending returns the mode waiting to be committed, if any.
func (s *Selector) Pending() (core.Mode, bool) {
	return s.pending.Get()
}

// Tick commits a pending mode once the guard holds and demands emergency
// braking until then.
func (s *Selector) Tick(ctx *device.Context, state core.VehicleState) (core.Notch, bool) {
	if ctx.SelectedMode == ctx.ActualMode {
		s.clear()
		return 0, false
	}

	if p, ok := s.pending.Get(); !ok || p != ctx.SelectedMode {
		s.pending = core.Some(ctx.SelectedMode)
		s.changeover.Start(s.cfg.ChangeoverDelay)
		ctx.Log.Debug().
			Stringer("from", ctx.ActualMode).
			Stringer("to", ctx.SelectedMode).
			Msg("Mode change requested")
	}
	// the requesting tick counts towards the delay
	s.changeover.Advance(state.ElapsedTime)

	stopped := state.Speed.Abs().KilometersPerHour() <= s.cfg.StoppedSpeed
	braked := state.Handles.BrakeNotch >= s.requiredBrakeNotch(ctx.Specs)

	if stopped && braked && s.changeover.Expired() {
		ctx.Log.Info().
			Stringer("from", ctx.ActualMode).
			Stringer("to", ctx.SelectedMode).
			Msg("Mode change committed")
		ctx.ActualMode = ctx.SelectedMode
		s.clear()
		return 0, false
	}

	ctx.Note("Mode change to " + ctx.SelectedMode.String() + " pending")
	return ctx.Specs.Emergency(), true
}

// OnKeyDown steps the selected mode up or down.
func (s *Selector) OnKeyDown(ctx *device.Context, key core.VirtualKey) {
	switch key {
	case core.KeyModeUp:
		if ctx.SelectedMode < core.ModeCount-1 {
			ctx.SelectedMode++
		}
	case core.KeyModeDown:
		if ctx.SelectedMode > 0 {
			ctx.SelectedMode--
		}
	default:
		return
	}
	ctx.Log.Debug().Stringer("selected", ctx.SelectedMode).Msg("Mode selector moved")
}

func (s *Selector) OnKeyUp(*device.Context, core.VirtualKey) {}

// Initialize drops any pending change.
func (s *Selector) Initialize(*device.Context, core.InitMode) {
	s.clear()
}

func (s *Selector) requiredBrakeNotch(specs core.VehicleSpecs) int {
	if s.cfg.RequireEmergencyBrake {
		return specs.BrakeNotches + 1
	}
	return specs.BrakeNotches
}

func (s *Selector) clear() {
	s.pending = core.None[core.Mode]()
	s.changeover.Stop()
}
