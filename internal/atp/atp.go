// Package atp implements automatic train protection: the speed envelope built
// from wayside beacons, and the trip that brings the train to a stand when it
// stays above the safety speed.
package atp

import (
	"fmt"
	"math"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/internal/kinematics"
	"github.com/openato/onboard/internal/timer"
	"github.com/openato/onboard/pkg/core"
)

// State is the protection state.
type State int

const (
	StateOff State = iota
	StateActive
	StateTripped
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "Off"
	case StateActive:
		return "Active"
	case StateTripped:
		return "Tripped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Supervisor maintains the speed profile in the shared context and trips the
// train when it overspeeds for too long.
type Supervisor struct {
	cfg config.ATPConfig

	state State
	trip  timer.Countdown
	fault bool

	lastLocation core.Opt[float64]
}

// New creates a Supervisor.
func New(cfg config.ATPConfig) *Supervisor {
	return &Supervisor{cfg: cfg}
}

func (s *Supervisor) Name() string { return "atp" }

// State returns the current protection state.
func (s *Supervisor) State() State { return s.state }

// Faulted reports whether a profile invariant was violated since the last reset.
func (s *Supervisor) Faulted() bool { return s.fault }

// TripRemaining returns the seconds left before a trip, and whether the
// warning countdown is running at all.
func (s *Supervisor) TripRemaining() (float64, bool) {
	return s.trip.Remaining(), s.trip.Running()
}

// Tick recomputes the effective speeds and advances the trip state machine.
func (s *Supervisor) Tick(ctx *device.Context, state core.VehicleState) (core.Notch, bool) {
	s.detectJump(ctx, state.Location)
	s.updateProfile(ctx, state)

	if ctx.ActualMode == core.ModeOff || ctx.ActualMode.Restricted() {
		if s.state != StateOff {
			ctx.Log.Info().Stringer("mode", ctx.ActualMode).Msg("ATP isolated")
		}
		s.state = StateOff
		s.trip.Stop()
	} else if s.state == StateOff {
		s.state = StateActive
		ctx.Log.Info().Stringer("mode", ctx.ActualMode).Msg("ATP active")
	}

	if s.state != StateOff {
		s.updateTripTimer(ctx, state)
	}

	if s.state == StateActive && s.trip.Expired() {
		s.state = StateTripped
		ctx.Log.Warn().
			Float64("speed", state.Speed.KilometersPerHour()).
			Float64("safety", ctx.Profile.EffectiveSafety).
			Msg("ATP tripped")
	}

	ctx.Note(fmt.Sprintf("ATP %s T%.0f S%.0f", s.state, ctx.Profile.EffectiveTarget, ctx.Profile.EffectiveSafety))

	if s.state == StateTripped || s.fault {
		return ctx.Specs.Emergency(), true
	}
	return 0, false
}

func (s *Supervisor) detectJump(ctx *device.Context, location float64) {
	last, ok := s.lastLocation.Get()
	s.lastLocation = core.Some(location)
	if !ok || math.Abs(location-last) <= s.cfg.JumpDistance {
		return
	}
	ctx.Log.Info().Float64("from", last).Float64("to", location).Msg("Relocation detected, dropping stop and upcoming change")
	ctx.Profile.UpcomingStop = core.None[float64]()
	ctx.Profile.NextChange = core.None[float64]()
}

func (s *Supervisor) updateProfile(ctx *device.Context, state core.VehicleState) {
	p := &ctx.Profile
	loc := state.Location

	if change, ok := p.NextChange.Get(); ok && change < loc {
		p.TrackTarget = p.NextTarget
		p.TrackSafety = p.NextSafety
		p.NextChange = core.None[float64]()
		ctx.Log.Debug().Float64("target", p.TrackTarget).Float64("safety", p.TrackSafety).Msg("Passed speed change point")
	}

	target, safety := p.TrackTarget, p.TrackSafety

	if change, ok := p.NextChange.Get(); ok {
		d := change - loc
		target = math.Min(target, kinematics.SpeedToStop(s.cfg.TargetRate, d, p.NextTarget))
		safety = math.Min(safety, kinematics.SpeedToStop(s.cfg.SafetyRate, d, p.NextSafety))
	}

	if stop, ok := p.UpcomingStop.Get(); ok && s.cfg.ForceStationStop {
		d := stop - loc
		target = math.Min(target, kinematics.SpeedToStop(s.cfg.TargetRate, d-s.cfg.TargetStopOffset, 0))
		safety = math.Min(safety, kinematics.SpeedToStop(s.cfg.SafetyRate, d+s.cfg.SafetyStopOverrun, 0))
	}

	if dist, ok := state.Preceding.Get(); ok {
		target = math.Max(math.Min(kinematics.SpeedToStop(s.cfg.TargetRate, dist-s.cfg.TargetStoppingBuffer, 0), target), 0)
		safety = math.Max(math.Min(kinematics.SpeedToStop(s.cfg.SafetyRate, dist-s.cfg.SafetyStoppingBuffer, 0), safety), 0)
		if math.IsNaN(target) || math.IsNaN(safety) {
			if !s.fault {
				ctx.Log.Error().
					Float64("distance", dist).
					Float64("trackTarget", p.TrackTarget).
					Float64("trackSafety", p.TrackSafety).
					Msg("Speed profile is not a number, latching emergency brake")
			}
			s.fault = true
			target, safety = 0, 0
		}
	}

	p.EffectiveTarget = target
	p.EffectiveSafety = safety
}

func (s *Supervisor) updateTripTimer(ctx *device.Context, state core.VehicleState) {
	v := state.Speed.Abs().KilometersPerHour()
	safety := ctx.Profile.EffectiveSafety

	if s.trip.Running() {
		s.trip.Advance(state.ElapsedTime)
		if v <= safety {
			s.trip.Stop()
			ctx.Log.Debug().Msg("Overspeed cleared")
		}
		return
	}
	if v > safety {
		s.trip.Start(s.cfg.WarningDuration)
		ctx.Log.Info().Float64("speed", v).Float64("safety", safety).Msg("Overspeed, trip countdown started")
	}
}

// OnBeacon applies speed and stop beacons to the profile.
func (s *Supervisor) OnBeacon(ctx *device.Context, b core.Beacon) {
	p := &ctx.Profile
	switch b.Type {
	case core.BeaconSpeedLimit:
		p.TrackTarget = float64(b.Payload / 1000)
		p.TrackSafety = float64(b.Payload % 1000)
		p.EffectiveTarget = math.Min(p.EffectiveTarget, p.TrackTarget)
		p.EffectiveSafety = math.Min(p.EffectiveSafety, p.TrackSafety)
	case core.BeaconSpeedChange:
		p.NextChange = core.Some(float64(b.Payload/1000000) + b.Position)
		p.NextTarget = float64((b.Payload / 1000) % 1000)
		p.NextSafety = float64(b.Payload % 1000)
	case core.BeaconStopPosition:
		p.UpcomingStop = core.Some(b.Position + float64(b.Payload))
	default:
		return
	}
	ctx.Log.Debug().Int("type", b.Type).Int("payload", b.Payload).Float64("at", b.Position).Msg("ATP beacon")
}

// OnDoorChange drops the stop position once the doors open at a platform.
func (s *Supervisor) OnDoorChange(ctx *device.Context, oldState, newState core.DoorState) {
	if oldState.Closed() && !newState.Closed() {
		ctx.Profile.UpcomingStop = core.None[float64]()
	}
}

// Initialize resets the profile and clears any trip or fault.
func (s *Supervisor) Initialize(ctx *device.Context, _ core.InitMode) {
	s.state = StateOff
	s.trip.Stop()
	s.fault = false
	s.lastLocation = core.None[float64]()
	ctx.Profile.Reset(s.cfg.InitialTargetSpeed, s.cfg.InitialSafetySpeed)
}
