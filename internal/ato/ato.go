// Package ato implements automatic train operation: departing after the dwell,
// following the protection target speed, and braking to a precise stop at the
// next platform.
package ato

import (
	"fmt"
	"math"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/internal/kinematics"
	"github.com/openato/onboard/internal/timer"
	"github.com/openato/onboard/pkg/core"
	"github.com/samber/lo"
)

// Phase is the controller's position in the station-to-station cycle.
type Phase int

const (
	PhaseDocked Phase = iota
	PhaseReady
	PhaseEnroute
	PhaseStopping
	PhaseLevelling
)

func (p Phase) String() string {
	switch p {
	case PhaseDocked:
		return "Docked"
	case PhaseReady:
		return "Ready"
	case PhaseEnroute:
		return "Enroute"
	case PhaseStopping:
		return "Stopping"
	case PhaseLevelling:
		return "Levelling"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Controller drives the train while the actual mode is Auto.
type Controller struct {
	cfg config.ATOConfig

	phase  Phase
	demand core.Notch
	stop   core.Opt[float64]

	dwell      timer.Countdown
	lastChange float64
	rate       kinematics.RateEstimator

	lastLocation core.Opt[float64]
}

// New creates a Controller.
func New(cfg config.ATOConfig) *Controller {
	return &Controller{
		cfg:  cfg,
		rate: kinematics.RateEstimator{PollInterval: cfg.AccelerationPollInterval},
	}
}

func (c *Controller) Name() string { return "ato" }

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Demand returns the notch the controller is currently applying.
func (c *Controller) Demand() core.Notch { return c.demand }

// StopPosition returns the track coordinate of the next stop, if known.
func (c *Controller) StopPosition() (float64, bool) { return c.stop.Get() }

// Rate returns the live acceleration estimate in m/s².
func (c *Controller) Rate() float64 { return c.rate.Rate() }

// Tick runs one step of the phase machine.
func (c *Controller) Tick(ctx *device.Context, state core.VehicleState) (core.Notch, bool) {
	c.rate.Update(state.Speed.MetersPerSecond(), state.TotalTime)
	c.detectJump(ctx, state.Location)

	if ctx.ActualMode != core.ModeAuto {
		if c.phase != PhaseDocked {
			ctx.Log.Info().Stringer("phase", c.phase).Msg("ATO disengaged")
		}
		c.phase = PhaseDocked
		c.demand = ctx.Specs.FullService()
		c.dwell.Stop()
		return 0, false
	}

	switch c.phase {
	case PhaseDocked:
		c.demand = ctx.Specs.FullService()
	case PhaseReady:
		c.ready(ctx, state)
	case PhaseEnroute:
		c.enroute(ctx, state)
	case PhaseStopping:
		c.stopping(ctx, state)
	case PhaseLevelling:
		c.levelling(ctx, state)
	}

	ctx.Note(fmt.Sprintf("ATO %s D%d", c.phase, c.demand))
	return c.demand, true
}

func (c *Controller) ready(ctx *device.Context, state core.VehicleState) {
	c.demand = ctx.Specs.FullService()

	if stop, ok := c.stop.Get(); ok && stop-state.Location < c.cfg.StaleStopDistance {
		ctx.Log.Debug().Float64("stop", stop).Msg("Dropping stop position of the current platform")
		c.stop = core.None[float64]()
	}

	if c.dwell.Advance(state.ElapsedTime) {
		c.dwell.Stop()
		c.setPhase(ctx, PhaseEnroute)
	}
}

func (c *Controller) enroute(ctx *device.Context, state core.VehicleState) {
	target := ctx.Profile.EffectiveTarget
	kmh := state.Speed.KilometersPerHour()

	if target <= c.cfg.HoldSpeed && kmh <= c.cfg.HoldSpeed {
		if hold := ctx.Specs.HoldingBrake(); c.demand != hold {
			c.demand = hold
			c.lastChange = state.TotalTime
		}
		return
	}

	if stop, ok := c.stop.Get(); ok {
		v := state.Speed.MetersPerSecond()
		brakingPoint := kinematics.DistanceToStop(c.cfg.TargetRate, v) + c.cfg.BrakingTolerance
		if stop-state.Location-c.cfg.LevellingDistance <= brakingPoint {
			c.setPhase(ctx, PhaseStopping)
			c.stopping(ctx, state)
			return
		}
	}

	req := c.limitLowSpeed(c.speedNotch(target, kmh), kmh)
	c.change(ctx, req, c.cfg.NotchInterval, state.TotalTime, true, true)
}

func (c *Controller) stopping(ctx *device.Context, state core.VehicleState) {
	stop, ok := c.stop.Get()
	if !ok {
		c.setPhase(ctx, PhaseEnroute)
		return
	}

	v := state.Speed.MetersPerSecond()
	if v <= c.cfg.LevellingSpeed {
		c.setPhase(ctx, PhaseLevelling)
		c.levelling(ctx, state)
		return
	}

	aim := stop - c.cfg.LevellingDistance
	step := 0
	rate := c.rate.Rate()
	if rate >= 0 {
		step = -1
	} else {
		projected := state.Location + kinematics.DistanceToStop(rate, v)
		switch {
		case projected > aim:
			step = -1
		case projected < aim-c.cfg.BrakingTolerance:
			step = 1
		}
	}

	follow := c.speedNotch(ctx.Profile.EffectiveTarget, state.Speed.KilometersPerHour())
	req := min(c.demand+core.Notch(step), follow)
	c.change(ctx, req, c.cfg.NotchInterval, state.TotalTime, true, false)
}

func (c *Controller) levelling(ctx *device.Context, state core.VehicleState) {
	stop, ok := c.stop.Get()
	if !ok {
		c.setPhase(ctx, PhaseEnroute)
		return
	}

	remaining := stop - state.Location
	kmh := state.Speed.Abs().KilometersPerHour()
	if kmh <= c.cfg.StoppedSpeed && remaining <= c.cfg.LevellingTolerance {
		ctx.Log.Info().Float64("error", -remaining).Msg("Stopped at platform")
		c.stop = core.None[float64]()
		c.demand = ctx.Specs.FullService()
		c.setPhase(ctx, PhaseDocked)
		return
	}

	v := state.Speed.MetersPerSecond()
	needed, _ := kinematics.DecelerationDistance(v, c.cfg.LevellingRate, 0)

	step := 0
	switch {
	case needed < remaining-c.cfg.LevellingTolerance:
		if !(v > c.cfg.CrawlSpeed && c.demand >= 0) {
			step = 1
		}
	case needed > remaining+c.cfg.LevellingTolerance:
		step = -1
	}

	req := c.limitLowSpeed(c.demand+core.Notch(step), state.Speed.KilometersPerHour())
	c.change(ctx, req, c.cfg.LevellingNotchInterval, state.TotalTime, true, false)
}

// speedNotch is the absolute notch that would hold the target speed.
func (c *Controller) speedNotch(target, kmh float64) core.Notch {
	diff := target - kmh
	if target < kmh {
		return core.Notch(min(0, int(diff/c.cfg.BrakingAmount)-1))
	}
	return core.Notch(max(0, int(diff/c.cfg.PoweringAmount)))
}

func (c *Controller) limitLowSpeed(req core.Notch, kmh float64) core.Notch {
	if kmh < c.cfg.LowSpeed {
		return min(req, core.Notch(c.cfg.LowSpeedPowerCap))
	}
	return req
}

// change moves the demand one notch toward req, at most once per interval.
func (c *Controller) change(ctx *device.Context, req core.Notch, interval, now float64, clampToService, clampToTargetRate bool) {
	if now-c.lastChange < interval {
		return
	}

	next := c.demand
	switch {
	case req > c.demand:
		next++
	case req < c.demand:
		next--
	}
	if clampToTargetRate && c.rate.Rate() < c.cfg.TargetRate {
		next++
	}

	lower := ctx.Specs.FullService()
	if !clampToService {
		lower = ctx.Specs.Emergency()
	}
	c.demand = lo.Clamp(next, lower, core.Notch(ctx.Specs.PowerNotches))
	c.lastChange = now
}

func (c *Controller) setPhase(ctx *device.Context, p Phase) {
	if c.phase == p {
		return
	}
	ctx.Log.Info().Stringer("from", c.phase).Stringer("to", p).Msg("ATO phase change")
	c.phase = p
}

func (c *Controller) detectJump(ctx *device.Context, location float64) {
	last, ok := c.lastLocation.Get()
	c.lastLocation = core.Some(location)
	if ok && math.Abs(location-last) > c.cfg.StationJumpDistance {
		ctx.Log.Info().Float64("from", last).Float64("to", location).Msg("Station jump, dropping stop position")
		c.stop = core.None[float64]()
	}
}

// OnBeacon records stop positions.
func (c *Controller) OnBeacon(ctx *device.Context, b core.Beacon) {
	switch b.Type {
	case core.BeaconStopPosition:
		c.stop = core.Some(b.Position + float64(b.Payload))
	case core.BeaconVendorStop:
		c.stop = core.Some(b.Position + float64(b.Payload%1000))
	default:
		return
	}
	ctx.Log.Debug().Float64("stop", c.stop.Or(0)).Msg("ATO stop position")
}

// OnDoorChange docks the train when the doors open and restarts the dwell
// once they close again.
func (c *Controller) OnDoorChange(ctx *device.Context, oldState, newState core.DoorState) {
	if ctx.ActualMode != core.ModeAuto {
		return
	}
	switch {
	case oldState.Closed() && !newState.Closed():
		c.stop = core.None[float64]()
		c.demand = ctx.Specs.FullService()
		c.dwell.Stop()
		c.setPhase(ctx, PhaseDocked)
	case !oldState.Closed() && newState.Closed():
		c.demand = ctx.Specs.FullService()
		c.dwell.Start(c.cfg.DwellTime)
		c.setPhase(ctx, PhaseReady)
	}
}

// Initialize forgets the stop position and returns to Docked.
func (c *Controller) Initialize(ctx *device.Context, _ core.InitMode) {
	c.phase = PhaseDocked
	c.demand = ctx.Specs.FullService()
	c.stop = core.None[float64]()
	c.dwell.Stop()
	c.lastChange = 0
	c.rate.Reset()
	c.lastLocation = core.None[float64]()
}
