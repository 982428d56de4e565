package ato

import (
	"math"
	"testing"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var specs = core.VehicleSpecs{PowerNotches: 5, BrakeNotches: 8, B67Notch: 6}

const dt = 0.1

type rig struct {
	c   *Controller
	ctx *device.Context
	now float64
}

func newRig(mode core.Mode) *rig {
	ctx := device.NewContext(specs, zerolog.Nop())
	ctx.ActualMode = mode
	ctx.SelectedMode = mode
	ctx.Profile.Reset(40, 50)
	c := New(config.DefaultATOConfig())
	c.Initialize(ctx, core.InitOnService)
	return &rig{c: c, ctx: ctx}
}

func (r *rig) tick(loc, kmh float64) (core.Notch, bool) {
	r.now += dt
	return r.c.Tick(r.ctx, core.VehicleState{
		Location:    loc,
		Speed:       core.KMH(kmh),
		ElapsedTime: dt,
		TotalTime:   r.now,
	})
}

// depart cycles the doors and waits out the dwell.
func (r *rig) depart(loc float64) {
	r.c.OnDoorChange(r.ctx, core.DoorsClosed, core.DoorsLeft)
	r.c.OnDoorChange(r.ctx, core.DoorsLeft, core.DoorsClosed)
	for i := 0; i < 15; i++ {
		r.tick(loc, 0)
	}
}

func TestInactiveOutsideAuto(t *testing.T) {
	for _, mode := range []core.Mode{core.ModeOff, core.ModeCodedManual, core.ModeRestrictedForward, core.ModeRestrictedReverse} {
		r := newRig(mode)
		r.c.OnDoorChange(r.ctx, core.DoorsLeft, core.DoorsClosed)
		for i := 0; i < 30; i++ {
			_, ok := r.tick(0, 0)
			assert.False(t, ok, mode.String())
		}
		assert.Equal(t, PhaseDocked, r.c.Phase(), mode.String())
	}
}

func TestDockedHoldsFullService(t *testing.T) {
	r := newRig(core.ModeAuto)
	d, ok := r.tick(0, 0)
	require.True(t, ok)
	assert.Equal(t, core.Notch(-8), d)
}

func TestDepartureRampsPowerUnderLowSpeedCap(t *testing.T) {
	r := newRig(core.ModeAuto)
	r.depart(0)
	assert.Equal(t, PhaseEnroute, r.c.Phase())

	prev := r.c.Demand()
	for i := 0; i < 40; i++ {
		d, ok := r.tick(0, 0)
		require.True(t, ok)
		assert.LessOrEqual(t, int(d-prev), 1, "tick %d", i)
		prev = d
	}
	assert.Equal(t, core.Notch(1), r.c.Demand())
}

func TestHoldingBrakeWhenTargetIsZero(t *testing.T) {
	r := newRig(core.ModeAuto)
	r.ctx.Profile.Reset(0, 0)
	r.depart(0)
	require.Equal(t, PhaseEnroute, r.c.Phase())

	d, ok := r.tick(0, 0)
	require.True(t, ok)
	assert.Equal(t, core.Notch(-6), d)

	noB67 := newRig(core.ModeAuto)
	noB67.ctx.Specs.B67Notch = 0
	noB67.ctx.Profile.Reset(0, 0)
	noB67.depart(0)
	d, _ = noB67.tick(0, 0)
	assert.Equal(t, core.Notch(-8), d)
}

func TestDoorsOpenInAutoDocks(t *testing.T) {
	r := newRig(core.ModeAuto)
	r.depart(0)
	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconStopPosition, Payload: 500})
	for i := 0; i < 20; i++ {
		r.tick(0, 0)
	}
	require.Greater(t, int(r.c.Demand()), -8)

	r.c.OnDoorChange(r.ctx, core.DoorsClosed, core.DoorsRight)
	d, ok := r.tick(0, 0)
	assert.True(t, ok)
	assert.Equal(t, core.Notch(-8), d)
	assert.Equal(t, PhaseDocked, r.c.Phase())
	_, known := r.c.StopPosition()
	assert.False(t, known)

	r.c.OnDoorChange(r.ctx, core.DoorsRight, core.DoorsClosed)
	assert.Equal(t, PhaseReady, r.c.Phase())
	r.tick(0, 0)
	assert.Equal(t, PhaseReady, r.c.Phase())
	for i := 0; i < 15; i++ {
		r.tick(0, 0)
	}
	assert.Equal(t, PhaseEnroute, r.c.Phase())
}

func TestBeacons(t *testing.T) {
	r := newRig(core.ModeAuto)

	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconStopPosition, Payload: 150, Position: 1000})
	stop, ok := r.c.StopPosition()
	require.True(t, ok)
	assert.Equal(t, 1150.0, stop)

	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconVendorStop, Payload: 12345, Position: 1000})
	stop, _ = r.c.StopPosition()
	assert.Equal(t, 1345.0, stop)

	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconSpeedLimit, Payload: 40050, Position: 0})
	stop, _ = r.c.StopPosition()
	assert.Equal(t, 1345.0, stop)
}

func TestStaleStopDroppedWhenReady(t *testing.T) {
	tests := []struct {
		name string
		stop int
		kept bool
	}{
		{name: "current platform", stop: 10, kept: false},
		{name: "next platform", stop: 500, kept: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(core.ModeAuto)
			r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconStopPosition, Payload: tt.stop, Position: 1000})
			r.c.OnDoorChange(r.ctx, core.DoorsLeft, core.DoorsClosed)
			r.tick(1000, 0)
			_, ok := r.c.StopPosition()
			assert.Equal(t, tt.kept, ok)
		})
	}
}

func TestStationJumpDropsStop(t *testing.T) {
	r := newRig(core.ModeAuto)
	r.tick(0, 0)
	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconStopPosition, Payload: 300})
	r.tick(50, 0)
	_, ok := r.c.StopPosition()
	require.True(t, ok)

	r.tick(1000, 0)
	_, ok = r.c.StopPosition()
	assert.False(t, ok)
}

func TestInitializeForgetsStop(t *testing.T) {
	r := newRig(core.ModeAuto)
	r.depart(0)
	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconStopPosition, Payload: 300})

	r.c.Initialize(r.ctx, core.InitOnEmergency)
	assert.Equal(t, PhaseDocked, r.c.Phase())
	assert.Equal(t, core.Notch(-8), r.c.Demand())
	_, ok := r.c.StopPosition()
	assert.False(t, ok)
}

func TestChangeIsRateLimited(t *testing.T) {
	ctx := device.NewContext(specs, zerolog.Nop())
	c := New(config.DefaultATOConfig())

	c.change(ctx, 5, 0.15, 0.1, true, false)
	assert.Equal(t, core.Notch(0), c.Demand(), "interval not yet elapsed")

	c.change(ctx, 5, 0.15, 0.2, true, false)
	assert.Equal(t, core.Notch(1), c.Demand())

	c.change(ctx, 5, 0.15, 0.3, true, false)
	assert.Equal(t, core.Notch(1), c.Demand())

	c.change(ctx, 5, 0.15, 0.4, true, false)
	assert.Equal(t, core.Notch(2), c.Demand())

	c.demand = 5
	c.change(ctx, 9, 0, 1, true, false)
	assert.Equal(t, core.Notch(5), c.Demand(), "clamped to max power")

	c.demand = -8
	c.change(ctx, -20, 0, 2, true, false)
	assert.Equal(t, core.Notch(-8), c.Demand(), "clamped to full service")

	c.change(ctx, -20, 0, 3, false, false)
	assert.Equal(t, core.Notch(-9), c.Demand(), "emergency allowed")
}

func TestChangeEasesOffAboveTargetRate(t *testing.T) {
	ctx := device.NewContext(specs, zerolog.Nop())
	c := New(config.DefaultATOConfig())
	c.rate.Update(10, 0)
	c.rate.Update(9, 1)
	require.InDelta(t, -1.0, c.Rate(), 1e-9)

	c.demand = -3
	c.change(ctx, -5, 0, 2, true, true)
	assert.Equal(t, core.Notch(-3), c.Demand())

	c.change(ctx, -5, 0, 3, true, false)
	assert.Equal(t, core.Notch(-4), c.Demand())
}

func TestSpeedNotch(t *testing.T) {
	c := New(config.DefaultATOConfig())
	tests := []struct {
		target, kmh float64
		want        core.Notch
	}{
		{target: 60, kmh: 0, want: 120},
		{target: 60, kmh: 59, want: 2},
		{target: 60, kmh: 60, want: 0},
		{target: 60, kmh: 60.05, want: -1},
		{target: 60, kmh: 60.35, want: -4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.speedNotch(tt.target, tt.kmh), "target %v speed %v", tt.target, tt.kmh)
	}
}

// acceleration is a crude traction model: 0.1 m/s² per power notch and
// 0.125 m/s² per brake notch.
func acceleration(d core.Notch) float64 {
	if d > 0 {
		return 0.1 * float64(d)
	}
	return 0.125 * float64(d)
}

func TestRunsToStationAndDocks(t *testing.T) {
	r := newRig(core.ModeAuto)
	r.ctx.Profile.Reset(60, 70)
	r.depart(0)
	r.c.OnBeacon(r.ctx, core.Beacon{Type: core.BeaconStopPosition, Payload: 800})

	loc, v := 0.0, 0.0
	seen := map[Phase]bool{}
	for i := 0; i < 4000 && r.c.Phase() != PhaseDocked; i++ {
		d, ok := r.tick(loc, v*core.KmhPerMps)
		require.True(t, ok)
		seen[r.c.Phase()] = true
		v = math.Max(0, v+acceleration(d)*dt)
		loc += v * dt
	}

	require.Equal(t, PhaseDocked, r.c.Phase())
	assert.True(t, seen[PhaseStopping])
	assert.True(t, seen[PhaseLevelling])
	assert.InDelta(t, 800.0, loc, 2.0)
	assert.Equal(t, core.Notch(-8), r.c.Demand())
	_, ok := r.c.StopPosition()
	assert.False(t, ok)
}
