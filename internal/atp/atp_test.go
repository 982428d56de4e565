package atp

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

var specs = core.VehicleSpecs{PowerNotches: 5, BrakeNotches: 8}

func setup(mode core.Mode) (*Supervisor, *device.Context) {
	s := New(config.DefaultATPConfig())
	ctx := device.NewContext(specs, zerolog.Nop())
	ctx.ActualMode = mode
	ctx.SelectedMode = mode
	s.Initialize(ctx, core.InitOnService)
	return s, ctx
}

func at(location, kmh float64) core.VehicleState {
	return core.VehicleState{Location: location, Speed: core.KMH(kmh), ElapsedTime: 0.1}
}

func TestBeacons(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)

	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 70080})
	assert.Equal(t, 70.0, ctx.Profile.TrackTarget)
	assert.Equal(t, 80.0, ctx.Profile.TrackSafety)

	s.OnBeacon(ctx, core.Beacon{Type: 32, Payload: 350045055, Position: 1000})
	change, ok := ctx.Profile.NextChange.Get()
	require.True(t, ok)
	assert.Equal(t, 1350.0, change)
	assert.Equal(t, 45.0, ctx.Profile.NextTarget)
	assert.Equal(t, 55.0, ctx.Profile.NextSafety)

	s.OnBeacon(ctx, core.Beacon{Type: 33, Payload: 212, Position: 1000})
	stop, ok := ctx.Profile.UpcomingStop.Get()
	require.True(t, ok)
	assert.Equal(t, 1212.0, stop)

	s.OnBeacon(ctx, core.Beacon{Type: 33, Payload: -5, Position: 1000})
	assert.Equal(t, 995.0, ctx.Profile.UpcomingStop.Or(0))

	// unknown types leave the profile alone
	before := ctx.Profile
	s.OnBeacon(ctx, core.Beacon{Type: 12, Payload: 999999})
	assert.Equal(t, before, ctx.Profile)
}

func TestSpeedReductionScenario(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 90100})
	s.OnBeacon(ctx, core.Beacon{Type: 32, Payload: 500040050, Position: 0})

	prev := math.Inf(1)
	for loc := 0.0; loc <= 500; loc += 10 {
		s.Tick(ctx, at(loc, 0))
		p := ctx.Profile
		assert.LessOrEqual(t, p.EffectiveTarget, prev, "location %v", loc)
		assert.LessOrEqual(t, p.EffectiveTarget, p.TrackTarget)
		assert.LessOrEqual(t, p.EffectiveSafety, p.TrackSafety)
		prev = p.EffectiveTarget
	}
	assert.InDelta(t, 40.0, ctx.Profile.EffectiveTarget, 1e-9)
	assert.InDelta(t, 50.0, ctx.Profile.EffectiveSafety, 1e-9)

	// passing the change point promotes the new limits
	s.Tick(ctx, at(501, 0))
	assert.Equal(t, 40.0, ctx.Profile.TrackTarget)
	assert.Equal(t, 50.0, ctx.Profile.TrackSafety)
	assert.False(t, ctx.Profile.NextChange.OK())
}

func TestSpeedIncreaseTakesEffectAtChangePoint(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 40050})
	s.OnBeacon(ctx, core.Beacon{Type: 32, Payload: 100080090, Position: 0})

	s.Tick(ctx, at(50, 30))
	assert.Equal(t, 40.0, ctx.Profile.EffectiveTarget)

	s.Tick(ctx, at(110, 30))
	assert.Equal(t, 80.0, ctx.Profile.EffectiveTarget)
	assert.Equal(t, 90.0, ctx.Profile.EffectiveSafety)
}

func TestPrecedingVehicle(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 80090})

	state := at(0, 0)
	state.Preceding = core.Some(60.0)
	s.Tick(ctx, state)

	assert.Equal(t, 0.0, ctx.Profile.EffectiveTarget)
	assert.InDelta(t, math.Sqrt(2*0.7*20)*3.6, ctx.Profile.EffectiveSafety, 1e-9)
	assert.False(t, s.Faulted())

	state.Preceding = core.Some(2000.0)
	s.Tick(ctx, state)
	assert.Equal(t, 80.0, ctx.Profile.EffectiveTarget)
	assert.Equal(t, 90.0, ctx.Profile.EffectiveSafety)
}

func TestStationStopForcing(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 80090})
	s.OnBeacon(ctx, core.Beacon{Type: 33, Payload: 100, Position: 0})

	s.Tick(ctx, at(0, 0))
	assert.InDelta(t, 36.0, ctx.Profile.EffectiveTarget, 1e-9)
	assert.Greater(t, ctx.Profile.EffectiveSafety, ctx.Profile.EffectiveTarget)

	s.Tick(ctx, at(100, 0))
	assert.Equal(t, 0.0, ctx.Profile.EffectiveTarget)
	assert.Greater(t, ctx.Profile.EffectiveSafety, 0.0)

	// doors open at the platform release the stop
	s.OnDoorChange(ctx, core.DoorsClosed, core.DoorsLeft)
	s.Tick(ctx, at(100, 0))
	assert.Equal(t, 80.0, ctx.Profile.EffectiveTarget)
}

func TestStationStopForcingDisabled(t *testing.T) {
	cfg := config.DefaultATPConfig()
	cfg.ForceStationStop = false
	s := New(cfg)
	ctx := device.NewContext(specs, zerolog.Nop())
	s.Initialize(ctx, core.InitOnService)

	s.OnBeacon(ctx, core.Beacon{Type: 33, Payload: 10, Position: 0})
	s.Tick(ctx, at(0, 0))
	assert.Equal(t, 40.0, ctx.Profile.EffectiveTarget)
}

func TestTrip(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 40050})

	_, ok := s.Tick(ctx, at(0, 45))
	assert.False(t, ok)
	assert.Equal(t, StateActive, s.State())

	// overspeed, but back under before the countdown ends
	for i := 0; i < 20; i++ {
		_, ok = s.Tick(ctx, at(0, 55))
		assert.False(t, ok)
	}
	remaining, running := s.TripRemaining()
	assert.True(t, running)
	assert.InDelta(t, 1.1, remaining, 1e-6)

	s.Tick(ctx, at(0, 49))
	_, running = s.TripRemaining()
	assert.False(t, running)

	// sustained overspeed trips
	tripped := false
	for i := 0; i < 40; i++ {
		if d, ok := s.Tick(ctx, at(0, 55)); ok {
			assert.Equal(t, core.Notch(-9), d)
			tripped = true
		}
	}
	assert.True(t, tripped)
	assert.Equal(t, StateTripped, s.State())

	// stays tripped even at a stand
	for i := 0; i < 50; i++ {
		d, ok := s.Tick(ctx, at(0, 0))
		assert.True(t, ok)
		assert.LessOrEqual(t, int(d), -9)
	}

	s.Initialize(ctx, core.InitOnService)
	_, ok = s.Tick(ctx, at(0, 0))
	assert.False(t, ok)
	assert.Equal(t, StateActive, s.State())
}

func TestTripReleasedByRestrictedMode(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.OnBeacon(ctx, core.Beacon{Type: 31, Payload: 40050})
	for i := 0; i < 40; i++ {
		s.Tick(ctx, at(0, 70))
	}
	require.Equal(t, StateTripped, s.State())

	ctx.ActualMode = core.ModeRestrictedForward
	_, ok := s.Tick(ctx, at(0, 0))
	assert.False(t, ok)
	assert.Equal(t, StateOff, s.State())
}

func TestOffInRestrictedModes(t *testing.T) {
	for _, mode := range []core.Mode{core.ModeOff, core.ModeRestrictedForward, core.ModeRestrictedReverse} {
		s, ctx := setup(mode)
		for i := 0; i < 100; i++ {
			_, ok := s.Tick(ctx, at(0, 120))
			assert.False(t, ok)
		}
		assert.Equal(t, StateOff, s.State(), mode.String())
	}
}

func TestRelocationDropsStop(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	s.Tick(ctx, at(0, 0))
	s.OnBeacon(ctx, core.Beacon{Type: 33, Payload: 100, Position: 0})
	s.OnBeacon(ctx, core.Beacon{Type: 32, Payload: 50030040, Position: 0})

	s.Tick(ctx, at(5000, 0))
	assert.False(t, ctx.Profile.UpcomingStop.OK())
	assert.False(t, ctx.Profile.NextChange.OK())
}

func TestNaNProfileLatchesFault(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	ctx.Profile.TrackTarget = math.NaN()

	state := at(0, 0)
	state.Preceding = core.Some(500.0)
	d, ok := s.Tick(ctx, state)
	assert.True(t, ok)
	assert.Equal(t, core.Notch(-9), d)
	assert.True(t, s.Faulted())

	s.Initialize(ctx, core.InitOnService)
	assert.False(t, s.Faulted())
}

func TestEffectiveNeverExceedsTrack(t *testing.T) {
	s, ctx := setup(core.ModeCodedManual)
	beacons := []core.Beacon{
		{Type: 31, Payload: 60070},
		{Type: 32, Payload: 300020030, Position: 100},
		{Type: 31, Payload: 30040},
		{Type: 33, Payload: 450, Position: 150},
		{Type: 31, Payload: 90100},
	}

	loc := 0.0
	for i := 0; i < 200; i++ {
		if i%40 == 0 {
			s.OnBeacon(ctx, beacons[(i/40)%len(beacons)])
		}
		state := at(loc, 20)
		if i%3 == 0 {
			state.Preceding = core.Some(float64(50 + i))
		}
		s.Tick(ctx, state)
		assert.LessOrEqual(t, ctx.Profile.EffectiveTarget, ctx.Profile.TrackTarget, "tick %d", i)
		assert.LessOrEqual(t, ctx.Profile.EffectiveSafety, ctx.Profile.TrackSafety, "tick %d", i)
		assert.GreaterOrEqual(t, ctx.Profile.EffectiveTarget, 0.0)
		loc += 2.5
	}
}
