package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeedConversion(t *testing.T) {
	s := KMH(36)
	assert.InDelta(t, 10.0, s.MetersPerSecond(), 1e-9)
	assert.InDelta(t, 36.0, s.KilometersPerHour(), 1e-9)
	assert.InDelta(t, 36.0, KMH(-36).Abs().KilometersPerHour(), 1e-9)
	assert.InDelta(t, 72.0, MPS(20).KilometersPerHour(), 1e-9)
}

func TestOpt(t *testing.T) {
	o := None[float64]()
	assert.False(t, o.OK())
	assert.Equal(t, 5.0, o.Or(5))

	o = Some(12.5)
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
	assert.Equal(t, 12.5, o.Or(5))

	var zero Opt[int]
	assert.False(t, zero.OK())
}

func TestModeReverser(t *testing.T) {
	tests := []struct {
		mode Mode
		want int
	}{
		{ModeOff, 0},
		{ModeAuto, 1},
		{ModeCodedManual, 1},
		{ModeRestrictedReverse, -1},
		{ModeRestrictedForward, 1},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.Reverser())
		})
	}
}

func TestModeRestricted(t *testing.T) {
	assert.True(t, ModeRestrictedForward.Restricted())
	assert.True(t, ModeRestrictedReverse.Restricted())
	assert.False(t, ModeAuto.Restricted())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestInitModeStartMode(t *testing.T) {
	assert.Equal(t, ModeOff, InitOffEmergency.StartMode())
	assert.Equal(t, ModeCodedManual, InitOnEmergency.StartMode())
	assert.Equal(t, ModeCodedManual, InitOnService.StartMode())
}

func TestVehicleSpecs(t *testing.T) {
	specs := VehicleSpecs{PowerNotches: 4, BrakeNotches: 7, B67Notch: 5}
	assert.Equal(t, Notch(-7), specs.FullService())
	assert.Equal(t, Notch(-8), specs.Emergency())
	assert.Equal(t, Notch(-5), specs.HoldingBrake())

	specs.B67Notch = 0
	assert.Equal(t, Notch(-7), specs.HoldingBrake())
}

func TestHandlesManualDemand(t *testing.T) {
	assert.Equal(t, Notch(3), Handles{PowerNotch: 3}.ManualDemand())
	assert.Equal(t, Notch(-5), Handles{BrakeNotch: 5}.ManualDemand())
}

func TestDoorState(t *testing.T) {
	assert.True(t, DoorsClosed.Closed())
	assert.False(t, DoorsLeft.Closed())
	assert.Equal(t, DoorsBoth, DoorsLeft|DoorsRight)
	assert.Equal(t, "both", DoorsBoth.String())
}
