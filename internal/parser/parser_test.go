package parser

import (
	"testing"

	"github.com/openato/onboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"negative integer", "-1", -1, false},
		{"float with decimals", "32.00", 32, false},
		{"negative float", "-1.00", -1, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"quoted number", `"12"`, "12"},
		{"escaped quote at end", `"say ""hi"""`, `say "hi"`},
		{"escaped quote at start", `"""a"" b"`, `"a" b`},
		{"empty quoted", `""`, ""},
		{"unquoted", ` 5.5 `, "5.5"},
		{"single quote char", `"`, `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, clean([]string{tt.input}))
		})
	}
}

func TestParseSpecs(t *testing.T) {
	specs, err := ParseSpecs([]string{"5", "8", "6.0", "1", `"6"`})
	require.NoError(t, err)
	assert.Equal(t, core.VehicleSpecs{PowerNotches: 5, BrakeNotches: 8, B67Notch: 6, AtsNotch: 1, Cars: 6}, specs)

	_, err = ParseSpecs([]string{"5", "8"})
	assert.ErrorIs(t, err, ErrArgCount)

	_, err = ParseSpecs([]string{"5", "x", "6", "1", "6"})
	assert.ErrorContains(t, err, "brake notches")

	_, err = ParseSpecs([]string{"5", "0", "0", "0", "6"})
	assert.Error(t, err)

	_, err = ParseSpecs([]string{"-5", "8", "6", "1", "6"})
	assert.Error(t, err)
}

func TestParseInitMode(t *testing.T) {
	tests := []struct {
		in      string
		want    core.InitMode
		wantErr bool
	}{
		{"-1", core.InitOnService, false},
		{"0", core.InitOnEmergency, false},
		{"1.0", core.InitOffEmergency, false},
		{"2", 0, true},
		{"on", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInitMode([]string{tt.in})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseInitMode(nil)
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestParseElapse(t *testing.T) {
	state, err := ParseElapse([]string{"1250.5", "72", "0.1", "3600.1", "1", "3", "0"})
	require.NoError(t, err)
	assert.Equal(t, 1250.5, state.Location)
	assert.InDelta(t, 72, state.Speed.KilometersPerHour(), 1e-9)
	assert.Equal(t, 0.1, state.ElapsedTime)
	assert.Equal(t, 3600.1, state.TotalTime)
	assert.Equal(t, core.Handles{Reverser: 1, PowerNotch: 3}, state.Handles)
	assert.False(t, state.Preceding.OK())

	state, err = ParseElapse([]string{"0", "0", "0", "0", "0", "0", "8", "140.5"})
	require.NoError(t, err)
	d, ok := state.Preceding.Get()
	require.True(t, ok)
	assert.Equal(t, 140.5, d)

	state, err = ParseElapse([]string{"0", "0", "0", "0", "0", "0", "8", ""})
	require.NoError(t, err)
	assert.False(t, state.Preceding.OK())

	_, err = ParseElapse([]string{"0", "0", "0"})
	assert.ErrorIs(t, err, ErrArgCount)

	_, err = ParseElapse([]string{"0", "fast", "0", "0", "0", "0", "0"})
	assert.ErrorContains(t, err, "speed")

	_, err = ParseElapse([]string{"0", "0", "0", "0", "0", "0", "0", "near"})
	assert.ErrorContains(t, err, "preceding")
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey([]string{"5"})
	require.NoError(t, err)
	assert.Equal(t, core.KeyModeUp, key)

	_, err = ParseKey([]string{"16"})
	assert.Error(t, err)
	_, err = ParseKey([]string{"1", "2"})
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestParseDoor(t *testing.T) {
	oldState, newState, err := ParseDoor([]string{"0", "3"})
	require.NoError(t, err)
	assert.Equal(t, core.DoorsClosed, oldState)
	assert.Equal(t, core.DoorsBoth, newState)

	_, _, err = ParseDoor([]string{"0", "4"})
	assert.Error(t, err)
	_, _, err = ParseDoor([]string{"0"})
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestParseBeacon(t *testing.T) {
	b, err := ParseBeacon([]string{"31", "0", "120.0", "45"})
	require.NoError(t, err)
	assert.Equal(t, core.Beacon{Type: core.BeaconSpeedLimit, Distance: 120, Payload: 45}, b)

	_, err = ParseBeacon([]string{"31", "0", "120.0"})
	assert.ErrorIs(t, err, ErrArgCount)
	_, err = ParseBeacon([]string{"31", "0", "x", "45"})
	assert.ErrorContains(t, err, "distance")
}

func TestParseSignals(t *testing.T) {
	signals, err := ParseSignals([]string{"4", "3,250", "0, 600.5"})
	require.NoError(t, err)
	assert.Equal(t, []core.SignalData{
		{Aspect: 4},
		{Aspect: 3, Distance: 250},
		{Aspect: 0, Distance: 600.5},
	}, signals)

	_, err = ParseSignals(nil)
	assert.ErrorIs(t, err, ErrArgCount)
	_, err = ParseSignals([]string{"3,far"})
	assert.Error(t, err)
}

func TestParseNotch(t *testing.T) {
	n, err := ParseNotch([]string{"-1"})
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	_, err = ParseNotch(nil)
	assert.ErrorIs(t, err, ErrArgCount)
}
