package convert

import (
	"testing"
	"time"

	"github.com/openato/onboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGeoPointToColumns(t *testing.T) {
	lon, lat, pt := geoPointToColumns(&core.GeoPoint{Longitude: 2.35, Latitude: 48.85, X: 261600, Y: 6250000})
	require.NotNil(t, lon)
	require.NotNil(t, lat)
	assert.Equal(t, 2.35, *lon)
	assert.Equal(t, 48.85, *lat)

	c, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 261600.0, c.X)
	assert.Equal(t, 6250000.0, c.Y)
}

func TestGeoPointToColumns_Nil(t *testing.T) {
	lon, lat, pt := geoPointToColumns(nil)
	assert.Nil(t, lon)
	assert.Nil(t, lat)
	assert.True(t, pt.IsEmpty())
}

func TestDemandsToJSON(t *testing.T) {
	assert.Equal(t, datatypes.JSON("[]"), demandsToJSON(nil))
	assert.JSONEq(t, "[-8,-1,3]", string(demandsToJSON([]int{-8, -1, 3})))
}

func TestCoreToSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s := CoreToSession(core.Session{
		ID:        4,
		Route:     "Line 1",
		InitMode:  core.InitOnService,
		Specs:     core.DefaultVehicleSpecs(),
		StartedAt: start,
		Version:   "1.2.0",
	})

	assert.Equal(t, uint(4), s.ID)
	assert.Equal(t, "Line 1", s.Route)
	assert.Equal(t, "OnService", s.InitMode)
	assert.Equal(t, "1.2.0", s.PluginVersion)
	assert.Equal(t, 5, s.PowerNotches)
	assert.Equal(t, 8, s.BrakeNotches)
	assert.Equal(t, 6, s.B67Notch)
	assert.Equal(t, start, s.StartedAt)
}

func TestTickRoundTrip(t *testing.T) {
	rec := core.TickRecord{
		SessionID:    2,
		Time:         12.5,
		Location:     1034.2,
		SpeedKmh:     38,
		TargetSpeed:  40,
		SafetySpeed:  50,
		Power:        2,
		Brake:        0,
		Reverser:     1,
		Final:        2,
		Demands:      []int{2, 5},
		SelectedMode: "ATO",
		ActualMode:   "ATO",
		ATOPhase:     "Enroute",
		ATPState:     "Normal",
		Doors:        "closed",
		Position:     &core.GeoPoint{Longitude: 1, Latitude: 2, X: 3, Y: 4},
	}

	tick := CoreToTick(rec)
	assert.Equal(t, uint(2), tick.SessionID)
	assert.JSONEq(t, "[2,5]", string(tick.Demands))

	assert.Equal(t, rec, TickToCore(tick))
}

func TestCoreToEvent(t *testing.T) {
	ev := CoreToEvent(core.EventRecord{
		SessionID: 1,
		Kind:      "trip",
		Time:      30,
		Location:  512,
		Detail:    "overspeed",
	})

	assert.Equal(t, "trip", ev.Kind)
	assert.Equal(t, 512.0, ev.Location)
	assert.Nil(t, ev.Longitude)
	assert.True(t, ev.Position.IsEmpty())
}
