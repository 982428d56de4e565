// Package convert provides functions to convert between GORM models and core records
package convert

import (
	"encoding/json"

	"github.com/openato/onboard/internal/model"
	"github.com/openato/onboard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// geoPointToColumns splits a mapped position into the lon/lat columns and a 3857 point.
func geoPointToColumns(p *core.GeoPoint) (lon, lat *float64, point geom.Point) {
	if p == nil {
		return nil, nil, geom.Point{}
	}
	lo, la := p.Longitude, p.Latitude
	return &lo, &la, geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
}

// demandsToJSON converts the sorted demand list for DB storage.
func demandsToJSON(demands []int) datatypes.JSON {
	if len(demands) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(demands)
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		ID:            s.ID,
		StartedAt:     s.StartedAt,
		Route:         s.Route,
		InitMode:      s.InitMode.String(),
		PluginVersion: s.Version,
		PowerNotches:  s.Specs.PowerNotches,
		BrakeNotches:  s.Specs.BrakeNotches,
		B67Notch:      s.Specs.B67Notch,
		AtsNotch:      s.Specs.AtsNotch,
		Cars:          s.Specs.Cars,
	}
}

// CoreToTick converts a core.TickRecord to a GORM model.Tick.
func CoreToTick(r core.TickRecord) model.Tick {
	lon, lat, point := geoPointToColumns(r.Position)
	return model.Tick{
		SessionID:    r.SessionID,
		Time:         r.Time,
		Location:     r.Location,
		SpeedKmh:     r.SpeedKmh,
		TargetSpeed:  r.TargetSpeed,
		SafetySpeed:  r.SafetySpeed,
		Power:        r.Power,
		Brake:        r.Brake,
		Reverser:     r.Reverser,
		Final:        r.Final,
		Demands:      demandsToJSON(r.Demands),
		SelectedMode: r.SelectedMode,
		ActualMode:   r.ActualMode,
		ATOPhase:     r.ATOPhase,
		ATPState:     r.ATPState,
		Doors:        r.Doors,
		Longitude:    lon,
		Latitude:     lat,
		Position:     point,
	}
}

// CoreToEvent converts a core.EventRecord to a GORM model.Event.
func CoreToEvent(r core.EventRecord) model.Event {
	lon, lat, point := geoPointToColumns(r.Position)
	return model.Event{
		SessionID: r.SessionID,
		Time:      r.Time,
		Kind:      r.Kind,
		Location:  r.Location,
		Detail:    r.Detail,
		Longitude: lon,
		Latitude:  lat,
		Position:  point,
	}
}

// TickToCore converts a stored model.Tick back to a core.TickRecord.
func TickToCore(t model.Tick) core.TickRecord {
	var demands []int
	if len(t.Demands) > 0 {
		_ = json.Unmarshal(t.Demands, &demands)
	}
	return core.TickRecord{
		SessionID:    t.SessionID,
		Time:         t.Time,
		Location:     t.Location,
		SpeedKmh:     t.SpeedKmh,
		TargetSpeed:  t.TargetSpeed,
		SafetySpeed:  t.SafetySpeed,
		Power:        t.Power,
		Brake:        t.Brake,
		Reverser:     t.Reverser,
		Final:        t.Final,
		Demands:      demands,
		SelectedMode: t.SelectedMode,
		ActualMode:   t.ActualMode,
		ATOPhase:     t.ATOPhase,
		ATPState:     t.ATPState,
		Doors:        t.Doors,
		Position:     columnsToGeoPoint(t.Longitude, t.Latitude, t.Position),
	}
}

func columnsToGeoPoint(lon, lat *float64, point geom.Point) *core.GeoPoint {
	if lon == nil || lat == nil {
		return nil
	}
	p := &core.GeoPoint{Longitude: *lon, Latitude: *lat}
	if c, ok := point.Coordinates(); ok {
		p.X, p.Y = c.X, c.Y
	}
	return p
}
