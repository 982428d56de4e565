package core

import "time"

// Session is one recorded run, opened by the host's initialize call.
type Session struct {
	ID        uint
	Route     string
	InitMode  InitMode
	Specs     VehicleSpecs
	StartedAt time.Time
	Version   string
}

// GeoPoint is a track coordinate laid onto the configured route.
// X and Y are EPSG:3857 metres.
type GeoPoint struct {
	Longitude float64 `json:"lon"`
	Latitude  float64 `json:"lat"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// TickRecord is the recorded outcome of a single control tick.
type TickRecord struct {
	SessionID uint `json:"-"`

	Time     float64 `json:"time"`
	Location float64 `json:"location"`
	SpeedKmh float64 `json:"speed"`

	TargetSpeed float64 `json:"target"`
	SafetySpeed float64 `json:"safety"`

	Power    int   `json:"power"`
	Brake    int   `json:"brake"`
	Reverser int   `json:"reverser"`
	Final    int   `json:"final"`
	Demands  []int `json:"demands"`

	SelectedMode string `json:"selectedMode"`
	ActualMode   string `json:"actualMode"`
	ATOPhase     string `json:"atoPhase"`
	ATPState     string `json:"atpState"`
	Doors        string `json:"doors"`

	Position *GeoPoint `json:"position,omitempty"`
}

// EventRecord is a recorded discrete event.
type EventRecord struct {
	SessionID uint `json:"-"`

	Kind     string  `json:"kind"`
	Time     float64 `json:"time"`
	Location float64 `json:"location"`
	Detail   string  `json:"detail"`

	Position *GeoPoint `json:"position,omitempty"`
}
