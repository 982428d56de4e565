package device

import (
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
)

// SpeedProfile is the speed envelope the protection supervisor maintains.
// All speeds are km/h. Effective values never exceed the track values.
type SpeedProfile struct {
	TrackTarget float64
	TrackSafety float64

	NextChange core.Opt[float64]
	NextTarget float64
	NextSafety float64

	EffectiveTarget float64
	EffectiveSafety float64

	UpcomingStop core.Opt[float64]
}

// Reset puts the profile back to its start-up envelope.
func (p *SpeedProfile) Reset(target, safety float64) {
	*p = SpeedProfile{
		TrackTarget:     target,
		TrackSafety:     safety,
		EffectiveTarget: target,
		EffectiveSafety: safety,
	}
}

// Context is the vehicle-control state shared by all devices of one train.
// It is owned by the train controller and only touched from the tick thread.
type Context struct {
	Specs core.VehicleSpecs

	SelectedMode core.Mode
	ActualMode   core.Mode
	Doors        core.DoorState

	Profile SpeedProfile

	// Location is the track coordinate seen on the latest tick.
	Location float64

	// Signals is the latest aspect array from the host, index 0 the current
	// section. The speed profile comes from beacons, so no built-in device
	// reads it.
	Signals []core.SignalData

	Log zerolog.Logger

	notes []string
}

// NewContext returns a context for a vehicle with the given specs.
func NewContext(specs core.VehicleSpecs, log zerolog.Logger) *Context {
	return &Context{
		Specs: specs,
		Log:   log,
	}
}

// Note appends a line to this tick's diagnostic output.
func (c *Context) Note(line string) {
	c.notes = append(c.notes, line)
}

// TakeNotes returns and clears the diagnostic lines gathered this tick.
func (c *Context) TakeNotes() []string {
	n := c.notes
	c.notes = nil
	return n
}
