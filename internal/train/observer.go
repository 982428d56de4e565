package train

import (
	"github.com/openato/onboard/internal/ato"
	"github.com/openato/onboard/internal/atp"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/pkg/core"
)

// EventKind classifies a discrete controller event.
type EventKind string

const (
	EventInitialize  EventKind = "initialize"
	EventSpecs       EventKind = "specs"
	EventModeCommit  EventKind = "mode_commit"
	EventTrip        EventKind = "trip"
	EventFault       EventKind = "fault"
	EventBeacon      EventKind = "beacon"
	EventDoor        EventKind = "door"
	EventStationStop EventKind = "station_stop"
)

// Event is something worth recording that happened between or during ticks.
// Time is simulation seconds.
type Event struct {
	Kind     EventKind
	Time     float64
	Location float64
	Detail   string
}

// Snapshot is the complete outcome of one tick.
type Snapshot struct {
	State        core.VehicleState
	Output       core.Output
	SelectedMode core.Mode
	ActualMode   core.Mode
	Doors        core.DoorState
	Profile      device.SpeedProfile
	ATOPhase     ato.Phase
	ATPState     atp.State
	Faulted      bool
}

// Observer receives tick snapshots and events after the control output has
// been computed. Implementations must not block the tick thread.
type Observer interface {
	OnTick(Snapshot)
	OnEvent(Event)
}
