// pkg/core/events.go
package core

import "fmt"

// Beacon types understood by the onboard equipment.
const (
	BeaconVendorStop   = 6
	BeaconSpeedLimit   = 31
	BeaconSpeedChange  = 32
	BeaconStopPosition = 33
)

// Beacon is a wayside transponder message.
// Position is the track coordinate where the vehicle received it.
type Beacon struct {
	Type     int
	Signal   int
	Distance float64
	Payload  int
	Position float64
}

// DoorState is a bit set of open door sides.
type DoorState int

const (
	DoorsClosed DoorState = 0
	DoorsLeft   DoorState = 1
	DoorsRight  DoorState = 2
	DoorsBoth   DoorState = DoorsLeft | DoorsRight
)

// Closed reports whether every door is shut.
func (d DoorState) Closed() bool {
	return d == DoorsClosed
}

func (d DoorState) String() string {
	switch d {
	case DoorsClosed:
		return "closed"
	case DoorsLeft:
		return "left"
	case DoorsRight:
		return "right"
	case DoorsBoth:
		return "both"
	default:
		return fmt.Sprintf("DoorState(%d)", int(d))
	}
}

// VirtualKey is a cab key forwarded by the host.
type VirtualKey int

const (
	KeyS VirtualKey = iota
	KeyA1
	KeyA2
	KeyB1
	KeyB2
	KeyC1
	KeyC2
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
)

// Mode selector bindings.
const (
	KeyModeUp   = KeyC1
	KeyModeDown = KeyC2
)

// SignalData is one signal section ahead of the vehicle.
type SignalData struct {
	Aspect   int
	Distance float64
}

// Output is the command handed back to the host after a tick.
type Output struct {
	Power      int
	Brake      int
	Reverser   int
	Final      Notch
	Demands    []Notch
	Diagnostic string
}
