// Package device defines the contract every onboard control device implements
// and the vehicle-control context they share.
package device

import (
	"github.com/openato/onboard/pkg/core"
)

// Device produces an optional notch demand on every tick.
// ok is false when the device has nothing to say this tick.
type Device interface {
	Name() string
	Tick(ctx *Context, state core.VehicleState) (demand core.Notch, ok bool)
}

// BeaconListener is implemented by devices that consume wayside beacons.
type BeaconListener interface {
	OnBeacon(ctx *Context, b core.Beacon)
}

// DoorListener is implemented by devices that react to door changes.
// The context already carries the new state when this is called.
type DoorListener interface {
	OnDoorChange(ctx *Context, oldState, newState core.DoorState)
}

// KeyListener is implemented by devices bound to cab keys.
type KeyListener interface {
	OnKeyDown(ctx *Context, key core.VirtualKey)
	OnKeyUp(ctx *Context, key core.VirtualKey)
}

// SignalListener is implemented by devices that read signal aspects.
// None of the built-in devices does; the aspects stay on Context.Signals.
type SignalListener interface {
	OnSignal(ctx *Context, signals []core.SignalData)
}

// Initializer is implemented by devices that hold state needing a reset.
type Initializer interface {
	Initialize(ctx *Context, mode core.InitMode)
}
