// Package interlock holds the vehicle while any door is open.
package interlock

import (
	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/pkg/core"
)

// Interlock demands braking whenever the doors are not closed.
type Interlock struct {
	cfg config.InterlockConfig
}

// New creates an Interlock.
func New(cfg config.InterlockConfig) *Interlock {
	return &Interlock{cfg: cfg}
}

func (i *Interlock) Name() string { return "interlock" }

// Tick demands emergency braking if the vehicle moves with a door open and
// full service to keep it standing otherwise.
func (i *Interlock) Tick(ctx *device.Context, state core.VehicleState) (core.Notch, bool) {
	if ctx.Doors.Closed() {
		return 0, false
	}
	if state.Speed.Abs().KilometersPerHour() > i.cfg.MovingSpeed {
		return ctx.Specs.Emergency(), true
	}
	return ctx.Specs.FullService(), true
}
