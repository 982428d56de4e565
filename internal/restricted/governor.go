// Package restricted implements the restricted manual speed governor.
package restricted

import (
	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/pkg/core"
)

// Governor caps speed in the restricted manual modes. Above the motor cutout
// speed it forces coasting, above the maximum it forces braking. Both stay
// latched until speed falls to the reset speed.
type Governor struct {
	cfg config.RestrictedConfig

	forcedBraking  bool
	forcedCoasting bool
}

// New creates a Governor.
func New(cfg config.RestrictedConfig) *Governor {
	return &Governor{cfg: cfg}
}

func (g *Governor) Name() string { return "restricted" }

// Tick applies the governor while a restricted manual mode is in force.
func (g *Governor) Tick(ctx *device.Context, state core.VehicleState) (core.Notch, bool) {
	if !ctx.ActualMode.Restricted() {
		g.release(ctx)
		return 0, false
	}

	v := state.Speed.Abs().KilometersPerHour()
	switch {
	case v > g.cfg.MaxSpeed:
		if !g.forcedBraking {
			ctx.Log.Info().Float64("speed", v).Msg("Restricted manual overspeed, braking")
		}
		g.forcedBraking = true
	case v > g.cfg.MotorCutoutSpeed:
		g.forcedCoasting = true
	case v <= g.cfg.ResetSpeed:
		g.release(ctx)
	}

	switch {
	case g.forcedBraking:
		ctx.Note("RM brake")
		return ctx.Specs.FullService(), true
	case g.forcedCoasting:
		ctx.Note("RM coast")
		return 0, true
	default:
		return 0, false
	}
}

// Initialize clears both latches.
func (g *Governor) Initialize(ctx *device.Context, _ core.InitMode) {
	g.forcedBraking = false
	g.forcedCoasting = false
}

// ForcedBraking reports whether the brake latch is set.
func (g *Governor) ForcedBraking() bool { return g.forcedBraking }

// ForcedCoasting reports whether the coast latch is set.
func (g *Governor) ForcedCoasting() bool { return g.forcedCoasting }

func (g *Governor) release(ctx *device.Context) {
	if g.forcedBraking || g.forcedCoasting {
		ctx.Log.Debug().Msg("Restricted manual governor released")
	}
	g.forcedBraking = false
	g.forcedCoasting = false
}
