// Package train runs the onboard devices of one vehicle and arbitrates their
// demands into the command handed back to the host.
package train

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/openato/onboard/internal/ato"
	"github.com/openato/onboard/internal/atp"
	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/internal/interlock"
	"github.com/openato/onboard/internal/modeselect"
	"github.com/openato/onboard/internal/restricted"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds the tuning of every device.
type Config struct {
	Interlock    config.InterlockConfig
	Restricted   config.RestrictedConfig
	ModeSelector config.ModeSelectorConfig
	ATP          config.ATPConfig
	ATO          config.ATOConfig
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		Interlock:    config.DefaultInterlockConfig(),
		Restricted:   config.DefaultRestrictedConfig(),
		ModeSelector: config.DefaultModeSelectorConfig(),
		ATP:          config.DefaultATPConfig(),
		ATO:          config.DefaultATOConfig(),
	}
}

// LoadConfig reads the tuning from the loaded configuration file.
func LoadConfig() Config {
	return Config{
		Interlock:    config.GetInterlockConfig(),
		Restricted:   config.GetRestrictedConfig(),
		ModeSelector: config.GetModeSelectorConfig(),
		ATP:          config.GetATPConfig(),
		ATO:          config.GetATOConfig(),
	}
}

// Controller owns the shared vehicle context and the device set.
// It is not safe for concurrent use; the host serializes every call.
type Controller struct {
	ctx *device.Context
	log zerolog.Logger

	interlock *interlock.Interlock
	selector  *modeselect.Selector
	governor  *restricted.Governor
	ato       *ato.Controller
	atp       *atp.Supervisor

	// tick order
	devices []device.Device

	observers []Observer
	metrics   *metrics

	now float64
}

// New builds a controller with every device in place. The vehicle starts with
// the default specs in Off until Initialize is called.
func New(cfg Config, log zerolog.Logger, observers ...Observer) (*Controller, error) {
	ms, err := newMetrics()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		ctx:       device.NewContext(core.DefaultVehicleSpecs(), log),
		log:       log,
		interlock: interlock.New(cfg.Interlock),
		selector:  modeselect.New(cfg.ModeSelector),
		governor:  restricted.New(cfg.Restricted),
		ato:       ato.New(cfg.ATO),
		atp:       atp.New(cfg.ATP),
		observers: observers,
		metrics:   ms,
	}
	c.devices = []device.Device{c.interlock, c.selector, c.governor, c.ato, c.atp}
	c.ctx.Profile.Reset(cfg.ATP.InitialTargetSpeed, cfg.ATP.InitialSafetySpeed)

	return c, nil
}

// AddObserver attaches a side channel after construction.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Specs returns the vehicle specs in use.
func (c *Controller) Specs() core.VehicleSpecs { return c.ctx.Specs }

// Modes returns the selected and the actual operating mode.
func (c *Controller) Modes() (selected, actual core.Mode) {
	return c.ctx.SelectedMode, c.ctx.ActualMode
}

// Profile returns a copy of the current speed profile.
func (c *Controller) Profile() device.SpeedProfile { return c.ctx.Profile }

// ATOPhase returns the automatic operation phase.
func (c *Controller) ATOPhase() ato.Phase { return c.ato.Phase() }

// ATPState returns the protection state.
func (c *Controller) ATPState() atp.State { return c.atp.State() }

// SetSpecs replaces the vehicle specs.
func (c *Controller) SetSpecs(specs core.VehicleSpecs) {
	c.ctx.Specs = specs
	c.log.Info().
		Int("power", specs.PowerNotches).
		Int("brake", specs.BrakeNotches).
		Int("b67", specs.B67Notch).
		Int("cars", specs.Cars).
		Msg("Vehicle specs loaded")
	c.emit(EventSpecs, fmt.Sprintf("P%d B%d", specs.PowerNotches, specs.BrakeNotches))
}

// Initialize puts every device back to its start-up state.
func (c *Controller) Initialize(mode core.InitMode) {
	start := mode.StartMode()
	c.ctx.SelectedMode = start
	c.ctx.ActualMode = start
	c.ctx.Doors = core.DoorsClosed
	c.ctx.Signals = nil

	for _, d := range c.devices {
		if i, ok := d.(device.Initializer); ok {
			i.Initialize(c.ctx, mode)
		}
	}

	c.log.Info().Stringer("init", mode).Stringer("mode", start).Msg("Train initialized")
	c.emit(EventInitialize, mode.String())
}

// Tick runs every device once and returns the arbitrated command.
func (c *Controller) Tick(state core.VehicleState) core.Output {
	ctx := c.ctx
	c.now = state.TotalTime
	ctx.Location = state.Location

	prevMode := ctx.ActualMode
	prevATP := c.atp.State()
	prevFault := c.atp.Faulted()
	prevPhase := c.ato.Phase()

	demands := make([]core.Notch, 0, len(c.devices)+1)
	if ctx.ActualMode != core.ModeAuto {
		demands = append(demands, state.Handles.ManualDemand())
	}
	for _, d := range c.devices {
		if n, ok := d.Tick(ctx, state); ok {
			demands = append(demands, n)
		}
	}

	var final core.Notch
	if len(demands) > 0 {
		final = lo.Min(demands)
	}

	out := Command(ctx.Specs, ctx.ActualMode, final)
	slices.Sort(demands)
	out.Demands = demands
	out.Diagnostic = c.diagnostic(final, ctx.TakeNotes())

	if ctx.ActualMode != prevMode {
		c.metrics.modeCommits.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("mode", ctx.ActualMode.String())))
		c.emit(EventModeCommit, prevMode.String()+" -> "+ctx.ActualMode.String())
	}
	if prevATP != atp.StateTripped && c.atp.State() == atp.StateTripped {
		c.metrics.trips.Add(context.Background(), 1)
		c.emit(EventTrip, fmt.Sprintf("%.1f km/h over %.1f km/h", state.Speed.Abs().KilometersPerHour(), ctx.Profile.EffectiveSafety))
	}
	if !prevFault && c.atp.Faulted() {
		c.emit(EventFault, "speed profile invalid")
	}
	if prevPhase == ato.PhaseLevelling && c.ato.Phase() == ato.PhaseDocked {
		c.emit(EventStationStop, fmt.Sprintf("%.2f", state.Location))
	}

	c.record(state, out)
	return out
}

// Command maps a final demand to handle positions, clamped to the vehicle's
// notch range, with the reverser forced by the actual mode.
func Command(specs core.VehicleSpecs, mode core.Mode, final core.Notch) core.Output {
	out := core.Output{Final: final, Reverser: mode.Reverser()}
	switch {
	case final < 0:
		out.Brake = min(int(-final), specs.BrakeNotches+1)
	case final > 0:
		out.Power = min(int(final), specs.PowerNotches)
	}
	return out
}

func (c *Controller) diagnostic(final core.Notch, notes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s F%d", c.ctx.SelectedMode, c.ctx.ActualMode, final)
	for _, n := range notes {
		b.WriteString(" | ")
		b.WriteString(n)
	}
	return b.String()
}

func (c *Controller) record(state core.VehicleState, out core.Output) {
	bg := context.Background()
	c.metrics.ticks.Add(bg, 1)
	c.metrics.finalDemand.Record(bg, int64(out.Final))
	c.metrics.speed.Record(bg, state.Speed.KilometersPerHour())
	c.metrics.target.Record(bg, c.ctx.Profile.EffectiveTarget)

	if len(c.observers) == 0 {
		return
	}
	snap := Snapshot{
		State:        state,
		Output:       out,
		SelectedMode: c.ctx.SelectedMode,
		ActualMode:   c.ctx.ActualMode,
		Doors:        c.ctx.Doors,
		Profile:      c.ctx.Profile,
		ATOPhase:     c.ato.Phase(),
		ATPState:     c.atp.State(),
		Faulted:      c.atp.Faulted(),
	}
	for _, o := range c.observers {
		o.OnTick(snap)
	}
}

func (c *Controller) emit(kind EventKind, detail string) {
	e := Event{Kind: kind, Time: c.now, Location: c.ctx.Location, Detail: detail}
	for _, o := range c.observers {
		o.OnEvent(e)
	}
}

// OnBeacon stamps the beacon with the latest location and hands it to every
// device that reads beacons.
func (c *Controller) OnBeacon(b core.Beacon) {
	b.Position = c.ctx.Location
	c.ctx.Log.Trace().Int("type", b.Type).Int("payload", b.Payload).Msg("Beacon received")
	for _, d := range c.devices {
		if l, ok := d.(device.BeaconListener); ok {
			l.OnBeacon(c.ctx, b)
		}
	}
	c.emit(EventBeacon, fmt.Sprintf("%d:%d", b.Type, b.Payload))
}

// OnDoorChange records the new door state and notifies the devices.
func (c *Controller) OnDoorChange(oldState, newState core.DoorState) {
	c.ctx.Doors = newState
	for _, d := range c.devices {
		if l, ok := d.(device.DoorListener); ok {
			l.OnDoorChange(c.ctx, oldState, newState)
		}
	}
	c.emit(EventDoor, oldState.String()+" -> "+newState.String())
}

// OnKeyDown forwards a cab key press.
func (c *Controller) OnKeyDown(key core.VirtualKey) {
	for _, d := range c.devices {
		if l, ok := d.(device.KeyListener); ok {
			l.OnKeyDown(c.ctx, key)
		}
	}
}

// OnKeyUp forwards a cab key release.
func (c *Controller) OnKeyUp(key core.VirtualKey) {
	for _, d := range c.devices {
		if l, ok := d.(device.KeyListener); ok {
			l.OnKeyUp(c.ctx, key)
		}
	}
}

// OnSignal stores the signal aspects ahead on the context and forwards them
// to any device listening for them.
func (c *Controller) OnSignal(signals []core.SignalData) {
	c.ctx.Signals = slices.Clone(signals)
	for _, d := range c.devices {
		if l, ok := d.(device.SignalListener); ok {
			l.OnSignal(c.ctx, signals)
		}
	}
}
