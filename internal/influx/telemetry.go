package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/openato/onboard/internal/train"
	"github.com/rs/zerolog"
)

const (
	TickMeasurement  = "atc_tick"
	EventMeasurement = "atc_event"
)

// PointWriter is satisfied by Manager.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Telemetry implements train.Observer and turns ticks and events into points.
type Telemetry struct {
	w       PointWriter
	log     zerolog.Logger
	every   int
	ticks   int
	now     func() time.Time
	vehicle string
}

// NewTelemetry writes every n-th tick (all of them for n <= 1) and every
// event. vehicle is added as a tag when not empty.
func NewTelemetry(w PointWriter, vehicle string, every int, log zerolog.Logger) *Telemetry {
	if every < 1 {
		every = 1
	}
	return &Telemetry{
		w:       w,
		log:     log.With().Str("component", "telemetry").Logger().Sample(&zerolog.BurstSampler{Burst: 3, Period: time.Minute}),
		every:   every,
		now:     time.Now,
		vehicle: vehicle,
	}
}

// OnTick is called on the tick thread after the output was computed.
func (t *Telemetry) OnTick(s train.Snapshot) {
	t.ticks++
	if (t.ticks-1)%t.every != 0 {
		return
	}
	if err := t.w.WritePoint(TickPoint(s, t.vehicle, t.now())); err != nil {
		t.log.Error().Err(err).Msg("Writing tick point failed")
	}
}

// OnEvent writes an event point.
func (t *Telemetry) OnEvent(e train.Event) {
	if err := t.w.WritePoint(EventPoint(e, t.vehicle, t.now())); err != nil {
		t.log.Error().Err(err).Str("kind", string(e.Kind)).Msg("Writing event point failed")
	}
}

// TickPoint builds the atc_tick point. Simulation time is kept as a field,
// the point itself is stamped with wall time.
func TickPoint(s train.Snapshot, vehicle string, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(TickMeasurement).
		AddTag("mode", s.ActualMode.String()).
		AddTag("phase", s.ATOPhase.String()).
		AddTag("atp", s.ATPState.String()).
		AddField("sim_time", s.State.TotalTime).
		AddField("location", s.State.Location).
		AddField("speed", s.State.Speed.KilometersPerHour()).
		AddField("target", s.Profile.EffectiveTarget).
		AddField("safety", s.Profile.EffectiveSafety).
		AddField("final", int(s.Output.Final)).
		AddField("power", s.Output.Power).
		AddField("brake", s.Output.Brake).
		SetTime(at)
	if vehicle != "" {
		p.AddTag("vehicle", vehicle)
	}
	return p
}

// EventPoint builds the atc_event point.
func EventPoint(e train.Event, vehicle string, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(EventMeasurement).
		AddTag("kind", string(e.Kind)).
		AddField("sim_time", e.Time).
		AddField("location", e.Location).
		AddField("detail", e.Detail).
		SetTime(at)
	if vehicle != "" {
		p.AddTag("vehicle", vehicle)
	}
	return p
}
