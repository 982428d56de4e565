// Package recorder is the train data recorder. It turns controller
// snapshots and events into records for a storage backend.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/openato/onboard/internal/geo"
	"github.com/openato/onboard/internal/storage"
	"github.com/openato/onboard/internal/train"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithRoute maps recorded locations onto a route.
func WithRoute(route *geo.Route) Option {
	return func(r *Recorder) {
		r.route = route
	}
}

// WithVersion stamps sessions with the plugin version.
func WithVersion(version string) Option {
	return func(r *Recorder) {
		r.version = version
	}
}

// WithSampleEvery keeps only every n-th tick. Events are always kept.
func WithSampleEvery(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.every = n
		}
	}
}

// WithClock overrides the wall clock used for session start times.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// Recorder implements train.Observer.
type Recorder struct {
	backend storage.Backend
	route   *geo.Route
	version string
	every   int
	now     func() time.Time

	log     zerolog.Logger
	errLog  zerolog.Logger
	mu      sync.Mutex
	ticks   int
	session *core.Session
}

var _ train.Observer = (*Recorder)(nil)

// New wraps an initialised backend.
func New(backend storage.Backend, log zerolog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		backend: backend,
		every:   1,
		now:     time.Now,
		log:     log.With().Str("component", "recorder").Logger(),
	}
	// storage failures repeat every tick while a database is down
	r.errLog = r.log.Sample(&zerolog.BurstSampler{Burst: 3, Period: time.Minute})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartSession closes the running session, if any, and opens a new one.
func (r *Recorder) StartSession(mode core.InitMode, specs core.VehicleSpecs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		if err := r.backend.EndSession(); err != nil {
			r.log.Warn().Err(err).Uint("session", r.session.ID).Msg("Ending previous session failed")
		}
	}

	s := &core.Session{
		InitMode:  mode,
		Specs:     specs,
		StartedAt: r.now().UTC(),
		Version:   r.version,
	}
	if r.route != nil {
		s.Route = r.route.Name()
	}
	if err := r.backend.StartSession(s); err != nil {
		r.session = nil
		return fmt.Errorf("starting session: %w", err)
	}
	r.session = s
	r.ticks = 0

	r.log.Info().Uint("session", s.ID).Str("init", mode.String()).Msg("Recording session")
	return nil
}

// Session returns the running session.
func (r *Recorder) Session() (core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return core.Session{}, false
	}
	return *r.session, true
}

// OnTick records a snapshot.
func (r *Recorder) OnTick(s train.Snapshot) {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return
	}
	r.ticks++
	keep := (r.ticks-1)%r.every == 0
	r.mu.Unlock()
	if !keep {
		return
	}

	rec := TickRecord(s)
	rec.Position = r.locate(s.State.Location)
	if err := r.backend.RecordTick(&rec); err != nil {
		r.errLog.Error().Err(err).Msg("Recording tick failed")
	}
}

// OnEvent records an event.
func (r *Recorder) OnEvent(e train.Event) {
	r.mu.Lock()
	active := r.session != nil
	r.mu.Unlock()
	if !active {
		return
	}

	rec := core.EventRecord{
		Kind:     string(e.Kind),
		Time:     e.Time,
		Location: e.Location,
		Detail:   e.Detail,
		Position: r.locate(e.Location),
	}
	if err := r.backend.RecordEvent(&rec); err != nil {
		r.errLog.Error().Err(err).Str("kind", rec.Kind).Msg("Recording event failed")
	}
}

// Export persists the session so far and returns the file written, if the
// backend writes one.
func (r *Recorder) Export() (string, error) {
	if err := r.backend.Flush(); err != nil {
		return "", fmt.Errorf("flushing recorder: %w", err)
	}
	if e, ok := r.backend.(storage.Exporter); ok {
		path := e.ExportedFilePath()
		r.log.Info().Str("path", path).Msg("Recording exported")
		return path, nil
	}
	return "", nil
}

// Close ends the session and closes the backend.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var endErr error
	if r.session != nil {
		endErr = r.backend.EndSession()
		r.session = nil
	}
	if err := r.backend.Close(); err != nil {
		return err
	}
	return endErr
}

func (r *Recorder) locate(location float64) *core.GeoPoint {
	if r.route == nil {
		return nil
	}
	p, ok := r.route.Locate(location)
	if !ok {
		return nil
	}
	return &p
}

// TickRecord flattens a snapshot into a record without a position.
func TickRecord(s train.Snapshot) core.TickRecord {
	return core.TickRecord{
		Time:         s.State.TotalTime,
		Location:     s.State.Location,
		SpeedKmh:     s.State.Speed.KilometersPerHour(),
		TargetSpeed:  s.Profile.EffectiveTarget,
		SafetySpeed:  s.Profile.EffectiveSafety,
		Power:        s.Output.Power,
		Brake:        s.Output.Brake,
		Reverser:     s.Output.Reverser,
		Final:        int(s.Output.Final),
		Demands:      lo.Map(s.Output.Demands, func(d core.Notch, _ int) int { return int(d) }),
		SelectedMode: s.SelectedMode.String(),
		ActualMode:   s.ActualMode.String(),
		ATOPhase:     s.ATOPhase.String(),
		ATPState:     s.ATPState.String(),
		Doors:        s.Doors.String(),
	}
}
