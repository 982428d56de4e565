// Package plugin assembles the controller, the host command set and the side
// channels (recorder, telemetry, vehicle bus) from the configuration file.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/openato/onboard/internal/canbus"
	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/dispatcher"
	"github.com/openato/onboard/internal/geo"
	"github.com/openato/onboard/internal/handlers"
	"github.com/openato/onboard/internal/influx"
	"github.com/openato/onboard/internal/logging"
	"github.com/openato/onboard/internal/recorder"
	"github.com/openato/onboard/internal/storage"
	"github.com/openato/onboard/internal/train"
	"github.com/openato/onboard/pkg/hostapi"
	"github.com/rs/zerolog"
)

// DefaultName prefixes the log files.
const DefaultName = "atc_plugin"

// Options for New.
type Options struct {
	// ConfigDir holds atc_plugin.cfg.json. Defaults apply when the file is missing.
	ConfigDir string
	// BaseDir anchors the relative paths of the configuration (logs,
	// recordings, dumps, telemetry backup). Empty leaves them relative to the
	// working directory.
	BaseDir   string
	Name      string
	Version   string
	BuildDate string
	// Console receives coloured log lines. Nil means stdout.
	Console io.Writer
}

// Plugin is one fully wired onboard unit.
type Plugin struct {
	Host       *hostapi.Host
	Dispatcher *dispatcher.Dispatcher
	Controller *train.Controller
	Recorder   *recorder.Recorder
	Log        zerolog.Logger

	closers []func() error
}

// New loads the configuration and builds everything. Side channels that
// cannot be set up are logged and left out; the controller always runs.
func New(ctx context.Context, opts Options) (*Plugin, error) {
	start := time.Now()
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	cfgErr := config.Load(opts.ConfigDir)

	p := &Plugin{}
	logFile, fileErr := openLogFile(opts.resolve(config.GetString("logsDir")), opts.Name, start)
	if logFile != nil {
		p.onClose(logFile.Close)
	}

	log, closeLog := logging.Setup(logging.Options{
		Level:   config.GetString("logLevel"),
		Console: opts.Console,
		File:    fileOrNil(logFile),
		Graylog: config.GetGraylogConfig(),
	})
	p.onClose(func() error { closeLog(); return nil })
	p.Log = log

	if cfgErr != nil {
		log.Warn().Err(cfgErr).Str("dir", opts.ConfigDir).Msg("Failed to load config, using defaults!")
	} else {
		log.Info().Str("dir", opts.ConfigDir).Msg("Loaded config")
	}
	if fileErr != nil {
		log.Error().Err(fileErr).Msg("Failed to create log file")
	}

	routeName, route := loadRoute(log)

	var observers []train.Observer

	p.Recorder = newRecorder(log, route, opts)
	observers = append(observers, p.Recorder)
	p.onClose(p.Recorder.Close)

	if tel, closeTel := newTelemetry(ctx, log, routeName, opts); tel != nil {
		observers = append(observers, tel)
		p.onClose(closeTel)
	}

	if bus := newBus(ctx, log); bus != nil {
		observers = append(observers, bus)
		p.onClose(bus.Close)
	}

	ctrl, err := train.New(train.LoadConfig(), log, observers...)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating controller: %w", err)
	}
	p.Controller = ctrl

	d, err := dispatcher.New(logging.NewDispatcherLogger(log))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	p.Dispatcher = d
	p.onClose(func() error { d.Close(); return nil })

	handlers.NewService(handlers.Dependencies{
		Controller: ctrl,
		Recorder:   p.Recorder,
		Log:        log,
		Version:    opts.Version,
		BuildDate:  opts.BuildDate,
	}).Register(d)

	p.Host = hostapi.New(d)

	log.Info().
		Str("version", opts.Version).
		Strs("commands", d.Commands()).
		Dur("took", time.Since(start)).
		Msg("Plugin ready")
	return p, nil
}

// Close shuts everything down in reverse order of creation.
func (p *Plugin) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func (p *Plugin) onClose(f func() error) {
	p.closers = append(p.closers, f)
}

// resolve anchors a relative configured path at BaseDir.
func (o Options) resolve(path string) string {
	if path == "" || o.BaseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.BaseDir, path)
}

func openLogFile(dir, name string, start time.Time) (*os.File, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := logging.LogFilePath(dir, name, start)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("rotating log file: %w", err)
		}
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
}

// fileOrNil keeps a nil *os.File from turning into a non-nil io.Writer.
func fileOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

func loadRoute(log zerolog.Logger) (string, *geo.Route) {
	rc, err := config.GetRouteConfig()
	if err != nil {
		log.Error().Err(err).Msg("Route not loaded")
		return rc.Name, nil
	}
	if len(rc.Points) == 0 {
		return rc.Name, nil
	}
	route, err := geo.NewRoute(rc)
	if err != nil {
		log.Error().Err(err).Str("route", rc.Name).Msg("Route not loaded")
		return rc.Name, nil
	}
	log.Info().Str("route", rc.Name).Float64("length", route.Length()).Msg("Route loaded")
	return rc.Name, route
}

func newRecorder(log zerolog.Logger, route *geo.Route, opts Options) *recorder.Recorder {
	cfg := config.GetStorageConfig()
	cfg.Memory.OutputDir = opts.resolve(cfg.Memory.OutputDir)
	cfg.SQLite.Path = opts.resolve(cfg.SQLite.Path)

	backend, err := storage.NewBackend(cfg, log)
	if err == nil {
		err = backend.Init()
	}
	if err != nil {
		log.Error().Err(err).Str("type", cfg.Type).Msg("Storage backend unavailable, recording disabled")
		backend = storage.Nop{}
	} else {
		log.Info().Str("type", cfg.Type).Msg("Storage backend initialized")
	}

	recOpts := []recorder.Option{
		recorder.WithVersion(opts.Version),
		recorder.WithSampleEvery(cfg.SampleEvery),
	}
	if route != nil {
		recOpts = append(recOpts, recorder.WithRoute(route))
	}
	return recorder.New(backend, log, recOpts...)
}

func newTelemetry(ctx context.Context, log zerolog.Logger, vehicle string, opts Options) (train.Observer, func() error) {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.BackupPath = opts.resolve(cfg.BackupPath)
	m := influx.NewManager(cfg, log)
	if err := m.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("Telemetry disabled")
		return nil, nil
	}
	return influx.NewTelemetry(m, vehicle, cfg.SampleEvery, log), m.Close
}

func newBus(ctx context.Context, log zerolog.Logger) *canbus.Bus {
	cfg := config.GetCANConfig()
	if !cfg.Enabled {
		return nil
	}
	bus, err := canbus.Dial(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Str("interface", cfg.Interface).Msg("Vehicle bus output disabled")
		return nil
	}
	log.Info().Str("interface", cfg.Interface).Uint32("frameId", cfg.FrameID).Msg("Vehicle bus output enabled")
	return bus
}
