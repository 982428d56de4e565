package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/openato/onboard/internal/config"
	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, pluginName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", pluginName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel converts a configured level name, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options selects the log sinks.
type Options struct {
	Level string
	// Console defaults to stdout.
	Console io.Writer
	// File gets uncoloured console lines. Nil disables it.
	File    io.Writer
	Graylog config.GraylogConfig
}

// Setup builds the plugin logger writing to every configured sink.
// The returned func closes the GELF connection when one was opened.
func Setup(opts Options) (zerolog.Logger, func()) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339},
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.File, TimeFormat: time.RFC3339, NoColor: true})
	}

	var (
		gelfWriter *gelf.Writer
		gelfErr    error
	)
	if opts.Graylog.Enabled {
		gelfWriter, gelfErr = gelf.NewWriter(opts.Graylog.Address)
		if gelfErr == nil {
			writers = append(writers, gelfWriter)
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()

	if gelfErr != nil {
		logger.Warn().Err(gelfErr).Str("address", opts.Graylog.Address).Msg("Graylog unavailable, continuing without it")
	}
	logger.Info().Str("loglevel", logger.GetLevel().String()).Msg("Logging set up")

	return logger, func() {
		if gelfWriter != nil {
			gelfWriter.Close()
		}
	}
}
