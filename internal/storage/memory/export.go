package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openato/onboard/pkg/core"
)

// SessionExport is the root JSON structure of an exported recording.
type SessionExport struct {
	Version   string             `json:"version"`
	Route     string             `json:"route"`
	InitMode  string             `json:"initMode"`
	StartedAt time.Time          `json:"startedAt"`
	Specs     SpecsJSON          `json:"specs"`
	Duration  float64            `json:"duration"`
	Ticks     []core.TickRecord  `json:"ticks"`
	Events    []core.EventRecord `json:"events"`
}

// SpecsJSON is the vehicle specification block of an export.
type SpecsJSON struct {
	PowerNotches int `json:"power"`
	BrakeNotches int `json:"brake"`
	B67Notch     int `json:"b67"`
	AtsNotch     int `json:"ats"`
	Cars         int `json:"cars"`
}

// exportJSON writes the session to a JSON file, gzipped when configured.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	route := b.session.Route
	if route == "" {
		route = "session"
	}
	route = strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_").Replace(route)
	timestamp := b.session.StartedAt.UTC().Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s_%d.json", route, timestamp, b.session.ID)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	export := SessionExport{
		Version:   s.Version,
		Route:     s.Route,
		InitMode:  s.InitMode.String(),
		StartedAt: s.StartedAt,
		Specs: SpecsJSON{
			PowerNotches: s.Specs.PowerNotches,
			BrakeNotches: s.Specs.BrakeNotches,
			B67Notch:     s.Specs.B67Notch,
			AtsNotch:     s.Specs.AtsNotch,
			Cars:         s.Specs.Cars,
		},
		Ticks:  make([]core.TickRecord, len(b.ticks)),
		Events: make([]core.EventRecord, len(b.events)),
	}
	copy(export.Ticks, b.ticks)
	copy(export.Events, b.events)

	if n := len(b.ticks); n > 0 {
		export.Duration = b.ticks[n-1].Time - b.ticks[0].Time
	}
	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
