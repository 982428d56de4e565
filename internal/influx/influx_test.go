package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/openato/onboard/internal/ato"
	"github.com/openato/onboard/internal/atp"
	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/device"
	"github.com/openato/onboard/internal/train"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable on any test host
const deadURL = "http://127.0.0.1:1"

func snapshot() train.Snapshot {
	return train.Snapshot{
		State: core.VehicleState{
			Location:  812.5,
			Speed:     core.KMH(54),
			TotalTime: 30,
		},
		Output:     core.Output{Power: 3, Final: 3},
		ActualMode: core.ModeAuto,
		Profile:    device.SpeedProfile{EffectiveTarget: 60, EffectiveSafety: 70},
		ATOPhase:   ato.PhaseEnroute,
		ATPState:   atp.StateActive,
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestConnectDisabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.False(t, m.Valid())
	assert.Error(t, m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1)))
	assert.NoError(t, m.Close())
}

func TestConnectUnreachableWithoutBackup(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: true, URL: deadURL}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.Error(t, m.Connect(ctx))
	assert.False(t, m.Valid())
}

func TestBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(config.InfluxConfig{Enabled: true, URL: deadURL, BackupPath: path}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.Valid())

	at := time.Unix(1700000000, 0)
	require.NoError(t, m.WritePoint(TickPoint(snapshot(), "", at)))
	require.NoError(t, m.WritePoint(EventPoint(train.Event{Kind: train.EventTrip, Time: 31, Detail: "overspeed"}, "", at)))
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, path)), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasPrefix(lines[0], TickMeasurement+","))
	assert.Contains(t, lines[0], "mode=Auto")
	assert.Contains(t, lines[0], "phase=Enroute")
	assert.Contains(t, lines[0], "power=3i")
	assert.True(t, strings.HasSuffix(lines[0], " 1700000000000000000"))

	assert.True(t, strings.HasPrefix(lines[1], EventMeasurement+","))
	assert.Contains(t, lines[1], "kind=trip")
	assert.Contains(t, lines[1], `detail="overspeed"`)
}

type pointSink struct {
	points []*influxdb2_write.Point
}

func (s *pointSink) WritePoint(p *influxdb2_write.Point) error {
	s.points = append(s.points, p)
	return nil
}

func TestTelemetrySampling(t *testing.T) {
	sink := &pointSink{}
	tel := NewTelemetry(sink, "EMU-01", 3, zerolog.Nop())

	for i := 0; i < 7; i++ {
		tel.OnTick(snapshot())
	}
	tel.OnEvent(train.Event{Kind: train.EventModeCommit})

	require.Len(t, sink.points, 4)
	assert.Equal(t, TickMeasurement, sink.points[0].Name())
	assert.Equal(t, EventMeasurement, sink.points[3].Name())

	tags := map[string]string{}
	for _, tag := range sink.points[0].TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, "EMU-01", tags["vehicle"])
	assert.Equal(t, "Active", tags["atp"])
}

func TestTickPointFields(t *testing.T) {
	p := TickPoint(snapshot(), "", time.Unix(0, 0))
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.InDelta(t, 54, fields["speed"], 1e-9)
	assert.Equal(t, 60.0, fields["target"])
	assert.Equal(t, int64(3), fields["final"])
	assert.Equal(t, 812.5, fields["location"])
}
