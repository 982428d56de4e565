package storage_test

import (
	"testing"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/storage"
	gormstorage "github.com/openato/onboard/internal/storage/gorm"
	"github.com/openato/onboard/internal/storage/memory"
	sqlitestorage "github.com/openato/onboard/internal/storage/sqlite"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend  = (*memory.Backend)(nil)
	_ storage.Exporter = (*memory.Backend)(nil)
	_ storage.Backend  = (*gormstorage.Backend)(nil)
	_ storage.Backend  = (*sqlitestorage.Backend)(nil)
	_ storage.Exporter = (*sqlitestorage.Backend)(nil)
	_ storage.Backend  = storage.Nop{}
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		want    any
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Type: "memory"}, want: &memory.Backend{}},
		{name: "postgres", cfg: config.StorageConfig{Type: "postgres"}, want: &gormstorage.Backend{}},
		{name: "sqlite", cfg: config.StorageConfig{Type: "sqlite"}, want: &sqlitestorage.Backend{}},
		{name: "none", cfg: config.StorageConfig{Type: "none"}, want: storage.Nop{}},
		{name: "unset", cfg: config.StorageConfig{}, want: storage.Nop{}},
		{name: "unknown", cfg: config.StorageConfig{Type: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(tt.cfg, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNop(t *testing.T) {
	var b storage.Backend = storage.Nop{}
	assert.NoError(t, b.Init())
	assert.NoError(t, b.StartSession(&core.Session{}))
	assert.NoError(t, b.RecordTick(&core.TickRecord{}))
	assert.NoError(t, b.RecordEvent(&core.EventRecord{}))
	assert.NoError(t, b.Flush())
	assert.NoError(t, b.EndSession())
	assert.NoError(t, b.Close())
}
