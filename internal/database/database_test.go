package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openato/onboard/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestMemoryDSN(t *testing.T) {
	assert.Equal(t, "file:run1?mode=memory&cache=shared", MemoryDSN("run1"))
}

func TestDumpFileName(t *testing.T) {
	start := time.Date(2026, 5, 4, 6, 7, 8, 0, time.UTC)
	assert.Equal(t, filepath.Join("dumps", "atc_20260504_060708.db"), DumpFileName("dumps", start))
}

func TestOpenSQLiteFileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	db, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, Migrate(db, zerolog.Nop()))
	assert.True(t, db.Migrator().HasTable(&model.Session{}))
	assert.True(t, db.Migrator().HasTable(&model.Tick{}))
	assert.True(t, db.Migrator().HasTable(&model.Event{}))

	sess := model.Session{Route: "Line 2", StartedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&sess).Error)
	assert.NotZero(t, sess.ID)

	tick := model.Tick{SessionID: sess.ID, Time: 1.5, SpeedKmh: 20, Demands: datatypes.JSON("[0,5]")}
	require.NoError(t, db.Create(&tick).Error)

	var got model.Tick
	require.NoError(t, db.First(&got, tick.ID).Error)
	assert.Equal(t, 20.0, got.SpeedKmh)
	assert.JSONEq(t, "[0,5]", string(got.Demands))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSQLite(MemoryDSN(t.Name()), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db, zerolog.Nop()))
	require.NoError(t, db.Create(&model.Session{Route: "dumped"}).Error)

	out := filepath.Join(t.TempDir(), "nested", "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, out))
	_, err = os.Stat(out)
	require.NoError(t, err)

	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, out))

	disk, err := OpenSQLite(out, zerolog.Nop())
	require.NoError(t, err)
	var sessions []model.Session
	require.NoError(t, disk.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "dumped", sessions[0].Route)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	assert.Error(t, DumpMemoryDBToDisk(nil, ""))
}
