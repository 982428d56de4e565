// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. It serves PostgreSQL
// directly and SQLite through sqlitestorage.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/internal/database"
	"github.com/openato/onboard/internal/model"
	"github.com/openato/onboard/internal/model/convert"
	"github.com/openato/onboard/internal/queue"
	"github.com/openato/onboard/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// ErrNotInitialized is returned when recording before Init.
var ErrNotInitialized = errors.New("backend not initialized")

const (
	defaultBatchSize     = 500
	defaultFlushInterval = 2 * time.Second
	// rows kept while the database is unreachable
	queueLimit = 200_000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as is when set. Otherwise Init connects with Config.
	DB            *gorm.DB
	Config        config.DBConfig
	Log           zerolog.Logger
	BatchSize     int
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Ticks  *queue.Queue[model.Tick]
	Events *queue.Queue[model.Event]
}

func newQueues() *queues {
	return &queues{
		Ticks:  queue.NewBounded[model.Tick](queueLimit),
		Events: queue.NewBounded[model.Event](queueLimit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	db        *gorm.DB
	queues    *queues
	sessionID atomic.Uint64

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	deps.Log = deps.Log.With().Str("component", "recorder.db").Logger()
	return &Backend{
		deps: deps,
	}
}

// DB exposes the connection, e.g. for dumps.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.db = b.deps.DB
	if b.db == nil {
		db, err := database.OpenPostgres(b.deps.Config, b.deps.Log)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.db = db
	}

	if err := database.Migrate(b.db, b.deps.Log); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartSession writes pending rows for the previous session, then creates
// the session row so its ID can be stamped on everything that follows.
func (b *Backend) StartSession(s *core.Session) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	if err := b.Flush(); err != nil {
		b.deps.Log.Warn().Err(err).Msg("Previous session not fully written")
	}

	row := convert.CoreToSession(*s)
	row.ID = 0
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))

	b.deps.Log.Info().Uint("session", row.ID).Str("route", row.Route).Msg("Session started")
	return nil
}

// EndSession writes the queued rows and detaches from the session.
func (b *Backend) EndSession() error {
	err := b.Flush()
	b.sessionID.Store(0)
	return err
}

// RecordTick queues a tick row. Ticks outside a session are dropped.
func (b *Backend) RecordTick(r *core.TickRecord) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	row := convert.CoreToTick(*r)
	row.SessionID = id
	b.queues.Ticks.Push(row)
	return nil
}

// RecordEvent queues an event row. Events outside a session are dropped.
func (b *Backend) RecordEvent(r *core.EventRecord) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	row := convert.CoreToEvent(*r)
	row.SessionID = id
	b.queues.Events.Push(row)
	return nil
}

// Flush drains the queues into the database.
func (b *Backend) Flush() error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	return errors.Join(
		writeQueue(b.db, b.queues.Ticks, b.deps.BatchSize, "ticks", b.deps.Log),
		writeQueue(b.db, b.queues.Events, b.deps.BatchSize, "events", b.deps.Log),
	)
}

// Pending reports the queued row counts.
func (b *Backend) Pending() (ticks, events int) {
	if b.queues == nil {
		return 0, 0
	}
	return b.queues.Ticks.Len(), b.queues.Events.Len()
}

// writeQueue inserts the queue in batches, one transaction per batch. A
// failed batch goes back to the front of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], batchSize int, name string, log zerolog.Logger) error {
	for !q.Empty() {
		items := q.Take(batchSize)
		start := time.Now()

		tx := db.Begin()
		if err := tx.Create(&items).Error; err != nil {
			tx.Rollback()
			q.Requeue(items)
			log.Error().Err(err).Str("table", name).Int("rows", len(items)).Msg("Error writing batch")
			return fmt.Errorf("writing %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			q.Requeue(items)
			return fmt.Errorf("committing %s: %w", name, err)
		}

		log.Trace().Str("table", name).Int("rows", len(items)).Dur("took", time.Since(start)).Msg("Batch written")
	}
	if lost := q.Lost(); lost > 0 {
		log.Warn().Str("table", name).Int("lost", lost).Msg("Rows discarded while the database was behind")
	}
	return nil
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Log.Debug().Err(err).Msg("Write cycle incomplete")
			}
		}
	}
}
