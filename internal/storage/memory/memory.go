// Package memory keeps a session in memory and exports it as JSON.
package memory

import (
	"errors"
	"sync"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/pkg/core"
)

// ErrNoSession is returned when exporting before a session was started.
var ErrNoSession = errors.New("no session started")

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	ticks  []core.TickRecord
	events []core.EventRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the open session, if any.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	return b.exportJSON()
}

// StartSession begins recording a new session, discarding the previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter

	copied := *s
	b.session = &copied
	b.ticks = nil
	b.events = nil
	return nil
}

// EndSession exports the session and stops recording into it.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// Flush writes the export file for the session recorded so far.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return ErrNoSession
	}
	return b.exportJSON()
}

// RecordTick appends a tick record. Ticks outside a session are dropped.
func (b *Backend) RecordTick(r *core.TickRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	rec := *r
	rec.SessionID = b.session.ID
	b.ticks = append(b.ticks, rec)
	return nil
}

// RecordEvent appends an event record. Events outside a session are dropped.
func (b *Backend) RecordEvent(r *core.EventRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	rec := *r
	rec.SessionID = b.session.ID
	b.events = append(b.events, rec)
	return nil
}

// ExportedFilePath returns the path of the last export.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Counts reports how many ticks and events the open session holds.
func (b *Backend) Counts() (ticks, events int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks), len(b.events)
}
