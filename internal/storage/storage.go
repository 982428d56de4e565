// Package storage defines the event recorder's persistence contract.
package storage

import "github.com/openato/onboard/pkg/core"

// Backend is the interface all recorder storage implementations must satisfy.
// Record calls come from the tick thread and must not block on I/O.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (assigns ID to the passed pointer)
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordTick(r *core.TickRecord) error
	RecordEvent(r *core.EventRecord) error

	// Flush persists everything recorded so far.
	Flush() error
}

// Exporter is an optional interface for backends that produce a file per
// session.
type Exporter interface {
	ExportedFilePath() string
}

// Nop discards everything. Used when recording is switched off.
type Nop struct{}

func (Nop) Init() error                         { return nil }
func (Nop) Close() error                        { return nil }
func (Nop) StartSession(*core.Session) error    { return nil }
func (Nop) EndSession() error                   { return nil }
func (Nop) RecordTick(*core.TickRecord) error   { return nil }
func (Nop) RecordEvent(*core.EventRecord) error { return nil }
func (Nop) Flush() error                        { return nil }
