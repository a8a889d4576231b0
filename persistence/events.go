package persistence

import (
	"time"

	"github.com/sharedcode/livepers"
)

// EventKind enumerates the observable outcomes of service operations.
type EventKind int

const (
	EventLoaded EventKind = iota + 1
	EventReadFailed
	EventDuplicateAdd
	EventWritten
	EventWriteFailed
	EventDeleted
	EventDeleteFailed
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventReadFailed:
		return "read failed"
	case EventDuplicateAdd:
		return "duplicate add"
	case EventWritten:
		return "written"
	case EventWriteFailed:
		return "write failed"
	case EventDeleted:
		return "deleted"
	case EventDeleteFailed:
		return "delete failed"
	}
	return "unknown"
}

// Event describes one outcome. Err is set for the failure kinds.
type Event struct {
	Kind  EventKind
	ID    livepers.ID
	Label string
	Err   error
}

// EventHandler receives events. It may be called concurrently from flush goroutines and
// must not block.
type EventHandler func(Event)

// Metrics receives the service telemetry; *metrics.Collector implements it.
type Metrics interface {
	RecordLoad(outcome string)
	RecordCacheHit(tier string)
	RecordOperation(op string, d time.Duration, err error)
	RecordDuplicateAdd()
	RecordFlush()
	SetLiveEntities(n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordLoad(string)                            {}
func (nopMetrics) RecordCacheHit(string)                        {}
func (nopMetrics) RecordOperation(string, time.Duration, error) {}
func (nopMetrics) RecordDuplicateAdd()                          {}
func (nopMetrics) RecordFlush()                                 {}
func (nopMetrics) SetLiveEntities(int)                          {}
