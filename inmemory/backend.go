// Package inmemory contains the in-process back-end. Documents are kept encoded, so a
// read always returns a fresh copy, as with any real storage.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sharedcode/livepers"
)

func init() {
	livepers.RegisterBackend(livepers.MemoryBackend, func(ctx context.Context, cfg livepers.Config) (livepers.Backend, error) {
		return NewBackend(), nil
	})
}

// Backend is the in-memory back-end. It counts the operations it served.
type Backend struct {
	locker sync.RWMutex
	docs   map[livepers.ID][]byte

	reads   atomic.Int64
	writes  atomic.Int64
	deletes atomic.Int64
	inits   atomic.Int64
}

// NewBackend returns an empty Backend.
func NewBackend() *Backend {
	return &Backend{docs: make(map[livepers.ID][]byte)}
}

func (b *Backend) Init(ctx context.Context) error {
	b.inits.Add(1)
	return nil
}

// Read returns a copy of the document of id.
func (b *Backend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	b.reads.Add(1)
	b.locker.RLock()
	ba, ok := b.docs[id]
	b.locker.RUnlock()
	if !ok {
		return nil, fmt.Errorf("read %s: %w", id, livepers.ErrNotFound)
	}
	return livepers.DecodeData(ba)
}

// Write stores a copy of data.
func (b *Backend) Write(ctx context.Context, data livepers.Data) error {
	b.writes.Add(1)
	id := data.ID()
	if id.IsNil() {
		return fmt.Errorf("write: document has no id")
	}
	ba, err := livepers.EncodeData(data)
	if err != nil {
		return err
	}
	b.locker.Lock()
	b.docs[id] = ba
	b.locker.Unlock()
	return nil
}

func (b *Backend) Delete(ctx context.Context, id livepers.ID) error {
	b.deletes.Add(1)
	b.locker.Lock()
	delete(b.docs, id)
	b.locker.Unlock()
	return nil
}

// Stored returns a copy of the stored document of id without counting a read.
func (b *Backend) Stored(id livepers.ID) (livepers.Data, bool) {
	b.locker.RLock()
	ba, ok := b.docs[id]
	b.locker.RUnlock()
	if !ok {
		return nil, false
	}
	d, err := livepers.DecodeData(ba)
	return d, err == nil
}

// IDs returns the stored IDs in ascending order.
func (b *Backend) IDs() []livepers.ID {
	b.locker.RLock()
	ids := make([]livepers.ID, 0, len(b.docs))
	for id := range b.docs {
		ids = append(ids, id)
	}
	b.locker.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *Backend) Reads() int64   { return b.reads.Load() }
func (b *Backend) Writes() int64  { return b.writes.Load() }
func (b *Backend) Deletes() int64 { return b.deletes.Load() }
func (b *Backend) Inits() int64   { return b.inits.Load() }

// ResetCounters zeroes the operation counters.
func (b *Backend) ResetCounters() {
	b.reads.Store(0)
	b.writes.Store(0)
	b.deletes.Store(0)
	b.inits.Store(0)
}
