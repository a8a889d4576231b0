// Package reqscope implements the per-request scope: the remote handles a request obtained
// and the set of entities it made dirty, which is handed to the persistence service for
// write-back when the request ends.
package reqscope

import (
	"context"
	"errors"
	"sync"

	"github.com/sharedcode/livepers"
)

// Scope is the state of one request. It is safe for concurrent use by the goroutines of
// the request.
type Scope struct {
	label   string
	locker  sync.Mutex
	handles map[livepers.ID]livepers.Handle
	dirty   map[livepers.ID]*livepers.Entity
}

// New returns an empty Scope. label is carried into the flush log lines.
func New(label string) *Scope {
	return &Scope{
		label:   label,
		handles: make(map[livepers.ID]livepers.Handle),
		dirty:   make(map[livepers.ID]*livepers.Entity),
	}
}

func (s *Scope) Label() string {
	return s.label
}

// GetCached returns the handle of id obtained earlier in this request.
func (s *Scope) GetCached(id livepers.ID) (livepers.Handle, bool) {
	s.locker.Lock()
	defer s.locker.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

// PutCached remembers h for the rest of the request.
func (s *Scope) PutCached(h livepers.Handle) {
	s.locker.Lock()
	s.handles[h.ID()] = h
	s.locker.Unlock()
}

// MarkDirty adds e to the dirty set. Marking an entity twice keeps one entry.
func (s *Scope) MarkDirty(e *livepers.Entity) {
	s.locker.Lock()
	s.dirty[e.ID] = e
	s.locker.Unlock()
}

// Dirty returns a copy of the dirty set.
func (s *Scope) Dirty() map[livepers.ID]*livepers.Entity {
	s.locker.Lock()
	defer s.locker.Unlock()
	r := make(map[livepers.ID]*livepers.Entity, len(s.dirty))
	for k, v := range s.dirty {
		r[k] = v
	}
	return r
}

// TakeDirty returns the dirty set and starts a new, empty one.
func (s *Scope) TakeDirty() map[livepers.ID]*livepers.Entity {
	s.locker.Lock()
	defer s.locker.Unlock()
	r := s.dirty
	s.dirty = make(map[livepers.ID]*livepers.Entity)
	return r
}

// Run executes fn within a new request scope, then hands the dirty set to p. Writes are
// issued (not necessarily completed) when Run returns; the dirty set is flushed even if fn
// fails, as the live entities were already mutated.
func Run(ctx context.Context, p livepers.DirtyListProcessor, label string, fn func(ctx context.Context) error) (*livepers.Flush, error) {
	s := New(label)
	err := fn(livepers.WithScope(ctx, s))
	return p.ProcessDirtyList(ctx, s.TakeDirty(), label), err
}

// RunAndWait is Run followed by waiting for every write and delete to complete. The
// returned error joins the error of fn and the flush failures.
func RunAndWait(ctx context.Context, p livepers.DirtyListProcessor, label string, fn func(ctx context.Context) error) error {
	f, err := Run(ctx, p, label, fn)
	return errors.Join(err, f.Wait(ctx))
}
