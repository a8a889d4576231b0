// Package writeback wraps locally owned entities so that every mutation registers the
// entity as dirty in the current request scope, which writes it back when the request ends.
package writeback

import (
	"context"
	log "log/slog"

	"github.com/sharedcode/livepers"
)

// Wrapper implements livepers.WriteBackWrapper.
type Wrapper struct{}

// NewWrapper returns a Wrapper.
func NewWrapper() Wrapper {
	return Wrapper{}
}

// MakeWriteBackProxy wraps e in a Local handle.
func (Wrapper) MakeWriteBackProxy(e *livepers.Entity) livepers.LocalHandle {
	return &Local{entity: e}
}

// Local is the write-back handle of a locally owned entity. The request scope is taken
// from the context passed to each mutator, so one Local serves many requests.
type Local struct {
	entity *livepers.Entity
}

func (l *Local) ID() livepers.ID           { return l.entity.ID }
func (l *Local) Kind() livepers.HandleKind { return livepers.KindLocal }
func (l *Local) Entity() *livepers.Entity  { return l.entity }

// Get returns field key of the entity.
func (l *Local) Get(key string) (any, bool) {
	return l.entity.Get(key)
}

// Set assigns field key and marks the entity dirty.
func (l *Local) Set(ctx context.Context, key string, value any) {
	l.entity.Set(key, value)
	l.markDirty(ctx)
}

// Unset removes field key and marks the entity dirty.
func (l *Local) Unset(ctx context.Context, key string) {
	l.entity.Unset(key)
	l.markDirty(ctx)
}

// Update runs fn on the locked fields and marks the entity dirty.
func (l *Local) Update(ctx context.Context, fn func(fields map[string]any)) {
	l.entity.Update(fn)
	l.markDirty(ctx)
}

// Touch marks the entity dirty.
func (l *Local) Touch(ctx context.Context) {
	l.markDirty(ctx)
}

// MarkDeleted flags the entity for deletion and marks it dirty.
func (l *Local) MarkDeleted(ctx context.Context) {
	l.entity.SetDeleted(true)
	l.markDirty(ctx)
}

func (l *Local) markDirty(ctx context.Context) {
	scope := livepers.ScopeFrom(ctx)
	if scope == nil {
		log.Warn("mutation outside of a request scope is not persisted", "entity", l.entity.String())
		return
	}
	scope.MarkDirty(l.entity)
}

func (l *Local) String() string {
	return "local" + l.entity.String()
}
