package livepers

import "context"

// Backend is the storage boundary. Implementations are synchronous; the persistence
// service makes writes and deletes asynchronous.
type Backend interface {
	// Init prepares the back-end for use.
	Init(ctx context.Context) error
	// Read returns the stored data of id, or an error (a missing id is an error too).
	Read(ctx context.Context, id ID) (Data, error)
	// Write stores data under data.ID(), replacing any previous version.
	Write(ctx context.Context, data Data) error
	// Delete removes id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id ID) error
}

// Getter retrieves entities by ID; the persistence service is one.
type Getter interface {
	Get(ctx context.Context, id ID) (Handle, error)
}

// ReferenceResolver converts between inline entity links and flattened reference placeholders.
type ReferenceResolver interface {
	// ResolveReferences replaces, in place, every reference placeholder in data with a lazy
	// reference handle. It never loads the targets; cycles and dangling targets are fine.
	ResolveReferences(data Data)
	// FlattenReferences returns a copy of data in which live entity links and reference
	// handles are replaced with placeholders.
	FlattenReferences(data Data) Data
}

// LocationResolver decides which node owns an entity.
type LocationResolver interface {
	IsLocal(e *Entity) bool
	MakeForwardingProxy(e *Entity) RemoteHandle
}

// WriteBackWrapper wraps locally owned entities so mutations register them as dirty.
type WriteBackWrapper interface {
	MakeWriteBackProxy(e *Entity) LocalHandle
}

// RequestScope tracks, for the lifetime of one request, the remote handles obtained and the
// entities made dirty.
type RequestScope interface {
	Label() string
	GetCached(id ID) (Handle, bool)
	PutCached(h Handle)
	MarkDirty(e *Entity)
}

// DirtyListProcessor writes back a request's dirty set. The request scope is its only caller.
type DirtyListProcessor interface {
	ProcessDirtyList(ctx context.Context, dirty map[ID]*Entity, label string) *Flush
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope RequestScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the request scope carried by ctx, nil if there is none.
func ScopeFrom(ctx context.Context) RequestScope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(RequestScope)
	return s
}
