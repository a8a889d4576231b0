package livepers

import "context"

// HandleKind tags a Handle as either a local write-back handle or a remote forwarding handle.
type HandleKind int

const (
	// KindLocal marks an entity owned by this node: cached and written back.
	KindLocal HandleKind = iota + 1
	// KindRemote marks an entity owned by another node: calls are forwarded there.
	KindRemote
)

func (k HandleKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	}
	return "unknown"
}

// Handle is what Get and Load return: a loaded entity wrapped according to its ownership,
// decided once at load time. Use a type switch on LocalHandle/RemoteHandle or Kind.
type Handle interface {
	ID() ID
	Kind() HandleKind
	// Entity returns the wrapped entity. For a remote handle this is the copy read from
	// storage at load time and must be treated as read-only.
	Entity() *Entity
}

// LocalHandle wraps a locally owned entity; every mutator marks the entity dirty in the
// request scope carried by ctx so it is written back when the request ends.
type LocalHandle interface {
	Handle
	Get(key string) (any, bool)
	Set(ctx context.Context, key string, value any)
	Unset(ctx context.Context, key string)
	Update(ctx context.Context, fn func(fields map[string]any))
	// Touch marks the entity dirty without changing it.
	Touch(ctx context.Context)
	// MarkDeleted flags the entity so the next flush deletes it from storage.
	MarkDeleted(ctx context.Context)
}

// RemoteHandle wraps an entity owned by another node.
type RemoteHandle interface {
	Handle
	// Node is the owning node, empty if unknown.
	Node() string
	Call(ctx context.Context, method string, args ...any) (any, error)
}

// AsLocal returns h as a LocalHandle if it is one.
func AsLocal(h Handle) (LocalHandle, bool) {
	if h == nil || h.Kind() != KindLocal {
		return nil, false
	}
	l, ok := h.(LocalHandle)
	return l, ok
}

// AsRemote returns h as a RemoteHandle if it is one.
func AsRemote(h Handle) (RemoteHandle, bool) {
	if h == nil || h.Kind() != KindRemote {
		return nil, false
	}
	r, ok := h.(RemoteHandle)
	return r, ok
}
