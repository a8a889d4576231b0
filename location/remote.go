// Package location decides which node owns a loaded entity and wraps entities owned by
// other nodes in forwarding handles. The forwarding wire protocol is not part of this
// package; plug one in through Forwarder.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharedcode/livepers"
)

// ErrNoForwarder is returned by calls on a remote handle when no Forwarder is configured.
var ErrNoForwarder = errors.New("no forwarder configured for remote entities")

// Forwarder sends a method call on a remote entity to the node owning it.
type Forwarder interface {
	Forward(ctx context.Context, node string, id livepers.ID, method string, args ...any) (any, error)
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(ctx context.Context, node string, id livepers.ID, method string, args ...any) (any, error)

// Forward calls f.
func (f ForwarderFunc) Forward(ctx context.Context, node string, id livepers.ID, method string, args ...any) (any, error) {
	return f(ctx, node, id, method, args...)
}

type noForwarder struct{}

func (noForwarder) Forward(ctx context.Context, node string, id livepers.ID, method string, args ...any) (any, error) {
	return nil, fmt.Errorf("forward %s.%s to %q: %w", id, method, node, ErrNoForwarder)
}

// Remote is the forwarding handle of an entity owned by another node.
type Remote struct {
	entity    *livepers.Entity
	node      string
	forwarder Forwarder
}

// NewRemote wraps e, owned by node, forwarding calls through f (nil means no forwarding).
func NewRemote(e *livepers.Entity, node string, f Forwarder) *Remote {
	if f == nil {
		f = noForwarder{}
	}
	return &Remote{entity: e, node: node, forwarder: f}
}

func (r *Remote) ID() livepers.ID           { return r.entity.ID }
func (r *Remote) Kind() livepers.HandleKind { return livepers.KindRemote }
func (r *Remote) Entity() *livepers.Entity  { return r.entity }
func (r *Remote) Node() string              { return r.node }

// Call forwards method to the owning node.
func (r *Remote) Call(ctx context.Context, method string, args ...any) (any, error) {
	return r.forwarder.Forward(ctx, r.node, r.entity.ID, method, args...)
}

func (r *Remote) String() string {
	return fmt.Sprintf("remote%s@%s", r.entity, r.node)
}

// nodeOf returns the origin node of e, empty if unknown.
func nodeOf(e *livepers.Entity) string {
	n, _ := e.ID.Node()
	return n
}
