package location

import (
	"fmt"
	"strings"

	"github.com/sharedcode/livepers"
)

// Static classifies every entity the same way.
type Static struct {
	Local     bool
	Forwarder Forwarder
}

// IsLocal returns s.Local.
func (s Static) IsLocal(e *livepers.Entity) bool {
	return s.Local
}

// MakeForwardingProxy wraps e in a Remote handle addressed to the entity's origin node.
func (s Static) MakeForwardingProxy(e *livepers.Entity) livepers.RemoteHandle {
	return NewRemote(e, nodeOf(e), s.Forwarder)
}

// Origin treats an entity as local when it was created on this node. Entities whose ID
// carries no node marker are local.
type Origin struct {
	Node      string
	Forwarder Forwarder
}

// IsLocal reports whether e originates from o.Node.
func (o Origin) IsLocal(e *livepers.Entity) bool {
	n, ok := e.ID.Node()
	if !ok {
		return true
	}
	return strings.EqualFold(n, o.Node)
}

// MakeForwardingProxy wraps e in a Remote handle addressed to the entity's origin node.
func (o Origin) MakeForwardingProxy(e *livepers.Entity) livepers.RemoteHandle {
	return NewRemote(e, nodeOf(e), o.Forwarder)
}

// New returns the location resolver selected by cfg.
func New(cfg livepers.Config, f Forwarder) (livepers.LocationResolver, error) {
	switch cfg.Location.Mode {
	case "", livepers.LocationAllLocal:
		return Static{Local: true, Forwarder: f}, nil
	case livepers.LocationAllRemote:
		return Static{Local: false, Forwarder: f}, nil
	case livepers.LocationOrigin:
		return Origin{Node: cfg.NodeID, Forwarder: f}, nil
	case livepers.LocationRule:
		return NewRule(cfg.Location.Rule, cfg.NodeID, f)
	}
	return nil, fmt.Errorf("unknown location mode %q", cfg.Location.Mode)
}
