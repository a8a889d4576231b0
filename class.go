package livepers

import (
	"context"
	"sync"
)

// Class holds the behavior attached to entities of one class ID.
type Class struct {
	// Init runs when an entity of this class is instantiated from data, e.g. to attach
	// function-valued fields.
	Init func(e *Entity)
	// OnLoad is the post-load hook, invoked once for a locally owned entity right after
	// it was loaded from the back-end. It is not invoked for remote entities.
	OnLoad func(ctx context.Context, e *Entity)
}

var classes sync.Map

// RegisterClass registers (or replaces) the behavior of class classID.
func RegisterClass(classID string, c Class) {
	classes.Store(classID, c)
}

// UnregisterClass removes class classID from the registry.
func UnregisterClass(classID string) {
	classes.Delete(classID)
}

// LookupClass returns the registered behavior of class classID.
func LookupClass(classID string) (Class, bool) {
	if classID == "" {
		return Class{}, false
	}
	v, ok := classes.Load(classID)
	if !ok {
		return Class{}, false
	}
	return v.(Class), true
}
