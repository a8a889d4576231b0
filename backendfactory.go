package livepers

import (
	"context"
	"fmt"
	"sync"
)

// BackendFactory defines the function signature for creating a back-end from configuration.
type BackendFactory func(ctx context.Context, cfg Config) (Backend, error)

var backendRegistry = make(map[BackendType]BackendFactory)
var registryLocker sync.Mutex

// RegisterBackend registers a back-end factory for a given type. Back-end packages
// register themselves in their init function.
func RegisterBackend(t BackendType, f BackendFactory) {
	registryLocker.Lock()
	defer registryLocker.Unlock()
	backendRegistry[t] = f
}

// NewBackend creates the back-end selected by cfg.Backend using the registered factory.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	registryLocker.Lock()
	f, ok := backendRegistry[cfg.Backend]
	registryLocker.Unlock()
	if !ok {
		return nil, fmt.Errorf("no back-end registered for type %q", cfg.Backend)
	}
	return f(ctx, cfg)
}
