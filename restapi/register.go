package restapi

import (
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"
)

// HTTPVerb enumerates supported HTTP operations.
type HTTPVerb int

const (
	// Unknown represents an unspecified HTTP verb.
	Unknown HTTPVerb = iota
	// GET lists or retrieves resources.
	GET
	// DELETE removes resources.
	DELETE
	// POST creates resources.
	POST
	// PUT replaces resources.
	PUT
	// PATCH partially updates resources.
	PATCH
)

func (v HTTPVerb) String() string {
	switch v {
	case GET:
		return "GET"
	case DELETE:
		return "DELETE"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case PATCH:
		return "PATCH"
	}
	return "UNKNOWN"
}

// RestMethod describes a REST route handler.
type RestMethod struct {
	Verb    HTTPVerb
	Path    string
	Handler gin.HandlerFunc
}

// Methods is a set of routes keyed by verb and path.
type Methods map[string]RestMethod

// RegisterMethod builds a RestMethod and registers it using Register.
func (m Methods) RegisterMethod(verb HTTPVerb, path string, h gin.HandlerFunc) error {
	return m.Register(RestMethod{
		Verb:    verb,
		Path:    path,
		Handler: h,
	})
}

// Register inserts a RestMethod preventing duplicates.
func (m Methods) Register(rm RestMethod) error {
	key := fmt.Sprintf("%s %s", rm.Verb, rm.Path)
	if _, exists := m[key]; exists {
		return fmt.Errorf("can't add %s, an existing handler in REST method map exists", key)
	}
	m[key] = rm
	return nil
}

// Mount adds every registered route to g, wrapping each handler with wrap when non-nil.
// Routes are mounted in key order.
func (m Methods) Mount(g gin.IRoutes, wrap func(gin.HandlerFunc) gin.HandlerFunc) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rm := m[k]
		h := rm.Handler
		if wrap != nil {
			h = wrap(h)
		}
		switch rm.Verb {
		case GET:
			g.GET(rm.Path, h)
		case DELETE:
			g.DELETE(rm.Path, h)
		case POST:
			g.POST(rm.Path, h)
		case PUT:
			g.PUT(rm.Path, h)
		case PATCH:
			g.PATCH(rm.Path, h)
		default:
			return fmt.Errorf("HTTP verb %d not supported", rm.Verb)
		}
	}
	return nil
}
