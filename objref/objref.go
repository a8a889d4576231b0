// Package objref converts between live links to other entities and the flattened reference
// placeholders used in stored data. Placeholders are resolved into lazy *Ref handles that
// load their target only when asked to, so cyclic and dangling references never fail a load.
package objref

import (
	"context"
	"encoding/json"
	log "log/slog"
	"reflect"

	"github.com/sharedcode/livepers"
)

// Placeholder keys. A placeholder is {"isReference": true, "id": "<id>"}.
const (
	KeyIsReference = "isReference"
	KeyID          = "id"

	legacyKeyObjref = "objref"
	legacyKeyTsid   = "tsid"
)

// Ref is a lazy reference handle to another entity. It carries the target ID only; the
// target is fetched through the resolver's Getter on each Resolve.
type Ref struct {
	id     livepers.ID
	getter livepers.Getter
}

// NewRef returns a reference to id resolved through getter.
func NewRef(id livepers.ID, getter livepers.Getter) *Ref {
	return &Ref{id: id, getter: getter}
}

// ID returns the ID of the referenced entity.
func (r *Ref) ID() livepers.ID {
	return r.id
}

// Resolve returns the referenced entity. A dangling reference yields livepers.ErrNotFound.
func (r *Ref) Resolve(ctx context.Context) (livepers.Handle, error) {
	if r.getter == nil {
		return nil, livepers.ErrNotFound
	}
	return r.getter.Get(ctx, r.id)
}

// MarshalJSON renders the reference as its placeholder.
func (r *Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(Placeholder(r.id))
}

func (r *Ref) String() string {
	return "^" + string(r.id)
}

// Placeholder returns the flattened stand-in for a link to id.
func Placeholder(id livepers.ID) map[string]any {
	return map[string]any{KeyIsReference: true, KeyID: string(id)}
}

// IsPlaceholder reports whether v is a reference placeholder and returns its target ID.
// The legacy {"objref": true, "tsid": ...} shape is recognized too.
func IsPlaceholder(v any) (livepers.ID, bool) {
	var m map[string]any
	switch t := v.(type) {
	case map[string]any:
		m = t
	case livepers.Data:
		m = t
	default:
		return "", false
	}
	if b, _ := m[KeyIsReference].(bool); b {
		if s, ok := m[KeyID].(string); ok && s != "" {
			return livepers.ID(s), true
		}
	}
	if b, _ := m[legacyKeyObjref].(bool); b {
		if s, ok := m[legacyKeyTsid].(string); ok && s != "" {
			return livepers.ID(s), true
		}
	}
	return "", false
}

// Resolver implements livepers.ReferenceResolver.
type Resolver struct {
	getter livepers.Getter
}

// NewResolver returns a Resolver whose references resolve through getter.
func NewResolver(getter livepers.Getter) *Resolver {
	return &Resolver{getter: getter}
}

// ResolveReferences replaces every placeholder in data with a *Ref, in place. The first pass
// allocates one Ref per distinct target ID, the second pass fills the containers from that
// arena, so all placeholders to one ID share one Ref and no target is loaded.
func (r *Resolver) ResolveReferences(data livepers.Data) {
	arena := make(map[livepers.ID]*Ref)
	walk(map[string]any(data), make(map[uintptr]bool), func(id livepers.ID) any {
		if _, ok := arena[id]; !ok {
			arena[id] = NewRef(id, r.getter)
		}
		return nil
	}, false)
	if len(arena) == 0 {
		return
	}
	walk(map[string]any(data), make(map[uintptr]bool), func(id livepers.ID) any {
		return arena[id]
	}, true)
}

// walk visits every placeholder under v. When replace is set, the placeholder is replaced
// in its container with the value returned by visit.
func walk(v any, seen map[uintptr]bool, visit func(livepers.ID) any, replace bool) {
	switch t := v.(type) {
	case livepers.Data:
		walk(map[string]any(t), seen, visit, replace)
	case map[string]any:
		p := reflect.ValueOf(t).Pointer()
		if seen[p] {
			return
		}
		seen[p] = true
		for k, child := range t {
			if id, ok := IsPlaceholder(child); ok {
				if r := visit(id); replace {
					t[k] = r
				}
				continue
			}
			walk(child, seen, visit, replace)
		}
	case []any:
		if len(t) == 0 {
			return
		}
		p := reflect.ValueOf(t).Pointer()
		if seen[p] {
			return
		}
		seen[p] = true
		for i, child := range t {
			if id, ok := IsPlaceholder(child); ok {
				if r := visit(id); replace {
					t[i] = r
				}
				continue
			}
			walk(child, seen, visit, replace)
		}
	}
}

// FlattenReferences returns a deep copy of data in which entities, handles and Refs are
// replaced with placeholders. A container reached again through its own descendants is
// cut (replaced by nil) and logged.
func (r *Resolver) FlattenReferences(data livepers.Data) livepers.Data {
	out := make(livepers.Data, len(data))
	onPath := map[uintptr]bool{reflect.ValueOf(map[string]any(data)).Pointer(): true}
	for k, v := range data {
		out[k] = flatten(v, onPath)
	}
	return out
}

func flatten(v any, onPath map[uintptr]bool) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Ref:
		if t == nil {
			return nil
		}
		return Placeholder(t.id)
	case *livepers.Entity:
		if t == nil {
			return nil
		}
		return Placeholder(t.ID)
	case livepers.Handle:
		return Placeholder(t.ID())
	case livepers.Data:
		return flattenMap(t, onPath)
	case map[string]any:
		return flattenMap(t, onPath)
	case []any:
		if t == nil {
			return t
		}
		p := reflect.ValueOf(t).Pointer()
		if len(t) > 0 && onPath[p] {
			log.Warn("objref: cyclic slice cut while flattening")
			return nil
		}
		onPath[p] = true
		defer delete(onPath, p)
		c := make([]any, len(t))
		for i := range t {
			c[i] = flatten(t[i], onPath)
		}
		return c
	default:
		return flattenTyped(v, onPath)
	}
}

var (
	entityType = reflect.TypeOf((*livepers.Entity)(nil))
	refType    = reflect.TypeOf((*Ref)(nil))
	handleType = reflect.TypeOf((*livepers.Handle)(nil)).Elem()
)

// flattenTyped copies typed slices, arrays and string-keyed maps ([]*livepers.Entity,
// map[string]livepers.Handle, ...) into []any and map[string]any with their links turned
// into placeholders. Containers that cannot hold a link are returned as they are.
func flattenTyped(v any, onPath map[uintptr]bool) any {
	rv := reflect.ValueOf(v)
	if !canHoldLink(rv.Type()) {
		return v
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return nil
			}
			if rv.Len() > 0 {
				p := rv.Pointer()
				if onPath[p] {
					log.Warn("objref: cyclic slice cut while flattening")
					return nil
				}
				onPath[p] = true
				defer delete(onPath, p)
			}
		}
		c := make([]any, rv.Len())
		for i := range c {
			c[i] = flatten(rv.Index(i).Interface(), onPath)
		}
		return c
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		p := rv.Pointer()
		if onPath[p] {
			log.Warn("objref: cyclic map cut while flattening")
			return nil
		}
		onPath[p] = true
		defer delete(onPath, p)
		c := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			c[iter.Key().String()] = flatten(iter.Value().Interface(), onPath)
		}
		return c
	}
	return v
}

// canHoldLink reports whether values of t may contain an entity, handle or Ref that must be
// flattened. Only slices, arrays and string-keyed maps are descended into.
func canHoldLink(t reflect.Type) bool {
	switch t {
	case entityType, refType:
		return true
	}
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Slice, reflect.Array:
		return canHoldLink(t.Elem())
	case reflect.Map:
		return t.Key().Kind() == reflect.String && canHoldLink(t.Elem())
	case reflect.Pointer, reflect.Struct:
		return t.Implements(handleType)
	}
	return false
}

func flattenMap(m map[string]any, onPath map[uintptr]bool) any {
	if m == nil {
		return m
	}
	p := reflect.ValueOf(m).Pointer()
	if onPath[p] {
		log.Warn("objref: cyclic map cut while flattening")
		return nil
	}
	onPath[p] = true
	defer delete(onPath, p)
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = flatten(v, onPath)
	}
	return c
}
