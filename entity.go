package livepers

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// TransientPrefix marks fields that are never serialized.
const TransientPrefix = "!"

// Keys of the serialized form that map to Entity struct fields.
const (
	KeyID      = "id"
	KeyClassID = "class_id"
	KeyTS      = "ts"
	KeyDeleted = "deleted"

	legacyKeyID      = "tsid"
	legacyKeyClassID = "class_tsid"
	legacyKeyDynamic = "dynamic"
)

// Data is the plain (serialized) form of an entity as exchanged with the back-end.
type Data map[string]any

// ID returns the entity ID stored in data, accepting the legacy "tsid" key.
func (d Data) ID() ID {
	if s, ok := d[KeyID].(string); ok && s != "" {
		return ID(s)
	}
	if s, ok := d[KeyID].(ID); ok && s != "" {
		return s
	}
	if s, ok := d[legacyKeyID].(string); ok {
		return ID(s)
	}
	return ""
}

// Entity is a live, mutable domain object. Fields holds the domain-specific data; once an
// entity is shared (cached or wrapped in a handle) Fields must only be accessed through
// Get, Set and Unset, which take the entity lock.
type Entity struct {
	ID      ID
	ClassID string
	// TS is the creation time in Unix milliseconds.
	TS     int64
	Fields map[string]any

	mu      sync.RWMutex
	deleted bool
}

// NewEntity creates a new entity of type initial, minted on node, with a copy of fields.
func NewEntity(initial, node string, fields map[string]any) *Entity {
	d := make(Data, len(fields)+1)
	for k, v := range fields {
		d[k] = v
	}
	d[KeyID] = string(NewID(initial, node))
	return FromData(d)
}

// FromData instantiates an entity from its plain form. The legacy "tsid", "class_tsid" and
// "dynamic" shapes are accepted; entries of the "dynamic" partition take precedence over
// top-level fields of the same name. TS defaults to the current time. If the class of the
// entity is registered, its Init hook runs last.
func FromData(data Data) *Entity {
	e := &Entity{
		ID:     data.ID(),
		Fields: make(map[string]any, len(data)),
	}
	if s, ok := data[KeyClassID].(string); ok && s != "" {
		e.ClassID = s
	} else if s, ok := data[legacyKeyClassID].(string); ok {
		e.ClassID = s
	}
	e.TS = toInt64(data[KeyTS])
	if b, ok := data[KeyDeleted].(bool); ok {
		e.deleted = b
	}
	if dyn, ok := data[legacyKeyDynamic].(map[string]any); ok {
		for k, v := range dyn {
			if !IsReservedKey(k) {
				e.Fields[k] = v
			}
		}
	}
	for k, v := range data {
		if k == legacyKeyDynamic || IsReservedKey(k) {
			continue
		}
		if _, ok := e.Fields[k]; !ok {
			e.Fields[k] = v
		}
	}
	if e.TS == 0 {
		e.TS = time.Now().UnixMilli()
	}
	if c, ok := LookupClass(e.ClassID); ok && c.Init != nil {
		c.Init(e)
	}
	return e
}

// IsReservedKey reports whether k is a serialized key that maps to an Entity struct field
// rather than to Fields.
func IsReservedKey(k string) bool {
	switch k {
	case KeyID, KeyClassID, KeyTS, KeyDeleted, legacyKeyID, legacyKeyClassID:
		return true
	}
	return false
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return i
	}
	return 0
}

// Serialize returns a shallow copy of the entity prepared for storage: its own fields
// except function-valued ones and those whose name starts with TransientPrefix, plus id,
// class_id (if set), ts (if set) and deleted (if true). Nested entity links are returned
// as-is; flattening them into reference placeholders is the reference resolver's job.
func (e *Entity) Serialize() Data {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := make(Data, len(e.Fields)+3)
	for k, v := range e.Fields {
		if strings.HasPrefix(k, TransientPrefix) || isFunc(v) {
			continue
		}
		r[k] = v
	}
	r[KeyID] = string(e.ID)
	if e.ClassID != "" {
		r[KeyClassID] = e.ClassID
	}
	if e.TS != 0 {
		r[KeyTS] = e.TS
	}
	if e.deleted {
		r[KeyDeleted] = true
	}
	return r
}

func isFunc(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}

// Get returns the value of field key.
func (e *Entity) Get(key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.Fields[key]
	return v, ok
}

// Set assigns field key. It does not track dirtiness; use a LocalHandle for that.
func (e *Entity) Set(key string, value any) {
	e.mu.Lock()
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	e.mu.Unlock()
}

// Unset removes field key.
func (e *Entity) Unset(key string) {
	e.mu.Lock()
	delete(e.Fields, key)
	e.mu.Unlock()
}

// Update runs fn with the entity locked for writing.
func (e *Entity) Update(fn func(fields map[string]any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	fn(e.Fields)
}

// Deleted reports whether the entity is flagged for deletion at the next flush.
func (e *Entity) Deleted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deleted
}

// SetDeleted flags (or unflags) the entity for deletion.
func (e *Entity) SetDeleted(deleted bool) {
	e.mu.Lock()
	e.deleted = deleted
	e.mu.Unlock()
}

func (e *Entity) String() string {
	if e == nil {
		return "[Entity#<nil>]"
	}
	if e.ClassID != "" {
		return fmt.Sprintf("[%s#%s]", e.ClassID, e.ID)
	}
	return fmt.Sprintf("[Entity#%s]", e.ID)
}
