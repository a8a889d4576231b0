package livepers

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID is the fleet-wide unique identifier of an entity. IDs minted by NewID have the form
// <initial><NODE>.<32 hex digits>, where initial marks the entity type and NODE the node
// that created it. Any other non-empty string is accepted as an ID with unknown origin.
type ID string

const idSeparator = "."

// NewID returns a new ID for an entity of type initial created on node.
// It retries on UUID generation error with a 1ms backoff up to 10 times
// and panics only if all attempts fail (which should never happen under normal conditions).
func NewID(initial string, node string) ID {
	var err error
	for i := 0; i < 10; i++ {
		var u uuid.UUID
		u, err = uuid.NewRandom()
		if err == nil {
			return ID(initial + strings.ToUpper(node) + idSeparator + hex.EncodeToString(u[:]))
		}
		time.Sleep(time.Duration(1 * time.Millisecond))
	}
	panic(err)
}

// IsNil reports whether id is the empty ID.
func (id ID) IsNil() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}

// Initial returns the entity-type marker, i.e. the first character of the ID.
func (id ID) Initial() string {
	if id == "" {
		return ""
	}
	return string(id[:1])
}

// Node returns the originating node marker, ok is false for IDs not minted by NewID.
func (id ID) Node() (node string, ok bool) {
	s := string(id)
	i := strings.LastIndex(s, idSeparator)
	if i < 2 || len(s)-i-1 != 32 {
		return "", false
	}
	if _, err := hex.DecodeString(s[i+1:]); err != nil {
		return "", false
	}
	return s[1:i], true
}
