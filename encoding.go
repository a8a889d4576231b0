package livepers

import (
	"encoding/json"
	"fmt"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

// DefaultMarshaler is used by the byte-oriented back-ends to encode entity data.
// You can replace it with your desired Marshaler implementation. Defaults to JSON.
var DefaultMarshaler = NewMarshaler()

type defaultMarshaler struct{}

// NewMarshaler returns the default marshaller which uses the golang's json package.
func NewMarshaler() Marshaler {
	return &defaultMarshaler{}
}

// Encodes any object to a byte array.
func (m defaultMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decodes a byte array back to its Object type.
func (m defaultMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// EncodeData encodes data with DefaultMarshaler.
func EncodeData(data Data) ([]byte, error) {
	ba, err := DefaultMarshaler.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", data.ID(), err)
	}
	return ba, nil
}

// DecodeData decodes ba, produced by EncodeData, with DefaultMarshaler.
func DecodeData(ba []byte) (Data, error) {
	var d Data
	if err := DefaultMarshaler.Unmarshal(ba, &d); err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("decoded empty document")
	}
	return d, nil
}
