// Package codec serializes cache snapshots (or any value) to bytes.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the codec registered under name: json, cbor, msgpack or
// protobuf. CBOR output is deterministic.
func ByName[V any](name string) (Codec[V], bool) {
	switch name {
	case "json":
		return JSON[V]{}, true
	case "cbor":
		c, err := NewCBOR[V](true)
		if err != nil {
			return nil, false
		}
		return c, true
	case "msgpack":
		return Msgpack[V]{}, true
	case "protobuf", "proto":
		return ProtoValue[V]{}, true
	}
	return nil, false
}
