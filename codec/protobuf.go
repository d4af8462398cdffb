package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf encodes generated messages.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *structpb.Struct { return &structpb.Struct{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

// ProtoValue encodes any JSON-shaped V as a google.protobuf.Value, so
// values without generated messages can still travel as protobuf.
// Numbers round-trip as float64: integers above 2^53 lose precision.
type ProtoValue[V any] struct{}

var valueCodec = NewProtobuf(func() *structpb.Value { return &structpb.Value{} })

func (ProtoValue[V]) Encode(v V) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("protobuf value: %w", err)
	}
	return valueCodec.Encode(pv)
}

func (ProtoValue[V]) Decode(b []byte) (V, error) {
	var v V
	pv, err := valueCodec.Decode(b)
	if err != nil {
		return v, err
	}
	raw, err := json.Marshal(pv.AsInterface())
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}
