package codec

import "encoding/json"

// JSON uses encoding/json with indentation, since exports are read by people.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
