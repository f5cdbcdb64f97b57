package dto

import "encoding/json"

// Optional wraps a patch field and records whether it was supplied,
// so "absent" and "explicitly set to the zero value" stay distinguishable.
type Optional[T any] struct {
	Value T
	Set   bool
}

// UnmarshalJSON marks the field as supplied and decodes the payload.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes the wrapped value.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}
