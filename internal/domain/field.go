package domain

import (
	"bytes"
	"encoding/json"
)

// Field is a patch slot that tells "key absent" apart from "key sent as null".
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool
}

func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Present reports whether the key was sent with a non-null value.
func (f Field[T]) Present() bool { return f.Set && !f.Null }

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}
