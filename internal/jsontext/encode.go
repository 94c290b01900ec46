package jsontext

import (
	j "github.com/goccy/go-json"
)

// Marshal encodes a JSON-native tree. Object keys are emitted in sorted order.
func Marshal(v any) ([]byte, error) {
	return j.Marshal(v)
}

// MarshalIndent is Marshal with two-space indentation.
func MarshalIndent(v any) ([]byte, error) {
	return j.MarshalIndent(v, "", "  ")
}
