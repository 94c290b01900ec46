package jsonproto

import (
	"bytes"
	"fmt"
	"reflect"
	"time"
)

// State is the resolution state of a record field.
type State uint8

const (
	// StateEmpty means the field is absent. It is omitted from every
	// representation other than a record.
	StateEmpty State = iota
	// StateNull is an explicit null.
	StateNull
	// StateSet holds a value.
	StateSet
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateNull:
		return "null"
	case StateSet:
		return "set"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Value is the three-state content of a record field. The zero Value is Empty.
type Value struct {
	state State
	v     any
}

// Empty returns the absent value.
func Empty() Value { return Value{} }

// Null returns an explicit null.
func Null() Value { return Value{state: StateNull} }

// Of returns a set value. Of(nil) is Null, and a Value argument is returned as-is.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	}
	return Value{state: StateSet, v: v}
}

func (v Value) State() State  { return v.state }
func (v Value) IsEmpty() bool { return v.state == StateEmpty }
func (v Value) IsNull() bool  { return v.state == StateNull }
func (v Value) IsSet() bool   { return v.state == StateSet }

// Get returns the held value; ok is false unless the state is StateSet.
func (v Value) Get() (any, bool) { return v.v, v.state == StateSet }

// Interface returns the held value, or nil for Empty and Null.
func (v Value) Interface() any { return v.v }

func (v Value) String() string {
	switch v.state {
	case StateEmpty:
		return "<empty>"
	case StateNull:
		return "null"
	}
	if s, ok := v.v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v.v)
}

// equalTyped compares two domain values of type t.
func equalTyped(t *Type, a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch t.kind {
	case KindScalar:
		na, oka := t.scalar.Accepts(a)
		nb, okb := t.scalar.Accepts(b)
		if !oka || !okb {
			return equalAny(a, b)
		}
		return equalAny(na, nb)
	case KindModel:
		ra, oka := a.(*Record)
		rb, okb := b.(*Record)
		return oka && okb && ra.Equal(rb)
	case KindSeq:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if !isList(va) || !isList(vb) || va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !equalTyped(t.elem, va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true
	case KindMap:
		ma, oka := normalizeKeys(t.scalar, a)
		mb, okb := normalizeKeys(t.scalar, b)
		if !oka || !okb || len(ma) != len(mb) {
			return false
		}
		for k, x := range ma {
			y, ok := mb[k]
			if !ok || !equalTyped(t.elem, x, y) {
				return false
			}
		}
		return true
	case KindNullable:
		return equalTyped(t.elem, a, b)
	case KindUnion:
		for _, vt := range t.variants {
			if equalTyped(vt, a, b) {
				return true
			}
		}
		return false
	}
	return equalAny(a, b)
}

func normalizeKeys(key interface{ Accepts(any) (any, bool) }, m any) (map[any]any, bool) {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[any]any, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		k, ok := key.Accepts(it.Key().Interface())
		if !ok {
			return nil, false
		}
		out[k] = it.Value().Interface()
	}
	return out, true
}

// equalAny compares normalized scalars and untyped trees.
func equalAny(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case *Record:
		y, ok := b.(*Record)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

func isList(rv reflect.Value) bool {
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}
