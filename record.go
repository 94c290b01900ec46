package jsonproto

import (
	"fmt"
	"strings"
)

// Record is the struct form of a model: one Value per declared field, in
// declaration order. A new record has every field Empty.
type Record struct {
	model  *Model
	values []Value
}

// New returns an empty record of the shape. It panics when the shape's
// declaration is invalid; use NewRecord to get the error instead.
func (s *Shape) New() *Record {
	r, err := NewRecord(s)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRecord returns an empty record of the shape.
func NewRecord(s *Shape) (*Record, error) {
	m, err := s.Model()
	if err != nil {
		return nil, err
	}
	return m.newRecord(), nil
}

func (m *Model) newRecord() *Record {
	return &Record{model: m, values: make([]Value, len(m.fields))}
}

// Shape returns the record's shape.
func (r *Record) Shape() *Shape { return r.model.shape }

// Model returns the record's model descriptor.
func (r *Record) Model() *Model { return r.model }

func (r *Record) index(name string) int {
	i, ok := r.model.byName[name]
	if !ok {
		panic(fmt.Sprintf("jsonproto: %s has no field %q", r.model.name, name))
	}
	return i
}

// Set stores v in the named field and returns r. nil stores Null and a Value is
// stored as-is. Set panics on an unknown field name.
func (r *Record) Set(name string, v any) *Record {
	r.values[r.index(name)] = Of(v)
	return r
}

// SetNull stores an explicit null.
func (r *Record) SetNull(name string) *Record {
	r.values[r.index(name)] = Null()
	return r
}

// Unset makes the named field Empty.
func (r *Record) Unset(name string) *Record {
	r.values[r.index(name)] = Empty()
	return r
}

// Get returns the named field's value; unknown names yield Empty.
func (r *Record) Get(name string) Value {
	v, _ := r.Lookup(name)
	return v
}

// Lookup returns the named field's value and whether the field exists.
func (r *Record) Lookup(name string) (Value, bool) {
	i, ok := r.model.byName[name]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Each calls fn for every field in declaration order until fn returns false.
func (r *Record) Each(fn func(name string, v Value) bool) {
	for i := range r.model.fields {
		if !fn(r.model.fields[i].Name, r.values[i]) {
			return
		}
	}
}

// Equal reports whether o has the same shape and field values. Scalars compare
// after normalization, so int(1) equals int64(1) and times compare by instant.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.model.shape != o.model.shape {
		return false
	}
	for i := range r.values {
		a, b := r.values[i], o.values[i]
		if a.state != b.state {
			return false
		}
		if a.state == StateSet && !equalTyped(r.model.fields[i].Type, a.v, b.v) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy: field values are shared, nested records are
// cloned.
func (r *Record) Clone() *Record {
	out := r.model.newRecord()
	for i, v := range r.values {
		if rec, ok := v.v.(*Record); ok && v.state == StateSet {
			v = Of(rec.Clone())
		}
		out.values[i] = v
	}
	return out
}

func (r *Record) String() string {
	b := &strings.Builder{}
	b.WriteString(r.model.name)
	b.WriteByte('{')
	for i, v := range r.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.model.fields[i].Name)
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}
