package jsonproto

import (
	"fmt"
	"strings"

	"github.com/whatamithinking/jsonproto/codec"
)

// Kind is the variant tag of a Type.
type Kind uint8

const (
	KindAny Kind = iota
	KindScalar
	KindModel
	KindSeq
	KindMap
	KindNullable
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindScalar:
		return "scalar"
	case KindModel:
		return "model"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindNullable:
		return "nullable"
	case KindUnion:
		return "union"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Type is the declared type of a field or of a top-level value. Types are
// immutable and safe to share between declarations.
type Type struct {
	kind     Kind
	scalar   codec.Scalar // KindScalar; map key for KindMap
	shape    *Shape       // KindModel, direct
	ref      string       // KindModel, resolved by name through reg
	reg      *Registry
	elem     *Type // seq element, map value, nullable inner
	variants []*Type
}

var (
	anyType      = &Type{kind: KindAny}
	stringType   = Scalar(codec.String())
	intType      = Scalar(codec.Int())
	floatType    = Scalar(codec.Float())
	boolType     = Scalar(codec.Bool())
	timeType     = Scalar(codec.Time())
	dateType     = Scalar(codec.Date())
	durationType = Scalar(codec.Duration())
	bytesType    = Scalar(codec.Bytes())
	uuidType     = Scalar(codec.UUID())
	ipType       = Scalar(codec.IP())
)

// Any accepts any JSON-native value unchanged.
func Any() *Type { return anyType }

func String() *Type   { return stringType }
func Int() *Type      { return intType }
func Float() *Type    { return floatType }
func Bool() *Type     { return boolType }
func Time() *Type     { return timeType }
func Date() *Type     { return dateType }
func Duration() *Type { return durationType }
func Bytes() *Type    { return bytesType }
func UUID() *Type     { return uuidType }
func IP() *Type       { return ipType }

// ScalarNamed returns the type of a scalar registered in package codec.
func ScalarNamed(name string) (*Type, bool) {
	for _, t := range []*Type{stringType, intType, floatType, boolType, timeType, dateType, durationType, bytesType, uuidType, ipType} {
		if t.scalar.Name() == name {
			return t, true
		}
	}
	s, ok := codec.Lookup(name)
	if !ok {
		return nil, false
	}
	return Scalar(s), true
}

// Scalar wraps a codec.Scalar as a Type.
func Scalar(s codec.Scalar) *Type {
	if s == nil {
		panic("jsonproto: nil scalar")
	}
	return &Type{kind: KindScalar, scalar: s}
}

// ModelOf refers to a declared shape.
func ModelOf(s *Shape) *Type {
	if s == nil {
		panic("jsonproto: nil shape")
	}
	return &Type{kind: KindModel, shape: s}
}

// SeqOf is an ordered sequence of elem.
func SeqOf(elem *Type) *Type {
	if elem == nil {
		panic("jsonproto: nil sequence element type")
	}
	return &Type{kind: KindSeq, elem: elem}
}

// MapOf is a mapping with scalar keys. JSON object keys carry the key's
// string form.
func MapOf(key, value *Type) *Type {
	if key == nil || key.kind != KindScalar {
		panic("jsonproto: map key must be a scalar type")
	}
	if value == nil {
		panic("jsonproto: nil map value type")
	}
	return &Type{kind: KindMap, scalar: key.scalar, elem: value}
}

// Nullable admits null in addition to inner's values. A field whose type is
// Nullable is a nullable field.
func Nullable(inner *Type) *Type {
	if inner == nil {
		panic("jsonproto: nil nullable type")
	}
	if inner.kind == KindNullable {
		return inner
	}
	return &Type{kind: KindNullable, elem: inner}
}

// UnionOf admits the values of any variant. Variants are tried in order.
func UnionOf(variants ...*Type) *Type {
	if len(variants) == 0 {
		panic("jsonproto: union needs at least one variant")
	}
	for _, v := range variants {
		if v == nil {
			panic("jsonproto: nil union variant")
		}
	}
	return &Type{kind: KindUnion, variants: append([]*Type(nil), variants...)}
}

func (t *Type) Kind() Kind { return t.kind }

// ScalarCodec returns the scalar of a KindScalar type or the key scalar of a
// KindMap type.
func (t *Type) ScalarCodec() codec.Scalar { return t.scalar }

// Elem returns the element type of a sequence, the value type of a mapping, or
// the inner type of a nullable.
func (t *Type) Elem() *Type { return t.elem }

// Variants returns the union variants.
func (t *Type) Variants() []*Type { return append([]*Type(nil), t.variants...) }

// Shape resolves the shape of a KindModel type.
func (t *Type) Shape() (*Shape, error) {
	if t.kind != KindModel {
		return nil, fmt.Errorf("%w: %s is not a model type", ErrTypeMismatch, t)
	}
	if t.shape != nil {
		return t.shape, nil
	}
	s, ok := t.reg.Lookup(t.ref)
	if !ok {
		return nil, declError("unknown model %q", t.ref)
	}
	return s, nil
}

// nullable reports whether nil is an admissible value.
func (t *Type) nullable() bool {
	switch t.kind {
	case KindNullable, KindAny:
		return true
	case KindUnion:
		for _, v := range t.variants {
			if v.nullable() {
				return true
			}
		}
	}
	return false
}

// stripNullable returns the inner type of a nullable.
func (t *Type) stripNullable() *Type {
	if t.kind == KindNullable {
		return t.elem
	}
	return t
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindAny:
		return "any"
	case KindScalar:
		return t.scalar.Name()
	case KindModel:
		if t.shape != nil {
			return t.shape.Name()
		}
		return t.ref
	case KindSeq:
		return "seq[" + t.elem.String() + "]"
	case KindMap:
		return "map[" + t.scalar.Name() + "]" + t.elem.String()
	case KindNullable:
		return "nullable[" + t.elem.String() + "]"
	case KindUnion:
		parts := make([]string, len(t.variants))
		for i, v := range t.variants {
			parts[i] = v.String()
		}
		return "union[" + strings.Join(parts, "|") + "]"
	}
	return t.kind.String()
}

// ToJSON converts a domain (unstruct) value of this type into its JSON-native
// form.
func (t *Type) ToJSON(v any) (any, error) {
	c := &conv{}
	out, ok := c.walk(dirLower, t, v, Root())
	if !ok {
		return nil, c.issues
	}
	return out, nil
}

// FromJSON converts a JSON-native value into the domain (unstruct) form of
// this type.
func (t *Type) FromJSON(v any) (any, error) {
	c := &conv{}
	out, ok := c.walk(dirLift, t, v, Root())
	if !ok {
		return nil, c.issues
	}
	return out, nil
}

// walkRefs visits every model reference reachable without entering models.
func (t *Type) walkRefs(fn func(*Type) error) error {
	switch t.kind {
	case KindModel:
		return fn(t)
	case KindSeq, KindMap, KindNullable:
		return t.elem.walkRefs(fn)
	case KindUnion:
		for _, v := range t.variants {
			if err := v.walkRefs(fn); err != nil {
				return err
			}
		}
	}
	return nil
}
