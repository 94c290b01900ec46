package jsonproto

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field declares one record field.
//
// Absent input resolves in this order: a Required field fails with
// missing_required_field; otherwise Default (or DefaultFunc) applies; otherwise
// the field stays Empty.
type Field struct {
	// Name is the key in the unstruct form and the name used by Record.
	Name string
	// Alias is the key in the json family. When empty it is the lowerCamelCase
	// form of Name ("user_id" becomes "userId").
	Alias string
	// Type is the declared value type. Nullable(T) also makes the field nullable.
	Type *Type
	// Nullable admits an explicit null.
	Nullable bool
	// Required rejects absent input. A required field cannot have a default.
	Required bool
	// Default is used for absent input; the zero Value means no default.
	// Slices, maps and records are copied into each record that takes it.
	Default Value
	// DefaultFunc produces a fresh default per use; its result is type- and
	// constraint-checked like input. At most one of Default and DefaultFunc
	// may be set.
	DefaultFunc func() Value
	// Constraints run in order on every set value.
	Constraints []Constraint
	// Description is carried into JSON Schema output.
	Description string
}

// HasDefault reports whether absent input resolves to a default.
func (f Field) HasDefault() bool { return !f.Default.IsEmpty() || f.DefaultFunc != nil }

// CamelAlias converts snake_case to lowerCamelCase.
func CamelAlias(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}
	parts := strings.Split(name, "_")
	b := &strings.Builder{}
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		r, n := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(p[n:])
	}
	if b.Len() == 0 {
		return name
	}
	return b.String()
}
