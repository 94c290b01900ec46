package jsonproto

import (
	"fmt"

	"github.com/whatamithinking/jsonproto/jsonschema"
)

// JSONSchema exports the model as a JSON Schema document describing its json
// format: properties are keyed by alias and nested models are emitted once
// under $defs.
//
// Constraints implementing SchemaAnnotator contribute keywords; the others
// (expressions, model rules) have no schema form and are omitted.
func (m *Model) JSONSchema() (*jsonschema.Schema, error) {
	g := &schemaGen{root: m.shape, defs: map[string]*jsonschema.Schema{}}
	s, err := g.object(m)
	if err != nil {
		return nil, err
	}
	s.SchemaURI = jsonschema.Draft
	if len(g.defs) > 0 {
		s.Defs = g.defs
	}
	return s, nil
}

type schemaGen struct {
	root *Shape
	defs map[string]*jsonschema.Schema
}

func (g *schemaGen) object(m *Model) (*jsonschema.Schema, error) {
	s := &jsonschema.Schema{
		Title:                m.name,
		Type:                 "object",
		Properties:           make(map[string]*jsonschema.Schema, len(m.fields)),
		AdditionalProperties: false,
	}
	for i := range m.fields {
		f := &m.fields[i]
		fs, err := g.field(f)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, f.Name, err)
		}
		s.Properties[f.Alias] = fs
		if f.Required {
			s.Required = append(s.Required, f.Alias)
		}
	}
	for _, r := range m.rules {
		if a, ok := r.(SchemaAnnotator); ok {
			a.Annotate(s)
		}
	}
	return s, nil
}

func (g *schemaGen) field(f *Field) (*jsonschema.Schema, error) {
	s, err := g.typ(f.Type)
	if err != nil {
		return nil, err
	}
	for _, c := range f.Constraints {
		if a, ok := c.(SchemaAnnotator); ok {
			a.Annotate(s)
		}
	}
	if f.Nullable {
		s = &jsonschema.Schema{OneOf: []*jsonschema.Schema{s, {Type: "null"}}}
	}
	s.Description = f.Description
	if v, ok := f.Default.Get(); ok {
		// A default that cannot be lowered was rejected when the model was built.
		if j, err := f.Type.ToJSON(v); err == nil {
			s.Default = j
		}
	}
	return s, nil
}

func (g *schemaGen) typ(t *Type) (*jsonschema.Schema, error) {
	switch t.kind {
	case KindAny:
		return &jsonschema.Schema{}, nil
	case KindScalar:
		return &jsonschema.Schema{Type: t.scalar.JSONType(), Format: t.scalar.JSONFormat()}, nil
	case KindNullable:
		inner, err := g.typ(t.elem)
		if err != nil {
			return nil, err
		}
		return &jsonschema.Schema{OneOf: []*jsonschema.Schema{inner, {Type: "null"}}}, nil
	case KindSeq:
		items, err := g.typ(t.elem)
		if err != nil {
			return nil, err
		}
		return &jsonschema.Schema{Type: "array", Items: items}, nil
	case KindMap:
		vals, err := g.typ(t.elem)
		if err != nil {
			return nil, err
		}
		s := &jsonschema.Schema{Type: "object", AdditionalProperties: vals}
		if t.scalar.JSONType() != "string" || t.scalar.JSONFormat() != "" {
			s.PropertyNames = &jsonschema.Schema{Type: "string", Format: t.scalar.JSONFormat()}
		}
		return s, nil
	case KindUnion:
		s := &jsonschema.Schema{}
		for _, v := range t.variants {
			vs, err := g.typ(v)
			if err != nil {
				return nil, err
			}
			s.AnyOf = append(s.AnyOf, vs)
		}
		return s, nil
	case KindModel:
		return g.ref(t)
	}
	return nil, fmt.Errorf("%w: unknown type kind %s", ErrInvalidDeclaration, t.kind)
}

func (g *schemaGen) ref(t *Type) (*jsonschema.Schema, error) {
	sh, err := t.Shape()
	if err != nil {
		return nil, err
	}
	if sh == g.root {
		return &jsonschema.Schema{Ref: "#"}, nil
	}
	ref := &jsonschema.Schema{Ref: "#/$defs/" + sh.name}
	if _, seen := g.defs[sh.name]; seen {
		return ref, nil
	}
	m, err := sh.Model()
	if err != nil {
		return nil, err
	}
	// Reserve the name first so recursive models terminate.
	g.defs[sh.name] = &jsonschema.Schema{}
	def, err := g.object(m)
	if err != nil {
		return nil, err
	}
	g.defs[sh.name] = def
	return ref, nil
}
