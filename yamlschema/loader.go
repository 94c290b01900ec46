// Package yamlschema declares jsonproto models from YAML files.
//
//	models:
//	  - name: User
//	    fields:
//	      - {name: id, type: int, required: true}
//	      - name: email
//	        type: string
//	        nullable: true
//	        default: null
//	        constraints:
//	          - format: email
//	          - maxLength: 200
//	      - {name: tags, type: {seq: string}}
//	      - {name: address, type: {ref: Address}}
//	    rules:
//	      - disjoint: [email, phone]
//
// A type is a scalar name (string, int, float, bool, time, date, duration,
// bytes, uuid, ip or any scalar registered in package codec), "any", the name
// of another model, or one of {seq: T}, {map: {key: K, value: T}},
// {ref: Name}, {nullable: T} and {union: [T...]}.
package yamlschema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/whatamithinking/jsonproto"
	"github.com/whatamithinking/jsonproto/rules"
)

type document struct {
	Models []modelDecl `yaml:"models"`
}

type modelDecl struct {
	Name   string      `yaml:"name"`
	Fields []fieldDecl `yaml:"fields"`
	Rules  []yaml.Node `yaml:"rules"`
}

type fieldDecl struct {
	Name        string      `yaml:"name"`
	Alias       string      `yaml:"alias"`
	Type        yaml.Node   `yaml:"type"`
	Required    bool        `yaml:"required"`
	Nullable    bool        `yaml:"nullable"`
	Default     yaml.Node   `yaml:"default"`
	Constraints []yaml.Node `yaml:"constraints"`
	Description string      `yaml:"description"`
}

// LoadFile reads and declares the models of a YAML shape file.
func LoadFile(path string) (*jsonproto.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shape file %s: %w", path, err)
	}
	return Parse(data)
}

// Load reads a YAML shape document from r.
func Load(r io.Reader) (*jsonproto.Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse declares the models of a YAML shape document in a new Registry.
func Parse(data []byte) (*jsonproto.Registry, error) {
	reg := jsonproto.NewRegistry()
	if err := ParseInto(reg, data); err != nil {
		return nil, err
	}
	return reg, nil
}

// ParseInto declares the models of a YAML shape document in reg. Every model
// is built before ParseInto returns, so declaration errors (unknown refs, bad
// defaults, conflicting rules) surface here.
func ParseInto(reg *jsonproto.Registry, data []byte) error {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty shape document", jsonproto.ErrInvalidDeclaration)
		}
		return fmt.Errorf("failed to parse shape YAML: %w", err)
	}
	// Duplicate keys anywhere are declaration errors.
	if _, err := nodeToJSON(&root); err != nil {
		return fmt.Errorf("%w: %v", jsonproto.ErrInvalidDeclaration, err)
	}
	var doc document
	strict := yaml.NewDecoder(bytes.NewReader(data))
	strict.KnownFields(true)
	if err := strict.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", jsonproto.ErrInvalidDeclaration, err)
	}

	l := &loader{reg: reg}
	shapes := make([]*jsonproto.Shape, 0, len(doc.Models))
	for i := range doc.Models {
		md := &doc.Models[i]
		fields, err := l.fields(md)
		if err != nil {
			return fmt.Errorf("model %s: %w", md.Name, err)
		}
		rs, err := l.rules(md.Rules)
		if err != nil {
			return fmt.Errorf("model %s: %w", md.Name, err)
		}
		s, err := reg.TryDeclare(md.Name, func() []jsonproto.Field { return fields }, rs...)
		if err != nil {
			return err
		}
		shapes = append(shapes, s)
	}
	for _, s := range shapes {
		if _, err := s.Model(); err != nil {
			return err
		}
	}
	for _, d := range l.lazy {
		if _, err := d.convert(); err != nil {
			return fmt.Errorf("%w: %s: default: %v", jsonproto.ErrInvalidDeclaration, d.where, err)
		}
	}
	return nil
}

type loader struct {
	reg  *jsonproto.Registry
	lazy []*lazyDefault
}

func (l *loader) fields(md *modelDecl) ([]jsonproto.Field, error) {
	out := make([]jsonproto.Field, 0, len(md.Fields))
	for _, fd := range md.Fields {
		if fd.Type.Kind == 0 {
			return nil, fmt.Errorf("%w: field %s: missing type", jsonproto.ErrInvalidDeclaration, fd.Name)
		}
		t, err := l.typ(&fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		if fd.Nullable {
			t = jsonproto.Nullable(t)
		}
		f := jsonproto.Field{
			Name:        fd.Name,
			Alias:       fd.Alias,
			Type:        t,
			Required:    fd.Required,
			Description: fd.Description,
		}
		for i := range fd.Constraints {
			c, err := constraint(&fd.Constraints[i], t)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fd.Name, err)
			}
			f.Constraints = append(f.Constraints, c)
		}
		if fd.Default.Kind != 0 {
			if err := l.setDefault(&f, &fd.Default, md.Name+"."+fd.Name); err != nil {
				return nil, fmt.Errorf("field %s: %w", fd.Name, err)
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// setDefault stores the default of f. Defaults are written in json form and
// read through the field type; model-bearing defaults are converted per use
// so no two records share nested state.
func (l *loader) setDefault(f *jsonproto.Field, n *yaml.Node, where string) error {
	raw, err := nodeToJSON(n)
	if err != nil {
		return err
	}
	if raw == nil {
		f.Default = jsonproto.Null()
		return nil
	}
	if !hasModel(f.Type) {
		v, err := f.Type.FromJSON(raw)
		if err != nil {
			return errorf(n, "default: %v", err)
		}
		f.Default = jsonproto.Of(v)
		return nil
	}
	d := &lazyDefault{t: f.Type, raw: raw, where: where}
	l.lazy = append(l.lazy, d)
	f.DefaultFunc = d.value
	return nil
}

type lazyDefault struct {
	t     *jsonproto.Type
	raw   any
	where string
}

func (d *lazyDefault) convert() (any, error) {
	return jsonproto.Execute(context.Background(), d.raw, jsonproto.Options{
		Type:   d.t,
		Source: jsonproto.FormatJSON,
		Target: jsonproto.FormatStruct,
	})
}

// value never fails for a default that ParseInto accepted.
func (d *lazyDefault) value() jsonproto.Value {
	v, err := d.convert()
	if err != nil {
		return jsonproto.Empty()
	}
	return jsonproto.Of(v)
}

func hasModel(t *jsonproto.Type) bool {
	switch t.Kind() {
	case jsonproto.KindModel:
		return true
	case jsonproto.KindSeq, jsonproto.KindMap, jsonproto.KindNullable:
		return hasModel(t.Elem())
	case jsonproto.KindUnion:
		for _, v := range t.Variants() {
			if hasModel(v) {
				return true
			}
		}
	}
	return false
}

func (l *loader) typ(n *yaml.Node) (*jsonproto.Type, error) {
	if n.Kind == yaml.ScalarNode {
		name := n.Value
		if name == "any" {
			return jsonproto.Any(), nil
		}
		if t, ok := jsonproto.ScalarNamed(name); ok {
			return t, nil
		}
		if name == "" {
			return nil, errorf(n, "empty type name")
		}
		return l.reg.Ref(name), nil
	}
	key, val, err := single(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "seq":
		elem, err := l.typ(val)
		if err != nil {
			return nil, err
		}
		return jsonproto.SeqOf(elem), nil
	case "map":
		var kv struct {
			Key   yaml.Node `yaml:"key"`
			Value yaml.Node `yaml:"value"`
		}
		if err := val.Decode(&kv); err != nil {
			return nil, errorf(val, "%v", err)
		}
		kt := jsonproto.String()
		if kv.Key.Kind != 0 {
			var ok bool
			if kt, ok = jsonproto.ScalarNamed(kv.Key.Value); !ok {
				return nil, errorf(&kv.Key, "map key must be a scalar type, got %q", kv.Key.Value)
			}
		}
		if kv.Value.Kind == 0 {
			return nil, errorf(val, "map needs a value type")
		}
		vt, err := l.typ(&kv.Value)
		if err != nil {
			return nil, err
		}
		return jsonproto.MapOf(kt, vt), nil
	case "ref":
		return l.reg.Ref(val.Value), nil
	case "nullable":
		inner, err := l.typ(val)
		if err != nil {
			return nil, err
		}
		return jsonproto.Nullable(inner), nil
	case "union":
		if val.Kind != yaml.SequenceNode || len(val.Content) == 0 {
			return nil, errorf(val, "union needs a non-empty list of types")
		}
		vs := make([]*jsonproto.Type, 0, len(val.Content))
		for _, c := range val.Content {
			vt, err := l.typ(c)
			if err != nil {
				return nil, err
			}
			vs = append(vs, vt)
		}
		return jsonproto.UnionOf(vs...), nil
	}
	return nil, errorf(n, "unknown type form %q", key)
}

func errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", jsonproto.ErrInvalidDeclaration, n.Line, fmt.Sprintf(format, args...))
}

// constraint reads one field constraint. Limits and enum members are written
// in json form and read through the field's scalar type.
func constraint(n *yaml.Node, t *jsonproto.Type) (jsonproto.Constraint, error) {
	key, val, err := single(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "length":
		var spec struct {
			Op string `yaml:"op"`
			N  int    `yaml:"n"`
		}
		if err := val.Decode(&spec); err != nil {
			return nil, errorf(val, "%v", err)
		}
		op, err := jsonproto.ParseOp(spec.Op)
		if err != nil {
			return nil, errorf(val, "%v", err)
		}
		return jsonproto.Length(op, spec.N), nil
	case "minLength", "maxLength":
		var size int
		if err := val.Decode(&size); err != nil {
			return nil, errorf(val, "%v", err)
		}
		if key == "minLength" {
			return jsonproto.Length(jsonproto.Ge, size), nil
		}
		return jsonproto.Length(jsonproto.Le, size), nil
	case "compare":
		var spec struct {
			Op    string    `yaml:"op"`
			Limit yaml.Node `yaml:"limit"`
		}
		if err := val.Decode(&spec); err != nil {
			return nil, errorf(val, "%v", err)
		}
		op, err := jsonproto.ParseOp(spec.Op)
		if err != nil {
			return nil, errorf(val, "%v", err)
		}
		limit, err := domainValue(&spec.Limit, t)
		if err != nil {
			return nil, err
		}
		return jsonproto.Compare(op, limit), nil
	case "minimum", "maximum":
		limit, err := domainValue(val, t)
		if err != nil {
			return nil, err
		}
		if key == "minimum" {
			return jsonproto.Compare(jsonproto.Ge, limit), nil
		}
		return jsonproto.Compare(jsonproto.Le, limit), nil
	case "pattern":
		c, err := jsonproto.NewPattern(val.Value)
		if err != nil {
			return nil, errorf(val, "%v", err)
		}
		return c, nil
	case "format":
		c, err := jsonproto.NewFormat(val.Value)
		if err != nil {
			return nil, errorf(val, "%v", err)
		}
		return c, nil
	case "expr":
		c, err := jsonproto.NewExpr(val.Value)
		if err != nil {
			return nil, errorf(val, "%v", err)
		}
		return c, nil
	case "enum":
		if val.Kind != yaml.SequenceNode {
			return nil, errorf(val, "enum needs a list")
		}
		vs := make([]any, 0, len(val.Content))
		for _, c := range val.Content {
			v, err := domainValue(c, t)
			if err != nil {
				return nil, err
			}
			vs = append(vs, v)
		}
		return jsonproto.OneOf(vs...), nil
	}
	return nil, errorf(n, "unknown constraint %q", key)
}

func domainValue(n *yaml.Node, t *jsonproto.Type) (any, error) {
	raw, err := nodeToJSON(n)
	if err != nil {
		return nil, err
	}
	for t.Kind() == jsonproto.KindNullable {
		t = t.Elem()
	}
	if t.Kind() != jsonproto.KindScalar || raw == nil {
		return raw, nil
	}
	v, err := t.ScalarCodec().FromJSON(raw)
	if err != nil {
		return nil, errorf(n, "%v", err)
	}
	return v, nil
}

func (l *loader) rules(nodes []yaml.Node) ([]jsonproto.ModelConstraint, error) {
	out := make([]jsonproto.ModelConstraint, 0, len(nodes))
	for i := range nodes {
		r, err := rule(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func rule(n *yaml.Node) (jsonproto.ModelConstraint, error) {
	key, val, err := single(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "dependent", "disjoint", "require":
		fs, err := stringsOf(val)
		if err != nil {
			return nil, err
		}
		switch key {
		case "dependent":
			return rules.Dependent(fs...), nil
		case "disjoint":
			return rules.Disjoint(fs...), nil
		}
		return rules.Require(fs...), nil
	case "atLeastOne":
		return rules.AtLeastOne(val.Value), nil
	case "unique":
		var spec struct {
			Path string `yaml:"path"`
			Key  string `yaml:"key"`
		}
		if err := val.Decode(&spec); err != nil {
			return nil, errorf(val, "%v", err)
		}
		return rules.UniqueBy(spec.Path, spec.Key), nil
	case "and", "or":
		if val.Kind != yaml.SequenceNode {
			return nil, errorf(val, "%s needs a list of rules", key)
		}
		var rs []jsonproto.ModelConstraint
		for _, c := range val.Content {
			r, err := rule(c)
			if err != nil {
				return nil, err
			}
			rs = append(rs, r)
		}
		if key == "and" {
			return rules.And(rs...), nil
		}
		return rules.Or(rs...), nil
	case "if":
		var spec struct {
			Field string      `yaml:"field"`
			Op    string      `yaml:"op"`
			Value yaml.Node   `yaml:"value"`
			Then  []yaml.Node `yaml:"then"`
		}
		if err := val.Decode(&spec); err != nil {
			return nil, errorf(val, "%v", err)
		}
		op, err := jsonproto.ParseOp(spec.Op)
		if err != nil {
			return nil, errorf(val, "%v", err)
		}
		want, err := nodeToJSON(&spec.Value)
		if err != nil {
			return nil, err
		}
		var then []jsonproto.ModelConstraint
		for i := range spec.Then {
			r, err := rule(&spec.Then[i])
			if err != nil {
				return nil, err
			}
			then = append(then, r)
		}
		return rules.If(spec.Field, op, plainNumber(want)).Then(then...), nil
	}
	return nil, errorf(n, "unknown rule %q", key)
}

// plainNumber turns a json.Number into int64 or float64 so it compares with
// domain values.
func plainNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return string(n)
}
