package jsonproto

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Shape is a declared record type. It is the identity under which the model
// descriptor is cached; declare each shape once and keep the pointer.
type Shape struct {
	name   string
	fields func() []Field
	rules  []ModelConstraint
	reg    *Registry
}

// Name returns the declared name.
func (s *Shape) Name() string { return s.name }

// Registry returns the registry the shape was declared in.
func (s *Shape) Registry() *Registry { return s.reg }

// Model returns the shape's descriptor, building it on first use.
func (s *Shape) Model() (*Model, error) { return s.model(nil) }

// Registry maps shape names to shapes so that types may refer to models by
// name, including models declared later or recursively.
type Registry struct {
	mu     sync.RWMutex
	shapes map[string]*Shape
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{shapes: map[string]*Shape{}} }

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by Declare and Ref.
func DefaultRegistry() *Registry { return defaultRegistry }

// Declare registers a shape. fields is called once, on first use of the
// model, so it may refer to shapes declared after this one. Declare panics if
// the name is already taken.
func (r *Registry) Declare(name string, fields func() []Field, rules ...ModelConstraint) *Shape {
	s, err := r.TryDeclare(name, fields, rules...)
	if err != nil {
		panic(err)
	}
	return s
}

// TryDeclare is Declare returning an error instead of panicking.
func (r *Registry) TryDeclare(name string, fields func() []Field, rules ...ModelConstraint) (*Shape, error) {
	if name == "" {
		return nil, declError("empty model name")
	}
	if fields == nil {
		return nil, declError("model %q has no field declaration", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.shapes[name]; dup {
		return nil, declError("model %q declared twice", name)
	}
	s := &Shape{name: name, fields: fields, rules: append([]ModelConstraint(nil), rules...), reg: r}
	r.shapes[name] = s
	return s, nil
}

// Lookup returns the shape declared under name.
func (r *Registry) Lookup(name string) (*Shape, bool) {
	r.mu.RLock()
	s, ok := r.shapes[name]
	r.mu.RUnlock()
	return s, ok
}

// Ref refers to a model of this registry by name. The name is resolved when a
// model using the type is built.
func (r *Registry) Ref(name string) *Type {
	return &Type{kind: KindModel, ref: name, reg: r}
}

// Names lists declared shape names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.shapes))
	for n := range r.shapes {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Declare registers a shape in the default registry.
func Declare(name string, fields func() []Field, rules ...ModelConstraint) *Shape {
	return defaultRegistry.Declare(name, fields, rules...)
}

// Ref refers to a model of the default registry by name.
func Ref(name string) *Type { return defaultRegistry.Ref(name) }

// Model is the validated, immutable descriptor of a shape.
type Model struct {
	shape   *Shape
	name    string
	fields  []Field
	byName  map[string]int
	byAlias map[string]int
	rules   []ModelConstraint
}

func (m *Model) Name() string  { return m.name }
func (m *Model) Shape() *Shape { return m.shape }
func (m *Model) NumField() int { return len(m.fields) }

// Fields returns the resolved field descriptors in declaration order.
func (m *Model) Fields() []Field { return append([]Field(nil), m.fields...) }

// Field returns the resolved descriptor of the named field.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// FieldByAlias returns the resolved descriptor for a JSON key.
func (m *Model) FieldByAlias(alias string) (Field, bool) {
	i, ok := m.byAlias[alias]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// Rules returns the model-level constraints.
func (m *Model) Rules() []ModelConstraint { return append([]ModelConstraint(nil), m.rules...) }

// modelEntry memoizes one shape's build. Entries are never invalidated.
type modelEntry struct {
	once  sync.Once
	model *Model
	err   error
}

// _models maps *Shape to *modelEntry for the process lifetime. Reads after the
// first build take no lock.
var _models sync.Map

func (s *Shape) model(log *zap.Logger) (*Model, error) {
	e, ok := _models.Load(s)
	if !ok {
		e, _ = _models.LoadOrStore(s, &modelEntry{})
	}
	ent := e.(*modelEntry)
	ent.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				ent.model, ent.err = nil, panicError(s, r)
			}
		}()
		ent.model, ent.err = buildModel(s, log)
	})
	return ent.model, ent.err
}

// panicError turns a panic raised while declaring s into a declaration error.
func panicError(s *Shape, r any) error {
	if err, ok := r.(error); ok {
		if errors.Is(err, ErrInvalidDeclaration) {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		return declError("%s: %v", s.name, err)
	}
	return declError("%s: %v", s.name, r)
}

func buildModel(s *Shape, log *zap.Logger) (*Model, error) {
	decl := s.fields()
	m := &Model{
		shape:   s,
		name:    s.name,
		fields:  make([]Field, 0, len(decl)),
		byName:  make(map[string]int, len(decl)),
		byAlias: make(map[string]int, len(decl)),
		rules:   s.rules,
	}
	for _, f := range decl {
		if f.Name == "" {
			return nil, declError("%s: field with empty name", s.name)
		}
		if f.Type == nil {
			return nil, declError("%s.%s: missing type", s.name, f.Name)
		}
		if f.Alias == "" {
			f.Alias = CamelAlias(f.Name)
		}
		if f.Type.kind == KindNullable {
			f.Nullable = true
			f.Type = f.Type.elem
		}
		if _, dup := m.byName[f.Name]; dup {
			return nil, declError("%s: duplicate field name %q", s.name, f.Name)
		}
		if j, dup := m.byAlias[f.Alias]; dup {
			return nil, declError("%s: alias %q of %q already used by %q", s.name, f.Alias, f.Name, m.fields[j].Name)
		}
		if err := f.Type.walkRefs(func(t *Type) error { _, err := t.Shape(); return err }); err != nil {
			return nil, declError("%s.%s: %v", s.name, f.Name, err)
		}
		if err := checkDefault(f); err != nil {
			return nil, declError("%s.%s: %v", s.name, f.Name, err)
		}
		if !f.Default.IsEmpty() {
			f.Default = normalizeDefault(f.Type, f.Default)
		}
		m.byName[f.Name] = len(m.fields)
		m.byAlias[f.Alias] = len(m.fields)
		m.fields = append(m.fields, f)
	}
	for _, r := range s.rules {
		if fr, ok := r.(FieldReferrer); ok {
			for _, n := range fr.FieldNames() {
				if _, ok := m.byName[n]; !ok {
					return nil, declError("%s: rule %s refers to unknown field %q", s.name, r.Kind(), n)
				}
			}
		}
	}
	rules, err := composeRules(s.rules)
	if err != nil {
		return nil, declError("%s: %v", s.name, err)
	}
	m.rules = rules
	if log != nil {
		log.Debug("model built", zap.String("model", s.name), zap.Int("fields", len(m.fields)), zap.Int("rules", len(m.rules)))
	}
	return m, nil
}

func checkDefault(f Field) error {
	if !f.HasDefault() {
		return nil
	}
	if f.Required {
		return fmt.Errorf("required field cannot have a default")
	}
	if !f.Default.IsEmpty() && f.DefaultFunc != nil {
		return fmt.Errorf("both Default and DefaultFunc set")
	}
	if f.DefaultFunc != nil {
		return nil
	}
	if f.Default.IsNull() {
		if !f.Nullable {
			return fmt.Errorf("null default on a non-nullable field")
		}
		return nil
	}
	v, _ := f.Default.Get()
	if err := shallowAccepts(f.Type, v); err != nil {
		return fmt.Errorf("default %v: %v", v, err)
	}
	nv := normalizeDefault(f.Type, f.Default).Interface()
	for _, c := range f.Constraints {
		if viol := c.Check(nv); viol != nil {
			return fmt.Errorf("default %v violates %s: %s", v, c.Kind(), viol.Message)
		}
	}
	return nil
}

func normalizeDefault(t *Type, v Value) Value {
	if t.kind != KindScalar || !v.IsSet() {
		return v
	}
	if nv, ok := t.scalar.Accepts(v.v); ok {
		return Of(nv)
	}
	return v
}
