package jsonproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/whatamithinking/jsonproto/codec"
	"github.com/whatamithinking/jsonproto/i18n"
)

// direction selects the chain edge a walk performs.
type direction uint8

const (
	dirUnwrap direction = iota // struct -> unstruct
	dirWrap                    // unstruct -> struct
	dirLower                   // unstruct -> json
	dirLift                    // json -> unstruct
)

// conv carries options and collected issues through one edge transform.
type conv struct {
	opt      Options
	log      *zap.Logger
	failFast bool
	issues   Issues

	// deferLift parks a record field's lift issues in the lifted map so the
	// wrap edge reports them in field order alongside its own.
	deferLift bool
}

// liftFailed stands in for a record field whose JSON value could not be
// lifted. It only travels from liftRecord to wrapRecord within one walk.
type liftFailed struct{ issues Issues }

func (c *conv) scratch() *conv { return &conv{opt: c.opt, log: c.log} }

func (c *conv) add(it Issue) { c.issues = append(c.issues, it) }

func (c *conv) stop() bool { return c.failFast && len(c.issues) > 0 }

func (c *conv) fail(p Path, code, detail string, cause error) {
	c.add(Issue{Path: p.String(), Code: code, Message: message(code, detail), Cause: cause})
}

func (c *conv) mismatch(p Path, t *Type, v any, cause error) {
	detail := fmt.Sprintf("expected %s, got %T", t, v)
	if cause != nil {
		detail = cause.Error()
	}
	c.fail(p, CodeTypeMismatch, detail, cause)
}

func message(code, detail string) string {
	base := i18n.T(code, nil)
	if detail == "" {
		return base
	}
	return base + ": " + detail
}

func (c *conv) modelOf(t *Type, p Path) (*Model, bool) {
	s, err := t.Shape()
	if err != nil {
		c.fail(p, CodeTypeMismatch, err.Error(), err)
		return nil, false
	}
	m, err := s.model(c.log)
	if err != nil {
		c.fail(p, CodeTypeMismatch, err.Error(), err)
		return nil, false
	}
	return m, true
}

// walk converts v of type t across one chain edge.
func (c *conv) walk(dir direction, t *Type, v any, p Path) (any, bool) {
	if v == nil {
		// Nulls cross the json edges untouched; the record boundary judges them.
		if dir == dirLower || dir == dirLift || t.nullable() {
			return nil, true
		}
		c.fail(p, CodeNullNotAllowed, "", nil)
		return nil, false
	}
	switch t.kind {
	case KindAny:
		if dir == dirLift {
			return normalizeNumbers(v), true
		}
		return v, true
	case KindNullable:
		return c.walk(dir, t.elem, v, p)
	case KindScalar:
		return c.scalar(dir, t, v, p)
	case KindModel:
		return c.model(dir, t, v, p)
	case KindSeq:
		return c.seq(dir, t, v, p)
	case KindMap:
		return c.mapping(dir, t, v, p)
	case KindUnion:
		for _, vt := range t.variants {
			sub := c.scratch()
			if out, ok := sub.walk(dir, vt, v, p); ok {
				return out, true
			}
		}
		c.fail(p, CodeTypeMismatch, fmt.Sprintf("no variant of %s accepts %T", t, v), nil)
		return nil, false
	}
	c.fail(p, CodeTypeMismatch, "unknown type kind "+t.kind.String(), nil)
	return nil, false
}

func (c *conv) scalar(dir direction, t *Type, v any, p Path) (any, bool) {
	var (
		out any
		err error
	)
	switch dir {
	case dirLower:
		out, err = t.scalar.ToJSON(v)
	case dirLift:
		out, err = t.scalar.FromJSON(v)
	default:
		var ok bool
		if out, ok = t.scalar.Accepts(v); !ok {
			err = fmt.Errorf("%w: expected %s, got %T", codec.ErrMismatch, t.scalar.Name(), v)
		}
	}
	if err != nil {
		c.mismatch(p, t, v, err)
		return nil, false
	}
	return out, true
}

func (c *conv) seq(dir direction, t *Type, v any, p Path) (any, bool) {
	rv := reflect.ValueOf(v)
	if _, isBytes := v.([]byte); isBytes || !isList(rv) {
		c.mismatch(p, t, v, nil)
		return nil, false
	}
	out := make([]any, 0, rv.Len())
	ok := true
	for i := 0; i < rv.Len(); i++ {
		e, eok := c.walk(dir, t.elem, rv.Index(i).Interface(), p.Index(i))
		ok = ok && eok
		out = append(out, e)
		if c.stop() {
			return nil, false
		}
	}
	return out, ok
}

func (c *conv) mapping(dir direction, t *Type, v any, p Path) (any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		c.mismatch(p, t, v, nil)
		return nil, false
	}
	keys := sortedKeys(rv)
	var b mapBuilder
	if dir == dirLower {
		b = mapBuilder{s: make(map[string]any, len(keys))}
	} else {
		b = newMapBuilder(t.scalar, len(keys))
	}
	ok := true
	for _, k := range keys {
		kp := p.Key(k.Interface())
		key, err := c.mapKey(dir, t.scalar, k.Interface())
		if err != nil {
			c.mismatch(kp, t, k.Interface(), err)
			ok = false
			if c.stop() {
				return nil, false
			}
			continue
		}
		if b.has(key) {
			c.fail(kp, CodeTypeMismatch, fmt.Sprintf("key %v collides with another key", key), nil)
			ok = false
			continue
		}
		e, eok := c.walk(dir, t.elem, rv.MapIndex(k).Interface(), kp)
		ok = ok && eok
		b.set(key, e)
		if c.stop() {
			return nil, false
		}
	}
	return b.value(), ok
}

func (c *conv) mapKey(dir direction, s codec.Scalar, k any) (any, error) {
	switch dir {
	case dirLower:
		return keyToJSON(s, k)
	case dirLift:
		ks, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: JSON object key must be a string, got %T", codec.ErrMismatch, k)
		}
		return keyFromJSON(s, ks)
	}
	out, ok := s.Accepts(k)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s key, got %T", codec.ErrMismatch, s.Name(), k)
	}
	return out, nil
}

func keyToJSON(s codec.Scalar, k any) (string, error) {
	out, err := s.ToJSON(k)
	if err != nil {
		return "", err
	}
	switch x := out.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		return string(x), nil
	}
	return "", fmt.Errorf("%w: %s key has no string form", codec.ErrMismatch, s.Name())
}

func keyFromJSON(s codec.Scalar, k string) (any, error) {
	switch s.JSONType() {
	case "integer", "number":
		return s.FromJSON(json.Number(k))
	case "boolean":
		b, err := strconv.ParseBool(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean key", codec.ErrMismatch, k)
		}
		return s.FromJSON(b)
	}
	return s.FromJSON(k)
}

type mapBuilder struct {
	s map[string]any
	a map[any]any
}

func newMapBuilder(key codec.Scalar, n int) mapBuilder {
	if key.Name() == "string" {
		return mapBuilder{s: make(map[string]any, n)}
	}
	return mapBuilder{a: make(map[any]any, n)}
}

func (b mapBuilder) has(k any) bool {
	if b.s != nil {
		_, ok := b.s[k.(string)]
		return ok
	}
	_, ok := b.a[k]
	return ok
}

func (b mapBuilder) set(k, v any) {
	if b.s != nil {
		b.s[k.(string)] = v
		return
	}
	b.a[k] = v
}

func (b mapBuilder) value() any {
	if b.s != nil {
		return b.s
	}
	return b.a
}

func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}

func asStringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		out[it.Key().String()] = it.Value().Interface()
	}
	return out, true
}

func sortedNames(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *conv) model(dir direction, t *Type, v any, p Path) (any, bool) {
	m, ok := c.modelOf(t, p)
	if !ok {
		return nil, false
	}
	if dir == dirUnwrap {
		r, ok := v.(*Record)
		if !ok || r.model.shape != m.shape {
			c.mismatch(p, t, v, nil)
			return nil, false
		}
		return c.unwrapRecord(r, p)
	}
	mv, ok := asStringMap(v)
	if !ok {
		c.mismatch(p, t, v, nil)
		return nil, false
	}
	switch dir {
	case dirWrap:
		return c.wrapRecord(m, mv, p)
	case dirLower:
		return c.lowerRecord(m, mv, p)
	default:
		return c.liftRecord(m, mv, p)
	}
}

// unwrapRecord produces the unstruct map of r, dropping Empty fields.
func (c *conv) unwrapRecord(r *Record, p Path) (any, bool) {
	m := r.model
	out := make(map[string]any, len(m.fields))
	before := len(c.issues)
	for i := range m.fields {
		f := &m.fields[i]
		fp := p.Field(f.Name)
		val := r.values[i]
		switch val.state {
		case StateEmpty:
			if f.Required {
				c.fail(fp, CodeMissingRequiredField, "", nil)
			}
		case StateNull:
			if !f.Nullable {
				c.fail(fp, CodeNullNotAllowed, "", nil)
			} else if !c.opt.ExcludeNone {
				out[f.Name] = nil
			}
		case StateSet:
			u, ok := c.walk(dirUnwrap, f.Type, val.v, fp)
			if ok {
				checked := val.v
				if f.Type.kind == KindScalar {
					checked = u
				}
				if c.check(f, checked, fp) {
					out[f.Name] = u
				}
			}
		}
		if c.stop() {
			return nil, false
		}
	}
	if len(c.issues) == before {
		c.checkRules(r, p)
	}
	return out, len(c.issues) == before
}

// wrapRecord resolves an unstruct map into a record.
func (c *conv) wrapRecord(m *Model, mv map[string]any, p Path) (any, bool) {
	r := m.newRecord()
	before := len(c.issues)
	for i := range m.fields {
		f := &m.fields[i]
		fp := p.Field(f.Name)
		raw, present := mv[f.Name]
		if lf, failed := raw.(liftFailed); failed {
			c.issues = append(c.issues, lf.issues...)
			if c.stop() {
				return nil, false
			}
			continue
		}
		switch {
		case !present:
			if f.Required {
				c.fail(fp, CodeMissingRequiredField, "", nil)
			} else if f.HasDefault() {
				r.values[i] = c.resolveDefault(f, fp)
			}
		case raw == nil:
			if !f.Nullable {
				c.fail(fp, CodeNullNotAllowed, "", nil)
			} else {
				r.values[i] = Null()
			}
		default:
			w, ok := c.walk(dirWrap, f.Type, raw, fp)
			if ok && c.check(f, w, fp) {
				r.values[i] = Of(w)
			}
		}
		if c.stop() {
			return nil, false
		}
	}
	if c.opt.Extras == ExtrasForbid {
		for _, k := range sortedNames(mv) {
			if _, known := m.byName[k]; !known {
				c.fail(p.Field(k), CodeExtraField, "", nil)
				if c.stop() {
					return nil, false
				}
			}
		}
	}
	if len(c.issues) == before {
		c.checkRules(r, p)
	}
	return r, len(c.issues) == before
}

// resolveDefault produces an absent field's default. Declared defaults were
// checked when the model was built and are copied; factory results are
// checked here on every call.
func (c *conv) resolveDefault(f *Field, p Path) Value {
	if f.DefaultFunc == nil {
		if !f.Default.IsSet() {
			return f.Default
		}
		return Of(cloneDefault(f.Default.v))
	}
	dv := f.DefaultFunc()
	switch dv.state {
	case StateEmpty:
		return dv
	case StateNull:
		if !f.Nullable {
			c.fail(p, CodeNullNotAllowed, "default factory returned null", nil)
			return Empty()
		}
		return dv
	}
	if err := shallowAccepts(f.Type, dv.v); err != nil {
		c.fail(p, CodeTypeMismatch, "default factory: "+err.Error(), err)
		return Empty()
	}
	dv = normalizeDefault(f.Type, dv)
	if !c.check(f, dv.v, p) {
		return Empty()
	}
	return dv
}

// cloneDefault deep-copies slices, maps and records so no two records share
// a default's backing storage.
func cloneDefault(v any) any {
	switch x := v.(type) {
	case *Record:
		return x.Clone()
	case []byte:
		return append([]byte(nil), x...)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			cloneInto(out.Index(i), rv.Index(i))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e := reflect.New(rv.Type().Elem()).Elem()
			cloneInto(e, iter.Value())
			out.SetMapIndex(iter.Key(), e)
		}
		return out.Interface()
	}
	return v
}

func cloneInto(dst, src reflect.Value) {
	if src.Kind() == reflect.Interface && src.IsNil() {
		return
	}
	dst.Set(reflect.ValueOf(cloneDefault(src.Interface())))
}

// lowerRecord renames unstruct keys to aliases and lowers each field value.
func (c *conv) lowerRecord(m *Model, mv map[string]any, p Path) (any, bool) {
	out := make(map[string]any, len(mv))
	ok := true
	for _, k := range sortedNames(mv) {
		i, known := m.byName[k]
		if !known {
			continue
		}
		f := &m.fields[i]
		j, fok := c.walk(dirLower, f.Type, mv[k], p.Field(f.Name))
		ok = ok && fok
		out[f.Alias] = j
		if c.stop() {
			return nil, false
		}
	}
	return out, ok
}

// liftRecord maps JSON keys (alias or name) back to names. Unknown keys are
// kept for the record boundary to judge unless extras are dropped.
func (c *conv) liftRecord(m *Model, mv map[string]any, p Path) (any, bool) {
	out := make(map[string]any, len(mv))
	from := make(map[string]string, len(mv))
	ok := true
	for _, k := range sortedNames(mv) {
		i, known := m.byAlias[k]
		if !known {
			i, known = m.byName[k]
		}
		if !known {
			if c.opt.Extras != ExtrasDrop {
				out[k] = mv[k]
			}
			continue
		}
		f := &m.fields[i]
		fp := p.Field(f.Name)
		before := len(c.issues)
		if prev, dup := from[f.Name]; dup {
			c.fail(fp, CodeDuplicateKey, fmt.Sprintf("field given as both %q and %q", prev, k), nil)
			if c.stop() {
				return nil, false
			}
			if !c.park(out, f.Name, before) {
				ok = false
			}
			continue
		}
		from[f.Name] = k
		u, fok := c.walk(dirLift, f.Type, mv[k], fp)
		if c.stop() {
			return nil, false
		}
		if !fok && c.park(out, f.Name, before) {
			continue
		}
		ok = ok && fok
		out[f.Name] = u
	}
	return out, ok
}

// park moves the issues raised since before into a liftFailed placeholder for
// field name, merging with one already parked there.
func (c *conv) park(out map[string]any, name string, before int) bool {
	if !c.deferLift || c.failFast || len(c.issues) == before {
		return false
	}
	moved := append(Issues(nil), c.issues[before:]...)
	c.issues = c.issues[:before]
	if prev, ok := out[name].(liftFailed); ok {
		moved = append(prev.issues, moved...)
	}
	out[name] = liftFailed{issues: moved}
	return true
}

// check runs a field's constraints; it reports whether all passed.
func (c *conv) check(f *Field, v any, p Path) bool {
	pass := true
	for _, con := range f.Constraints {
		viol := con.Check(v)
		if viol == nil {
			continue
		}
		pass = false
		c.addViolation(p, con.Kind(), viol)
		if c.stop() {
			return false
		}
	}
	return pass
}

func (c *conv) checkRules(r *Record, p Path) {
	for _, rule := range r.model.rules {
		for _, viol := range rule.CheckRecord(r) {
			c.addViolation(p, rule.Kind(), &viol)
			if c.stop() {
				return
			}
		}
	}
}

func (c *conv) addViolation(p Path, kind string, viol *Violation) {
	name := viol.Constraint
	if name == "" {
		name = kind
	}
	c.add(Issue{
		Path:       p.JoinPath(viol.Path),
		Code:       CodeConstraintViolation,
		Message:    viol.Message,
		Constraint: name,
		Params:     viol.Params,
	})
}

// normalizeNumbers turns json.Number leaves into int64 or float64.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return string(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeNumbers(e)
		}
		return out
	}
	return v
}

// shallowAccepts type-checks a declared default without building nested models.
func shallowAccepts(t *Type, v any) error {
	if v == nil {
		if t.nullable() {
			return nil
		}
		return ErrNullNotAllowed
	}
	switch t.kind {
	case KindAny:
		return nil
	case KindNullable:
		return shallowAccepts(t.elem, v)
	case KindScalar:
		if _, ok := t.scalar.Accepts(v); !ok {
			return fmt.Errorf("%w: expected %s, got %T", ErrTypeMismatch, t, v)
		}
		return nil
	case KindModel:
		s, err := t.Shape()
		if err != nil {
			return err
		}
		if r, ok := v.(*Record); !ok || r.model.shape != s {
			return fmt.Errorf("%w: expected %s record, got %T", ErrTypeMismatch, t, v)
		}
		return nil
	case KindSeq:
		rv := reflect.ValueOf(v)
		if _, isBytes := v.([]byte); isBytes || !isList(rv) {
			return fmt.Errorf("%w: expected %s, got %T", ErrTypeMismatch, t, v)
		}
		for i := 0; i < rv.Len(); i++ {
			if err := shallowAccepts(t.elem, rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case KindMap:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map {
			return fmt.Errorf("%w: expected %s, got %T", ErrTypeMismatch, t, v)
		}
		it := rv.MapRange()
		for it.Next() {
			if _, ok := t.scalar.Accepts(it.Key().Interface()); !ok {
				return fmt.Errorf("%w: bad key %v", ErrTypeMismatch, it.Key().Interface())
			}
			if err := shallowAccepts(t.elem, it.Value().Interface()); err != nil {
				return err
			}
		}
		return nil
	case KindUnion:
		var errs []error
		for _, vt := range t.variants {
			err := shallowAccepts(vt, v)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	return fmt.Errorf("%w: unknown type kind", ErrTypeMismatch)
}
