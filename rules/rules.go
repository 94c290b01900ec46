// Package rules provides model-level constraints: checks that look at more
// than one field of a record at once. They run after every field of the record
// resolved cleanly.
package rules

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/whatamithinking/jsonproto"
)

// Op defines comparison operators for If(...).Then(...).
type Op = jsonproto.Op

const (
	Eq = jsonproto.Eq
	Ne = jsonproto.Ne
	Lt = jsonproto.Lt
	Le = jsonproto.Le
	Gt = jsonproto.Gt
	Ge = jsonproto.Ge
)

// ---------- field groups ----------

// Dependent requires that when any field of the group is given (set or null),
// all of them are. Overlapping dependent groups on one model merge
// transitively: {a,b} and {b,c} act as {a,b,c}.
func Dependent(fields ...string) jsonproto.ModelConstraint {
	return dependent{fields: uniq(fields)}
}

type dependent struct{ fields []string }

func (dependent) Kind() string { return "dependent" }

func (d dependent) FieldNames() []string { return d.fields }

func (d dependent) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	given := givenOf(r, d.fields)
	if len(given) == 0 || len(given) == len(d.fields) {
		return nil
	}
	return []jsonproto.Violation{{
		Constraint: "dependent",
		Message:    fmt.Sprintf("fields %s must be given together; got only %s", strings.Join(d.fields, ", "), strings.Join(given, ", ")),
		Params:     map[string]any{"fields": d.fields, "given": given},
	}}
}

func (d dependent) Merge(other jsonproto.ModelConstraint) (jsonproto.ModelConstraint, bool) {
	o, ok := other.(dependent)
	if !ok || len(intersect(d.fields, o.fields)) == 0 {
		return nil, false
	}
	return dependent{fields: uniq(append(append([]string(nil), d.fields...), o.fields...))}, true
}

func (d dependent) Conflicts(other jsonproto.ModelConstraint) error {
	o, ok := other.(disjoint)
	if !ok {
		return nil
	}
	if both := intersect(d.fields, o.fields); len(both) > 1 {
		return fmt.Errorf("dependent fields %v conflict with disjoint fields %v", d.fields, o.fields)
	}
	return nil
}

// Disjoint allows at most one field of the group to be given.
func Disjoint(fields ...string) jsonproto.ModelConstraint {
	return disjoint{fields: uniq(fields)}
}

type disjoint struct{ fields []string }

func (disjoint) Kind() string { return "disjoint" }

func (d disjoint) FieldNames() []string { return d.fields }

func (d disjoint) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	given := givenOf(r, d.fields)
	if len(given) <= 1 {
		return nil
	}
	return []jsonproto.Violation{{
		Constraint: "disjoint",
		Message:    fmt.Sprintf("at most one of %s may be given; got %s", strings.Join(d.fields, ", "), strings.Join(given, ", ")),
		Params:     map[string]any{"fields": d.fields, "given": given},
	}}
}

// ---------- collections ----------

// AtLeastOne ensures the collection at path has at least 1 element. Empty and
// null values are left to the field's own requiredness.
func AtLeastOne(path string) jsonproto.ModelConstraint {
	return atLeastOne{path: path}
}

type atLeastOne struct{ path string }

func (atLeastOne) Kind() string { return "at_least_one" }

func (a atLeastOne) FieldNames() []string { return []string{rootOf(a.path)} }

func (a atLeastOne) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	val, ok := valueAt(r, a.path)
	if !ok || val == nil {
		return nil
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if rv.Len() == 0 {
			return []jsonproto.Violation{{
				Constraint: "at_least_one",
				Message:    "at least 1 item is required",
				Params:     map[string]any{"minItems": 1},
				Path:       a.path,
			}}
		}
	}
	return nil
}

// UniqueBy ensures elements of the collection at path have unique values at
// key (a path inside each element).
// Note: prefer a comparable key type such as string. Keys are compared by
// their printed form, so mixed-type keys may collide.
func UniqueBy(path, key string) jsonproto.ModelConstraint {
	return uniqueBy{path: path, key: key}
}

type uniqueBy struct{ path, key string }

func (uniqueBy) Kind() string { return "unique" }

func (u uniqueBy) FieldNames() []string { return []string{rootOf(u.path)} }

func (u uniqueBy) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	val, ok := valueAt(r, u.path)
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	seen := map[string]int{}
	var out []jsonproto.Violation
	for i := 0; i < rv.Len(); i++ {
		kv, ok := valueAt(rv.Index(i).Interface(), u.key)
		if !ok {
			continue
		}
		k := fmt.Sprint(kv)
		if j, dup := seen[k]; dup {
			out = append(out, jsonproto.Violation{
				Constraint: "unique",
				Message:    "duplicate value",
				Params:     map[string]any{"first": j, "dup": i, "key": k},
				Path:       fmt.Sprintf("%s[%d].%s", u.path, i, u.key),
			})
		} else {
			seen[k] = i
		}
	}
	return out
}

// ---------- conditionals ----------

// Conditional composes conditional execution of rules.
type Conditional struct {
	path string
	op   Op
	want any
	all  []Conditional // composite AND
	any  []Conditional // composite OR
}

// If builds a conditional that compares the value at path against want. The
// path is a field name, optionally descending into nested records, maps and
// lists ("address.country", "items[0].sku"). Empty or null values never
// satisfy a condition.
func If(path string, op Op, want any) Conditional {
	return Conditional{path: path, op: op, want: want}
}

// IfAll builds a conditional that requires all conditions to hold.
func IfAll(conds ...Conditional) Conditional { return Conditional{all: conds} }

// IfAny builds a conditional that requires any condition to hold.
func IfAny(conds ...Conditional) Conditional { return Conditional{any: conds} }

// And combines the receiver with additional conditions using logical AND.
func (c Conditional) And(others ...Conditional) Conditional {
	return IfAll(append([]Conditional{c}, others...)...)
}

// Or combines the receiver with additional conditions using logical OR.
func (c Conditional) Or(others ...Conditional) Conditional {
	return IfAny(append([]Conditional{c}, others...)...)
}

// Then attaches rules to run when the condition is satisfied.
func (c Conditional) Then(rules ...jsonproto.ModelConstraint) jsonproto.ModelConstraint {
	return thenRule{cond: c, rules: rules}
}

func (c Conditional) eval(r *jsonproto.Record) bool {
	if len(c.all) > 0 {
		for _, it := range c.all {
			if !it.eval(r) {
				return false
			}
		}
		return true
	}
	if len(c.any) > 0 {
		for _, it := range c.any {
			if it.eval(r) {
				return true
			}
		}
		return false
	}
	cur, ok := valueAt(r, c.path)
	if !ok || cur == nil {
		return false
	}
	return c.op.Eval(cur, c.want)
}

func (c Conditional) fieldNames() []string {
	var out []string
	if c.path != "" {
		out = append(out, rootOf(c.path))
	}
	for _, it := range c.all {
		out = append(out, it.fieldNames()...)
	}
	for _, it := range c.any {
		out = append(out, it.fieldNames()...)
	}
	return out
}

type thenRule struct {
	cond  Conditional
	rules []jsonproto.ModelConstraint
}

func (thenRule) Kind() string { return "if" }

func (t thenRule) FieldNames() []string {
	return uniq(append(t.cond.fieldNames(), namesOf(t.rules)...))
}

func (t thenRule) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	if !t.cond.eval(r) {
		return nil
	}
	return And(t.rules...).CheckRecord(r)
}

// Require reports the named fields when they are Empty or null. It is meant
// for If(...).Then(Require(...)).
func Require(fields ...string) jsonproto.ModelConstraint { return require{fields: uniq(fields)} }

type require struct{ fields []string }

func (require) Kind() string { return "required" }

func (q require) FieldNames() []string { return q.fields }

func (q require) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	var out []jsonproto.Violation
	for _, f := range q.fields {
		if !r.Get(f).IsSet() {
			out = append(out, jsonproto.Violation{Constraint: "required", Message: "field must be set here", Path: f})
		}
	}
	return out
}

// ---------- rule combinators ----------

// And executes all rules and concatenates their violations.
func And(rules ...jsonproto.ModelConstraint) jsonproto.ModelConstraint { return and{rules: rules} }

type and struct{ rules []jsonproto.ModelConstraint }

func (and) Kind() string { return "and" }

func (a and) FieldNames() []string { return namesOf(a.rules) }

func (a and) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	var out []jsonproto.Violation
	for _, rule := range a.rules {
		if rule == nil {
			continue
		}
		out = append(out, rule.CheckRecord(r)...)
	}
	return out
}

// Or succeeds if any rule passes. When all fail, the branch with the fewest
// violations is reported.
func Or(rules ...jsonproto.ModelConstraint) jsonproto.ModelConstraint { return or{rules: rules} }

type or struct{ rules []jsonproto.ModelConstraint }

func (or) Kind() string { return "or" }

func (o or) FieldNames() []string { return namesOf(o.rules) }

func (o or) CheckRecord(r *jsonproto.Record) []jsonproto.Violation {
	var best []jsonproto.Violation
	bestSet := false
	for _, rule := range o.rules {
		if rule == nil {
			continue
		}
		v := rule.CheckRecord(r)
		if len(v) == 0 {
			return nil
		}
		if !bestSet || len(v) < len(best) {
			best, bestSet = v, true
		}
	}
	return best
}

// ------- helpers -------

func givenOf(r *jsonproto.Record, fields []string) []string {
	var out []string
	for _, f := range fields {
		if !r.Get(f).IsEmpty() {
			out = append(out, f)
		}
	}
	return out
}

func namesOf(rules []jsonproto.ModelConstraint) []string {
	var out []string
	for _, r := range rules {
		if fr, ok := r.(jsonproto.FieldReferrer); ok {
			out = append(out, fr.FieldNames()...)
		}
	}
	return uniq(out)
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if in[s] {
			out = append(out, s)
		}
	}
	return out
}

// rootOf returns the first field name of a path.
func rootOf(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

// splitPath turns "a.b[2].c" into [a b 2 c].
func splitPath(path string) []string {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	var out []string
	for _, s := range strings.Split(path, ".") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// valueAt navigates records, string-keyed maps and lists. Empty fields are
// absent; null fields yield (nil, true).
func valueAt(v any, path string) (any, bool) {
	cur := v
	for _, seg := range splitPath(path) {
		switch x := cur.(type) {
		case *jsonproto.Record:
			fv, ok := x.Lookup(seg)
			if !ok || fv.IsEmpty() {
				return nil, false
			}
			cur = fv.Interface()
			continue
		case map[string]any:
			e, ok := x[seg]
			if !ok {
				return nil, false
			}
			cur = e
			continue
		}
		rv := reflect.ValueOf(cur)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			idx, ok := tryParseInt(seg)
			if !ok || idx < 0 || idx >= rv.Len() {
				return nil, false
			}
			cur = rv.Index(idx).Interface()
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			mv := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				return nil, false
			}
			cur = mv.Interface()
		default:
			return nil, false
		}
	}
	return cur, true
}

func tryParseInt(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
