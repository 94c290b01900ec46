package jsonproto

import (
	"fmt"
	"math"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/whatamithinking/jsonproto/jsonschema"
)

// Violation is a failed constraint check.
type Violation struct {
	Constraint string // constraint kind, e.g. "length"
	Message    string
	Params     map[string]any
	// Path is relative to the checked value; "" means the value itself.
	Path string
}

// Constraint validates one resolved, non-null field value.
type Constraint interface {
	Kind() string
	// Check returns nil when v passes.
	Check(v any) *Violation
}

// ModelConstraint validates a whole record after all of its fields resolved
// cleanly.
type ModelConstraint interface {
	Kind() string
	CheckRecord(r *Record) []Violation
}

// FieldReferrer is implemented by model constraints that name fields; the
// names are checked when the model is built.
type FieldReferrer interface {
	FieldNames() []string
}

// RuleMerger is implemented by model constraints that fold into another
// constraint of the same kind when a model is built.
type RuleMerger interface {
	Merge(other ModelConstraint) (ModelConstraint, bool)
}

// RuleConflicter reports model constraints that can never hold together.
type RuleConflicter interface {
	Conflicts(other ModelConstraint) error
}

// composeRules merges rules to a fixpoint and rejects conflicting pairs.
func composeRules(rules []ModelConstraint) ([]ModelConstraint, error) {
	out := append([]ModelConstraint(nil), rules...)
	for merged := true; merged; {
		merged = false
	scan:
		for i := range out {
			mg, ok := out[i].(RuleMerger)
			if !ok {
				continue
			}
			for j := i + 1; j < len(out); j++ {
				if r, ok := mg.Merge(out[j]); ok {
					out[i] = r
					out = append(out[:j], out[j+1:]...)
					merged = true
					break scan
				}
			}
		}
	}
	for i, a := range out {
		c, ok := a.(RuleConflicter)
		if !ok {
			continue
		}
		for j, b := range out {
			if i == j {
				continue
			}
			if err := c.Conflicts(b); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// SchemaAnnotator is implemented by constraints that can be expressed in JSON
// Schema.
type SchemaAnnotator interface {
	Annotate(s *jsonschema.Schema)
}

// Op is a comparison operator.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp resolves "==", "!=", "<", "<=", ">", ">=" and the words eq, ne, lt,
// le, gt, ge.
func ParseOp(s string) (Op, error) {
	switch s {
	case "==", "eq":
		return Eq, nil
	case "!=", "ne":
		return Ne, nil
	case "<", "lt":
		return Lt, nil
	case "<=", "le":
		return Le, nil
	case ">", "gt":
		return Gt, nil
	case ">=", "ge":
		return Ge, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Eval reports whether "cur op want" holds. Ordering is defined for numbers,
// strings, times and durations; mismatched kinds are never ordered.
func (o Op) Eval(cur, want any) bool {
	switch o {
	case Eq:
		return equalLoose(cur, want)
	case Ne:
		return !equalLoose(cur, want)
	}
	c, ok := compareOrdered(cur, want)
	if !ok {
		return false
	}
	switch o {
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Gt:
		return c > 0
	case Ge:
		return c >= 0
	}
	return false
}

func equalLoose(a, b any) bool {
	if c, ok := compareOrdered(a, b); ok {
		return c == 0
	}
	return equalAny(a, b)
}

// compareOrdered returns -1, 0 or 1.
func compareOrdered(a, b any) (int, bool) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		}
		return 0, true
	}
	if da, ok := a.(time.Duration); ok {
		db, ok := b.(time.Duration)
		if !ok {
			return 0, false
		}
		return cmp3(float64(da), float64(db)), true
	}
	ia, aInt := toInt64(a)
	ib, bInt := toInt64(b)
	if aInt && bInt {
		switch {
		case ia < ib:
			return -1, true
		case ia > ib:
			return 1, true
		}
		return 0, true
	}
	fa, ok1 := toFloat64(a)
	fb, ok2 := toFloat64(b)
	if !ok1 || !ok2 || math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, false
	}
	return cmp3(fa, fb), true
}

func cmp3(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if _, isDur := v.(time.Duration); isDur {
			return 0, false
		}
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Length constrains the length of a string (in runes), byte slice, sequence or
// mapping: Length(Le, 10) allows at most ten.
func Length(op Op, n int) Constraint { return lengthConstraint{op: op, n: n} }

type lengthConstraint struct {
	op Op
	n  int
}

func (lengthConstraint) Kind() string { return "length" }

func (c lengthConstraint) Check(v any) *Violation {
	n, ok := lengthOf(v)
	if !ok {
		return &Violation{Constraint: "length", Message: fmt.Sprintf("length of %T is undefined", v)}
	}
	if c.op.Eval(n, c.n) {
		return nil
	}
	return &Violation{
		Constraint: "length",
		Message:    fmt.Sprintf("length %d is not %s %d", n, c.op, c.n),
		Params:     map[string]any{"op": c.op.String(), "limit": c.n, "actual": n},
	}
}

func (c lengthConstraint) Annotate(s *jsonschema.Schema) {
	lo, hi, ok := bounds(c.op, c.n)
	if !ok {
		return
	}
	switch s.Type {
	case "string":
		s.MinLength, s.MaxLength = mergeMin(s.MinLength, lo), mergeMax(s.MaxLength, hi)
	case "array":
		s.MinItems, s.MaxItems = mergeMin(s.MinItems, lo), mergeMax(s.MaxItems, hi)
	case "object":
		s.MinProperties, s.MaxProperties = mergeMin(s.MinProperties, lo), mergeMax(s.MaxProperties, hi)
	}
}

func bounds(op Op, n int) (lo, hi *int, ok bool) {
	switch op {
	case Eq:
		return &n, &n, true
	case Lt:
		m := n - 1
		return nil, &m, true
	case Le:
		return nil, &n, true
	case Gt:
		m := n + 1
		return &m, nil, true
	case Ge:
		return &n, nil, true
	}
	return nil, nil, false
}

func mergeMin(cur, lo *int) *int {
	if lo == nil || (cur != nil && *cur >= *lo) {
		return cur
	}
	return lo
}

func mergeMax(cur, hi *int) *int {
	if hi == nil || (cur != nil && *cur <= *hi) {
		return cur
	}
	return hi
}

func lengthOf(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case []byte:
		return len(x), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

// Compare constrains a value against a limit: Compare(Ge, 0) rejects negatives.
// It applies to numbers, strings, times and durations.
func Compare(op Op, limit any) Constraint { return compareConstraint{op: op, limit: limit} }

type compareConstraint struct {
	op    Op
	limit any
}

func (compareConstraint) Kind() string { return "value" }

func (c compareConstraint) Check(v any) *Violation {
	if c.op.Eval(v, c.limit) {
		return nil
	}
	return &Violation{
		Constraint: "value",
		Message:    fmt.Sprintf("%v is not %s %v", v, c.op, c.limit),
		Params:     map[string]any{"op": c.op.String(), "limit": c.limit, "actual": v},
	}
}

func (c compareConstraint) Annotate(s *jsonschema.Schema) {
	f, ok := toFloat64(c.limit)
	if !ok {
		return
	}
	switch c.op {
	case Lt:
		s.ExclusiveMaximum = &f
	case Le:
		s.Maximum = &f
	case Gt:
		s.ExclusiveMinimum = &f
	case Ge:
		s.Minimum = &f
	case Eq:
		s.Const = c.limit
	}
}

// OneOf restricts a value to the listed values.
func OneOf(values ...any) Constraint { return enumConstraint{values: values} }

type enumConstraint struct{ values []any }

func (enumConstraint) Kind() string { return "enum" }

func (c enumConstraint) Check(v any) *Violation {
	for _, want := range c.values {
		if equalLoose(v, want) {
			return nil
		}
	}
	return &Violation{
		Constraint: "enum",
		Message:    fmt.Sprintf("%v is not one of %v", v, c.values),
		Params:     map[string]any{"allowed": c.values, "actual": v},
	}
}

func (c enumConstraint) Annotate(s *jsonschema.Schema) {
	s.Enum = append([]any(nil), c.values...)
}
